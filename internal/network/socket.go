package network

import (
	"net"
	"sync"
	"time"
)

// UDPSocket defines the UDP socket operations the listener needs.
// This abstraction enables unit testing without real network connections.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// UDPSocketFactory creates UDP sockets.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory implements UDPSocketFactory using net.ListenUDP.
// *net.UDPConn satisfies UDPSocket directly.
type RealUDPSocketFactory struct{}

// ListenUDP opens a UDP socket bound to laddr.
func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockUDPSocket implements UDPSocket for testing. Once the queued packets
// are consumed it reports read timeouts until closed.
type MockUDPSocket struct {
	mu sync.Mutex

	Packets        []MockUDPPacket
	ReadIndex      int
	Closed         bool
	ReadBufferSize int
	LocalAddress   *net.UDPAddr

	// ReadError is returned once by the next ReadFromUDP call if set.
	ReadError error
}

// MockUDPPacket is a datagram queued on a MockUDPSocket.
type MockUDPPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// NewMockUDPSocket creates a MockUDPSocket that will return packets in order.
func NewMockUDPSocket(packets ...MockUDPPacket) *MockUDPSocket {
	return &MockUDPSocket{
		Packets:      packets,
		LocalAddress: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: DefaultUDPPort},
	}
}

func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, nil, net.ErrClosed
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.ReadError = nil
		return 0, nil, err
	}
	if m.ReadIndex >= len(m.Packets) {
		m.mu.Unlock()
		time.Sleep(time.Millisecond)
		m.mu.Lock()
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
	}
	pkt := m.Packets[m.ReadIndex]
	m.ReadIndex++
	return copy(b, pkt.Data), pkt.Addr, nil
}

// Consumed reports how many queued packets have been read.
func (m *MockUDPSocket) Consumed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReadIndex
}

func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadBufferSize = bytes
	return nil
}

func (m *MockUDPSocket) SetReadDeadline(time.Time) error { return nil }

func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockUDPSocket) LocalAddr() net.Addr { return m.LocalAddress }

// MockUDPSocketFactory returns a fixed socket and records the address asked
// for.
type MockUDPSocketFactory struct {
	Socket *MockUDPSocket
	Error  error
	Addrs  []*net.UDPAddr
}

func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.Addrs = append(f.Addrs, laddr)
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
