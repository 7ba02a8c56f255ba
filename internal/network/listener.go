// Package network receives telemetry frames carried as UDP datagrams, either
// live from a socket or replayed from a packet capture.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/basestation/internal/monitoring"
)

// DefaultUDPPort is the port telemetry bridges send to by default.
const DefaultUDPPort = 14560

// maxDatagram bounds a single read; frames are far smaller.
const maxDatagram = 2048

// FrameHandler consumes one frame per datagram. *station.Station satisfies
// it.
type FrameHandler interface {
	HandleFrame(data []byte) error
}

// UDPListenerConfig configures a UDPListener.
type UDPListenerConfig struct {
	Address     string // host:port to bind
	RcvBuf      int    // socket receive buffer, 0 leaves the OS default
	LogInterval time.Duration
	Handler     FrameHandler
	Stats       *PacketStats
	Sockets     UDPSocketFactory
}

// UDPListener reads datagrams and hands each one to a FrameHandler.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	handler     FrameHandler
	stats       *PacketStats
	sockets     UDPSocketFactory
}

// NewUDPListener creates a listener from config, filling in defaults.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	l := &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: config.LogInterval,
		handler:     config.Handler,
		stats:       config.Stats,
		sockets:     config.Sockets,
	}
	if l.address == "" {
		l.address = fmt.Sprintf(":%d", DefaultUDPPort)
	}
	if l.logInterval == 0 {
		l.logInterval = time.Minute
	}
	if l.stats == nil {
		l.stats = NewPacketStats(nil)
	}
	if l.sockets == nil {
		l.sockets = RealUDPSocketFactory{}
	}
	return l
}

// Stats returns the listener's packet statistics.
func (l *UDPListener) Stats() *PacketStats { return l.stats }

// Start listens until ctx is done. Handler errors are counted and never stop
// the listener.
func (l *UDPListener) Start(ctx context.Context) error {
	if l.handler == nil {
		return errors.New("udp listener has no frame handler")
	}
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := l.sockets.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: Failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}
	monitoring.Logf("UDP listener started on %s", conn.LocalAddr())

	go l.logStats(ctx)

	buffer := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		// Set read deadline to allow checking context cancellation
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			monitoring.Logf("UDP read error: %v", err)
			continue
		}

		// The handler may retain the slice, so each datagram gets its own.
		datagram := append([]byte(nil), buffer[:n]...)
		if err := l.handler.HandleFrame(datagram); err != nil {
			l.stats.AddRejected()
			continue
		}
		l.stats.AddPacket(n)
	}
}

func (l *UDPListener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}
