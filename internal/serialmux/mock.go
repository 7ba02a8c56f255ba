package serialmux

import (
	"io"
	"time"

	"github.com/banshee-data/basestation/internal/timeutil"
)

// MockSerialPort implements SerialPorter over a pipe. Writes are discarded.
type MockSerialPort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (m *MockSerialPort) Read(p []byte) (int, error)  { return m.r.Read(p) }
func (m *MockSerialPort) Write(p []byte) (int, error) { return len(p), nil }

// Close stops the generator and unblocks readers.
func (m *MockSerialPort) Close() error {
	m.w.CloseWithError(io.EOF)
	return m.r.Close()
}

// NewMockSerialMux returns a SerialMux whose port emits next() as a hex line
// on every tick of clock at the given interval. It backs the dev mode, with
// next supplied by the simulator. A nil frame from next is skipped.
func NewMockSerialMux(next func() []byte, interval time.Duration, clock timeutil.Clock) *SerialMux[*MockSerialPort] {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	r, w := io.Pipe()
	port := &MockSerialPort{r: r, w: w}

	go func() {
		ticker := clock.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C() {
			frame := next()
			if frame == nil {
				continue
			}
			if _, err := w.Write(EncodeLine(frame)); err != nil {
				return
			}
		}
	}()

	mux := NewSerialMux(port)
	mux.SetClock(clock)
	return mux
}
