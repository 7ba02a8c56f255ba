// Package serialmux reads telemetry frames from a serial radio link and fans
// them out to any number of subscribers.
//
// The radio carries one frame per line, hex encoded. Each line is decoded
// to raw frame bytes before delivery; lines that are not valid hex are
// counted and dropped.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tevino/abool/v2"
	"tailscale.com/tsweb"

	"github.com/banshee-data/basestation/internal/monitoring"
	"github.com/banshee-data/basestation/internal/timeutil"
)

// SubscriberBuffer is the per-subscriber queue length. A subscriber that
// falls further behind misses frames rather than stalling the link.
const SubscriberBuffer = 16

// maxLine bounds a single hex line; frames are well under 1 KiB.
const maxLine = 64 * 1024

// SerialMux is a generic serial port multiplexer that allows multiple clients to
// subscribe to frames from a single serial port.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan []byte
	subscriberMu sync.Mutex
	closing      *abool.AtomicBool

	lines    atomic.Uint64
	frames   atomic.Uint64
	badLines atomic.Uint64
	dropped  atomic.Uint64

	clock      timeutil.Clock
	badLineLog *monitoring.Throttle
}

// Stats counts line traffic through a mux.
type Stats struct {
	Lines    uint64 `json:"lines"`
	Frames   uint64 `json:"frames"`
	BadLines uint64 `json:"bad_lines"`
	Dropped  uint64 `json:"dropped"`
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving decoded frames. The ID
	// identifies the channel when unsubscribing.
	Subscribe() (string, chan []byte)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// Monitor reads lines from the serial port until ctx is done or the
	// port fails, delivering each decoded frame to subscribers.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error
	// Stats returns traffic counters.
	Stats() Stats

	// AttachAdminRoutes attaches debugging endpoints to the given HTTP mux
	// served at /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux reading from port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan []byte),
		closing:     abool.New(),
		clock:       timeutil.RealClock{},
		badLineLog:  monitoring.NewThrottle(time.Second),
	}
}

// SetClock replaces the clock used to throttle bad-line logging. Call it
// before Monitor.
func (s *SerialMux[T]) SetClock(c timeutil.Clock) {
	s.clock = c
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan []byte) {
	id := randomID()
	ch := make(chan []byte, SubscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closing.IsSet() {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// DecodeLine converts one hex line to frame bytes. Surrounding whitespace
// and whitespace between byte pairs are ignored. An empty line decodes to
// nil without error.
func DecodeLine(line string) ([]byte, error) {
	cleaned := strings.Join(strings.Fields(line), "")
	if cleaned == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex line: %w", err)
	}
	return b, nil
}

// EncodeLine formats a frame as a newline-terminated hex line.
func EncodeLine(frame []byte) []byte {
	out := make([]byte, hex.EncodedLen(len(frame))+1)
	hex.Encode(out, frame)
	out[len(out)-1] = '\n'
	return out
}

// Monitor monitors the serial port for frames and sends them to subscribers
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)
	scan.Buffer(make([]byte, 0, 4096), maxLine)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs in its own goroutine so the loop below can
	// also watch for cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if s.closing.IsSet() {
				return nil
			}
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.closing.IsSet() {
						return err
					}
				default:
				}
				return nil
			}
			if s.closing.IsSet() {
				return nil
			}
			s.handleLine(line)
		}
	}
}

func (s *SerialMux[T]) handleLine(line string) {
	s.lines.Add(1)
	frame, err := DecodeLine(line)
	if err != nil {
		s.badLines.Add(1)
		s.badLineLog.Logf(s.clock.Now(), "serialmux: dropping line: %v", err)
		return
	}
	if frame == nil {
		return
	}
	s.frames.Add(1)
	s.fanOut(frame)
}

func (s *SerialMux[T]) fanOut(frame []byte) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- frame:
		default:
			// if the channel is full skip so as not to block the link
			s.dropped.Add(1)
		}
	}
}

// Stats returns traffic counters.
func (s *SerialMux[T]) Stats() Stats {
	return Stats{
		Lines:    s.lines.Load(),
		Frames:   s.frames.Load(),
		BadLines: s.badLines.Load(),
		Dropped:  s.dropped.Load(),
	}
}

func (s *SerialMux[T]) Close() error {
	if !s.closing.SetToIf(false, true) {
		return nil
	}

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}

// attachAdminRoutes registers the debug pages shared by every mux kind.
func attachAdminRoutes(mux *http.ServeMux, m SerialMuxInterface) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("serial-stats", "serial link counters", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.Stats()); err != nil {
			http.Error(w, "Failed to encode stats", http.StatusInternalServerError)
		}
	})

	// Server-Sent Events stream of decoded frames, hex encoded.
	debug.HandleSilentFunc("serial-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := m.Subscribe()
		defer m.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case frame, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %x\n\n", frame); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
