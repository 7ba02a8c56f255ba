package series

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/basestation/internal/frame"
	"github.com/banshee-data/basestation/internal/units"
)

// DefaultWindow is the retention span used when none is configured.
const DefaultWindow = 30 * time.Second

// Domain is the time span covered by the retained samples, in seconds.
// From equals To when only the newest sample remains.
type Domain struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Valid bool    `json:"valid"`
}

// Point is a type-erased DataPoint for JSON consumers.
type Point struct {
	ID     uuid.UUID `json:"id"`
	Time   float64   `json:"time"`
	OnTime uint32    `json:"on_time_ms"`
	Name   string    `json:"name"`
	Value  float64   `json:"value"`
}

// Channel is a named series fed from samples. Implementations are created
// with NewChannel.
type Channel interface {
	Name() string

	add(ms uint32, s frame.Sample)
	trimBefore(fromMs uint32)
	reset()
	snapshot() channelView
}

type channelView interface {
	values() []Point
	len() int
}

type channel[T Number] struct {
	name    string
	extract func(frame.Sample) []Reading[T]
	window  Window[T]
}

// NewChannel returns a channel whose points are produced by extract. extract
// may return no readings for samples that do not carry the channel.
func NewChannel[T Number](name string, extract func(frame.Sample) []Reading[T]) Channel {
	return &channel[T]{name: name, extract: extract}
}

func (c *channel[T]) Name() string { return c.name }

func (c *channel[T]) add(ms uint32, s frame.Sample) {
	t := units.MillisToSeconds(ms)
	for _, r := range c.extract(s) {
		c.window.Append(DataPoint[T]{ID: uuid.New(), Time: t, OnTime: ms, Name: r.Name, Value: r.Value})
	}
}

func (c *channel[T]) trimBefore(fromMs uint32) { c.window.TrimBefore(fromMs) }
func (c *channel[T]) reset()                  { c.window.Reset() }

func (c *channel[T]) snapshot() channelView {
	return typedView[T](c.window.Points())
}

type typedView[T Number] []DataPoint[T]

func (v typedView[T]) len() int { return len(v) }

func (v typedView[T]) values() []Point {
	out := make([]Point, len(v))
	for i, p := range v {
		out[i] = Point{ID: p.ID, Time: p.Time, OnTime: p.OnTime, Name: p.Name, Value: float64(p.Value)}
	}
	return out
}

// Store holds the configured channels and the sample-time domain. It is not
// safe for concurrent use; the station serialises access and hands out
// Views to readers.
type Store struct {
	window   time.Duration
	channels []Channel
	byName   map[string]Channel
	times    timeline
}

// NewStore returns a store retaining window of history for each channel.
// window <= 0 selects DefaultWindow. Channel names must be unique.
func NewStore(window time.Duration, channels ...Channel) (*Store, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	s := &Store{
		window: window,
		byName: make(map[string]Channel, len(channels)),
	}
	for _, c := range channels {
		if _, dup := s.byName[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate channel %q", c.Name())
		}
		s.byName[c.Name()] = c
		s.channels = append(s.channels, c)
	}
	return s, nil
}

// Window returns the retention span.
func (s *Store) Window() time.Duration { return s.window }

// Add appends the sample's readings to every channel, then trims every
// channel to points no older than the window before this sample.
func (s *Store) Add(sample frame.Sample) {
	ms := sample.OnTime
	s.times.add(ms)
	for _, c := range s.channels {
		c.add(ms, sample)
	}

	from := cutoff(ms, s.window)
	s.times.trimBefore(from)
	for _, c := range s.channels {
		c.trimBefore(from)
	}
}

// Reset clears every channel and the domain.
func (s *Store) Reset() {
	s.times.reset()
	for _, c := range s.channels {
		c.reset()
	}
}

// Domain returns the time span of the retained samples.
func (s *Store) Domain() Domain { return s.times.domain() }

// View returns an immutable view of the current contents.
func (s *Store) View() View {
	v := View{
		Domain:   s.times.domain(),
		names:    make([]string, len(s.channels)),
		channels: make(map[string]channelView, len(s.channels)),
	}
	for i, c := range s.channels {
		v.names[i] = c.Name()
		v.channels[c.Name()] = c.snapshot()
	}
	return v
}

// View is a point-in-time copy of a Store's contents.
type View struct {
	Domain   Domain
	names    []string
	channels map[string]channelView
}

// Names lists the channel names in configuration order.
func (v View) Names() []string { return append([]string(nil), v.names...) }

// Has reports whether the view contains the named channel.
func (v View) Has(name string) bool {
	_, ok := v.channels[name]
	return ok
}

// Len returns the number of points in the named channel.
func (v View) Len(name string) int {
	if cv, ok := v.channels[name]; ok {
		return cv.len()
	}
	return 0
}

// Values returns the named channel's points as float64 values, or nil when
// the channel does not exist.
func (v View) Values(name string) []Point {
	cv, ok := v.channels[name]
	if !ok {
		return nil
	}
	return cv.values()
}

// MarshalJSON encodes the domain and every channel's points.
func (v View) MarshalJSON() ([]byte, error) {
	channels := make(map[string][]Point, len(v.names))
	for _, n := range v.names {
		channels[n] = v.Values(n)
	}
	return json.Marshal(struct {
		Domain   Domain             `json:"domain"`
		Channels map[string][]Point `json:"channels"`
	}{v.Domain, channels})
}

// Points returns the typed points of the named channel. ok is false when the
// channel does not exist or carries a different value type.
func Points[T Number](v View, name string) (points []DataPoint[T], ok bool) {
	tv, ok := v.channels[name].(typedView[T])
	if !ok {
		return nil, false
	}
	return tv, true
}
