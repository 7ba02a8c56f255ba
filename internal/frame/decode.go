package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameTooShort is returned when a payload is shorter than the
	// configured layout requires.
	ErrFrameTooShort = errors.New("frame too short")
	// ErrFrameLayoutMismatch is returned when a payload cannot belong to the
	// configured layout (frames are fixed length, so a longer payload was
	// produced by a different revision).
	ErrFrameLayoutMismatch = errors.New("frame does not match layout")
	// ErrUnknownLayout is returned for a layout that is neither v1 nor v2.
	ErrUnknownLayout = errors.New("unknown frame layout")
)

// Decode parses data as a frame of the given layout. Decoding is all or
// nothing: on error the returned Sample is the zero value.
func Decode(data []byte, layout Layout) (Sample, error) {
	spec, ok := layouts[layout]
	if !ok {
		return Sample{}, fmt.Errorf("%w: %d", ErrUnknownLayout, int(layout))
	}
	if len(data) < spec.size {
		return Sample{}, fmt.Errorf("%w: got %d bytes, %s needs %d", ErrFrameTooShort, len(data), layout, spec.size)
	}
	if len(data) > spec.size {
		return Sample{}, fmt.Errorf("%w: got %d bytes, %s frames are %d", ErrFrameLayoutMismatch, len(data), layout, spec.size)
	}

	s := Sample{Layout: layout}
	offset := 0
	for _, f := range spec.fields {
		w := f.kind.width()
		f.set(&s, f.kind.read(spec.order, data[offset:offset+w]))
		offset += w
	}
	return s, nil
}

// Encode writes s as a frame of the given layout. Fields the layout does not
// carry are dropped. It is the inverse of Decode and is used by the simulator
// and by tests to build fixtures.
func Encode(s Sample, layout Layout) ([]byte, error) {
	spec, ok := layouts[layout]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLayout, int(layout))
	}
	buf := make([]byte, spec.size)
	offset := 0
	for _, f := range spec.fields {
		w := f.kind.width()
		f.kind.write(spec.order, buf[offset:offset+w], f.get(&s))
		offset += w
	}
	return buf, nil
}
