package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per failure class. Use errors.Is to test for them.
var (
	// ErrSelection is returned when a channel or frequency selection does not
	// fit the data actually present.
	ErrSelection = errors.New("selection error")

	// ErrMetadataLookup is returned when a subtable has no record for the
	// requested antenna, feed, field, spectral window or epoch.
	ErrMetadataLookup = errors.New("metadata lookup error")

	// ErrShapeMismatch is returned when a cube does not have the shape of the
	// chunk it is read from or written to.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrConsistency is returned when a write would contradict row-based flagging.
	ErrConsistency = errors.New("consistency error")

	// ErrIO is returned when storage cannot be opened, is empty or is read-only.
	ErrIO = errors.New("i/o error")
)

// Kind categorizes data access errors.
type Kind int

const (
	KindUnknown Kind = iota
	KindSelection
	KindMetadataLookup
	KindShapeMismatch
	KindConsistency
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindSelection:
		return "selection"
	case KindMetadataLookup:
		return "metadata lookup"
	case KindShapeMismatch:
		return "shape mismatch"
	case KindConsistency:
		return "consistency"
	case KindIO:
		return "io"
	}
	return "unknown"
}

// NoIndex marks a context field of Error that does not apply.
const NoIndex = -1

// Error describes a data access failure together with the row, antenna,
// feed and channel it was detected for.
type Error struct {
	Kind    Kind
	Message string
	Row     int
	Antenna int
	Feed    int
	Channel int
	Cause   error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	var ctx []string
	if e.Row != NoIndex {
		ctx = append(ctx, fmt.Sprintf("row=%d", e.Row))
	}
	if e.Antenna != NoIndex {
		ctx = append(ctx, fmt.Sprintf("antenna=%d", e.Antenna))
	}
	if e.Feed != NoIndex {
		ctx = append(ctx, fmt.Sprintf("feed=%d", e.Feed))
	}
	if e.Channel != NoIndex {
		ctx = append(ctx, fmt.Sprintf("channel=%d", e.Channel))
	}
	if len(ctx) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(ctx, " "))
		sb.WriteString("]")
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error matching against the package sentinels.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindSelection:
		return target == ErrSelection
	case KindMetadataLookup:
		return target == ErrMetadataLookup
	case KindShapeMismatch:
		return target == ErrShapeMismatch
	case KindConsistency:
		return target == ErrConsistency
	case KindIO:
		return target == ErrIO
	}
	return false
}

// WithRow returns a copy of e carrying the given row number.
func (e *Error) WithRow(row int) *Error {
	c := *e
	c.Row = row
	return &c
}

// WithAntenna returns a copy of e carrying the given antenna and feed ids.
func (e *Error) WithAntenna(ant, feed int) *Error {
	c := *e
	c.Antenna = ant
	c.Feed = feed
	return &c
}

// WithChannel returns a copy of e carrying the given channel.
func (e *Error) WithChannel(ch int) *Error {
	c := *e
	c.Channel = ch
	return &c
}

func newError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Row:     NoIndex,
		Antenna: NoIndex,
		Feed:    NoIndex,
		Channel: NoIndex,
		Cause:   cause,
	}
}

// Selection creates a selection error.
func Selection(format string, args ...interface{}) *Error {
	return newError(KindSelection, nil, format, args...)
}

// MetadataLookup creates a metadata lookup error.
func MetadataLookup(format string, args ...interface{}) *Error {
	return newError(KindMetadataLookup, nil, format, args...)
}

// ShapeMismatch creates a shape mismatch error.
func ShapeMismatch(format string, args ...interface{}) *Error {
	return newError(KindShapeMismatch, nil, format, args...)
}

// Consistency creates a consistency error.
func Consistency(format string, args ...interface{}) *Error {
	return newError(KindConsistency, nil, format, args...)
}

// IO creates an i/o error wrapping cause (which may be nil).
func IO(cause error, format string, args ...interface{}) *Error {
	return newError(KindIO, cause, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
