package engine

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/slicer"
)

// ErrFailed matches every *Failure via errors.Is.
var ErrFailed = errors.New("transcode failed")

// State is a step of the transcode state machine.
type State int

const (
	StateProbing State = iota
	StateTuning
	StateEncoding
	StateFallbackEncoding
	StateDone
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateTuning:
		return "tuning"
	case StateEncoding:
		return "encoding"
	case StateFallbackEncoding:
		return "fallback_encoding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Kind classifies why a transcode failed.
type Kind int

const (
	// KindInvalidInput means the probe could not read valid dimensions.
	KindInvalidInput Kind = iota + 1
	// KindCapacity means the fallback encode was also refused for size.
	KindCapacity
	// KindEncoder is any other encoder failure.
	KindEncoder
	// KindSliceIO is a slice storage or reassembly failure.
	KindSliceIO
	// KindCanceled means the request context ended.
	KindCanceled
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindCapacity:
		return "capacity"
	case KindEncoder:
		return "encoder"
	case KindSliceIO:
		return "slice_io"
	case KindCanceled:
		return "canceled"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Failure is the terminal error of a transcode. The caller is expected to
// serve the original bytes.
type Failure struct {
	// State is where the machine was when it failed.
	State  State
	Kind   Kind
	Reason string
	Err    error
}

// Error implements error.
func (f *Failure) Error() string {
	msg := fmt.Sprintf("transcode failed while %s (%s): %s", f.State, f.Kind, f.Reason)
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Is makes every Failure match ErrFailed.
func (f *Failure) Is(target error) bool {
	return target == ErrFailed
}

// AsFailure extracts the *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// kindOf classifies an encode error.
func kindOf(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case codec.IsCapacityRejection(err):
		return KindCapacity
	case errors.Is(err, slicer.ErrSliceIO):
		return KindSliceIO
	}
	return KindEncoder
}

func fail(state State, kind Kind, reason string, err error) *Failure {
	return &Failure{State: state, Kind: kind, Reason: reason, Err: err}
}
