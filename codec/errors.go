package codec

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-transcode/images"
)

var (
	// ErrCapacity matches every capacity rejection via errors.Is.
	ErrCapacity = errors.New("encoder capacity exceeded")

	// ErrInvalidImage is returned when a buffer cannot be decoded.
	ErrInvalidImage = errors.New("invalid image data")

	// ErrEmptyBuffer is returned for zero-length input.
	ErrEmptyBuffer = errors.New("empty image buffer")
)

// Capacity rejection reasons.
const (
	ReasonDimensions  = "dimensions exceed format limit"
	ReasonUnavailable = "format unavailable"
	ReasonFileSize    = "unsupported file size"
)

// CapacityError reports that a format cannot represent an image, either
// because of its size limits or because the backend has no encoder for it.
type CapacityError struct {
	Format images.Format
	Width  int
	Height int
	// Limit is the format's maximum dimension, when known.
	Limit  int
	Reason string
	// Err is the underlying encoder error, if any.
	Err error
}

// Error implements error.
func (e *CapacityError) Error() string {
	msg := fmt.Sprintf("%s: %s cannot encode %dx%d", e.Reason, e.Format, e.Width, e.Height)
	if e.Limit > 0 {
		msg += fmt.Sprintf(" (limit %d)", e.Limit)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying encoder error.
func (e *CapacityError) Unwrap() error {
	return e.Err
}

// Is makes every CapacityError match ErrCapacity.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacity
}

// IsCapacityRejection reports whether err, or anything it wraps, is a
// capacity rejection.
func IsCapacityRejection(err error) bool {
	return err != nil && errors.Is(err, ErrCapacity)
}

// CheckDimensions returns a *CapacityError when width or height exceeds the
// format's single-call limit, and nil otherwise. Formats without a known
// limit are always accepted.
//
// Arguments:
//   - format: The output format.
//   - width, height: The dimensions to be encoded.
//
// Returns:
//   - error: A *CapacityError, or nil.
func CheckDimensions(format images.Format, width, height int) error {
	limit := format.MaxDimension()
	if limit == 0 || (width <= limit && height <= limit) {
		return nil
	}
	return &CapacityError{
		Format: format,
		Width:  width,
		Height: height,
		Limit:  limit,
		Reason: ReasonDimensions,
	}
}
