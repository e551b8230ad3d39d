// Package images - image metadata, formats and pixel helpers for transcoding.
package images

import "fmt"

// Metadata describes an input buffer as reported by a probe.
type Metadata struct {
	// The width of the image (of a single frame for animations).
	Width int `json:"width" yaml:"width"`
	// The height of the image (of a single frame for animations).
	Height int `json:"height" yaml:"height"`
	// The number of frames or pages in the container.
	Pages int `json:"pages" yaml:"pages"`
	// Valid is false when the dimensions could not be determined.
	Valid bool `json:"valid" yaml:"valid"`
	// The sniffed container format.
	Format Format `json:"format" yaml:"format"`
	// The sniffed MIME type.
	MIMEType string `json:"mime_type" yaml:"mime_type"`
}

// Invalid returns the metadata reported for an unreadable buffer.
func Invalid() Metadata {
	return Metadata{}
}

// NewMetadata builds validated metadata. Non-positive dimensions produce
// Invalid metadata, and a page count below one is normalised to one.
//
// Arguments:
//   - width: Frame width in pixels.
//   - height: Frame height in pixels.
//   - pages: Number of frames.
//   - format: The container format.
//
// Returns:
//   - Metadata: The metadata value.
func NewMetadata(width, height, pages int, format Format) Metadata {
	if width <= 0 || height <= 0 {
		return Invalid()
	}
	if pages < 1 {
		pages = 1
	}
	return Metadata{
		Width:    width,
		Height:   height,
		Pages:    pages,
		Valid:    true,
		Format:   format,
		MIMEType: format.MIMEType(),
	}
}

// Animated reports whether the buffer holds more than one frame.
func (m Metadata) Animated() bool {
	return m.Pages > 1
}

// PixelCount returns width × height of a single frame.
func (m Metadata) PixelCount() int64 {
	return int64(m.Width) * int64(m.Height)
}

// Exceeds reports whether either dimension is larger than max.
func (m Metadata) Exceeds(max int) bool {
	return m.Width > max || m.Height > max
}

// String returns a human-readable summary of the metadata.
func (m Metadata) String() string {
	if !m.Valid {
		return "invalid"
	}
	return fmt.Sprintf("%s %dx%d pages=%d", m.Format, m.Width, m.Height, m.Pages)
}
