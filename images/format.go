package images

import (
	"strings"

	"github.com/pkg/errors"
)

// Format represents an image container format understood by the transcoder.
type Format string

// Format constants
const (
	// FormatJPEG is the JPEG image format. It is the universally accepted
	// fallback format.
	FormatJPEG Format = "jpeg"
	// FormatWebP is the WebP image format. It is the animation-capable output
	// format.
	FormatWebP Format = "webp"
	// FormatAVIF is the AVIF (AV1 in HEIF) image format.
	FormatAVIF Format = "avif"
	// FormatPNG is the PNG image format (input only).
	FormatPNG Format = "png"
	// FormatGIF is the GIF image format (input only).
	FormatGIF Format = "gif"
	// FormatUnknown marks a buffer whose format could not be determined.
	FormatUnknown Format = ""
)

// Maximum encodable width or height, in pixels, per output format.
const (
	MaxJPEGDimension = 65535
	MaxWebPDimension = 16383
	MaxAVIFDimension = 65536
)

// ErrUnknownFormat is returned by ParseFormat for unrecognised names.
var ErrUnknownFormat = errors.New("unknown image format")

// ParseFormat maps a format name, file extension or MIME subtype to a Format.
//
// Arguments:
//   - s: The name to parse, e.g. "jpeg", ".jpg", "image/webp".
//
// Returns:
//   - Format: The matching format.
//   - error: ErrUnknownFormat if nothing matches.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "image/")
	s = strings.TrimPrefix(s, ".")

	switch s {
	case "jpeg", "jpg", "pjpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	case "avif", "heif", "heic":
		return FormatAVIF, nil
	case "png":
		return FormatPNG, nil
	case "gif":
		return FormatGIF, nil
	}
	return FormatUnknown, errors.Wrapf(ErrUnknownFormat, "%q", s)
}

// String implements fmt.Stringer.
func (f Format) String() string {
	if f == FormatUnknown {
		return "unknown"
	}
	return string(f)
}

// MIMEType returns the content type for the format, e.g. "image/avif".
func (f Format) MIMEType() string {
	if f == FormatUnknown {
		return "application/octet-stream"
	}
	return "image/" + string(f)
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	if f == FormatUnknown {
		return ""
	}
	return "." + string(f)
}

// SupportsAnimation reports whether the format can carry multiple frames.
func (f Format) SupportsAnimation() bool {
	return f == FormatWebP || f == FormatGIF
}

// MaxDimension returns the largest width or height an encoder for the format
// can address in a single call. Zero means the format is not an output format.
func (f Format) MaxDimension() int {
	switch f {
	case FormatJPEG:
		return MaxJPEGDimension
	case FormatWebP:
		return MaxWebPDimension
	case FormatAVIF:
		return MaxAVIFDimension
	}
	return 0
}
