package engine

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-transcode/images"
)

// Result is a successful transcode.
type Result struct {
	Bytes []byte `json:"-"`
	// Format is the format Bytes are encoded in.
	Format images.Format `json:"format"`
	// OriginalSize is the size the caller reported for the source.
	OriginalSize   uint64 `json:"original_size"`
	CompressedSize uint64 `json:"compressed_size"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	// Sliced is true when the image was encoded piecewise.
	Sliced bool `json:"sliced"`
	// FellBack is true when the JPEG fallback produced Bytes.
	FellBack bool `json:"fell_back"`
}

// BytesSaved returns OriginalSize - CompressedSize, floored at zero.
func (r *Result) BytesSaved() uint64 {
	if r.CompressedSize >= r.OriginalSize {
		return 0
	}
	return r.OriginalSize - r.CompressedSize
}

// ContentType returns the MIME type of Bytes.
func (r *Result) ContentType() string {
	return r.Format.MIMEType()
}

// Filename derives the download name from the origin URL: the escaped last
// path segment, or "image", plus the output extension.
//
// Arguments:
//   - originURL: The URL the source was fetched from.
//
// Returns:
//   - string: e.g. "photo.jpg.avif" for "https://example.com/a/photo.jpg".
func (r *Result) Filename(originURL string) string {
	name := ""
	if u, err := url.Parse(originURL); err == nil {
		path := u.EscapedPath()
		name = path[strings.LastIndexByte(path, '/')+1:]
	}
	if name == "" {
		name = "image"
	}
	return escapeComponent(name) + r.Format.Extension()
}

// Headers returns the response headers that describe the result.
func (r *Result) Headers(originURL string) map[string]string {
	return map[string]string{
		"Content-Type":           r.ContentType(),
		"Content-Length":         strconv.FormatUint(r.CompressedSize, 10),
		"Content-Disposition":    `inline; filename="` + r.Filename(originURL) + `"`,
		"X-Content-Type-Options": "nosniff",
		"X-Original-Size":        strconv.FormatUint(r.OriginalSize, 10),
		"X-Bytes-Saved":          strconv.FormatUint(r.BytesSaved(), 10),
	}
}

// escapeComponent percent-encodes every byte outside A-Z a-z 0-9 and
// -_.!~*'() as URI component escaping does.
func escapeComponent(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
