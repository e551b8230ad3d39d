// Package params resolves untrusted request fields into validated compression
// parameters.
package params

import (
	"net/url"
	"strings"

	"github.com/nvr-ai/go-transcode/images"
)

// Quality bounds and default.
const (
	MinQuality     = 10
	MaxQuality     = 100
	DefaultQuality = 75
)

// RequestFields holds the raw request-level values exactly as received.
type RequestFields struct {
	// PreferNextGenFormat selects AVIF over JPEG.
	PreferNextGenFormat bool `json:"prefer_next_gen_format"`
	// Quality is the raw quality value; empty means absent.
	Quality string `json:"quality"`
	// Grayscale is the raw grayscale flag; only "true" enables it.
	Grayscale string `json:"grayscale"`
}

// CompressionParams is the validated, read-only result of Resolve.
type CompressionParams struct {
	Format    images.Format `json:"format"`
	Quality   int           `json:"quality"`
	Grayscale bool          `json:"grayscale"`
}

// Resolve maps request fields to compression parameters. It never fails:
// unparseable or zero quality becomes DefaultQuality and anything outside
// [MinQuality, MaxQuality] is clamped.
//
// Arguments:
//   - fields: The raw request fields.
//
// Returns:
//   - CompressionParams: The validated parameters.
//
// @example
// p := Resolve(RequestFields{PreferNextGenFormat: true, Quality: "5"})
// // p.Format == images.FormatAVIF, p.Quality == 10
func Resolve(fields RequestFields) CompressionParams {
	format := images.FormatJPEG
	if fields.PreferNextGenFormat {
		format = images.FormatAVIF
	}

	return CompressionParams{
		Format:    format,
		Quality:   ResolveQuality(fields.Quality),
		Grayscale: fields.Grayscale == "true",
	}
}

// ResolveQuality parses and clamps a raw quality value.
func ResolveQuality(raw string) int {
	q, ok := parseLeadingInt(raw)
	if !ok || q == 0 {
		q = DefaultQuality
	}
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}

// parseLeadingInt reads an optionally signed run of decimal digits after any
// leading whitespace and ignores whatever follows it, so "80px" parses as 80.
func parseLeadingInt(raw string) (int, bool) {
	s := strings.TrimLeft(raw, " \t\n\r\v\f")

	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n, digits := 0, 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		// Saturate; anything this large clamps to MaxQuality anyway.
		if n < 1_000_000 {
			n = n*10 + int(c-'0')
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// FromValues reads request fields from proxy query parameters. The next-gen
// flag is "webp", quality is "l" (or "quality") and grayscale is "bw" (or
// "grayscale").
//
// Arguments:
//   - v: The parsed query string.
//
// Returns:
//   - RequestFields: The raw fields, ready for Resolve.
func FromValues(v url.Values) RequestFields {
	return RequestFields{
		PreferNextGenFormat: truthy(v.Get("webp")),
		Quality:             first(v, "l", "quality"),
		Grayscale:           first(v, "bw", "grayscale"),
	}
}

func first(v url.Values, keys ...string) string {
	for _, k := range keys {
		if v.Has(k) {
			return v.Get(k)
		}
	}
	return ""
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false":
		return false
	}
	return true
}
