package engine

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/images"
	"github.com/nvr-ai/go-transcode/slicer"
)

func TestBytesSaved(t *testing.T) {
	assert.Equal(t, uint64(0), (&Result{OriginalSize: 100, CompressedSize: 150}).BytesSaved())
	assert.Equal(t, uint64(0), (&Result{OriginalSize: 100, CompressedSize: 100}).BytesSaved())
	assert.Equal(t, uint64(60), (&Result{OriginalSize: 100, CompressedSize: 40}).BytesSaved())
}

func TestFilename(t *testing.T) {
	tests := []struct {
		url    string
		format images.Format
		want   string
	}{
		{url: "https://example.com/a/photo.jpg", format: images.FormatAVIF, want: "photo.jpg.avif"},
		{url: "https://example.com/a/photo.jpg?w=100", format: images.FormatJPEG, want: "photo.jpg.jpeg"},
		{url: "https://example.com/", format: images.FormatWebP, want: "image.webp"},
		{url: "https://example.com", format: images.FormatWebP, want: "image.webp"},
		{url: "https://example.com/my%20cat.png", format: images.FormatJPEG, want: "my%2520cat.png.jpeg"},
		{url: "https://example.com/a&b=c(1).gif", format: images.FormatWebP, want: "a%26b%3Dc(1).gif.webp"},
		{url: "::not a url", format: images.FormatJPEG, want: "image.jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			r := &Result{Format: tt.format}
			assert.Equal(t, tt.want, r.Filename(tt.url))
		})
	}
}

func TestHeaders(t *testing.T) {
	r := &Result{Format: images.FormatAVIF, OriginalSize: 1000, CompressedSize: 400}
	h := r.Headers("https://example.com/x.jpg")

	assert.Equal(t, "image/avif", h["Content-Type"])
	assert.Equal(t, "400", h["Content-Length"])
	assert.Equal(t, `inline; filename="x.jpg.avif"`, h["Content-Disposition"])
	assert.Equal(t, "1000", h["X-Original-Size"])
	assert.Equal(t, "600", h["X-Bytes-Saved"])
	assert.Equal(t, "nosniff", h["X-Content-Type-Options"])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindCapacity, kindOf(errors.Wrap(&codec.CapacityError{Format: images.FormatWebP}, "slice 2")))
	assert.Equal(t, KindSliceIO, kindOf(errors.Wrap(slicer.ErrSliceIO, "join")))
	assert.Equal(t, KindEncoder, kindOf(errors.New("boom")))
}

func TestFailureError(t *testing.T) {
	f := fail(StateEncoding, KindEncoder, "encode failed", errors.New("boom"))
	assert.Equal(t, "transcode failed while encoding (encoder): encode failed: boom", f.Error())
	assert.ErrorIs(t, f, ErrFailed)
	assert.Equal(t, "fallback_encoding", StateFallbackEncoding.String())
	assert.Equal(t, "slice_io", KindSliceIO.String())
}
