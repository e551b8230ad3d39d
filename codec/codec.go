// Package codec defines the contract between the transcoding core and the
// image backends that probe, encode and join buffers.
package codec

import (
	"context"

	"github.com/nvr-ai/go-transcode/images"
)

// Region is a rectangle of the source image, in source pixel coordinates.
type Region struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Request describes one encode call.
type Request struct {
	// Options are the resolved encoder options.
	Options EncoderOptions
	// Grayscale converts the pixels before encoding.
	Grayscale bool
	// Animated loads every frame of the source.
	Animated bool
	// Region restricts the encode to part of the source; nil means the whole
	// image.
	Region *Region
}

// Prober reads image metadata without decoding pixel data when avoidable.
type Prober interface {
	Probe(ctx context.Context, buf []byte) (images.Metadata, error)
}

// Encoder decodes a source buffer and re-encodes it.
//
// Implementations must return a *CapacityError when the chosen format cannot
// represent the requested image, so callers can fall back.
type Encoder interface {
	Encode(ctx context.Context, buf []byte, req Request) ([]byte, error)
}

// Joiner decodes previously encoded parts, lays them out edge to edge in the
// given order along dir and encodes the result with opts.
type Joiner interface {
	Join(ctx context.Context, parts [][]byte, dir images.Direction, opts EncoderOptions) ([]byte, error)
}

// Codec is a complete image backend.
type Codec interface {
	Prober
	Encoder
	Joiner
	// Name identifies the backend in logs.
	Name() string
	// Close releases backend resources.
	Close() error
}
