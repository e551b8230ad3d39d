// Package codectest provides a scriptable codec.Codec for tests of the
// packages built on top of the codec contract.
package codectest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/images"
)

// JoinCall records one Join invocation.
type JoinCall struct {
	Parts     [][]byte
	Direction images.Direction
	Options   codec.EncoderOptions
}

// Fake is a codec.Codec that records every call. Probe returns Meta; Encode
// and Join return deterministic text payloads unless EncodeFunc or JoinFunc
// override them.
type Fake struct {
	Meta     images.Metadata
	ProbeErr error

	// EncodeFunc replaces the default encode behaviour when set.
	EncodeFunc func(ctx context.Context, buf []byte, req codec.Request) ([]byte, error)
	// JoinFunc replaces the default join behaviour when set.
	JoinFunc func(ctx context.Context, parts [][]byte, dir images.Direction, opts codec.EncoderOptions) ([]byte, error)

	mu      sync.Mutex
	encodes []codec.Request
	joins   []JoinCall
	closed  bool
}

var _ codec.Codec = (*Fake)(nil)

// Name implements codec.Codec.
func (f *Fake) Name() string {
	return "fake"
}

// Close implements codec.Codec.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Probe implements codec.Prober.
func (f *Fake) Probe(ctx context.Context, buf []byte) (images.Metadata, error) {
	if f.ProbeErr != nil {
		return images.Invalid(), f.ProbeErr
	}
	return f.Meta, nil
}

// Encode implements codec.Encoder.
func (f *Fake) Encode(ctx context.Context, buf []byte, req codec.Request) ([]byte, error) {
	f.mu.Lock()
	f.encodes = append(f.encodes, req)
	f.mu.Unlock()

	if f.EncodeFunc != nil {
		return f.EncodeFunc(ctx, buf, req)
	}
	return Payload(req), nil
}

// Join implements codec.Joiner.
func (f *Fake) Join(ctx context.Context, parts [][]byte, dir images.Direction, opts codec.EncoderOptions) ([]byte, error) {
	copied := make([][]byte, len(parts))
	for i, p := range parts {
		copied[i] = append([]byte(nil), p...)
	}

	f.mu.Lock()
	f.joins = append(f.joins, JoinCall{Parts: copied, Direction: dir, Options: opts})
	f.mu.Unlock()

	if f.JoinFunc != nil {
		return f.JoinFunc(ctx, parts, dir, opts)
	}

	joined := make([]string, len(parts))
	for i, p := range parts {
		joined[i] = string(p)
	}
	return []byte(string(opts.Format) + "[" + strings.Join(joined, "|") + "]"), nil
}

// Encodes returns a copy of every recorded encode request.
func (f *Fake) Encodes() []codec.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]codec.Request(nil), f.encodes...)
}

// Joins returns a copy of every recorded join call.
func (f *Fake) Joins() []JoinCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]JoinCall(nil), f.joins...)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Payload is the default encode output: the format followed by the region,
// e.g. "webp@0,0,100x50", or "jpeg@full" for whole-image encodes.
func Payload(req codec.Request) []byte {
	if req.Region == nil {
		return []byte(fmt.Sprintf("%s@full", req.Options.Format))
	}
	r := req.Region
	return []byte(fmt.Sprintf("%s@%d,%d,%dx%d", req.Options.Format, r.Left, r.Top, r.Width, r.Height))
}

// PNG returns a real, solid-colour PNG so buffers pass MIME sniffing.
func PNG(width, height int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 40, 120, 200, 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Capacity returns a capacity rejection for format.
func Capacity(format images.Format) error {
	return &codec.CapacityError{Format: format, Reason: codec.ReasonFileSize}
}
