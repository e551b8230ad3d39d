// Package native is a pure-Go codec backend. It decodes JPEG, PNG, GIF and
// WebP (still and animated), and encodes JPEG and WebP. It has no AVIF
// encoder: AVIF requests are reported as capacity rejections so the caller
// falls back to JPEG.
package native

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/png"

	"github.com/deepteams/webp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/jpegn"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/images"
)

// Name is the backend identifier reported in logs.
const Name = "native"

// Codec implements codec.Codec without cgo.
type Codec struct {
	// webpMethod is the WebP encoder effort (0-6).
	webpMethod int
}

// Option configures a Codec.
type Option func(*Codec)

// WithWebPMethod sets the WebP encoder effort, clamped to 0-6.
func WithWebPMethod(method int) Option {
	return func(c *Codec) {
		c.webpMethod = int(images.Clamp(float64(method), 0, 6))
	}
}

// New creates a pure-Go codec.
//
// Arguments:
//   - opts: Optional settings.
//
// Returns:
//   - *Codec: The codec.
//
// @example
// c := native.New(native.WithWebPMethod(2))
// defer c.Close()
func New(opts ...Option) *Codec {
	c := &Codec{webpMethod: 4}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ codec.Codec = (*Codec)(nil)

// Name implements codec.Codec.
func (c *Codec) Name() string {
	return Name
}

// Close implements codec.Codec. The native codec holds no resources.
func (c *Codec) Close() error {
	return nil
}

// Probe implements codec.Prober. Only headers are read, except for GIF where
// the frame count requires walking the whole stream.
func (c *Codec) Probe(ctx context.Context, buf []byte) (images.Metadata, error) {
	if len(buf) == 0 {
		return images.Invalid(), codec.ErrEmptyBuffer
	}

	format := sniff(buf)
	switch format {
	case images.FormatJPEG:
		cfg, err := jpegn.DecodeConfig(bytes.NewReader(buf))
		if err != nil {
			return images.Invalid(), invalid(format, err)
		}
		return images.NewMetadata(cfg.Width, cfg.Height, 1, format), nil

	case images.FormatPNG:
		cfg, err := png.DecodeConfig(bytes.NewReader(buf))
		if err != nil {
			return images.Invalid(), invalid(format, err)
		}
		return images.NewMetadata(cfg.Width, cfg.Height, 1, format), nil

	case images.FormatGIF:
		g, err := gif.DecodeAll(bytes.NewReader(buf))
		if err != nil {
			return images.Invalid(), invalid(format, err)
		}
		return images.NewMetadata(g.Config.Width, g.Config.Height, len(g.Image), format), nil

	case images.FormatWebP:
		feat, err := webp.GetFeatures(bytes.NewReader(buf))
		if err != nil {
			return images.Invalid(), invalid(format, err)
		}
		pages := 1
		if feat.HasAnimation {
			pages = feat.FrameCount
		}
		return images.NewMetadata(feat.Width, feat.Height, pages, format), nil
	}

	return images.Invalid(), errors.Wrapf(codec.ErrInvalidImage, "unsupported input format %s", format)
}

// Encode implements codec.Encoder.
func (c *Codec) Encode(ctx context.Context, buf []byte, req codec.Request) ([]byte, error) {
	if len(buf) == 0 {
		return nil, codec.ErrEmptyBuffer
	}

	meta, err := c.Probe(ctx, buf)
	if err != nil {
		return nil, err
	}

	width, height := meta.Width, meta.Height
	if req.Region != nil {
		width, height = req.Region.Width, req.Region.Height
	}
	if err := c.accepts(req.Options.Format, width, height); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var frames []frame
	if req.Animated && meta.Animated() {
		frames, err = decodeFrames(ctx, buf, meta.Format)
	} else {
		var img image.Image
		img, err = decodeStill(buf, meta.Format)
		frames = []frame{{img: img}}
	}
	if err != nil {
		return nil, err
	}

	for i := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if req.Region != nil {
			r := req.Region
			frames[i].img, err = images.Crop(frames[i].img, r.Left, r.Top, r.Width, r.Height)
			if err != nil {
				return nil, errors.Wrap(err, "failed to extract region")
			}
		}
		if req.Grayscale {
			frames[i].img = images.Grayscale(frames[i].img)
		}
	}

	return c.encode(ctx, frames, req.Options)
}

// Join implements codec.Joiner.
func (c *Codec) Join(ctx context.Context, parts [][]byte, dir images.Direction, opts codec.EncoderOptions) ([]byte, error) {
	if len(parts) == 0 {
		return nil, images.ErrNoParts
	}
	if opts.Format == images.FormatAVIF {
		return nil, c.accepts(opts.Format, 0, 0)
	}

	decoded := make([]image.Image, len(parts))
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := decodeStill(part, sniff(part))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode part %d", i)
		}
		decoded[i] = img
	}

	joined, err := images.Concatenate(decoded, dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to join parts")
	}

	b := joined.Bounds()
	if err := c.accepts(opts.Format, b.Dx(), b.Dy()); err != nil {
		return nil, err
	}

	return c.encode(ctx, []frame{{img: joined}}, opts)
}

// accepts returns a *codec.CapacityError when the codec cannot produce
// format at width × height.
func (c *Codec) accepts(format images.Format, width, height int) error {
	switch format {
	case images.FormatJPEG, images.FormatWebP:
		return codec.CheckDimensions(format, width, height)
	case images.FormatAVIF:
		return &codec.CapacityError{
			Format: format,
			Width:  width,
			Height: height,
			Reason: codec.ReasonUnavailable,
		}
	}
	return errors.Errorf("unsupported output format %s", format)
}

func sniff(buf []byte) images.Format {
	format, err := images.ParseFormat(mimetype.Detect(buf).Extension())
	if err != nil {
		return images.FormatUnknown
	}
	return format
}

func invalid(format images.Format, err error) error {
	return errors.Wrapf(codec.ErrInvalidImage, "%s: %v", format, err)
}
