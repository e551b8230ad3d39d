// Package vipscodec is the libvips codec backend. It supports every output
// format, including AVIF, and is the production default.
package vipscodec

import (
	"context"
	"strings"
	"sync"

	"github.com/cshum/vipsgen/vips"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/config"
	"github.com/nvr-ai/go-transcode/images"
	"github.com/nvr-ai/go-transcode/logger"
)

// Name is the backend identifier reported in logs.
const Name = "vips"

// libvips is process-global; it is started by the first codec and shut down
// when the last one is closed.
var (
	mu   sync.Mutex
	refs int
)

// capacityMessages are the libvips encoder messages that mean the image is
// too large for the target format.
var capacityMessages = []string{
	"too large for the HEIF format",
	"unsupported file size",
	"image too large",
}

// Codec implements codec.Codec on libvips.
type Codec struct {
	once sync.Once
}

var _ codec.Codec = (*Codec)(nil)

// New starts libvips, if it is not already running, and returns a codec.
//
// Arguments:
//   - cfg: libvips concurrency and cache settings.
//
// Returns:
//   - *Codec: The codec. Callers must Close it.
//
// @example
// c := vipscodec.New(config.Default().Vips)
// defer c.Close()
func New(cfg config.VipsConfig) *Codec {
	mu.Lock()
	defer mu.Unlock()

	if refs == 0 {
		vips.Startup(&vips.Config{
			ConcurrencyLevel: cfg.ConcurrencyLevel,
			MaxCacheMem:      cfg.MaxCacheMem,
			MaxCacheSize:     cfg.MaxCacheSize,
		})
		logger.L().Info("Started libvips",
			zap.Int("concurrency", cfg.ConcurrencyLevel),
			zap.Int("max_cache_mem", cfg.MaxCacheMem),
		)
	}
	refs++
	return &Codec{}
}

// Name implements codec.Codec.
func (c *Codec) Name() string {
	return Name
}

// Close implements codec.Codec. libvips is shut down with the last codec.
func (c *Codec) Close() error {
	c.once.Do(func() {
		mu.Lock()
		defer mu.Unlock()

		refs--
		if refs == 0 {
			vips.Shutdown()
		}
	})
	return nil
}

// Probe implements codec.Prober. Only the header is read.
func (c *Codec) Probe(ctx context.Context, buf []byte) (images.Metadata, error) {
	if len(buf) == 0 {
		return images.Invalid(), codec.ErrEmptyBuffer
	}

	img, err := vips.NewImageFromBuffer(buf, vips.DefaultLoadOptions())
	if err != nil {
		return images.Invalid(), errors.Wrapf(codec.ErrInvalidImage, "%v", err)
	}
	defer img.Close()

	return images.NewMetadata(img.Width(), img.PageHeight(), img.Pages(), images.FormatUnknown), nil
}

// Encode implements codec.Encoder.
func (c *Codec) Encode(ctx context.Context, buf []byte, req codec.Request) ([]byte, error) {
	if len(buf) == 0 {
		return nil, codec.ErrEmptyBuffer
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := vips.DefaultLoadOptions()
	opts.FailOnError = true
	opts.Access = vips.AccessRandom
	if req.Animated {
		opts.N = -1
	}

	img, err := vips.NewImageFromBuffer(buf, opts)
	if err != nil {
		return nil, errors.Wrapf(codec.ErrInvalidImage, "%v", err)
	}
	defer img.Close()

	if r := req.Region; r != nil {
		if err := img.ExtractArea(r.Left, r.Top, r.Width, r.Height); err != nil {
			return nil, errors.Wrap(err, "failed to extract region")
		}
	}

	width, height := img.Width(), frameHeight(img, req.Animated)
	if err := codec.CheckDimensions(req.Options.Format, width, height); err != nil {
		return nil, err
	}

	if req.Grayscale {
		if err := img.Colourspace(vips.InterpretationBW, nil); err != nil {
			return nil, errors.Wrap(err, "failed to convert to grayscale")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := save(img, req.Options, req.Animated)
	if err != nil {
		return nil, classify(err, req.Options.Format, width, height)
	}
	return out, nil
}

// Join implements codec.Joiner. Parts are joined pairwise left to right or
// top to bottom.
func (c *Codec) Join(ctx context.Context, parts [][]byte, dir images.Direction, opts codec.EncoderOptions) ([]byte, error) {
	if len(parts) == 0 {
		return nil, images.ErrNoParts
	}

	direction := vips.DirectionHorizontal
	if dir == images.DirectionHorizontal {
		direction = vips.DirectionVertical
	}

	joined, err := vips.NewImageFromBuffer(parts[0], vips.DefaultLoadOptions())
	if err != nil {
		return nil, errors.Wrapf(codec.ErrInvalidImage, "part 0: %v", err)
	}
	defer joined.Close()

	for i, part := range parts[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := vips.NewImageFromBuffer(part, vips.DefaultLoadOptions())
		if err != nil {
			return nil, errors.Wrapf(codec.ErrInvalidImage, "part %d: %v", i+1, err)
		}
		err = joined.Join(next, direction, nil)
		next.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to join part %d", i+1)
		}
	}

	width, height := joined.Width(), joined.Height()
	if err := codec.CheckDimensions(opts.Format, width, height); err != nil {
		return nil, err
	}

	out, err := save(joined, opts, false)
	if err != nil {
		return nil, classify(err, opts.Format, width, height)
	}
	return out, nil
}

// frameHeight returns the height of one frame of img.
func frameHeight(img *vips.Image, animated bool) int {
	if animated {
		if h := img.PageHeight(); h > 0 {
			return h
		}
	}
	return img.Height()
}

// classify turns the libvips messages for oversized images into a
// *codec.CapacityError and wraps everything else.
func classify(err error, format images.Format, width, height int) error {
	msg := err.Error()
	for _, m := range capacityMessages {
		if strings.Contains(msg, m) {
			return &codec.CapacityError{
				Format: format,
				Width:  width,
				Height: height,
				Limit:  format.MaxDimension(),
				Reason: codec.ReasonFileSize,
				Err:    err,
			}
		}
	}
	return errors.Wrapf(err, "failed to encode %s", format)
}
