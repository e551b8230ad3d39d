// Package slicer encodes single-frame images that are too large for one
// encoder call. The image is cut along its excessive axis, the slices are
// encoded concurrently on a bounded pool, and the codec joins the encoded
// slices back together in index order.
package slicer

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/config"
	"github.com/nvr-ai/go-transcode/images"
	"github.com/nvr-ai/go-transcode/logger"
)

// Slicer splits, encodes and reassembles oversized images.
type Slicer struct {
	codec          codec.Codec
	pool           pond.Pool
	maxDimension   int
	spillThreshold int64
	scratchDir     string
}

// New creates a slicer whose slice encodes share one pool of cfg.Workers
// goroutines across all requests.
//
// Arguments:
//   - c: The codec used to encode and join slices.
//   - maxDimension: The slice size along the excessive axis.
//   - cfg: Worker and arena settings.
//
// Returns:
//   - *Slicer: The slicer. Callers must Close it.
//
// @example
// s := slicer.New(native.New(), 16382, cfg.Slicer)
// defer s.Close()
func New(c codec.Codec, maxDimension int, cfg config.SlicerConfig) *Slicer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Slicer{
		codec:          c,
		pool:           pond.NewPool(workers),
		maxDimension:   maxDimension,
		spillThreshold: cfg.SpillThresholdBytes,
		scratchDir:     cfg.ScratchDir,
	}
}

// MaxDimension returns the slice size.
func (s *Slicer) MaxDimension() int {
	return s.maxDimension
}

// Encode cuts buf along the axis that exceeds the max dimension, encodes each
// slice with opts, and joins the encoded slices into one image in opts.Format
// with the original dimensions. The per-request arena is released before
// returning, on every path.
//
// Arguments:
//   - ctx: Request context; cancelling it stops queued slices.
//   - buf: The original image bytes.
//   - meta: Probed metadata of buf.
//   - opts: Resolved encoder options.
//   - grayscale: Convert each slice before encoding.
//
// Returns:
//   - []byte: The reassembled image.
//   - error: A capacity rejection from the codec, a context error, an error
//     wrapping ErrSliceIO, or another encoder error.
func (s *Slicer) Encode(ctx context.Context, buf []byte, meta images.Metadata, opts codec.EncoderOptions, grayscale bool) ([]byte, error) {
	dir := DirectionFor(meta, s.maxDimension)
	plan, err := Plan(Extent(meta, dir), s.maxDimension)
	if err != nil {
		return nil, err
	}

	logger.DebugCtx(ctx, "Slicing image",
		zap.String("direction", string(dir)),
		zap.Int("slices", len(plan)),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
	)

	arena := NewArena(s.scratchDir, s.spillThreshold)
	defer func() {
		stats := arena.Stats()
		if err := arena.Close(); err != nil {
			logger.WarnCtx(ctx, "Failed to release slice arena", zap.Error(err))
			return
		}
		logger.DebugCtx(ctx, "Released slice arena",
			zap.Int("parts", stats.Parts),
			zap.Int("spilled_parts", stats.SpilledParts),
			zap.Int64("memory_bytes", stats.MemoryBytes),
		)
	}()

	group := s.pool.NewGroupContext(ctx)
	for _, d := range plan {
		region := d.Region(dir, meta)
		index := d.Index
		group.SubmitErr(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := s.codec.Encode(ctx, buf, codec.Request{
				Options:   opts,
				Grayscale: grayscale,
				Region:    &region,
			})
			if err != nil {
				return errors.Wrapf(err, "failed to encode slice %d", index)
			}
			return arena.Put(index, data)
		})
	}

	if err := group.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	parts, err := arena.Parts(len(plan))
	if err != nil {
		return nil, err
	}

	joined, err := s.codec.Join(ctx, parts, dir, opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if codec.IsCapacityRejection(err) {
			return nil, errors.Wrap(err, "failed to join slices")
		}
		return nil, errors.Wrapf(ErrSliceIO, "join %d slices: %v", len(parts), err)
	}

	return joined, nil
}

// Close stops the worker pool after queued slices finish.
func (s *Slicer) Close() {
	s.pool.StopAndWait()
}
