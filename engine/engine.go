// Package engine turns a raw image buffer and untrusted request fields into a
// compressed image. Each request moves through probing, tuning and encoding;
// an encoder capacity rejection triggers exactly one JPEG fallback.
package engine

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/config"
	"github.com/nvr-ai/go-transcode/images"
	"github.com/nvr-ai/go-transcode/logger"
	"github.com/nvr-ai/go-transcode/params"
	"github.com/nvr-ai/go-transcode/probe"
	"github.com/nvr-ai/go-transcode/slicer"
	"github.com/nvr-ai/go-transcode/tuner"
)

// Input is one transcode request.
type Input struct {
	// Data is the original image.
	Data []byte
	// OriginSize is the source size reported by the origin, which may
	// differ from len(Data).
	OriginSize uint64
	// Fields are the raw request parameters.
	Fields params.RequestFields
}

// Recorder receives per-stage timings and size metrics.
type Recorder interface {
	StartOperation(name string) func()
	RecordMetric(name string, value float64)
}

type nopRecorder struct{}

func (nopRecorder) StartOperation(string) func()  { return func() {} }
func (nopRecorder) RecordMetric(string, float64) {}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder reports timings and metrics to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// Engine orchestrates transcodes on a bounded pool.
type Engine struct {
	codec        codec.Codec
	slicer       *slicer.Slicer
	pool         pond.ResultPool[*Result]
	maxDimension int
	recorder     Recorder
}

// New creates an engine over c. The codec stays owned by the caller.
//
// Arguments:
//   - cfg: Engine and slicer settings.
//   - c: The codec backend.
//   - opts: Optional settings.
//
// Returns:
//   - *Engine: The engine. Callers must Close it.
//
// @example
// eng := engine.New(config.Default(), native.New())
// defer eng.Close()
// res, err := eng.Transcode(ctx, engine.Input{Data: buf, OriginSize: uint64(len(buf))})
func New(cfg *config.Config, c codec.Codec, opts ...Option) *Engine {
	concurrency := cfg.Engine.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	maxDimension := cfg.Engine.MaxDimension
	if maxDimension <= 0 {
		maxDimension = config.DefaultMaxDimension
	}

	e := &Engine{
		codec:        c,
		slicer:       slicer.New(c, maxDimension, cfg.Slicer),
		pool:         pond.NewResultPool[*Result](concurrency),
		maxDimension: maxDimension,
		recorder:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close waits for in-flight transcodes and stops the pools.
func (e *Engine) Close() {
	e.pool.StopAndWait()
	e.slicer.Close()
}

// Transcode runs one request on the engine's pool and waits for it.
//
// Arguments:
//   - ctx: Request context; cancelling it aborts the encode.
//   - in: The request.
//
// Returns:
//   - *Result: The compressed image.
//   - error: A *Failure; no bytes accompany a failure.
func (e *Engine) Transcode(ctx context.Context, in Input) (*Result, error) {
	task := e.pool.SubmitErr(func() (*Result, error) {
		return e.transcode(ctx, in)
	})

	select {
	case <-task.Done():
		return task.Wait()
	case <-ctx.Done():
		// The abandoned task sees the same context and stops before encoding.
		return nil, fail(StateProbing, KindCanceled, "request abandoned before completion", ctx.Err())
	}
}

func (e *Engine) transcode(ctx context.Context, in Input) (*Result, error) {
	ctx = logger.WithRequestID(ctx, uuid.NewString())
	defer e.recorder.StartOperation("transcode")()

	state := StateProbing
	if err := ctx.Err(); err != nil {
		return nil, e.failed(ctx, fail(state, KindCanceled, "request canceled", err))
	}

	done := e.recorder.StartOperation("probe")
	meta := probe.Probe(ctx, e.codec, in.Data)
	done()
	if !meta.Valid {
		return nil, e.failed(ctx, fail(state, KindInvalidInput, "could not read image dimensions", codec.ErrInvalidImage))
	}

	state = e.transition(ctx, state, StateTuning)
	p := params.Resolve(in.Fields)
	format := EffectiveFormat(p.Format, meta)
	opts := tuner.Tune(format, p.Quality, meta.Width, meta.Height, meta.Animated())

	logger.InfoCtx(ctx, "Transcoding image",
		zap.String("backend", e.codec.Name()),
		zap.Stringer("source", meta),
		zap.String("format", string(format)),
		zap.Int("quality", p.Quality),
		zap.Bool("grayscale", p.Grayscale),
		zap.Uint64("original_size", in.OriginSize),
	)

	state = e.transition(ctx, state, StateEncoding)
	sliced := slicer.NeedsSlicing(meta, e.maxDimension)

	done = e.recorder.StartOperation("encode")
	out, err := e.encode(ctx, in.Data, meta, opts, p.Grayscale, sliced)
	done()

	fellBack := false
	if err != nil {
		if !codec.IsCapacityRejection(err) {
			return nil, e.failed(ctx, fail(state, kindOf(err), "encode failed", err))
		}

		logger.WarnCtx(ctx, "Encoder refused image, falling back to JPEG",
			zap.String("format", string(format)),
			zap.Bool("sliced", sliced),
			zap.Error(err),
		)
		state = e.transition(ctx, state, StateFallbackEncoding)
		format, sliced, fellBack = images.FormatJPEG, false, true

		done = e.recorder.StartOperation("fallback_encode")
		out, err = e.codec.Encode(ctx, in.Data, codec.Request{
			Options:   tuner.Fallback(p.Quality),
			Grayscale: p.Grayscale,
		})
		done()
		if err != nil {
			return nil, e.failed(ctx, fail(state, kindOf(err), "fallback encode failed", err))
		}
	}

	e.transition(ctx, state, StateDone)

	res := &Result{
		Bytes:          out,
		Format:         format,
		OriginalSize:   in.OriginSize,
		CompressedSize: uint64(len(out)),
		Width:          meta.Width,
		Height:         meta.Height,
		Sliced:         sliced,
		FellBack:       fellBack,
	}
	e.record(res)

	logger.InfoCtx(ctx, "Transcoded image",
		zap.String("format", string(res.Format)),
		zap.Uint64("original_size", res.OriginalSize),
		zap.Uint64("compressed_size", res.CompressedSize),
		zap.Uint64("bytes_saved", res.BytesSaved()),
		zap.Bool("sliced", res.Sliced),
		zap.Bool("fell_back", res.FellBack),
	)
	return res, nil
}

// encode runs the primary encode, either sliced or as a single call.
func (e *Engine) encode(ctx context.Context, buf []byte, meta images.Metadata, opts codec.EncoderOptions, grayscale, sliced bool) ([]byte, error) {
	if sliced {
		return e.slicer.Encode(ctx, buf, meta, opts, grayscale)
	}
	return e.codec.Encode(ctx, buf, codec.Request{
		Options:   opts,
		Grayscale: grayscale,
		Animated:  meta.Animated(),
	})
}

// EffectiveFormat returns the output format for meta: WebP for animated
// sources, requested otherwise.
func EffectiveFormat(requested images.Format, meta images.Metadata) images.Format {
	if meta.Animated() {
		return images.FormatWebP
	}
	return requested
}

func (e *Engine) transition(ctx context.Context, from, to State) State {
	logger.DebugCtx(ctx, "Transcode state change",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	return to
}

func (e *Engine) failed(ctx context.Context, f *Failure) *Failure {
	logger.ErrorCtx(ctx, "Transcode failed",
		zap.Stringer("state", f.State),
		zap.Stringer("kind", f.Kind),
		zap.String("reason", f.Reason),
		zap.Error(f.Err),
	)
	e.recorder.RecordMetric("failures", 1)
	return f
}

func (e *Engine) record(res *Result) {
	e.recorder.RecordMetric("original_bytes", float64(res.OriginalSize))
	e.recorder.RecordMetric("compressed_bytes", float64(res.CompressedSize))
	e.recorder.RecordMetric("bytes_saved", float64(res.BytesSaved()))
	if res.Sliced {
		e.recorder.RecordMetric("sliced", 1)
	}
	if res.FellBack {
		e.recorder.RecordMetric("fallbacks", 1)
	}
}
