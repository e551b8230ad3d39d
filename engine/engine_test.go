package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/codec/codectest"
	"github.com/nvr-ai/go-transcode/codec/native"
	"github.com/nvr-ai/go-transcode/config"
	"github.com/nvr-ai/go-transcode/images"
	"github.com/nvr-ai/go-transcode/logger"
	"github.com/nvr-ai/go-transcode/params"
	"github.com/nvr-ai/go-transcode/profiler"
	"github.com/nvr-ai/go-transcode/tuner"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Engine.MaxConcurrency = 2
	cfg.Slicer.Workers = 2
	return cfg
}

func newEngine(t *testing.T, c codec.Codec, cfg *config.Config, opts ...Option) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	e := New(cfg, c, opts...)
	t.Cleanup(e.Close)
	return e
}

func input(fields params.RequestFields) Input {
	data := codectest.PNG(4, 4)
	return Input{Data: data, OriginSize: uint64(len(data)), Fields: fields}
}

func requireFailure(t *testing.T, err error) *Failure {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFailed)
	f, ok := AsFailure(err)
	require.True(t, ok, "expected *Failure, got %T", err)
	return f
}

func TestTranscodeDirect(t *testing.T) {
	fake := &codectest.Fake{Meta: images.NewMetadata(1200, 900, 1, images.FormatPNG)}
	e := newEngine(t, fake, nil)

	res, err := e.Transcode(context.Background(), input(params.RequestFields{
		PreferNextGenFormat: true,
		Quality:             "60",
		Grayscale:           "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, images.FormatAVIF, res.Format)
	assert.Equal(t, "avif@full", string(res.Bytes))
	assert.Equal(t, uint64(len(res.Bytes)), res.CompressedSize)
	assert.Equal(t, 1200, res.Width)
	assert.Equal(t, 900, res.Height)
	assert.False(t, res.Sliced)
	assert.False(t, res.FellBack)

	encodes := fake.Encodes()
	require.Len(t, encodes, 1)
	assert.Nil(t, encodes[0].Region)
	assert.True(t, encodes[0].Grayscale)
	assert.False(t, encodes[0].Animated)
	assert.Equal(t, tuner.Tune(images.FormatAVIF, 60, 1200, 900, false), encodes[0].Options)
	assert.Empty(t, fake.Joins())
}

func TestTranscodeAnimatedForcesWebP(t *testing.T) {
	for _, nextGen := range []bool{true, false} {
		fake := &codectest.Fake{Meta: images.NewMetadata(320, 240, 3, images.FormatGIF)}
		e := newEngine(t, fake, nil)

		res, err := e.Transcode(context.Background(), input(params.RequestFields{
			PreferNextGenFormat: nextGen,
			Quality:             "70",
			Grayscale:           "true",
		}))
		require.NoError(t, err)
		assert.Equal(t, images.FormatWebP, res.Format, "nextGen=%v", nextGen)

		encodes := fake.Encodes()
		require.Len(t, encodes, 1)
		assert.True(t, encodes[0].Animated)
		assert.True(t, encodes[0].Grayscale)
		assert.Equal(t, 70, encodes[0].Options.Quality)
		require.NotNil(t, encodes[0].Options.Loop)
		assert.Equal(t, 0, *encodes[0].Options.Loop)
		assert.Nil(t, encodes[0].Options.AVIF)
	}
}

func TestTranscodeCapacityFallsBackOnce(t *testing.T) {
	fake := &codectest.Fake{
		Meta: images.NewMetadata(5000, 5000, 1, images.FormatJPEG),
		EncodeFunc: func(ctx context.Context, buf []byte, req codec.Request) ([]byte, error) {
			if req.Options.Format == images.FormatAVIF {
				return nil, codectest.Capacity(images.FormatAVIF)
			}
			return codectest.Payload(req), nil
		},
	}
	rec := profiler.NewRecorder(0)
	e := newEngine(t, fake, nil, WithRecorder(rec))

	res, err := e.Transcode(context.Background(), input(params.RequestFields{
		PreferNextGenFormat: true,
		Quality:             "55",
		Grayscale:           "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, images.FormatJPEG, res.Format)
	assert.True(t, res.FellBack)
	assert.Equal(t, "jpeg@full", string(res.Bytes))

	encodes := fake.Encodes()
	require.Len(t, encodes, 2)
	assert.Equal(t, tuner.Fallback(55), encodes[1].Options)
	assert.Nil(t, encodes[1].Options.AVIF)
	assert.True(t, encodes[1].Grayscale)
	assert.Nil(t, encodes[1].Region)

	snap := rec.Snapshot()
	assert.Equal(t, int64(1), snap.Metrics["fallbacks"].Count)
	assert.Equal(t, int64(1), snap.Operations["fallback_encode"].Count)
}

func TestTranscodeFallbackFailure(t *testing.T) {
	fake := &codectest.Fake{
		Meta: images.NewMetadata(100, 100, 1, images.FormatJPEG),
		EncodeFunc: func(ctx context.Context, buf []byte, req codec.Request) ([]byte, error) {
			return nil, codectest.Capacity(req.Options.Format)
		},
	}
	e := newEngine(t, fake, nil)

	res, err := e.Transcode(context.Background(), input(params.RequestFields{PreferNextGenFormat: true}))
	assert.Nil(t, res)

	f := requireFailure(t, err)
	assert.Equal(t, StateFallbackEncoding, f.State)
	assert.Equal(t, KindCapacity, f.Kind)
	assert.Len(t, fake.Encodes(), 2, "at most one fallback")
}

func TestTranscodeEncoderErrorDoesNotFallBack(t *testing.T) {
	fake := &codectest.Fake{
		Meta: images.NewMetadata(100, 100, 1, images.FormatJPEG),
		EncodeFunc: func(ctx context.Context, buf []byte, req codec.Request) ([]byte, error) {
			return nil, errors.New("corrupt scanline")
		},
	}
	e := newEngine(t, fake, nil)

	_, err := e.Transcode(context.Background(), input(params.RequestFields{PreferNextGenFormat: true}))
	f := requireFailure(t, err)
	assert.Equal(t, StateEncoding, f.State)
	assert.Equal(t, KindEncoder, f.Kind)
	assert.Contains(t, err.Error(), "corrupt scanline")
	assert.Len(t, fake.Encodes(), 1)
}

func TestTranscodeInvalidInput(t *testing.T) {
	fake := &codectest.Fake{Meta: images.NewMetadata(100, 100, 1, images.FormatJPEG)}
	e := newEngine(t, fake, nil)

	_, err := e.Transcode(context.Background(), Input{Data: []byte("<html>not an image</html>"), OriginSize: 25})
	f := requireFailure(t, err)
	assert.Equal(t, StateProbing, f.State)
	assert.Equal(t, KindInvalidInput, f.Kind)
	assert.Empty(t, fake.Encodes())

	fake = &codectest.Fake{Meta: images.Invalid()}
	e = newEngine(t, fake, nil)
	_, err = e.Transcode(context.Background(), input(params.RequestFields{}))
	assert.Equal(t, KindInvalidInput, requireFailure(t, err).Kind)
}

func TestTranscodeCanceled(t *testing.T) {
	fake := &codectest.Fake{Meta: images.NewMetadata(100, 100, 1, images.FormatJPEG)}
	e := newEngine(t, fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Transcode(ctx, input(params.RequestFields{}))
	f := requireFailure(t, err)
	assert.Equal(t, KindCanceled, f.Kind)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.Encodes())
}

func TestTranscodeCanceledWhileQueued(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	fake := &codectest.Fake{Meta: images.NewMetadata(100, 100, 1, images.FormatJPEG)}
	fake.EncodeFunc = func(ctx context.Context, buf []byte, req codec.Request) ([]byte, error) {
		once.Do(func() { close(started) })
		<-release
		return codectest.Payload(req), nil
	}

	cfg := testConfig()
	cfg.Engine.MaxConcurrency = 1
	e := New(cfg, fake)

	first := make(chan error, 1)
	go func() {
		_, err := e.Transcode(context.Background(), input(params.RequestFields{}))
		first <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	begin := time.Now()
	_, err := e.Transcode(ctx, input(params.RequestFields{}))
	elapsed := time.Since(begin)

	f := requireFailure(t, err)
	assert.Equal(t, KindCanceled, f.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, time.Second, "a queued request should return once its context is done")

	close(release)
	require.NoError(t, <-first)
	e.Close()
	assert.Len(t, fake.Encodes(), 1, "the abandoned request must not encode")
}

func TestTranscodeSliced(t *testing.T) {
	fake := &codectest.Fake{Meta: images.NewMetadata(40000, 300, 1, images.FormatJPEG)}
	e := newEngine(t, fake, nil)

	res, err := e.Transcode(context.Background(), input(params.RequestFields{PreferNextGenFormat: true, Quality: "80"}))
	require.NoError(t, err)

	assert.True(t, res.Sliced)
	assert.Equal(t, images.FormatAVIF, res.Format)
	assert.Equal(t, 40000, res.Width)
	assert.Equal(t, "avif[avif@0,0,16382x300|avif@16382,0,16382x300|avif@32764,0,7236x300]", string(res.Bytes))
	assert.Len(t, fake.Encodes(), 3)
	require.Len(t, fake.Joins(), 1)
}

func TestTranscodeSlicedCapacityFallsBackWhole(t *testing.T) {
	fake := &codectest.Fake{
		Meta: images.NewMetadata(300, 40000, 1, images.FormatJPEG),
		JoinFunc: func(ctx context.Context, parts [][]byte, dir images.Direction, opts codec.EncoderOptions) ([]byte, error) {
			return nil, codectest.Capacity(opts.Format)
		},
	}
	e := newEngine(t, fake, nil)

	res, err := e.Transcode(context.Background(), input(params.RequestFields{PreferNextGenFormat: true}))
	require.NoError(t, err)
	assert.True(t, res.FellBack)
	assert.False(t, res.Sliced)

	encodes := fake.Encodes()
	last := encodes[len(encodes)-1]
	assert.Nil(t, last.Region, "fallback encodes the original unsliced")
	assert.Equal(t, images.FormatJPEG, last.Options.Format)
	assert.Len(t, encodes, 4)
}

func TestTranscodeLogsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.L()
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(prev) })

	fake := &codectest.Fake{Meta: images.NewMetadata(10, 10, 1, images.FormatPNG)}
	e := newEngine(t, fake, nil)

	_, err := e.Transcode(context.Background(), input(params.RequestFields{}))
	require.NoError(t, err)

	done := logs.FilterMessage("Transcoded image").All()
	require.Len(t, done, 1)
	id, ok := done[0].ContextMap()["requestID"].(string)
	require.True(t, ok)
	assert.Len(t, id, 36)
	assert.NotEmpty(t, logs.FilterMessage("Transcode state change").All())
}

func TestTranscodeNativeSlicesWideJPEG(t *testing.T) {
	const width, height = 260, 30

	src := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: 100, B: uint8(y * 8), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: 95}))

	cfg := testConfig()
	cfg.Engine.MaxDimension = 100
	e := newEngine(t, native.New(), cfg)

	in := Input{Data: buf.Bytes(), OriginSize: uint64(buf.Len()), Fields: params.RequestFields{Quality: "40"}}
	res, err := e.Transcode(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Sliced)
	assert.Equal(t, images.FormatJPEG, res.Format)

	out, err := jpeg.DecodeConfig(bytes.NewReader(res.Bytes))
	require.NoError(t, err)
	assert.Equal(t, width, out.Width)
	assert.Equal(t, height, out.Height)

	// The pure-Go backend has no AVIF encoder, so AVIF requests fall back.
	in.Fields.PreferNextGenFormat = true
	res, err = e.Transcode(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.FellBack)
	assert.Equal(t, images.FormatJPEG, res.Format)
	_, err = jpeg.DecodeConfig(bytes.NewReader(res.Bytes))
	assert.NoError(t, err)
}

func TestEffectiveFormat(t *testing.T) {
	still := images.NewMetadata(10, 10, 1, images.FormatPNG)
	anim := images.NewMetadata(10, 10, 2, images.FormatGIF)

	assert.Equal(t, images.FormatAVIF, EffectiveFormat(images.FormatAVIF, still))
	assert.Equal(t, images.FormatJPEG, EffectiveFormat(images.FormatJPEG, still))
	assert.Equal(t, images.FormatWebP, EffectiveFormat(images.FormatAVIF, anim))
	assert.Equal(t, images.FormatWebP, EffectiveFormat(images.FormatJPEG, anim))
}

func BenchmarkTranscodeFake(b *testing.B) {
	fake := &codectest.Fake{Meta: images.NewMetadata(1920, 1080, 1, images.FormatJPEG)}
	e := New(testConfig(), fake)
	defer e.Close()

	in := input(params.RequestFields{PreferNextGenFormat: true, Quality: "75"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Transcode(context.Background(), in); err != nil {
			b.Fatal(err)
		}
	}
}
