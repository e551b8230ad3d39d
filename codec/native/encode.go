package native

import (
	"bytes"
	"context"
	"image"

	"github.com/deepteams/webp"
	"github.com/deepteams/webp/animation"
	"github.com/gen2brain/jpegli"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/images"
)

var errUnsupportedInput = errors.New("unsupported input format")

// encode writes frames in opts.Format. More than one frame is only kept for
// animated WebP output; every other format encodes the first frame.
func (c *Codec) encode(ctx context.Context, frames []frame, opts codec.EncoderOptions) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames to encode")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	switch opts.Format {
	case images.FormatJPEG:
		if err := jpegli.Encode(&out, frames[0].img, &jpegli.EncodingOptions{
			Quality:           opts.Quality,
			ChromaSubsampling: subsampleRatio(opts.ChromaSubsampling),
		}); err != nil {
			return nil, errors.Wrap(err, "failed to encode jpeg")
		}

	case images.FormatWebP:
		if len(frames) > 1 && opts.Animated() {
			if err := c.encodeAnimatedWebP(ctx, &out, frames, opts); err != nil {
				return nil, err
			}
			break
		}

		wopts := webp.DefaultOptions()
		wopts.Quality = float32(opts.Quality)
		wopts.Method = c.webpMethod
		wopts.UseSharpYUV = opts.SmartSubsample
		if opts.AlphaQuality > 0 {
			wopts.AlphaQuality = opts.AlphaQuality
		}
		if err := webp.Encode(&out, frames[0].img, wopts); err != nil {
			return nil, errors.Wrap(err, "failed to encode webp")
		}

	default:
		b := frames[0].img.Bounds()
		return nil, c.accepts(opts.Format, b.Dx(), b.Dy())
	}

	return out.Bytes(), nil
}

func (c *Codec) encodeAnimatedWebP(ctx context.Context, out *bytes.Buffer, frames []frame, opts codec.EncoderOptions) error {
	b := frames[0].img.Bounds()
	enc := animation.NewEncoder(out, b.Dx(), b.Dy(), &animation.EncodeOptions{
		LoopCount: *opts.Loop,
		Quality:   opts.Quality,
	})

	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.AddFrame(f.img, f.delay); err != nil {
			return errors.Wrapf(err, "failed to add frame %d", i)
		}
	}

	return errors.Wrap(enc.Close(), "failed to encode animated webp")
}

// subsampleRatio maps a "J:a:b" chroma subsampling string to the encoder
// ratio. Unknown or empty values mean 4:2:0.
func subsampleRatio(s string) image.YCbCrSubsampleRatio {
	switch s {
	case "4:4:4":
		return image.YCbCrSubsampleRatio444
	case "4:2:2":
		return image.YCbCrSubsampleRatio422
	case "4:4:0":
		return image.YCbCrSubsampleRatio440
	}
	return image.YCbCrSubsampleRatio420
}
