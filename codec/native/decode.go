package native

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/gif"
	"image/png"
	"time"

	"github.com/deepteams/webp"
	"github.com/deepteams/webp/animation"
	"github.com/gen2brain/jpegn"

	"github.com/nvr-ai/go-transcode/images"
)

// gifDelayUnit is the GIF frame delay resolution.
const gifDelayUnit = 10 * time.Millisecond

// frame is one fully composited animation frame.
type frame struct {
	img   image.Image
	delay time.Duration
}

// decodeStill decodes the first frame of buf.
func decodeStill(buf []byte, format images.Format) (image.Image, error) {
	var (
		img image.Image
		err error
	)

	r := bytes.NewReader(buf)
	switch format {
	case images.FormatJPEG:
		img, err = jpegn.Decode(r, &jpegn.Options{AutoRotate: true})
	case images.FormatPNG:
		img, err = png.Decode(r)
	case images.FormatGIF:
		img, err = gif.Decode(r)
	case images.FormatWebP:
		img, err = webp.Decode(r)
	default:
		return nil, invalid(format, errUnsupportedInput)
	}
	if err != nil {
		return nil, invalid(format, err)
	}
	return img, nil
}

// decodeFrames decodes every frame of an animated GIF or WebP onto a full
// canvas, honouring each frame's disposal.
func decodeFrames(ctx context.Context, buf []byte, format images.Format) ([]frame, error) {
	switch format {
	case images.FormatGIF:
		return decodeGIFFrames(ctx, buf)
	case images.FormatWebP:
		return decodeWebPFrames(ctx, buf)
	}

	img, err := decodeStill(buf, format)
	if err != nil {
		return nil, err
	}
	return []frame{{img: img}}, nil
}

func decodeWebPFrames(ctx context.Context, buf []byte) ([]frame, error) {
	anim, err := animation.DecodeBytes(buf)
	if err != nil {
		return nil, invalid(images.FormatWebP, err)
	}

	dec := animation.NewAnimDecoder(anim)
	frames := make([]frame, 0, len(anim.Frames))
	for dec.HasNext() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, delay, err := dec.NextFrame()
		if err != nil {
			return nil, invalid(images.FormatWebP, err)
		}
		frames = append(frames, frame{img: img, delay: delay})
	}
	return frames, nil
}

func decodeGIFFrames(ctx context.Context, buf []byte) ([]frame, error) {
	g, err := gif.DecodeAll(bytes.NewReader(buf))
	if err != nil {
		return nil, invalid(images.FormatGIF, err)
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	canvas := image.NewNRGBA(bounds)
	frames := make([]frame, 0, len(g.Image))

	for i, pal := range g.Image {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var previous *image.NRGBA
		if disposal == gif.DisposalPrevious {
			previous = image.NewNRGBA(bounds)
			copy(previous.Pix, canvas.Pix)
		}

		draw.Draw(canvas, pal.Bounds(), pal, pal.Bounds().Min, draw.Over)

		snap := image.NewNRGBA(bounds)
		copy(snap.Pix, canvas.Pix)

		delay := time.Duration(0)
		if i < len(g.Delay) {
			delay = time.Duration(g.Delay[i]) * gifDelayUnit
		}
		frames = append(frames, frame{img: snap, delay: delay})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, pal.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			copy(canvas.Pix, previous.Pix)
		}
	}

	return frames, nil
}
