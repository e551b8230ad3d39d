package vipscodec

import (
	"github.com/cshum/vipsgen/vips"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/images"
)

// defaultEffort is used for WebP and for AVIF without tier settings.
const defaultEffort = 4

// save encodes img in opts.Format.
func save(img *vips.Image, opts codec.EncoderOptions, animated bool) ([]byte, error) {
	switch opts.Format {
	case images.FormatJPEG:
		o := vips.DefaultJpegsaveBufferOptions()
		o.Q = opts.Quality
		o.OptimizeCoding = true
		o.SubsampleMode = subsampleMode(opts.ChromaSubsampling)
		o.Keep = vips.KeepNone
		return img.JpegsaveBuffer(o)

	case images.FormatWebP:
		o := vips.DefaultWebpsaveBufferOptions()
		o.Q = opts.Quality
		o.Effort = defaultEffort
		o.SmartSubsample = opts.SmartSubsample
		if opts.AlphaQuality > 0 {
			o.AlphaQ = opts.AlphaQuality
		}
		if animated {
			// Delay and loop live in the metadata.
			o.Keep = vips.KeepAll
			o.PageHeight = img.PageHeight()
			o.Mixed = true
			if opts.Loop != nil {
				img.SetInt("loop", *opts.Loop)
			}
		} else {
			o.Keep = vips.KeepNone
		}
		return img.WebpsaveBuffer(o)

	case images.FormatAVIF:
		o := vips.DefaultHeifsaveBufferOptions()
		o.Q = opts.Quality
		o.Compression = vips.HeifCompressionAv1
		o.Effort = opts.Effort(defaultEffort)
		o.SubsampleMode = subsampleMode(opts.ChromaSubsampling)
		o.Keep = vips.KeepNone
		return img.HeifsaveBuffer(o)
	}

	return nil, errors.Errorf("unsupported output format %s", opts.Format)
}

// subsampleMode maps a chroma subsampling string to the libvips mode.
func subsampleMode(chroma string) vips.Subsample {
	switch chroma {
	case "4:4:4":
		return vips.SubsampleOff
	case "4:2:0":
		return vips.SubsampleOn
	}
	return vips.SubsampleAuto
}
