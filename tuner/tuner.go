// Package tuner derives encoder options from the output format and the size
// of the frame being encoded.
package tuner

import (
	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/images"
)

// avifSchedule maps each pixel tier to its AVIF tiling and quantizer settings.
// Coarser tiles, a wider quantizer range and lower effort bound encode latency
// on large frames.
var avifSchedule = map[images.TierName]codec.AVIFOptions{
	images.TierLarge:  {TileRows: 4, TileCols: 4, MinQuantizer: 30, MaxQuantizer: 50, Effort: 3},
	images.TierMedium: {TileRows: 2, TileCols: 2, MinQuantizer: 28, MaxQuantizer: 48, Effort: 4},
	images.TierSmall:  {TileRows: 1, TileCols: 1, MinQuantizer: 26, MaxQuantizer: 46, Effort: 5},
}

// AVIFParams returns the AVIF settings for a width × height frame.
//
// Arguments:
//   - width: Frame width in pixels.
//   - height: Frame height in pixels.
//
// Returns:
//   - codec.AVIFOptions: The tier's settings.
func AVIFParams(width, height int) codec.AVIFOptions {
	return avifSchedule[images.TierForDimensions(width, height).Name]
}

// Tune builds the encoder options for one request.
//
// Arguments:
//   - format: The effective output format.
//   - quality: The resolved quality.
//   - width, height: Frame dimensions, used for AVIF tiering.
//   - animated: Whether the source has more than one frame.
//
// Returns:
//   - codec.EncoderOptions: The options, with AVIF set only for AVIF output
//     and Loop set only for animated sources.
//
// @example
// opts := Tune(images.FormatAVIF, 80, 10000, 2000, false)
// // opts.AVIF.TileRows == 4, opts.AVIF.Effort == 3
func Tune(format images.Format, quality, width, height int, animated bool) codec.EncoderOptions {
	opts := codec.EncoderOptions{
		Format:            format,
		Quality:           quality,
		AlphaQuality:      codec.DefaultAlphaQuality,
		SmartSubsample:    true,
		ChromaSubsampling: codec.DefaultChromaSubsampling,
	}

	if animated {
		loop := 0
		opts.Loop = &loop
	}

	if format == images.FormatAVIF {
		avif := AVIFParams(width, height)
		opts.AVIF = &avif
	}

	return opts
}

// Fallback returns the options for the fallback encode: JPEG at the given
// quality and 4:2:0 chroma, with every format-specific setting dropped.
func Fallback(quality int) codec.EncoderOptions {
	return codec.EncoderOptions{
		Format:            images.FormatJPEG,
		Quality:           quality,
		ChromaSubsampling: codec.DefaultChromaSubsampling,
	}
}
