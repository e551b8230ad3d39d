package codec

import "github.com/nvr-ai/go-transcode/images"

// Encoder option defaults shared by every output format.
const (
	DefaultAlphaQuality      = 80
	DefaultChromaSubsampling = "4:2:0"
)

// AVIFOptions holds the AVIF-only tiling and quantizer settings.
type AVIFOptions struct {
	TileRows     int `json:"tile_rows"`
	TileCols     int `json:"tile_cols"`
	MinQuantizer int `json:"min_quantizer"`
	MaxQuantizer int `json:"max_quantizer"`
	// Effort is the CPU effort, lower is faster.
	Effort int `json:"effort"`
}

// EncoderOptions are the format-specific settings for one encode call. They
// are built once per request and passed by value.
type EncoderOptions struct {
	Format            images.Format `json:"format"`
	Quality           int           `json:"quality"`
	AlphaQuality      int           `json:"alpha_quality,omitempty"`
	SmartSubsample    bool          `json:"smart_subsample,omitempty"`
	ChromaSubsampling string        `json:"chroma_subsampling,omitempty"`
	// Loop is the animation loop count; nil for still images.
	Loop *int `json:"loop,omitempty"`
	// AVIF is nil for every format other than AVIF.
	AVIF *AVIFOptions `json:"avif,omitempty"`
}

// Animated reports whether the options were built for an animated source.
func (o EncoderOptions) Animated() bool {
	return o.Loop != nil
}

// Effort returns the AVIF effort, or fallback when unset.
func (o EncoderOptions) Effort(fallback int) int {
	if o.AVIF != nil && o.AVIF.Effort > 0 {
		return o.AVIF.Effort
	}
	return fallback
}
