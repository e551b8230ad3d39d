package slicer

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/images"
)

// ErrInvalidPlan is returned by Plan for a non-positive extent or slice size.
var ErrInvalidPlan = errors.New("invalid slice plan")

// Descriptor is one slice along the splitting axis: x-offset and width for
// vertical strips, y-offset and height for horizontal bands.
type Descriptor struct {
	Index  int `json:"index"`
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// Plan cuts [0, extent) into consecutive slices of sliceSize; the last slice
// takes the remainder.
//
// Arguments:
//   - extent: The length of the excessive axis.
//   - sliceSize: The nominal slice length.
//
// Returns:
//   - []Descriptor: ceil(extent/sliceSize) slices with positive lengths that
//     sum to extent.
//   - error: ErrInvalidPlan if extent or sliceSize is not positive.
//
// @example
// plan, _ := Plan(40000, 16382)
// // [{0 0 16382} {1 16382 16382} {2 32764 7236}]
func Plan(extent, sliceSize int) ([]Descriptor, error) {
	if extent <= 0 || sliceSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidPlan, "extent %d, slice size %d", extent, sliceSize)
	}

	n := (extent + sliceSize - 1) / sliceSize
	plan := make([]Descriptor, n)
	for i := range plan {
		offset := i * sliceSize
		plan[i] = Descriptor{
			Index:  i,
			Offset: offset,
			Length: min(sliceSize, extent-offset),
		}
	}
	return plan, nil
}

// NeedsSlicing reports whether meta describes a single-frame image with a
// side longer than maxDimension.
func NeedsSlicing(meta images.Metadata, maxDimension int) bool {
	return meta.Valid && !meta.Animated() && meta.Exceeds(maxDimension)
}

// DirectionFor picks the split axis: vertical strips when the width exceeds
// maxDimension, horizontal bands otherwise.
func DirectionFor(meta images.Metadata, maxDimension int) images.Direction {
	if meta.Width > maxDimension {
		return images.DirectionVertical
	}
	return images.DirectionHorizontal
}

// Extent returns the length of meta along the axis cut by dir.
func Extent(meta images.Metadata, dir images.Direction) int {
	if dir == images.DirectionVertical {
		return meta.Width
	}
	return meta.Height
}

// Region maps the descriptor to a source rectangle spanning the full
// orthogonal extent.
func (d Descriptor) Region(dir images.Direction, meta images.Metadata) codec.Region {
	if dir == images.DirectionVertical {
		return codec.Region{Left: d.Offset, Top: 0, Width: d.Length, Height: meta.Height}
	}
	return codec.Region{Left: 0, Top: d.Offset, Width: meta.Width, Height: d.Length}
}
