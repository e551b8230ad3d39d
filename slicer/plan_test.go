package slicer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/images"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name      string
		extent    int
		sliceSize int
		want      int
		last      int
	}{
		{name: "exact multiple", extent: 300, sliceSize: 100, want: 3, last: 100},
		{name: "remainder", extent: 40000, sliceSize: 16382, want: 3, last: 7236},
		{name: "one over", extent: 16383, sliceSize: 16382, want: 2, last: 1},
		{name: "smaller than slice", extent: 50, sliceSize: 100, want: 1, last: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Plan(tt.extent, tt.sliceSize)
			require.NoError(t, err)
			require.Len(t, plan, tt.want)

			sum := 0
			for i, d := range plan {
				assert.Equal(t, i, d.Index)
				assert.Equal(t, sum, d.Offset, "slices must be contiguous")
				assert.Positive(t, d.Length)
				sum += d.Length
			}
			assert.Equal(t, tt.extent, sum)
			assert.Equal(t, tt.last, plan[len(plan)-1].Length)
		})
	}
}

func TestPlanRejectsNonPositive(t *testing.T) {
	for _, args := range [][2]int{{0, 100}, {-1, 100}, {100, 0}, {100, -5}} {
		_, err := Plan(args[0], args[1])
		assert.ErrorIs(t, err, ErrInvalidPlan, "extent=%d size=%d", args[0], args[1])
	}
}

func TestDirectionAndRegion(t *testing.T) {
	wide := images.NewMetadata(40000, 300, 1, images.FormatJPEG)
	tall := images.NewMetadata(300, 40000, 1, images.FormatJPEG)
	both := images.NewMetadata(20000, 20000, 1, images.FormatJPEG)

	assert.Equal(t, images.DirectionVertical, DirectionFor(wide, 16382))
	assert.Equal(t, images.DirectionHorizontal, DirectionFor(tall, 16382))
	assert.Equal(t, images.DirectionVertical, DirectionFor(both, 16382))

	assert.Equal(t, 40000, Extent(wide, images.DirectionVertical))
	assert.Equal(t, 40000, Extent(tall, images.DirectionHorizontal))

	d := Descriptor{Index: 1, Offset: 16382, Length: 16382}
	assert.Equal(t, codec.Region{Left: 16382, Top: 0, Width: 16382, Height: 300}, d.Region(images.DirectionVertical, wide))
	assert.Equal(t, codec.Region{Left: 0, Top: 16382, Width: 300, Height: 16382}, d.Region(images.DirectionHorizontal, tall))
}

func TestNeedsSlicing(t *testing.T) {
	assert.False(t, NeedsSlicing(images.NewMetadata(16382, 16382, 1, images.FormatJPEG), 16382))
	assert.True(t, NeedsSlicing(images.NewMetadata(16383, 10, 1, images.FormatJPEG), 16382))
	assert.False(t, NeedsSlicing(images.NewMetadata(20000, 10, 3, images.FormatGIF), 16382), "animated images are never sliced")
	assert.False(t, NeedsSlicing(images.Invalid(), 16382))
}
