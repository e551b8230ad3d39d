package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierForPixels(t *testing.T) {
	tests := []struct {
		name   string
		pixels int64
		want   TierName
	}{
		{name: "zero", pixels: 0, want: TierSmall},
		{name: "half megapixel", pixels: 500_000, want: TierSmall},
		{name: "medium boundary is small", pixels: 1_000_000, want: TierSmall},
		{name: "just above medium", pixels: 1_000_001, want: TierMedium},
		{name: "two megapixels", pixels: 2_000_000, want: TierMedium},
		{name: "large boundary is medium", pixels: 4_000_000, want: TierMedium},
		{name: "five megapixels", pixels: 5_000_000, want: TierLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TierForPixels(tt.pixels).Name)
		})
	}
}

func TestTierForDimensions(t *testing.T) {
	assert.Equal(t, TierLarge, TierForDimensions(10000, 2000).Name)
	assert.Equal(t, TierMedium, TierForDimensions(1920, 1080).Name)
	assert.Equal(t, TierSmall, TierForDimensions(640, 480).Name)
}

func TestGetAllTiersIsACopy(t *testing.T) {
	all := GetAllTiers()
	assert.Len(t, all, 3)
	all[0].Name = "mutated"
	assert.Equal(t, TierLarge, GetAllTiers()[0].Name)
	assert.Equal(t, "large (>4.00MP)", GetAllTiers()[0].String())
}
