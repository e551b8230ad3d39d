// Package images provides the pixel-count tiers used to pick encoder
// aggressiveness. Larger frames are disproportionately expensive to encode at
// fine tile granularity, so each tier trades effort for speed.
package images

import (
	"fmt"
	"math"
)

// TierName identifies a pixel-count bucket.
type TierName string

// Tier names, from the largest bucket to the smallest.
const (
	TierLarge  TierName = "large"
	TierMedium TierName = "medium"
	TierSmall  TierName = "small"
)

// Pixel-count thresholds. A frame belongs to the first tier whose threshold
// it strictly exceeds.
const (
	LargeImageThreshold  int64 = 4_000_000
	MediumImageThreshold int64 = 1_000_000
)

// Tier describes one pixel-count bucket.
type Tier struct {
	Name TierName `json:"name"`
	// MinPixels is the exclusive lower bound of the bucket.
	MinPixels int64 `json:"minPixels"`
}

// GetMegaPixels returns the tier's lower bound in megapixels, rounded to two
// decimals.
func (t Tier) GetMegaPixels() float64 {
	return math.Round(float64(t.MinPixels)/1_000_000.0*100) / 100
}

// String returns a human-readable summary of the tier.
func (t Tier) String() string {
	return fmt.Sprintf("%s (>%.2fMP)", t.Name, t.GetMegaPixels())
}

// tiers is ordered from the largest bucket to the smallest.
var tiers = []Tier{
	{Name: TierLarge, MinPixels: LargeImageThreshold},
	{Name: TierMedium, MinPixels: MediumImageThreshold},
	{Name: TierSmall, MinPixels: 0},
}

// GetAllTiers returns every tier, largest first.
func GetAllTiers() []Tier {
	all := make([]Tier, len(tiers))
	copy(all, tiers)
	return all
}

// TierForPixels returns the tier a pixel count falls into. Counts at or below
// zero land in the small tier.
//
// Arguments:
//   - pixels: width × height of the frame.
//
// Returns:
//   - Tier: The matching tier.
func TierForPixels(pixels int64) Tier {
	for _, t := range tiers {
		if pixels > t.MinPixels {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// TierForDimensions returns the tier for a width × height frame.
func TierForDimensions(width, height int) Tier {
	return TierForPixels(int64(width) * int64(height))
}
