package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGradient builds a width×height image whose red channel encodes x and
// green channel encodes y, so placement errors are visible per pixel.
func newGradient(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	return img
}

func TestGrayscale(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 255, G: 0, B: 0, A: 128})
		}
	}

	gray := Grayscale(src)
	require.NotNil(t, gray)
	assert.Equal(t, src.Bounds(), gray.Bounds(), "Grayscale should keep dimensions")

	c := color.NRGBAModel.Convert(gray.At(2, 2)).(color.NRGBA)
	assert.Equal(t, c.R, c.G, "All channels should carry the same value")
	assert.Equal(t, c.G, c.B, "All channels should carry the same value")
	assert.Equal(t, uint8(54), c.R, "Pure red should map to its BT.709 luma")
	assert.Equal(t, uint8(128), c.A, "Alpha should be preserved")
}

func TestGrayscaleLargeImageUsesAllRows(t *testing.T) {
	src := newGradient(64, 257)
	gray := Grayscale(src)

	for _, y := range []int{0, 128, 256} {
		c := color.NRGBAModel.Convert(gray.At(10, y)).(color.NRGBA)
		assert.Equal(t, uint8(255), c.A, "Row %d should be written", y)
	}
}

func TestCrop(t *testing.T) {
	src := newGradient(20, 10)

	region, err := Crop(src, 5, 2, 10, 8)
	require.NoError(t, err)
	assert.Equal(t, 10, region.Bounds().Dx())
	assert.Equal(t, 8, region.Bounds().Dy())
	assert.Equal(t, image.Point{}, region.Bounds().Min, "Crop should be anchored at the origin")

	c := color.NRGBAModel.Convert(region.At(0, 0)).(color.NRGBA)
	assert.Equal(t, uint8(5), c.R)
	assert.Equal(t, uint8(2), c.G)

	_, err = Crop(src, 15, 0, 10, 10)
	assert.Error(t, err, "Region past the right edge should fail")

	_, err = Crop(src, 0, 0, 0, 10)
	assert.Error(t, err, "Empty region should fail")
}

func TestConcatenateRestoresOriginal(t *testing.T) {
	tests := []struct {
		name string
		dir  Direction
		w, h int
		cuts []int
	}{
		{name: "vertical strips", dir: DirectionVertical, w: 25, h: 6, cuts: []int{10, 10, 5}},
		{name: "horizontal bands", dir: DirectionHorizontal, w: 6, h: 25, cuts: []int{10, 10, 5}},
		{name: "single part", dir: DirectionVertical, w: 7, h: 3, cuts: []int{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newGradient(tt.w, tt.h)

			var parts []image.Image
			offset := 0
			for _, n := range tt.cuts {
				var part image.Image
				var err error
				if tt.dir == DirectionVertical {
					part, err = Crop(src, offset, 0, n, tt.h)
				} else {
					part, err = Crop(src, 0, offset, tt.w, n)
				}
				require.NoError(t, err)
				parts = append(parts, part)
				offset += n
			}

			joined, err := Concatenate(parts, tt.dir)
			require.NoError(t, err)
			require.Equal(t, src.Bounds(), joined.Bounds())

			for y := 0; y < tt.h; y++ {
				for x := 0; x < tt.w; x++ {
					assert.Equal(t, src.NRGBAAt(x, y), color.NRGBAModel.Convert(joined.At(x, y)), "pixel (%d,%d)", x, y)
				}
			}
		})
	}
}

func TestConcatenateErrors(t *testing.T) {
	_, err := Concatenate(nil, DirectionVertical)
	assert.ErrorIs(t, err, ErrNoParts)

	_, err = Concatenate([]image.Image{newGradient(4, 4), newGradient(4, 5)}, DirectionVertical)
	assert.Error(t, err, "Vertical strips with different heights should fail")

	_, err = Concatenate([]image.Image{newGradient(4, 4), newGradient(5, 4)}, DirectionHorizontal)
	assert.Error(t, err, "Horizontal bands with different widths should fail")

	_, err = Concatenate([]image.Image{newGradient(4, 4)}, Direction("diagonal"))
	assert.Error(t, err)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-3, 0, 255))
	assert.Equal(t, 255.0, Clamp(300, 0, 255))
	assert.Equal(t, 42.0, Clamp(42, 0, 255))
}
