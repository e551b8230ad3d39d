// Package images - provides the pixel operations the pure-Go codec needs:
// grayscale conversion, region extraction and slice concatenation.
package images

import (
	"image"
	"image/color"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Direction is the axis along which an oversized image is split and joined.
type Direction string

const (
	// DirectionVertical cuts the image into vertical strips laid out left to
	// right. It is used when the width is the excessive axis.
	DirectionVertical Direction = "vertical"
	// DirectionHorizontal cuts the image into horizontal bands laid out top to
	// bottom. It is used when the height is the excessive axis.
	DirectionHorizontal Direction = "horizontal"
)

// ErrNoParts is returned by Concatenate when there is nothing to join.
var ErrNoParts = errors.New("no parts to concatenate")

// Grayscale converts an image to grayscale using ITU-R BT.709 luma coefficients.
// The alpha channel is preserved.
//
// Arguments:
// - img: The source image to convert.
//
// Returns:
// - A new grayscale image with the same bounds.
//
// @example
// gray := Grayscale(colorImage)
func Grayscale(img image.Image) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// All channels carry the same value; NRGBA keeps alpha straight.
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	const (
		redWeight   = 0.2126
		greenWeight = 0.7152
		blueWeight  = 0.0722
	)

	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			srcY := bounds.Min.Y + y
			for x := 0; x < width; x++ {
				c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, srcY)).(color.NRGBA)

				luma := float64(c.R)*redWeight + float64(c.G)*greenWeight + float64(c.B)*blueWeight
				gray := uint8(Clamp(luma+0.5, 0, 255))

				i := dst.PixOffset(x, y)
				dst.Pix[i+0] = gray
				dst.Pix[i+1] = gray
				dst.Pix[i+2] = gray
				dst.Pix[i+3] = c.A
			}
		}
	})

	return dst
}

// Crop copies the rectangle (left, top, width, height), relative to the
// image's origin, into a new image anchored at (0, 0).
//
// Arguments:
// - img: The source image.
// - left, top: The top-left corner of the region.
// - width, height: The size of the region.
//
// Returns:
// - The extracted region.
// - error if the region is empty or not fully inside the image.
func Crop(img image.Image, left, top, width, height int) (image.Image, error) {
	bounds := img.Bounds()
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("empty crop region %dx%d", width, height)
	}

	region := image.Rect(left, top, left+width, top+height).Add(bounds.Min)
	if !region.In(bounds) {
		return nil, errors.Errorf("crop region %v outside image bounds %v", region, bounds)
	}

	return imaging.Crop(img, region), nil
}

// Concatenate lays parts out edge to edge along the direction, in the order
// given. Vertical strips must share a height; horizontal bands must share a
// width.
//
// Arguments:
// - parts: The images to join, in placement order.
// - dir: The layout direction.
//
// Returns:
// - A single image whose extent along dir is the sum of the parts.
// - error if parts is empty or the orthogonal extents differ.
//
// @example
// joined, err := Concatenate([]image.Image{left, right}, DirectionVertical)
func Concatenate(parts []image.Image, dir Direction) (image.Image, error) {
	if len(parts) == 0 {
		return nil, ErrNoParts
	}

	first := parts[0].Bounds()
	width, height := 0, 0
	for i, p := range parts {
		b := p.Bounds()
		switch dir {
		case DirectionVertical:
			if b.Dy() != first.Dy() {
				return nil, errors.Errorf("part %d height %d does not match %d", i, b.Dy(), first.Dy())
			}
			width += b.Dx()
			height = first.Dy()
		case DirectionHorizontal:
			if b.Dx() != first.Dx() {
				return nil, errors.Errorf("part %d width %d does not match %d", i, b.Dx(), first.Dx())
			}
			width = first.Dx()
			height += b.Dy()
		default:
			return nil, errors.Errorf("unknown direction %q", dir)
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	offset := 0
	for _, p := range parts {
		b := p.Bounds()
		var at image.Rectangle
		if dir == DirectionVertical {
			at = image.Rect(offset, 0, offset+b.Dx(), b.Dy())
			offset += b.Dx()
		} else {
			at = image.Rect(0, offset, b.Dx(), offset+b.Dy())
			offset += b.Dy()
		}
		draw.Draw(dst, at, p, b.Min, draw.Src)
	}

	return dst, nil
}

// Clamp restricts value to the range [min, max].
//
// Arguments:
// - value: The value to clamp.
// - min: The lower bound.
// - max: The upper bound.
//
// Returns:
// - The clamped value.
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Parallel splits [0, dataSize) into one partition per CPU and runs fn on each
// partition concurrently, returning once all partitions are done.
//
// Arguments:
// - dataSize: The size of the data to process.
// - fn: Function to execute for each partition (receives start and end indices).
//
// @example
//
//	Parallel(height, func(start, end int) {
//	    for y := start; y < end; y++ {
//	        // Process row y
//	    }
//	})
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	numGoroutines := runtime.NumCPU()

	// Small inputs are not worth the goroutine overhead.
	if dataSize < numGoroutines*2 {
		fn(0, dataSize)
		return
	}

	partSize := dataSize / numGoroutines

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize

		// Last partition gets any remaining data.
		if i == numGoroutines-1 {
			partEnd = dataSize
		}

		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}

	wg.Wait()
}
