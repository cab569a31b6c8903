// Package pyramid implements the multi-resolution gray images sampled by the
// style modules: Gaussian pyramids built from a single gray level image and the
// steerable view map, a fixed set of per-orientation pyramids.
package pyramid

import (
	"image"
	"image/color"
	"math"
)

// Luminance weights applied when a color image is flattened to gray.
const (
	lumR = 0.3
	lumG = 0.59
	lumB = 0.11
)

// GrayImage holds normalized intensities in [0, 1], stored row by row
// with the origin in the top-left corner.
type GrayImage struct {
	width  int
	height int
	pix    []float32
}

// NewGrayImage returns a black image of the given size.
func NewGrayImage(width, height int) *GrayImage {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &GrayImage{
		width:  width,
		height: height,
		pix:    make([]float32, width*height),
	}
}

// FromGray converts an 8 bit gray image.
func FromGray(src *image.Gray) *GrayImage {
	b := src.Bounds()
	dst := NewGrayImage(b.Dx(), b.Dy())
	for y := 0; y < dst.height; y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		row := src.Pix[off : off+dst.width]
		for x, v := range row {
			dst.pix[y*dst.width+x] = float32(v) / 255
		}
	}
	return dst
}

// FromImage flattens any image to gray using the 0.3, 0.59, 0.11 luminance weights.
// Alpha is ignored.
func FromImage(src image.Image) *GrayImage {
	if g, ok := src.(*image.Gray); ok {
		return FromGray(g)
	}
	b := src.Bounds()
	dst := NewGrayImage(b.Dx(), b.Dy())
	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			lum := lumR*float64(c.R) + lumG*float64(c.G) + lumB*float64(c.B)
			dst.pix[y*dst.width+x] = float32(lum / 255)
		}
	}
	return dst
}

// Width returns the image width in pixels.
func (g *GrayImage) Width() int { return g.width }

// Height returns the image height in pixels.
func (g *GrayImage) Height() int { return g.height }

// Pixel returns the intensity at (x, y). The coordinates must lie inside the image.
func (g *GrayImage) Pixel(x, y int) float32 {
	return g.pix[y*g.width+x]
}

// SetPixel sets the intensity at (x, y).
func (g *GrayImage) SetPixel(x, y int, v float32) {
	g.pix[y*g.width+x] = v
}

// ToGray quantizes the image to 8 bits.
func (g *GrayImage) ToGray() *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, g.width, g.height))
	for i, v := range g.pix {
		dst.Pix[i] = quantize(v)
	}
	return dst
}

func quantize(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(math.Round(float64(v) * 255))
}
