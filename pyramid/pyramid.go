package pyramid

import (
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

// NoPixel is returned together with an error when a lookup cannot be served.
const NoPixel float32 = -1

// ErrLevelOutOfRange is returned when a pyramid level does not exist.
var ErrLevelOutOfRange = errors.New("pyramid level out of range")

// GaussianPyramid is a sequence of progressively halved gray images.
// Level 0 keeps the source resolution; every following level is the previous
// one blurred with a Gaussian of standard deviation sigma and subsampled by two.
type GaussianPyramid struct {
	sigma  float64
	levels []*GrayImage
}

// NewGaussianPyramid builds the pyramid eagerly from level0.
//
// With nbLevels > 0 the pyramid holds level0 plus nbLevels reductions, stopping
// earlier if a dimension would drop to zero. With nbLevels == 0 the complete
// pyramid is built: the image is halved until one of its dimensions reaches 1.
func NewGaussianPyramid(level0 *GrayImage, nbLevels uint, sigma float64) *GaussianPyramid {
	p := &GaussianPyramid{sigma: sigma}
	p.build(level0, nbLevels)
	return p
}

func (p *GaussianPyramid) build(level0 *GrayImage, nbLevels uint) {
	cur := level0
	p.levels = append(p.levels, cur)

	for i := uint(0); nbLevels == 0 || i < nbLevels; i++ {
		if nbLevels == 0 && (cur.width <= 1 || cur.height <= 1) {
			break
		}
		w, h := cur.width>>1, cur.height>>1
		if w < 1 || h < 1 {
			break
		}
		cur = reduce(cur, w, h, p.sigma)
		p.levels = append(p.levels, cur)
	}
}

// reduce blurs src and keeps every second pixel. The blur runs on an 8-bit
// copy of src, so every level past the first is quantized to 1/255 before the
// next one is built.
func reduce(src *GrayImage, w, h int, sigma float64) *GrayImage {
	blurred := imaging.Blur(src.ToGray(), sigma)
	dst := NewGrayImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := blurred.PixOffset(2*x, 2*y)
			dst.pix[y*w+x] = float32(blurred.Pix[off]) / 255
		}
	}
	return dst
}

// NumLevels returns the number of levels, level 0 included.
func (p *GaussianPyramid) NumLevels() int { return len(p.levels) }

// Sigma returns the standard deviation of the reduction filter.
func (p *GaussianPyramid) Sigma() float64 { return p.sigma }

// Level returns the image stored at the given level or nil if it does not exist.
func (p *GaussianPyramid) Level(level int) *GrayImage {
	if level < 0 || level >= len(p.levels) {
		return nil
	}
	return p.levels[level]
}

// Width returns the width of the given level, 0 if the level does not exist.
func (p *GaussianPyramid) Width(level int) int {
	if img := p.Level(level); img != nil {
		return img.width
	}
	return 0
}

// Height returns the height of the given level, 0 if the level does not exist.
func (p *GaussianPyramid) Height(level int) int {
	if img := p.Level(level); img != nil {
		return img.height
	}
	return 0
}

// Pixel samples the pyramid at level, with (x, y) expressed in level 0
// coordinates and a top-left origin. The coordinates must lie inside level 0.
//
// Level 0 is read directly. Coarser levels are bilinearly interpolated between
// the four level pixels enclosing (x/2^level, y/2^level), clamped at the border,
// so repeated lookups are bit for bit reproducible.
func (p *GaussianPyramid) Pixel(x, y, level int) float32 {
	img := p.levels[level]
	if level == 0 {
		return img.Pixel(x, y)
	}

	scale := float32(int(1) << level)
	fx, fy := float32(x)/scale, float32(y)/scale
	x0, y0 := int(fx), int(fy)
	tx, ty := fx-float32(x0), fy-float32(y0)

	if x0 >= img.width-1 {
		x0, tx = img.width-1, 0
	}
	if y0 >= img.height-1 {
		y0, ty = img.height-1, 0
	}
	x1, y1 := x0, y0
	if tx > 0 {
		x1++
	}
	if ty > 0 {
		y1++
	}

	top := lerp(img.Pixel(x0, y0), img.Pixel(x1, y0), tx)
	bottom := lerp(img.Pixel(x0, y1), img.Pixel(x1, y1), tx)
	return lerp(top, bottom, ty)
}

// ReadPixel samples the pyramid with (x, y) given in level 0 coordinates and a
// lower-left origin. Coordinates outside level 0 read as 0. A missing level
// returns NoPixel and ErrLevelOutOfRange.
func (p *GaussianPyramid) ReadPixel(level, x, y int) (float32, error) {
	if level < 0 || level >= len(p.levels) {
		return NoPixel, fmt.Errorf("%w: level %d, pyramid has %d", ErrLevelOutOfRange, level, len(p.levels))
	}
	w, h := p.levels[0].width, p.levels[0].height
	if x < 0 || x >= w || y < 0 || y >= h {
		return 0, nil
	}
	return p.Pixel(x, h-1-y, level), nil
}

// Release drops the pixel storage. The pyramid reports zero levels afterwards.
func (p *GaussianPyramid) Release() {
	p.levels = nil
}

// Released reports whether Release has been called.
func (p *GaussianPyramid) Released() bool {
	return p.levels == nil
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
