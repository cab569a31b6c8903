package imop

import (
	"fmt"
	"image"

	"github.com/esimov/freestyle/utils"
)

// Porter-Duff composition operations.
const (
	Clear   = "clear"
	Copy    = "copy"
	Dst     = "dst"
	SrcOver = "src_over"
	DstOver = "dst_over"
	SrcIn   = "src_in"
	DstIn   = "dst_in"
	SrcOut  = "src_out"
	DstOut  = "dst_out"
	SrcAtop = "src_atop"
	DstAtop = "dst_atop"
	Xor     = "xor"
)

var compOps = []string{
	Clear, Copy, Dst, SrcOver, DstOver, SrcIn,
	DstIn, SrcOut, DstOut, SrcAtop, DstAtop, Xor,
}

// Bitmap is the destination of a composition.
type Bitmap struct {
	Img *image.NRGBA
}

// Composite holds the currently active composition operation.
type Composite struct {
	current string
}

// NewBitmap returns a transparent bitmap of the given size.
func NewBitmap(rect image.Rectangle) *Bitmap {
	return &Bitmap{
		Img: image.NewNRGBA(rect),
	}
}

// InitOp returns a Composite set to source-over.
func InitOp() *Composite {
	return &Composite{current: SrcOver}
}

// Set activates one of the supported composition operations.
func (op *Composite) Set(cop string) error {
	if !utils.Contains(compOps, cop) {
		return fmt.Errorf("unsupported composition operation: %q", cop)
	}
	op.current = cop
	return nil
}

// Get returns the active composition operation.
func (op *Composite) Get() string {
	return op.current
}

// factors returns the fractions of the source and backdrop kept by the
// operation, given the source and backdrop alphas.
func (op *Composite) factors(as, ab float64) (fa, fb float64) {
	switch op.current {
	case Clear:
		return 0, 0
	case Copy:
		return 1, 0
	case Dst:
		return 0, 1
	case DstOver:
		return 1 - ab, 1
	case SrcIn:
		return ab, 0
	case DstIn:
		return 0, as
	case SrcOut:
		return 1 - ab, 0
	case DstOut:
		return 0, 1 - as
	case SrcAtop:
		return ab, 1 - as
	case DstAtop:
		return 1 - ab, as
	case Xor:
		return 1 - ab, 1 - as
	}
	return 1, 1 - as
}

// Draw composes src over the dst backdrop into bitmap, using the active
// operation and, if not nil, the blend mode. Only the area common to src and
// dst is written. bitmap may share its image with dst.
func (op *Composite) Draw(bitmap *Bitmap, src, dst *image.NRGBA, blend *Blend) {
	r := src.Bounds().Intersect(dst.Bounds())
	if bitmap == nil {
		bitmap = NewBitmap(r)
	}
	r = r.Intersect(bitmap.Img.Bounds())

	var mode string
	if blend != nil {
		mode = blend.Get()
	}

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			si := src.PixOffset(x, y)
			di := dst.PixOffset(x, y)
			oi := bitmap.Img.PixOffset(x, y)

			rs, gs, bs, as := norm(src.Pix[si : si+4])
			rb, gb, bb, ab := norm(dst.Pix[di : di+4])

			// The blend result replaces the source color where the backdrop is opaque.
			if mode != "" {
				rs = (1-ab)*rs + ab*blendChannel(mode, rb, rs)
				gs = (1-ab)*gs + ab*blendChannel(mode, gb, gs)
				bs = (1-ab)*bs + ab*blendChannel(mode, bb, bs)
			}

			fa, fb := op.factors(as, ab)
			ao := as*fa + ab*fb

			out := bitmap.Img.Pix[oi : oi+4]
			if ao <= 0 {
				out[0], out[1], out[2], out[3] = 0, 0, 0, 0
				continue
			}
			out[0] = denorm((as*fa*rs + ab*fb*rb) / ao)
			out[1] = denorm((as*fa*gs + ab*fb*gb) / ao)
			out[2] = denorm((as*fa*bs + ab*fb*bb) / ao)
			out[3] = denorm(ao)
		}
	}
}

func norm(p []uint8) (r, g, b, a float64) {
	return float64(p[0]) / 255, float64(p[1]) / 255, float64(p[2]) / 255, float64(p[3]) / 255
}

func denorm(v float64) uint8 {
	return uint8(utils.Clamp(v, 0, 1)*255 + 0.5)
}
