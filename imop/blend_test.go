package imop

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlend_Basic(t *testing.T) {
	assert := assert.New(t)

	op := NewBlend()
	assert.Empty(op.Get())
	err := op.Set("blend_mode_not_supported")
	assert.Error(err)
	assert.NoError(op.Set(Darken))
	assert.Equal(Darken, op.Get())
	assert.NoError(op.Set(Lighten))
	assert.Equal(Lighten, op.Get())
	assert.NoError(op.Set(Normal))
	assert.Empty(op.Get())

	assert.True(IsBlendMode(Multiply))
	assert.False(IsBlendMode("dissolve"))
}

func TestBlend_Modes(t *testing.T) {
	pinkFront := color.NRGBA{R: 214, G: 20, B: 65, A: 255}
	orangeBack := color.NRGBA{R: 250, G: 121, B: 17, A: 255}

	rect := image.Rect(0, 0, 1, 1)
	source := image.NewNRGBA(rect)
	backdrop := image.NewNRGBA(rect)
	draw.Draw(source, rect, &image.Uniform{pinkFront}, image.Point{}, draw.Src)
	draw.Draw(backdrop, rect, &image.Uniform{orangeBack}, image.Point{}, draw.Src)

	tests := []struct {
		mode     string
		expected []uint8
	}{
		{Normal, []uint8{214, 20, 65, 255}},
		{Darken, []uint8{214, 20, 17, 255}},
		{Lighten, []uint8{250, 121, 65, 255}},
		{Multiply, []uint8{210, 9, 4, 255}},
		{Screen, []uint8{254, 132, 78, 255}},
		{Difference, []uint8{36, 101, 48, 255}},
		{Exclusion, []uint8{44, 122, 73, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			blend := NewBlend()
			assert.NoError(t, blend.Set(tt.mode))

			bmp := NewBitmap(rect)
			InitOp().Draw(bmp, source, backdrop, blend)
			assert.EqualValues(t, tt.expected, bmp.Img.Pix)
		})
	}
}

func TestBlend_Channel(t *testing.T) {
	assert := assert.New(t)

	// Overlay is hard light with the layers swapped.
	assert.InDelta(blendChannel(HardLight, 0.3, 0.8), blendChannel(Overlay, 0.8, 0.3), 1e-12)

	assert.Equal(0.0, blendChannel(ColorDodge, 0, 0.7))
	assert.Equal(1.0, blendChannel(ColorDodge, 0.2, 1))
	assert.Equal(1.0, blendChannel(ColorBurn, 1, 0.1))
	assert.Equal(0.0, blendChannel(ColorBurn, 0.5, 0))

	// Soft light with a mid gray source leaves the backdrop unchanged.
	for _, cb := range []float64{0, 0.1, 0.5, 0.9, 1} {
		assert.InDelta(cb, blendChannel(SoftLight, cb, 0.5), 1e-12)
	}
}

func TestBlend_TransparentBackdropKeepsSource(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	dst := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 200, B: 30, A: 255})

	blend := NewBlend()
	assert.NoError(t, blend.Set(Multiply))

	bmp := NewBitmap(src.Bounds())
	InitOp().Draw(bmp, src, dst, blend)
	assert.Equal(t, color.NRGBA{R: 10, G: 200, B: 30, A: 255}, bmp.Img.NRGBAAt(0, 0))
}
