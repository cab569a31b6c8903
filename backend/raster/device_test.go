package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esimov/freestyle"
)

var (
	black = color.NRGBA{A: 255}
	red   = color.NRGBA{R: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

func quietDevice(w, h int, opts ...Option) *Device {
	return New(w, h, append([]Option{WithLogger(log.New(io.Discard))}, opts...)...)
}

// hline is a stroke crossing the device at height y, in lower-left coordinates.
func hline(id int, w, y, thickness float64, c color.NRGBA) *freestyle.Stroke {
	return &freestyle.Stroke{
		ID: id,
		Vertices: []freestyle.Vertex{
			{X: 0, Y: y, Thickness: thickness, Color: c},
			{X: w / 2, Y: y, Thickness: thickness, Color: c},
			{X: w, Y: y, Thickness: thickness, Color: c},
		},
	}
}

func TestDevice_New(t *testing.T) {
	d := quietDevice(8, 4)

	require.NoError(t, d.Init())
	assert.Equal(t, 8, d.Width())
	assert.Equal(t, 4, d.Height())
	assert.Equal(t, image.Rect(0, 0, 8, 4), d.Border())
	assert.True(t, d.Scene3DBBox().Empty())
	assert.Equal(t, white, d.Frame().NRGBAAt(7, 3))

	assert.Error(t, quietDevice(0, 4).Init())
}

func TestDevice_RenderStrokeFlipsY(t *testing.T) {
	d := quietDevice(20, 20)
	require.NoError(t, d.RenderStroke(hline(1, 20, 5, 4, black)))

	// y = 5 from the bottom lands on rows 13 to 16 from the top.
	assert.Less(t, d.Frame().NRGBAAt(10, 14).R, uint8(64))
	assert.Less(t, d.Frame().NRGBAAt(10, 15).R, uint8(64))
	assert.Equal(t, white, d.Frame().NRGBAAt(10, 2))
	assert.Equal(t, 1, d.Strokes())

	dst := image.NewRGBA(image.Rect(0, 0, 20, 3))
	require.NoError(t, d.ReadColorPixels(0, 4, 20, 3, dst))
	assert.Less(t, dst.RGBAAt(10, 1).R, uint8(64))

	top := image.NewRGBA(image.Rect(0, 0, 4, 2))
	require.NoError(t, d.ReadColorPixels(0, 18, 4, 2, top))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, top.RGBAAt(0, 0))
}

func TestDevice_SingleVertexAndBasic(t *testing.T) {
	d := quietDevice(20, 20)
	dot := &freestyle.Stroke{ID: 1, Vertices: []freestyle.Vertex{{X: 10, Y: 10, Thickness: 6, Color: black}}}
	require.NoError(t, d.RenderStroke(dot))
	assert.Less(t, d.Frame().NRGBAAt(10, 10).R, uint8(64))

	require.NoError(t, d.RenderStrokeBasic(hline(2, 20, 2.5, 8, red)))
	assert.Equal(t, white, d.Frame().NRGBAAt(10, 14))

	require.NoError(t, d.RenderStroke(&freestyle.Stroke{ID: 3}))
	assert.Equal(t, 2, d.Strokes())
}

func TestDevice_ReadbackBounds(t *testing.T) {
	d := quietDevice(10, 10)

	err := d.ReadColorPixels(5, 5, 6, 1, image.NewRGBA(image.Rect(0, 0, 6, 1)))
	assert.ErrorIs(t, err, ErrRectOutOfBounds)

	err = d.ReadDepthPixels(-1, 0, 1, 1, image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, ErrRectOutOfBounds)

	err = d.ReadDepthPixels(0, 0, 4, 4, image.NewGray(image.Rect(0, 0, 2, 2)))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestDevice_Depth(t *testing.T) {
	d := quietDevice(4, 4)
	dst := image.NewGray(image.Rect(0, 0, 4, 4))
	require.NoError(t, d.ReadDepthPixels(0, 0, 4, 4, dst))
	for _, v := range dst.Pix {
		assert.Equal(t, FarPlane, v)
	}

	depth := image.NewGray(image.Rect(0, 0, 4, 4))
	depth.SetGray(0, 3, color.Gray{Y: 7})
	d = quietDevice(4, 4, WithDepth(depth))

	px := image.NewGray(image.Rect(0, 0, 1, 1))
	require.NoError(t, d.ReadDepthPixels(0, 0, 1, 1, px))
	assert.Equal(t, uint8(7), px.Pix[0])
}

func TestDevice_Update(t *testing.T) {
	var got *image.NRGBA
	d := quietDevice(4, 4, WithUpdateFunc(func(frame *image.NRGBA) error {
		got = frame
		return nil
	}))

	require.NoError(t, d.Update())
	require.NoError(t, d.Update())
	assert.Equal(t, 2, d.Frames())
	assert.Same(t, d.Frame(), got)
}

func TestDevice_CanvasDraw(t *testing.T) {
	d := quietDevice(20, 20, WithBackground(white))
	c, err := freestyle.NewCanvas(d, freestyle.WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	require.NoError(t, c.PushBackStyleModule(freestyle.NewStyleModule("low", func(*freestyle.Canvas) (*freestyle.StrokeLayer, error) {
		return freestyle.NewStrokeLayer(hline(1, 20, 5, 4, black)), nil
	})))
	require.NoError(t, c.PushBackStyleModule(freestyle.NewStyleModule("high", func(*freestyle.Canvas) (*freestyle.StrokeLayer, error) {
		return freestyle.NewBlendedStrokeLayer("no_such_blend", hline(2, 20, 15, 4, red)), nil
	})))
	require.NoError(t, c.Draw())

	assert.Less(t, d.Frame().NRGBAAt(10, 15).R, uint8(64))
	high := d.Frame().NRGBAAt(10, 5)
	assert.Greater(t, high.R, uint8(192))
	assert.Less(t, high.G, uint8(64))
	assert.Equal(t, 2, d.Strokes())

	// Hiding a layer redraws the frame without it.
	require.NoError(t, c.SetVisible(0, false))
	require.NoError(t, c.Draw())
	assert.Equal(t, white, d.Frame().NRGBAAt(10, 15))
	assert.Equal(t, 1, d.Strokes())
}

func TestDevice_MultiplyLayer(t *testing.T) {
	d := quietDevice(10, 10, WithBackground(color.NRGBA{R: 255, G: 128, B: 255, A: 255}))
	l := freestyle.NewBlendedStrokeLayer("multiply", hline(1, 10, 5, 10, color.NRGBA{R: 128, G: 255, B: 255, A: 255}))

	d.BeginLayer(l)
	require.NoError(t, l.Render(d))
	require.NoError(t, d.EndLayer(l))

	px := d.Frame().NRGBAAt(5, 5)
	assert.InDelta(t, 128, int(px.R), 2)
	assert.InDelta(t, 128, int(px.G), 2)
	assert.InDelta(t, 255, int(px.B), 2)
}

func TestDevice_Encode(t *testing.T) {
	d := quietDevice(6, 3)

	var buf bytes.Buffer
	require.NoError(t, d.Encode(&buf, ".png"))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 3), img.Bounds())

	buf.Reset()
	require.NoError(t, d.Encode(&buf, ".BMP"))
	assert.NotZero(t, buf.Len())

	buf.Reset()
	require.NoError(t, d.Encode(&buf, ""))
	assert.NotZero(t, buf.Len())

	assert.ErrorIs(t, d.Encode(&buf, ".tiff"), ErrUnsupportedFormat)
}
