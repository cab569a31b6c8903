// Package raster is a software backend for freestyle canvases. Strokes are
// rasterized with gg, one offscreen context per stroke layer, and every layer
// is merged into the frame with the imop composition operations.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"

	"github.com/esimov/freestyle"
	"github.com/esimov/freestyle/imop"
)

// FarPlane is the depth buffer value of an empty pixel.
const FarPlane uint8 = 255

var (
	// ErrRectOutOfBounds is returned when a readback rectangle leaves the device.
	ErrRectOutOfBounds = errors.New("readback rectangle outside the device")
	// ErrBufferTooSmall is returned when a readback destination cannot hold the rectangle.
	ErrBufferTooSmall = errors.New("readback buffer too small")
)

// UpdateFunc receives the frame on every Update.
type UpdateFunc func(frame *image.NRGBA) error

// Device rasterizes strokes into an NRGBA frame.
type Device struct {
	width, height int

	background color.NRGBA
	frame      *image.NRGBA
	depth      *image.Gray
	depthSrc   *image.Gray

	comp  *imop.Composite
	layer *gg.Context
	blend string

	bbox     freestyle.BBox3
	onUpdate UpdateFunc
	logger   *log.Logger

	frames  int
	strokes int
}

var (
	_ freestyle.Backend        = (*Device)(nil)
	_ freestyle.PreDrawer      = (*Device)(nil)
	_ freestyle.PostDrawer     = (*Device)(nil)
	_ freestyle.StrokeRenderer = (*Device)(nil)
	_ freestyle.LayerRenderer  = (*Device)(nil)
)

// Option configures a Device.
type Option func(*Device)

// WithBackground sets the color the frame is cleared to before every draw.
func WithBackground(c color.NRGBA) Option {
	return func(d *Device) { d.background = c }
}

// WithDepth sets the depth buffer of the rendered scene, top row first. A nil
// or mismatched buffer leaves every pixel on the far plane.
func WithDepth(depth *image.Gray) Option {
	return func(d *Device) { d.depthSrc = depth }
}

// WithSceneBBox sets the box reported by Scene3DBBox.
func WithSceneBBox(b freestyle.BBox3) Option {
	return func(d *Device) { d.bbox = b }
}

// WithUpdateFunc sets the callback invoked by Update.
func WithUpdateFunc(fn UpdateFunc) Option {
	return func(d *Device) { d.onUpdate = fn }
}

// WithLogger sets the logger. By default log.Default() is used.
func WithLogger(l *log.Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a width x height device with a white background.
func New(width, height int, opts ...Option) *Device {
	d := &Device{
		width:      width,
		height:     height,
		background: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		comp:       imop.InitOp(),
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.frame = image.NewNRGBA(image.Rect(0, 0, width, height))
	d.depth = image.NewGray(image.Rect(0, 0, width, height))
	d.clear()
	return d
}

// Init clears the frame and the depth buffer.
func (d *Device) Init() error {
	if d.width <= 0 || d.height <= 0 {
		return fmt.Errorf("invalid device size %dx%d", d.width, d.height)
	}
	d.clear()
	return nil
}

func (d *Device) clear() {
	draw.Draw(d.frame, d.frame.Bounds(), &image.Uniform{d.background}, image.Point{}, draw.Src)

	if d.depthSrc != nil && d.depthSrc.Bounds().Size() == d.depth.Bounds().Size() {
		draw.Draw(d.depth, d.depth.Bounds(), d.depthSrc, d.depthSrc.Bounds().Min, draw.Src)
		return
	}
	for i := range d.depth.Pix {
		d.depth.Pix[i] = FarPlane
	}
}

// PreDraw starts a new frame.
func (d *Device) PreDraw() {
	d.clear()
	d.strokes = 0
}

// PostDraw flushes a layer left open.
func (d *Device) PostDraw() {
	if d.layer != nil {
		d.logger.Warn("stroke layer left open at the end of the frame")
		d.flush()
	}
	d.logger.Debug("frame rasterized", "strokes", d.strokes, "frame", d.frames)
}

// BeginLayer starts an offscreen context collecting the strokes of l.
func (d *Device) BeginLayer(l *freestyle.StrokeLayer) {
	if d.layer != nil {
		d.flush()
	}
	d.layer = d.newContext()
	d.blend = l.Blend()
}

// EndLayer composites the strokes of l onto the frame.
func (d *Device) EndLayer(l *freestyle.StrokeLayer) error {
	if d.layer == nil {
		return nil
	}
	return d.flush()
}

func (d *Device) newContext() *gg.Context {
	dc := gg.NewContext(d.width, d.height)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	return dc
}

// flush merges the open layer into the frame and closes it.
func (d *Device) flush() error {
	dc := d.layer
	d.layer = nil
	defer dc.Close()

	blend := imop.NewBlend()
	if err := blend.Set(d.blend); err != nil {
		d.logger.Warn("unknown blend mode, drawing with source-over", "blend", d.blend)
	}
	d.blend = ""

	src := imaging.Clone(dc.Image())
	d.comp.Draw(&imop.Bitmap{Img: d.frame}, src, d.frame, blend)
	return nil
}

// RenderStroke draws s with its per vertex thickness and color. Outside of a
// layer the stroke is merged into the frame immediately.
func (d *Device) RenderStroke(s *freestyle.Stroke) error {
	return d.render(s, false)
}

// RenderStrokeBasic draws s as a one pixel polyline in the color of its first vertex.
func (d *Device) RenderStrokeBasic(s *freestyle.Stroke) error {
	return d.render(s, true)
}

func (d *Device) render(s *freestyle.Stroke, basic bool) error {
	if s == nil || s.Len() == 0 {
		return nil
	}
	standalone := d.layer == nil
	if standalone {
		d.layer = d.newContext()
	}

	var err error
	if basic {
		err = d.drawBasic(d.layer, s)
	} else {
		err = d.drawStroke(d.layer, s)
	}
	d.strokes++

	if standalone {
		if ferr := d.flush(); err == nil {
			err = ferr
		}
	}
	if err != nil {
		return fmt.Errorf("stroke %d: %w", s.ID, err)
	}
	return nil
}

// flip converts a lower-left origin y into a gg row coordinate.
func (d *Device) flip(y float64) float64 {
	return float64(d.height) - y
}

func (d *Device) drawStroke(dc *gg.Context, s *freestyle.Stroke) error {
	v := s.Vertices
	if len(v) == 1 {
		dc.SetColor(v[0].Color)
		dc.DrawPoint(v[0].X, d.flip(v[0].Y), v[0].Thickness/2)
		return dc.Fill()
	}
	for i := 1; i < len(v); i++ {
		a, b := v[i-1], v[i]
		dc.SetColor(a.Color)
		dc.SetLineWidth((a.Thickness + b.Thickness) / 2)
		dc.DrawLine(a.X, d.flip(a.Y), b.X, d.flip(b.Y))
		if err := dc.Stroke(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) drawBasic(dc *gg.Context, s *freestyle.Stroke) error {
	v := s.Vertices
	dc.SetColor(v[0].Color)
	dc.SetLineWidth(1)
	dc.MoveTo(v[0].X, d.flip(v[0].Y))
	for _, p := range v[1:] {
		dc.LineTo(p.X, d.flip(p.Y))
	}
	return dc.Stroke()
}

// readRect maps a lower-left addressed rectangle to frame coordinates.
func (d *Device) readRect(x, y, w, h int, dst image.Rectangle) (image.Point, error) {
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > d.width || y+h > d.height {
		return image.Point{}, fmt.Errorf("%w: (%d, %d) %dx%d on %dx%d",
			ErrRectOutOfBounds, x, y, w, h, d.width, d.height)
	}
	if dst.Dx() < w || dst.Dy() < h {
		return image.Point{}, fmt.Errorf("%w: %dx%d for %dx%d", ErrBufferTooSmall, dst.Dx(), dst.Dy(), w, h)
	}
	return image.Pt(x, d.height-y-h), nil
}

// ReadColorPixels copies the frame rectangle into dst, top row first.
func (d *Device) ReadColorPixels(x, y, w, h int, dst *image.RGBA) error {
	sp, err := d.readRect(x, y, w, h, dst.Bounds())
	if err != nil {
		return err
	}
	r := image.Rectangle{Min: dst.Bounds().Min, Max: dst.Bounds().Min.Add(image.Pt(w, h))}
	draw.Draw(dst, r, d.frame, sp, draw.Src)
	return nil
}

// ReadDepthPixels copies the depth rectangle into dst, top row first.
func (d *Device) ReadDepthPixels(x, y, w, h int, dst *image.Gray) error {
	sp, err := d.readRect(x, y, w, h, dst.Bounds())
	if err != nil {
		return err
	}
	r := image.Rectangle{Min: dst.Bounds().Min, Max: dst.Bounds().Min.Add(image.Pt(w, h))}
	draw.Draw(dst, r, d.depth, sp, draw.Src)
	return nil
}

// Update counts the frame and hands it to the update callback.
func (d *Device) Update() error {
	d.frames++
	if d.onUpdate == nil {
		return nil
	}
	return d.onUpdate(d.frame)
}

// Width returns the device width in pixels.
func (d *Device) Width() int { return d.width }

// Height returns the device height in pixels.
func (d *Device) Height() int { return d.height }

// Border returns the full device area.
func (d *Device) Border() image.Rectangle { return d.frame.Bounds() }

// Scene3DBBox returns the box set with WithSceneBBox, empty by default.
func (d *Device) Scene3DBBox() freestyle.BBox3 { return d.bbox }

// Frame returns the rasterized frame. It is overwritten by the next draw.
func (d *Device) Frame() *image.NRGBA { return d.frame }

// Frames returns the number of Update calls.
func (d *Device) Frames() int { return d.frames }

// Strokes returns the number of strokes rasterized since the frame started.
func (d *Device) Strokes() int { return d.strokes }
