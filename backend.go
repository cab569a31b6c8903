package freestyle

import (
	"image"

	"github.com/esimov/freestyle/pyramid"
)

// Vec3 is a point in scene space.
type Vec3 struct {
	X, Y, Z float64
}

// BBox3 is an axis aligned box in scene space.
type BBox3 struct {
	Min, Max Vec3
}

// Empty reports whether the box encloses no volume.
func (b BBox3) Empty() bool {
	return b.Min.X >= b.Max.X || b.Min.Y >= b.Max.Y || b.Min.Z >= b.Max.Z
}

// Backend is the device a canvas draws on. Readback rectangles are expressed
// with a lower-left origin; destination buffers are w x h images filled top row
// first.
type Backend interface {
	Init() error
	RenderStroke(s *Stroke) error
	ReadColorPixels(x, y, w, h int, dst *image.RGBA) error
	ReadDepthPixels(x, y, w, h int, dst *image.Gray) error
	Update() error
	Width() int
	Height() int
	Border() image.Rectangle
	Scene3DBBox() BBox3
}

// PreDrawer is implemented by backends needing per frame setup.
type PreDrawer interface {
	PreDraw()
}

// PostDrawer is implemented by backends needing per frame teardown.
type PostDrawer interface {
	PostDraw()
}

// StrokeRenderer rasterizes strokes. RenderStrokeBasic is the simplified path
// used when the canvas is in basic mode.
type StrokeRenderer interface {
	RenderStroke(s *Stroke) error
	RenderStrokeBasic(s *Stroke) error
}

// LayerRenderer is implemented by renderers compositing each layer separately.
// BeginLayer and EndLayer bracket the strokes of every rendered layer.
type LayerRenderer interface {
	BeginLayer(l *StrokeLayer)
	EndLayer(l *StrokeLayer) error
}

// backendRenderer sends both rendering paths to the backend.
type backendRenderer struct {
	b Backend
}

func (r backendRenderer) RenderStroke(s *Stroke) error { return r.b.RenderStroke(s) }

func (r backendRenderer) RenderStrokeBasic(s *Stroke) error { return r.b.RenderStroke(s) }

// NBSteerableViewMap is the number of channels of a steerable view map.
const NBSteerableViewMap = pyramid.NumChannels

// SteerableViewMap exposes the orientation filtered density maps of the scene.
type SteerableViewMap interface {
	ReadSteerablePixel(channel, level, x, y int) (float32, error)
	NumLevels() int
}

var _ SteerableViewMap = (*pyramid.SteerableViewMap)(nil)

// FEdgeID identifies a feature edge of the view map.
type FEdgeID uint64

// NoFEdge is the selection of a canvas with no selected edge.
const NoFEdge FEdgeID = 0
