package freestyle

import (
	"image/color"

	"github.com/google/uuid"
)

// Vertex is a stroke sample in canvas space, origin in the lower-left corner.
type Vertex struct {
	X, Y      float64
	Thickness float64
	Color     color.NRGBA
}

// Stroke is an ordered polyline of vertices produced by a style module.
type Stroke struct {
	ID       int
	Vertices []Vertex
}

// Len returns the number of vertices.
func (s *Stroke) Len() int { return len(s.Vertices) }

// StrokeLayer is the batch of strokes produced by one style module execution.
// It is not modified once handed to the canvas; a new execution replaces it.
type StrokeLayer struct {
	id        uuid.UUID
	module    string
	timestamp uint64
	blend     string
	strokes   []*Stroke
}

// NewStrokeLayer returns a layer holding the strokes in drawing order.
func NewStrokeLayer(strokes ...*Stroke) *StrokeLayer {
	return &StrokeLayer{
		id:      uuid.New(),
		strokes: strokes,
	}
}

// NewBlendedStrokeLayer returns a layer composited with the named blend mode.
// Back-ends ignoring blend modes draw it like any other layer.
func NewBlendedStrokeLayer(blend string, strokes ...*Stroke) *StrokeLayer {
	l := NewStrokeLayer(strokes...)
	l.blend = blend
	return l
}

// ID identifies the layer.
func (l *StrokeLayer) ID() uuid.UUID { return l.id }

// Module returns the name of the style module which produced the layer.
func (l *StrokeLayer) Module() string { return l.module }

// Timestamp returns the canvas timestamp at which the layer was produced.
func (l *StrokeLayer) Timestamp() uint64 { return l.timestamp }

// Blend returns the blend mode name, empty for plain source-over.
func (l *StrokeLayer) Blend() string { return l.blend }

// Len returns the number of strokes.
func (l *StrokeLayer) Len() int { return len(l.strokes) }

// Strokes returns the strokes in drawing order. The slice must not be modified.
func (l *StrokeLayer) Strokes() []*Stroke { return l.strokes }

// Render submits every stroke, in order, to r.
func (l *StrokeLayer) Render(r StrokeRenderer) error {
	for _, s := range l.strokes {
		if err := r.RenderStroke(s); err != nil {
			return err
		}
	}
	return nil
}

// RenderBasic submits every stroke, in order, to the basic path of r.
func (l *StrokeLayer) RenderBasic(r StrokeRenderer) error {
	for _, s := range l.strokes {
		if err := r.RenderStrokeBasic(s); err != nil {
			return err
		}
	}
	return nil
}

// LayerStack holds one slot per style module position. A slot stays nil until
// the module at that position produced a layer.
type LayerStack struct {
	slots []*StrokeLayer
}

// Len returns the number of slots, equal to the number of style modules.
func (s *LayerStack) Len() int { return len(s.slots) }

// At returns the layer in slot i or nil.
func (s *LayerStack) At(i int) *StrokeLayer {
	if i < 0 || i >= len(s.slots) {
		return nil
	}
	return s.slots[i]
}

// Count returns the number of slots holding a layer.
func (s *LayerStack) Count() int {
	n := 0
	for _, l := range s.slots {
		if l != nil {
			n++
		}
	}
	return n
}

// Empty reports whether no slot holds a layer.
func (s *LayerStack) Empty() bool { return s.Count() == 0 }

// Strokes returns the total number of strokes over all layers.
func (s *LayerStack) Strokes() int {
	n := 0
	for _, l := range s.slots {
		if l != nil {
			n += l.Len()
		}
	}
	return n
}

func (s *LayerStack) insert(i int) {
	s.slots = append(s.slots, nil)
	copy(s.slots[i+1:], s.slots[i:])
	s.slots[i] = nil
}

func (s *LayerStack) remove(i int) {
	copy(s.slots[i:], s.slots[i+1:])
	s.slots[len(s.slots)-1] = nil
	s.slots = s.slots[:len(s.slots)-1]
}

func (s *LayerStack) swap(i, j int) {
	s.slots[i], s.slots[j] = s.slots[j], s.slots[i]
}

func (s *LayerStack) set(i int, l *StrokeLayer) {
	s.slots[i] = l
}

// erase empties every slot, keeping the alignment with the module stack.
func (s *LayerStack) erase() {
	for i := range s.slots {
		s.slots[i] = nil
	}
}

func (s *LayerStack) reset() {
	s.slots = nil
}
