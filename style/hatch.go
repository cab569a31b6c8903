// Package style holds built-in style modules. They lay strokes over the whole
// canvas and modulate them with a named map: dark map areas get heavier ink.
package style

import (
	"image/color"
	"math"

	"github.com/esimov/freestyle"
	"github.com/esimov/freestyle/utils"
)

// Default parameters applied to zero fields.
const (
	DefaultSpacing   = 8.0
	DefaultThickness = 2.0
	DefaultThreshold = 0.5
)

// Hatch covers the canvas with parallel lines. The thickness of every vertex is
// MaxThickness * (1 - intensity), intensity being read from Map at Level.
// Without a map the lines keep the maximum thickness.
type Hatch struct {
	ModuleName   string
	Map          string
	Level        int
	Spacing      float64
	Angle        float64 // degrees, counter clockwise from the x axis
	MaxThickness float64
	Color        color.NRGBA
	Blend        string
	Deps         []string
}

func (h *Hatch) Name() string { return h.ModuleName }

func (h *Hatch) DependsOn() []string { return h.Deps }

// Execute generates one stroke per visible run of every hatch line.
func (h *Hatch) Execute(c *freestyle.Canvas) (*freestyle.StrokeLayer, error) {
	spacing := orDefault(h.Spacing, DefaultSpacing)
	maxThickness := orDefault(h.MaxThickness, DefaultThickness)
	step := utils.Max(spacing/2, 1)

	w, ht := float64(c.Width()), float64(c.Height())
	theta := h.Angle * math.Pi / 180
	ux, uy := math.Cos(theta), math.Sin(theta)
	nx, ny := -uy, ux
	cx, cy := w/2, ht/2
	radius := math.Hypot(w, ht) / 2

	var strokes []*freestyle.Stroke
	for o := -radius; o <= radius; o += spacing {
		var run []freestyle.Vertex
		for t := -radius; t <= radius; t += step {
			x, y := cx+nx*o+ux*t, cy+ny*o+uy*t
			if x < 0 || y < 0 || x >= w || y >= ht {
				strokes = appendRun(strokes, run)
				run = nil
				continue
			}
			intensity, err := sample(c, h.Map, h.Level, x, y)
			if err != nil {
				return nil, err
			}
			run = append(run, freestyle.Vertex{
				X:         x,
				Y:         y,
				Thickness: maxThickness * float64(1-intensity),
				Color:     inkOrBlack(h.Color),
			})
		}
		strokes = appendRun(strokes, run)
	}
	return freestyle.NewBlendedStrokeLayer(h.Blend, strokes...), nil
}

// appendRun keeps runs long enough to form a segment.
func appendRun(strokes []*freestyle.Stroke, run []freestyle.Vertex) []*freestyle.Stroke {
	if len(run) < 2 {
		return strokes
	}
	return append(strokes, &freestyle.Stroke{ID: len(strokes) + 1, Vertices: run})
}

// sample reads the map intensity under (x, y); no map reads as black.
func sample(c *freestyle.Canvas, name string, level int, x, y float64) (float32, error) {
	if name == "" {
		return 0, nil
	}
	return c.ReadMapPixel(name, level, int(x), int(y))
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// inkOrBlack turns the zero color into opaque black.
func inkOrBlack(c color.NRGBA) color.NRGBA {
	if c == (color.NRGBA{}) {
		return color.NRGBA{A: 0xff}
	}
	return c
}
