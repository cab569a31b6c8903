package style

import (
	"image/color"
	"math"

	"github.com/esimov/freestyle"
)

// Stipple puts a short dash in the middle of every grid cell where the map
// intensity is below Threshold.
type Stipple struct {
	ModuleName string
	Map        string
	Level      int
	Spacing    float64
	Angle      float64 // degrees
	Thickness  float64
	Threshold  float64
	Color      color.NRGBA
	Blend      string
	Deps       []string
}

func (s *Stipple) Name() string { return s.ModuleName }

func (s *Stipple) DependsOn() []string { return s.Deps }

func (s *Stipple) Execute(c *freestyle.Canvas) (*freestyle.StrokeLayer, error) {
	spacing := orDefault(s.Spacing, DefaultSpacing)
	thickness := orDefault(s.Thickness, DefaultThickness)
	threshold := orDefault(s.Threshold, DefaultThreshold)

	theta := s.Angle * math.Pi / 180
	dx, dy := math.Cos(theta)*spacing/4, math.Sin(theta)*spacing/4
	ink := inkOrBlack(s.Color)

	w, h := float64(c.Width()), float64(c.Height())

	var strokes []*freestyle.Stroke
	for y := spacing / 2; y < h; y += spacing {
		for x := spacing / 2; x < w; x += spacing {
			intensity, err := sample(c, s.Map, s.Level, x, y)
			if err != nil {
				return nil, err
			}
			if float64(intensity) >= threshold {
				continue
			}
			strokes = append(strokes, &freestyle.Stroke{
				ID: len(strokes) + 1,
				Vertices: []freestyle.Vertex{
					{X: x - dx, Y: y - dy, Thickness: thickness, Color: ink},
					{X: x + dx, Y: y + dy, Thickness: thickness, Color: ink},
				},
			})
		}
	}
	return freestyle.NewBlendedStrokeLayer(s.Blend, strokes...), nil
}
