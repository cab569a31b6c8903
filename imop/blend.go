// Package imop implements the Porter-Duff composition operations
// used for mixing a graphic element with its backdrop.
// Porter and Duff presented in their paper 12 different composition operation,
// but the image/draw core package implements only the source-over-destination and source.
// This package is aimed to overcome the missing composite operations.
//
// It is used by the raster backend to merge every stroke layer into the frame,
// optionally through one of the separable blend modes below.
package imop

import (
	"fmt"
	"math"

	"github.com/esimov/freestyle/utils"
)

// Separable blend modes.
const (
	Normal     = ""
	Darken     = "darken"
	Lighten    = "lighten"
	Multiply   = "multiply"
	Screen     = "screen"
	Overlay    = "overlay"
	HardLight  = "hard_light"
	SoftLight  = "soft_light"
	ColorDodge = "color_dodge"
	ColorBurn  = "color_burn"
	Difference = "difference"
	Exclusion  = "exclusion"
)

var blendModes = []string{
	Normal, Darken, Lighten, Multiply, Screen, Overlay,
	HardLight, SoftLight, ColorDodge, ColorBurn, Difference, Exclusion,
}

// Blend holds the currently active blend mode.
type Blend struct {
	OpType string
}

// NewBlend initializes a new Blend.
func NewBlend() *Blend {
	return &Blend{}
}

// IsBlendMode reports whether mode names a supported blend mode.
func IsBlendMode(mode string) bool {
	return utils.Contains(blendModes, mode)
}

// Set activate one of the supported blend mode.
func (o *Blend) Set(opType string) error {
	if !IsBlendMode(opType) {
		return fmt.Errorf("unsupported blend mode: %q", opType)
	}
	o.OpType = opType
	return nil
}

// Get returns the currently active blend mode.
func (o *Blend) Get() string {
	return o.OpType
}

// blendChannel mixes the backdrop cb and source cs channel values.
func blendChannel(mode string, cb, cs float64) float64 {
	switch mode {
	case Darken:
		return utils.Min(cb, cs)
	case Lighten:
		return utils.Max(cb, cs)
	case Multiply:
		return cb * cs
	case Screen:
		return cb + cs - cb*cs
	case Overlay:
		return blendChannel(HardLight, cs, cb)
	case HardLight:
		if cs <= 0.5 {
			return cb * 2 * cs
		}
		return blendChannel(Screen, cb, 2*cs-1)
	case SoftLight:
		if cs <= 0.5 {
			return cb - (1-2*cs)*cb*(1-cb)
		}
		d := math.Sqrt(cb)
		if cb <= 0.25 {
			d = ((16*cb-12)*cb + 4) * cb
		}
		return cb + (2*cs-1)*(d-cb)
	case ColorDodge:
		if cb == 0 {
			return 0
		}
		if cs >= 1 {
			return 1
		}
		return utils.Min(1, cb/(1-cs))
	case ColorBurn:
		if cb >= 1 {
			return 1
		}
		if cs <= 0 {
			return 0
		}
		return 1 - utils.Min(1, (1-cb)/cs)
	case Difference:
		return utils.Abs(cb - cs)
	case Exclusion:
		return cb + cs - 2*cb*cs
	}
	return cs
}
