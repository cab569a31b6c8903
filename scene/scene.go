// Package scene reads scene description files. A scene names the canvas size,
// the maps to load and the style modules to stack, and is written either in
// TOML or in YAML.
package scene

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gogpu/gg"
	"gopkg.in/yaml.v3"

	"github.com/esimov/freestyle"
	"github.com/esimov/freestyle/imop"
	"github.com/esimov/freestyle/style"
)

// Module kinds.
const (
	KindHatch   = "hatch"
	KindStipple = "stipple"
)

// Defaults filled by Validate.
const (
	DefaultWidth      = 800
	DefaultHeight     = 600
	DefaultBackground = "#ffffff"
	DefaultColor      = "#000000"
)

var (
	// ErrUnsupportedFormat is returned for files which are neither TOML nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported scene format")
	// ErrInvalid is wrapped by every validation error.
	ErrInvalid = errors.New("invalid scene")
)

var hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Scene is the content of a scene file.
type Scene struct {
	Width      int      `toml:"width" yaml:"width"`
	Height     int      `toml:"height" yaml:"height"`
	Background string   `toml:"background" yaml:"background"`
	Basic      bool     `toml:"basic" yaml:"basic"`
	MapsPath   string   `toml:"maps_path" yaml:"maps_path"`
	Maps       []Map    `toml:"maps" yaml:"maps"`
	Modules    []Module `toml:"modules" yaml:"modules"`
}

// Map is a texture map loaded into the canvas map cache.
type Map struct {
	File   string  `toml:"file" yaml:"file"`
	Name   string  `toml:"name" yaml:"name"`
	Levels *uint   `toml:"levels" yaml:"levels"`
	Sigma  float64 `toml:"sigma" yaml:"sigma"`
}

// Module is a style module entry.
type Module struct {
	Name      string   `toml:"name" yaml:"name"`
	Kind      string   `toml:"kind" yaml:"kind"`
	Map       string   `toml:"map" yaml:"map"`
	Level     int      `toml:"level" yaml:"level"`
	Spacing   float64  `toml:"spacing" yaml:"spacing"`
	Angle     float64  `toml:"angle" yaml:"angle"`
	Thickness float64  `toml:"thickness" yaml:"thickness"`
	Threshold float64  `toml:"threshold" yaml:"threshold"`
	Color     string   `toml:"color" yaml:"color"`
	Blend     string   `toml:"blend" yaml:"blend"`
	Depends   []string `toml:"depends" yaml:"depends"`
	Causal    bool     `toml:"causal" yaml:"causal"`
	Visible   *bool    `toml:"visible" yaml:"visible"`
}

// Load reads and validates the scene file at path. The format is picked from
// the extension. A relative maps path is resolved against the file directory.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	s, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !filepath.IsAbs(s.MapsPath) {
		s.MapsPath = filepath.Join(filepath.Dir(path), s.MapsPath)
	}
	return s, nil
}

// Parse decodes and validates a scene written in the format named by ext.
func Parse(data []byte, ext string) (*Scene, error) {
	var s Scene

	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalid, undecoded[0].String())
		}
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scene and fills the unset fields with their defaults.
func (s *Scene) Validate() error {
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrInvalid, s.Width, s.Height)
	}
	if s.Width == 0 {
		s.Width = DefaultWidth
	}
	if s.Height == 0 {
		s.Height = DefaultHeight
	}
	if s.Background == "" {
		s.Background = DefaultBackground
	}
	if !hexColor.MatchString(s.Background) {
		return fmt.Errorf("%w: background color %q", ErrInvalid, s.Background)
	}

	maps := make(map[string]bool, len(s.Maps))
	for i := range s.Maps {
		m := &s.Maps[i]
		if m.File == "" || m.Name == "" {
			return fmt.Errorf("%w: map %d needs a file and a name", ErrInvalid, i)
		}
		if m.Levels == nil {
			levels := freestyle.DefaultLevels
			m.Levels = &levels
		}
		if m.Sigma < 0 {
			return fmt.Errorf("%w: map %q has a negative sigma", ErrInvalid, m.Name)
		}
		if m.Sigma == 0 {
			m.Sigma = freestyle.DefaultSigma
		}
		maps[m.Name] = true
	}

	for i := range s.Modules {
		m := &s.Modules[i]
		if m.Name == "" {
			return fmt.Errorf("%w: module %d has no name", ErrInvalid, i)
		}
		if m.Kind == "" {
			m.Kind = KindHatch
		}
		if m.Kind != KindHatch && m.Kind != KindStipple {
			return fmt.Errorf("%w: module %q has unknown kind %q", ErrInvalid, m.Name, m.Kind)
		}
		if m.Map != "" && !maps[m.Map] {
			return fmt.Errorf("%w: module %q samples unknown map %q", ErrInvalid, m.Name, m.Map)
		}
		if m.Level < 0 {
			return fmt.Errorf("%w: module %q has a negative level", ErrInvalid, m.Name)
		}
		if m.Spacing <= 0 {
			m.Spacing = style.DefaultSpacing
		}
		if m.Thickness <= 0 {
			m.Thickness = style.DefaultThickness
		}
		if m.Threshold <= 0 {
			m.Threshold = style.DefaultThreshold
		}
		if m.Color == "" {
			m.Color = DefaultColor
		}
		if !hexColor.MatchString(m.Color) {
			return fmt.Errorf("%w: module %q color %q", ErrInvalid, m.Name, m.Color)
		}
		if !imop.IsBlendMode(m.Blend) {
			return fmt.Errorf("%w: module %q blend mode %q", ErrInvalid, m.Name, m.Blend)
		}
	}
	return nil
}

// BackgroundColor returns the parsed background color.
func (s *Scene) BackgroundColor() color.NRGBA {
	return ParseColor(s.Background)
}

// StyleModule builds the style module described by m.
func (m Module) StyleModule() freestyle.StyleModule {
	switch m.Kind {
	case KindStipple:
		return &style.Stipple{
			ModuleName: m.Name,
			Map:        m.Map,
			Level:      m.Level,
			Spacing:    m.Spacing,
			Angle:      m.Angle,
			Thickness:  m.Thickness,
			Threshold:  m.Threshold,
			Color:      ParseColor(m.Color),
			Blend:      m.Blend,
			Deps:       m.Depends,
		}
	}
	return &style.Hatch{
		ModuleName:   m.Name,
		Map:          m.Map,
		Level:        m.Level,
		Spacing:      m.Spacing,
		Angle:        m.Angle,
		MaxThickness: m.Thickness,
		Color:        ParseColor(m.Color),
		Blend:        m.Blend,
		Deps:         m.Depends,
	}
}

// Apply loads the scene maps into c and pushes its modules in order.
func (s *Scene) Apply(c *freestyle.Canvas) error {
	c.SetBasic(s.Basic)

	for _, m := range s.Maps {
		file := m.File
		if s.MapsPath != "" && !filepath.IsAbs(file) && !strings.Contains(file, "://") {
			file = filepath.Join(s.MapsPath, file)
		}
		if err := c.LoadMap(file, m.Name, *m.Levels, m.Sigma); err != nil {
			return err
		}
	}

	for _, m := range s.Modules {
		if err := c.PushBackStyleModule(m.StyleModule()); err != nil {
			return err
		}
		i := c.Modules().Len() - 1
		if m.Visible != nil {
			if err := c.SetVisible(i, *m.Visible); err != nil {
				return err
			}
		}
		if err := c.SetCausal(i, m.Causal); err != nil {
			return err
		}
	}
	return nil
}

// ParseColor converts a hex color (#rgb, #rgba, #rrggbb or #rrggbbaa) to NRGBA.
// Malformed colors read as opaque black.
func ParseColor(hex string) color.NRGBA {
	if !hexColor.MatchString(hex) {
		return color.NRGBA{A: 0xff}
	}
	c := gg.Hex(hex)
	return color.NRGBA{
		R: uint8(math.Round(c.R * 255)),
		G: uint8(math.Round(c.G * 255)),
		B: uint8(math.Round(c.B * 255)),
		A: uint8(math.Round(c.A * 255)),
	}
}
