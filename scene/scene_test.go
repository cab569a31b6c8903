package scene

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esimov/freestyle"
	"github.com/esimov/freestyle/backend/raster"
	"github.com/esimov/freestyle/style"
)

const tomlScene = `
width = 64
height = 32
background = "#f0f0f0"
maps_path = "maps"

[[maps]]
file = "paper.png"
name = "paper"
levels = 0

[[modules]]
name = "hatch"
map = "paper"
angle = 45
color = "#203040"

[[modules]]
name = "dots"
kind = "stipple"
map = "paper"
blend = "multiply"
depends = ["hatch"]
causal = true
visible = false
`

const yamlScene = `
width: 64
height: 32
background: "#f0f0f0"
maps_path: maps
maps:
  - file: paper.png
    name: paper
    levels: 0
modules:
  - name: hatch
    map: paper
    angle: 45
    color: "#203040"
  - name: dots
    kind: stipple
    map: paper
    blend: multiply
    depends: [hatch]
    causal: true
    visible: false
`

func TestParse_FormatsAgree(t *testing.T) {
	fromTOML, err := Parse([]byte(tomlScene), ".toml")
	require.NoError(t, err)
	fromYAML, err := Parse([]byte(yamlScene), ".YML")
	require.NoError(t, err)

	if diff := cmp.Diff(fromTOML, fromYAML); diff != "" {
		t.Errorf("TOML and YAML scenes differ (-toml +yaml):\n%s", diff)
	}
}

func TestParse_Defaults(t *testing.T) {
	s, err := Parse([]byte(tomlScene), ".toml")
	require.NoError(t, err)

	assert.Equal(t, uint(0), *s.Maps[0].Levels)
	assert.Equal(t, freestyle.DefaultSigma, s.Maps[0].Sigma)

	hatch := s.Modules[0]
	assert.Equal(t, KindHatch, hatch.Kind)
	assert.Equal(t, style.DefaultSpacing, hatch.Spacing)
	assert.Equal(t, style.DefaultThickness, hatch.Thickness)
	assert.Equal(t, style.DefaultThreshold, hatch.Threshold)
	assert.Nil(t, hatch.Visible)

	empty, err := Parse([]byte(`[[maps]]
file = "a.png"
name = "a"
`), ".toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, empty.Width)
	assert.Equal(t, DefaultHeight, empty.Height)
	assert.Equal(t, freestyle.DefaultLevels, *empty.Maps[0].Levels)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, empty.BackgroundColor())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
	}{
		{"unknown toml field", "widht = 3", ".toml"},
		{"unknown yaml field", "widht: 3", ".yaml"},
		{"negative size", "width = -1", ".toml"},
		{"bad background", `background = "white"`, ".toml"},
		{"map without name", "[[maps]]\nfile = \"a.png\"", ".toml"},
		{"module without name", "[[modules]]\nkind = \"hatch\"", ".toml"},
		{"unknown kind", "[[modules]]\nname = \"m\"\nkind = \"spray\"", ".toml"},
		{"unknown map", "[[modules]]\nname = \"m\"\nmap = \"nope\"", ".toml"},
		{"unknown blend", "[[modules]]\nname = \"m\"\nblend = \"dissolve\"", ".toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.ext)
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("{}"), ".json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Parse([]byte("width = -1"), ".toml")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseColor(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 0x20, G: 0x30, B: 0x40, A: 0xff}, ParseColor("#203040"))
	assert.Equal(t, color.NRGBA{R: 0x20, G: 0x30, B: 0x40, A: 0x80}, ParseColor("20304080"))
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0, B: 0xff, A: 0xff}, ParseColor("#f0f"))
	assert.Equal(t, color.NRGBA{A: 0xff}, ParseColor("nope"))
}

func TestLoadAndApply(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "maps"), 0755))

	paper := image.NewGray(image.Rect(0, 0, 16, 8))
	for i := range paper.Pix {
		paper.Pix[i] = 64
	}
	f, err := os.Create(filepath.Join(dir, "maps", "paper.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, paper))
	require.NoError(t, f.Close())

	path := filepath.Join(dir, "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlScene), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "maps"), s.MapsPath)

	quiet := log.New(io.Discard)
	dev := raster.New(s.Width, s.Height, raster.WithBackground(s.BackgroundColor()), raster.WithLogger(quiet))
	c, err := freestyle.NewCanvas(dev, freestyle.WithLogger(quiet))
	require.NoError(t, err)
	require.NoError(t, s.Apply(c))

	require.Equal(t, 2, c.Modules().Len())
	assert.True(t, c.Modules().Visible(0))
	assert.False(t, c.Modules().Visible(1))
	assert.True(t, c.Modules().Causal(1))

	p := c.Maps().Pyramid("paper")
	require.NotNil(t, p)
	assert.Equal(t, 64, p.Width(0))
	assert.Equal(t, 32, p.Height(0))

	hatch, ok := c.Modules().At(0).(*style.Hatch)
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 0x20, G: 0x30, B: 0x40, A: 0xff}, hatch.Color)

	require.NoError(t, c.Draw())
	assert.NotZero(t, c.StrokeCount())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
