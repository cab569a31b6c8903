package mapcache

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// writeGradient stores a w x h gray png whose value at (x, y) is (x*16 + y) % 256.
func writeGradient(t *testing.T, dir, name string, w, h int) (string, *image.Gray) {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*16 + y) % 256)})
		}
	}
	return writePNG(t, dir, name, img), img
}

func writeUniform(t *testing.T, dir, name string, w, h int, v uint8) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return writePNG(t, dir, name, img)
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))

	return path
}

func TestCache_LoadAndReadLevel0(t *testing.T) {
	dir := t.TempDir()
	path, src := writeGradient(t, dir, "x.png", 32, 16)

	c := New(WithLogger(quietLogger()))
	require.NoError(t, c.Load(path, "heat", 4, 1.0))

	p := c.Pyramid("heat")
	require.NotNil(t, p)
	assert.Equal(t, 5, p.NumLevels())

	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			want := float32(src.GrayAt(x, 15-y).Y) / 255
			got, err := c.ReadPixel("heat", 0, x, y)
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-6, "pixel (%d, %d)", x, y)
		}
	}
}

func TestCache_LevelsStopBeforeEmptySide(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeGradient(t, dir, "x.png", 16, 8)

	c := New(WithLogger(quietLogger()))
	require.NoError(t, c.Load(path, "heat", 4, 1.0))

	// 16x8, 8x4, 4x2, 2x1: a fourth reduction would leave a zero height.
	assert.Equal(t, 4, c.Pyramid("heat").NumLevels())

	_, err := c.ReadPixel("heat", 3, 0, 0)
	assert.NoError(t, err)
	_, err = c.ReadPixel("heat", 4, 0, 0)
	assert.ErrorIs(t, err, ErrLevelOutOfRange)
}

func TestCache_ReadPixelFailures(t *testing.T) {
	dir := t.TempDir()
	path := writeUniform(t, dir, "x.png", 32, 32, 200)

	c := New(WithLogger(quietLogger()))
	require.NoError(t, c.Load(path, "heat", 4, 1.0))

	v, err := c.ReadPixel("heat", 10, 1, 1)
	assert.ErrorIs(t, err, ErrLevelOutOfRange)
	assert.Equal(t, NoMap, v)

	v, err = c.ReadPixel("missing", 0, 1, 1)
	assert.ErrorIs(t, err, ErrNoMap)
	assert.Equal(t, NoMap, v)

	for level := 0; level <= 4; level++ {
		v, err = c.ReadPixel("heat", level, 5, 9)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestCache_ReloadReplacesAndReleases(t *testing.T) {
	dir := t.TempDir()
	dark := writeUniform(t, dir, "dark.png", 8, 8, 0)
	light := writeUniform(t, dir, "light.png", 8, 8, 255)

	c := New(WithLogger(quietLogger()))
	require.NoError(t, c.Load(dark, "heat", 2, 1.0))
	old := c.Pyramid("heat")

	require.NoError(t, c.Load(light, "heat", 2, 1.0))

	assert.True(t, old.Released(), "the replaced pyramid must be released")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, Stats{Loads: 2, Releases: 1, Live: 1}, c.Stats())

	v, err := c.ReadPixel("heat", 0, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, float32(1), v)
}

func TestCache_DecodeFailureKeepsPreviousEntry(t *testing.T) {
	dir := t.TempDir()
	good := writeUniform(t, dir, "good.png", 8, 8, 255)
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image at all"), 0644))

	c := New(WithLogger(quietLogger()))
	require.NoError(t, c.Load(good, "heat", 1, 1.0))

	assert.Error(t, c.Load(bad, "heat", 1, 1.0))
	assert.Error(t, c.Load(filepath.Join(dir, "nope.png"), "other", 1, 1.0))

	assert.Equal(t, []string{"heat"}, c.Names())
	v, err := c.ReadPixel("heat", 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), v)

	_, err = c.ReadPixel("other", 0, 0, 0)
	assert.ErrorIs(t, err, ErrNoMap)
}

func TestCache_MapsPathAndRescale(t *testing.T) {
	dir := t.TempDir()
	writeUniform(t, dir, "paper.png", 8, 8, 128)

	c := New(
		WithLogger(quietLogger()),
		WithMapsPath(dir),
		WithSize(func() (int, int) { return 16, 4 }),
	)
	require.NoError(t, c.Load("paper.png", "paper", 0, 1.0))

	p := c.Pyramid("paper")
	require.NotNil(t, p)
	assert.Equal(t, 16, p.Width(0))
	assert.Equal(t, 4, p.Height(0))

	v, err := c.ReadPixel("paper", 0, 15, 3)
	require.NoError(t, err)
	assert.InDelta(t, 128.0/255, v, 2.0/255)
}

func TestCache_CustomDecoder(t *testing.T) {
	calls := 0
	dec := DecoderFunc(func(path string) (*image.Gray, error) {
		calls++
		if path == "broken" {
			return nil, errors.New("decode failed")
		}
		return image.NewGray(image.Rect(0, 0, 4, 4)), nil
	})

	c := New(WithLogger(quietLogger()), WithDecoder(dec))
	require.NoError(t, c.Load("anything", "a", 1, 1))
	assert.Error(t, c.Load("broken", "b", 1, 1))
	assert.Equal(t, 2, calls)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Equal(t, 0, c.Stats().Live)
}

func TestCache_RemoteMap(t *testing.T) {
	dir := t.TempDir()
	path := writeUniform(t, dir, "remote.png", 4, 4, 255)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	c := New(WithLogger(quietLogger()), WithMapsPath("/ignored/for/urls"))
	require.NoError(t, c.Load(srv.URL+"/remote.png", "remote", 1, 1))

	v, err := c.ReadPixel("remote", 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(1), v)
}

func TestCache_Release(t *testing.T) {
	dir := t.TempDir()
	path := writeUniform(t, dir, "m.png", 4, 4, 10)

	c := New(WithLogger(quietLogger()))
	require.NoError(t, c.Load(path, "a", 1, 1))
	require.NoError(t, c.Load(path, "b", 1, 1))
	c.Release()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, Stats{Loads: 2, Releases: 2, Live: 0}, c.Stats())
}
