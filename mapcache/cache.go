// Package mapcache stores the named texture maps sampled by style modules.
//
// Each map is a Gaussian pyramid built once, at load time, from a gray level
// image. Lookups are expressed in level 0 coordinates with the origin in the
// lower-left corner, the convention used by strokes on the canvas.
package mapcache

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"github.com/esimov/freestyle/pyramid"
	"github.com/esimov/freestyle/utils"
)

// NoMap is the value returned together with an error by ReadPixel.
const NoMap = pyramid.NoPixel

var (
	// ErrNoMap is returned when no map was loaded under the requested name.
	ErrNoMap = errors.New("no map loaded with this name")
	// ErrLevelOutOfRange is returned when the requested pyramid level does not exist.
	ErrLevelOutOfRange = pyramid.ErrLevelOutOfRange
)

// SizeFunc reports the size maps should be rescaled to, usually the canvas size.
// A non positive width or height keeps the source resolution.
type SizeFunc func() (width, height int)

// Stats counts pyramid allocations. Live is the number of pyramids currently held.
type Stats struct {
	Loads    int
	Releases int
	Live     int
}

// Cache maps unique names to image pyramids.
type Cache struct {
	maps     map[string]*pyramid.GaussianPyramid
	decoder  Decoder
	mapsPath string
	size     SizeFunc
	logger   *log.Logger
	stats    Stats
}

// Option configures a Cache.
type Option func(*Cache)

// WithDecoder replaces the default ImageDecoder.
func WithDecoder(d Decoder) Option {
	return func(c *Cache) {
		if d != nil {
			c.decoder = d
		}
	}
}

// WithMapsPath sets the directory relative map file names are resolved against.
func WithMapsPath(dir string) Option {
	return func(c *Cache) { c.mapsPath = dir }
}

// WithSize makes every loaded map rescale to the reported size.
func WithSize(fn SizeFunc) Option {
	return func(c *Cache) { c.size = fn }
}

// WithLogger sets the logger. By default log.Default() is used.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		maps:    make(map[string]*pyramid.GaussianPyramid),
		decoder: ImageDecoder{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load decodes fileName, builds a pyramid of nbLevels reductions (0 for the
// complete pyramid) filtered with a Gaussian of deviation sigma, and stores it
// under mapName. A pyramid previously stored under the same name is released
// and replaced. When decoding fails the error is returned and the cache is left
// unchanged.
//
// The pyramid holds level 0 plus the reductions, so ReadPixel accepts levels up
// to nbLevels inclusive, fewer when the image runs out of pixels first.
func (c *Cache) Load(fileName, mapName string, nbLevels uint, sigma float64) error {
	path := c.resolve(fileName)

	src, err := c.decoder.Decode(path)
	if err != nil {
		c.logger.Warn("could not load map", "name", mapName, "file", path, "err", err)
		return fmt.Errorf("load map %q: %w", mapName, err)
	}

	level0 := c.rescale(src)
	p := pyramid.NewGaussianPyramid(level0, nbLevels, sigma)

	c.release(mapName)
	c.maps[mapName] = p
	c.stats.Loads++
	c.stats.Live++

	c.logger.Debug("map loaded",
		"name", mapName,
		"file", path,
		"width", p.Width(0),
		"height", p.Height(0),
		"levels", p.NumLevels(),
		"sigma", sigma,
	)
	return nil
}

// resolve prefixes relative local file names with the maps path.
func (c *Cache) resolve(fileName string) string {
	if c.mapsPath == "" || utils.IsValidUrl(fileName) || filepath.IsAbs(fileName) {
		return fileName
	}
	return filepath.Join(c.mapsPath, fileName)
}

// rescale fits the source to the configured size without preserving the ratio.
func (c *Cache) rescale(src *image.Gray) *pyramid.GrayImage {
	if c.size == nil {
		return pyramid.FromGray(src)
	}
	w, h := c.size()
	b := src.Bounds()
	if w <= 0 || h <= 0 || (b.Dx() == w && b.Dy() == h) {
		return pyramid.FromGray(src)
	}
	return pyramid.FromImage(imaging.Resize(src, w, h, imaging.Lanczos))
}

// ReadPixel returns the normalized intensity of mapName at level, where (x, y)
// are level 0 coordinates with a lower-left origin. Coordinates outside the map
// read as 0. An unknown map or level returns NoMap and an error.
func (c *Cache) ReadPixel(mapName string, level, x, y int) (float32, error) {
	p, ok := c.maps[mapName]
	if !ok {
		return NoMap, fmt.Errorf("%w: %q", ErrNoMap, mapName)
	}
	v, err := p.ReadPixel(level, x, y)
	if err != nil {
		return NoMap, fmt.Errorf("map %q: %w", mapName, err)
	}
	return v, nil
}

// Pyramid returns the pyramid stored under name, or nil.
func (c *Cache) Pyramid(name string) *pyramid.GaussianPyramid {
	return c.maps[name]
}

// Remove releases and removes the named map. It reports whether the map existed.
func (c *Cache) Remove(name string) bool {
	return c.release(name)
}

// Names returns the loaded map names in lexical order.
func (c *Cache) Names() []string {
	names := make([]string, 0, len(c.maps))
	for name := range c.maps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded maps.
func (c *Cache) Len() int { return len(c.maps) }

// Release drops every map.
func (c *Cache) Release() {
	for name := range c.maps {
		c.release(name)
	}
}

// Stats returns the allocation counters.
func (c *Cache) Stats() Stats { return c.stats }

func (c *Cache) release(name string) bool {
	p, ok := c.maps[name]
	if !ok {
		return false
	}
	p.Release()
	delete(c.maps, name)
	c.stats.Releases++
	c.stats.Live--

	c.logger.Debug("map released", "name", name)
	return true
}
