package freestyle

import (
	"github.com/charmbracelet/log"

	"github.com/esimov/freestyle/mapcache"
)

// Default pyramid parameters used by LoadMapDefault.
const (
	DefaultLevels uint    = 4
	DefaultSigma  float64 = 1.0
)

type config struct {
	logger   *log.Logger
	mapsPath string
	decoder  mapcache.Decoder
	renderer StrokeRenderer
	basic    bool
	record   bool
}

// Option configures a Canvas.
type Option func(*config)

// WithLogger sets the logger used by the canvas and its map cache.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMapsPath sets the directory relative map file names are resolved against.
func WithMapsPath(dir string) Option {
	return func(c *config) { c.mapsPath = dir }
}

// WithDecoder replaces the image decoder of the map cache.
func WithDecoder(d mapcache.Decoder) Option {
	return func(c *config) { c.decoder = d }
}

// WithRenderer sets the renderer Draw composites through. By default strokes
// go to the backend.
func WithRenderer(r StrokeRenderer) Option {
	return func(c *config) { c.renderer = r }
}

// WithBasic makes Draw use the basic rendering path.
func WithBasic(basic bool) Option {
	return func(c *config) { c.basic = basic }
}

// WithRecord sets the record flag read by style modules and backends
// which keep a copy of every drawn frame.
func WithRecord(record bool) Option {
	return func(c *config) { c.record = record }
}
