package freestyle

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/charmbracelet/log"

	"github.com/esimov/freestyle/mapcache"
)

// Canvas drives the style modules of a frame and composites their layers.
// A Canvas is not safe for concurrent use.
type Canvas struct {
	backend  Backend
	renderer StrokeRenderer
	logger   *log.Logger

	modules ModuleStack
	layers  LayerStack
	maps    *mapcache.Cache

	svm      SteerableViewMap
	selected FEdgeID

	state   State
	current int

	basic       bool
	record      bool
	strokeCount int
	timestamp   uint64
}

// NewCanvas returns an idle canvas drawing on b. Maps loaded on the canvas are
// rescaled to the backend dimensions.
func NewCanvas(b Backend, opts ...Option) (*Canvas, error) {
	if b == nil {
		return nil, ErrNoBackend
	}
	cfg := config{logger: log.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.Default()
	}

	c := &Canvas{
		backend:  b,
		renderer: cfg.renderer,
		logger:   cfg.logger,
		current:  -1,
		basic:    cfg.basic,
		record:   cfg.record,
	}
	c.maps = mapcache.New(
		mapcache.WithLogger(cfg.logger),
		mapcache.WithMapsPath(cfg.mapsPath),
		mapcache.WithDecoder(cfg.decoder),
		mapcache.WithSize(func() (int, int) { return c.backend.Width(), c.backend.Height() }),
	)
	return c, nil
}

// Init initializes the backend.
func (c *Canvas) Init() error {
	if err := c.backend.Init(); err != nil {
		return fmt.Errorf("init backend: %w", err)
	}
	return nil
}

// Close drops layers, modules and maps and unregisters the canvas if active.
func (c *Canvas) Close() error {
	if c.state != Idle {
		return ErrDrawInProgress
	}
	c.Clear()
	c.maps.Release()
	c.Deactivate()
	return nil
}

// Draw runs a frame: the modules selected by CausalStyleModules execute in
// stack order, each replacing the layer at its position, then every visible
// layer is composited through the canvas renderer. A module failing is logged
// and its layer cleared; the frame continues and the failures are returned
// joined together. Drawing an empty stack does nothing.
func (c *Canvas) Draw() error {
	if c.state != Idle {
		return ErrDrawInProgress
	}
	if c.modules.Len() == 0 {
		return nil
	}
	defer func() {
		c.state = Idle
		c.current = -1
	}()

	start := time.Now()

	c.state = PreDraw
	if p, ok := c.backend.(PreDrawer); ok {
		p.PreDraw()
	}

	c.state = Executing
	causal := c.modules.causalFrom(nil, 0)

	var errs []error
	for _, i := range causal {
		if err := c.execute(i); err != nil {
			errs = append(errs, err)
		}
	}
	c.current = -1

	c.state = Compositing
	var err error
	if c.basic {
		err = c.RenderBasic(c.Renderer())
	} else {
		err = c.Render(c.Renderer())
	}
	if err != nil {
		errs = append(errs, err)
	}

	c.state = PostDraw
	if p, ok := c.backend.(PostDrawer); ok {
		p.PostDraw()
	}

	c.logger.Debug("canvas drawn",
		"modules", c.modules.Len(),
		"executed", len(causal),
		"layers", c.layers.Count(),
		"strokes", c.strokeCount,
		"elapsed", time.Since(start),
	)
	return errors.Join(errs...)
}

func (c *Canvas) execute(i int) error {
	m := c.modules.At(i)
	c.current = i

	start := time.Now()
	layer, err := m.Execute(c)
	if err != nil {
		c.layers.set(i, nil)
		c.logger.Warn("style module failed", "module", m.Name(), "index", i, "err", err)
		return fmt.Errorf("style module %d (%s): %w", i, m.Name(), err)
	}

	strokes := 0
	if layer != nil {
		c.timestamp++
		layer.module = m.Name()
		layer.timestamp = c.timestamp
		strokes = layer.Len()
		c.strokeCount += strokes
	}
	c.layers.set(i, layer)
	c.modules.entries[i].modified = false

	c.logger.Debug("style module executed",
		"module", m.Name(),
		"index", i,
		"strokes", strokes,
		"elapsed", time.Since(start),
	)
	return nil
}

// Render composites the visible layers in stack order through r.
func (c *Canvas) Render(r StrokeRenderer) error {
	return c.composite(r, false)
}

// RenderBasic composites the visible layers in stack order through the basic
// rendering path of r.
func (c *Canvas) RenderBasic(r StrokeRenderer) error {
	return c.composite(r, true)
}

func (c *Canvas) composite(r StrokeRenderer, basic bool) error {
	if r == nil {
		r = c.Renderer()
	}
	lr, bracket := r.(LayerRenderer)

	for i := 0; i < c.layers.Len(); i++ {
		l := c.layers.At(i)
		if l == nil || !c.modules.Visible(i) {
			continue
		}
		if bracket {
			lr.BeginLayer(l)
		}

		var err error
		if basic {
			err = l.RenderBasic(r)
		} else {
			err = l.Render(r)
		}
		if bracket {
			if endErr := lr.EndLayer(l); err == nil {
				err = endErr
			}
		}
		if err != nil {
			return fmt.Errorf("render layer %d (%s): %w", i, l.Module(), err)
		}
	}
	return nil
}

// Erase drops every layer and flags every module modified, so the next Draw
// rebuilds the layers. Visibility and causality are kept.
func (c *Canvas) Erase() {
	if c.state != Idle {
		c.logger.Warn("erase ignored while drawing", "state", c.state)
		return
	}
	c.layers.erase()
	c.modules.setModified(true)
}

// Clear drops every layer and style module and resets the stroke count.
func (c *Canvas) Clear() {
	if c.state != Idle {
		c.logger.Warn("clear ignored while drawing", "state", c.state)
		return
	}
	c.layers.reset()
	c.modules.reset()
	c.strokeCount = 0
}

// IsEmpty reports whether no layer is held.
func (c *Canvas) IsEmpty() bool { return c.layers.Empty() }

// Update refreshes the backend display.
func (c *Canvas) Update() error { return c.backend.Update() }

// structural reports whether the stack may be reshaped.
func (c *Canvas) structural() error {
	if c.state != Idle {
		return fmt.Errorf("%w (%s)", ErrStackBusy, c.state)
	}
	return nil
}

// PushBackStyleModule appends m to the stack.
func (c *Canvas) PushBackStyleModule(m StyleModule) error {
	return c.InsertStyleModule(c.modules.Len(), m)
}

// InsertStyleModule inserts m at position i, 0 <= i <= Len.
func (c *Canvas) InsertStyleModule(i int, m StyleModule) error {
	if m == nil {
		return ErrNilModule
	}
	if err := c.structural(); err != nil {
		return err
	}
	if i < 0 || i > c.modules.Len() {
		return fmt.Errorf("%w: %d (stack holds %d)", ErrIndexOutOfRange, i, c.modules.Len())
	}
	c.modules.insert(i, m)
	c.layers.insert(i)
	return nil
}

// RemoveStyleModule removes the module at position i together with its layer.
// Later modules depending on it are flagged modified. Removing the module being
// executed panics.
func (c *Canvas) RemoveStyleModule(i int) (StyleModule, error) {
	if err := c.modules.check(i); err != nil {
		return nil, err
	}
	c.mustNotBeCurrent(i, "remove")
	if err := c.structural(); err != nil {
		return nil, err
	}
	m := c.modules.remove(i)
	c.layers.remove(i)
	c.modules.markDependents(i, m.Name())
	return m, nil
}

// SwapStyleModules exchanges the modules at positions i and j with their layers.
// Modules from the lower position onwards depending on either one are flagged
// modified.
func (c *Canvas) SwapStyleModules(i, j int) error {
	if err := c.modules.check(i); err != nil {
		return err
	}
	if err := c.modules.check(j); err != nil {
		return err
	}
	if err := c.structural(); err != nil {
		return err
	}
	c.modules.swap(i, j)
	c.layers.swap(i, j)
	c.modules.markDependents(min(i, j), c.modules.At(i).Name(), c.modules.At(j).Name())
	return nil
}

// ReplaceStyleModule puts m at position i, returning the previous module. The
// previous layer is dropped and the position flagged modified. Replacing the
// module being executed panics.
func (c *Canvas) ReplaceStyleModule(i int, m StyleModule) (StyleModule, error) {
	if m == nil {
		return nil, ErrNilModule
	}
	if err := c.modules.check(i); err != nil {
		return nil, err
	}
	c.mustNotBeCurrent(i, "replace")
	if err := c.structural(); err != nil {
		return nil, err
	}
	old := c.modules.replace(i, m)
	c.layers.set(i, nil)
	return old, nil
}

func (c *Canvas) mustNotBeCurrent(i int, op string) {
	if c.state == Executing && i == c.current {
		panic(fmt.Sprintf("freestyle: %s of style module %d while it executes", op, i))
	}
}

// SetVisible shows or hides the layer at position i.
func (c *Canvas) SetVisible(i int, visible bool) error {
	if err := c.modules.check(i); err != nil {
		return err
	}
	c.modules.entries[i].visible = visible
	return nil
}

// SetModified flags the module at position i for execution on the next draw.
func (c *Canvas) SetModified(i int, modified bool) error {
	if err := c.modules.check(i); err != nil {
		return err
	}
	c.modules.entries[i].modified = modified
	return nil
}

// SetCausal makes the module at position i re-execute whenever an earlier
// module does.
func (c *Canvas) SetCausal(i int, causal bool) error {
	if err := c.modules.check(i); err != nil {
		return err
	}
	c.modules.entries[i].causal = causal
	return nil
}

// ResetModified sets the modified flag of every module to mod.
func (c *Canvas) ResetModified(mod bool) {
	c.modules.setModified(mod)
}

// CausalStyleModules is ModuleStack.CausalStyleModules on the canvas stack.
func (c *Canvas) CausalStyleModules(out []int, index int) ([]int, error) {
	return c.modules.CausalStyleModules(out, index)
}

// LoadMap loads fileName into the map cache under mapName, see mapcache.Cache.Load.
// levels counts reductions: the map can be read at levels 0 through levels, or
// up to Maps().Pyramid(mapName).NumLevels()-1 for small maps.
func (c *Canvas) LoadMap(fileName, mapName string, levels uint, sigma float64) error {
	return c.maps.Load(fileName, mapName, levels, sigma)
}

// LoadMapDefault loads a map with DefaultLevels and DefaultSigma.
func (c *Canvas) LoadMapDefault(fileName, mapName string) error {
	return c.maps.Load(fileName, mapName, DefaultLevels, DefaultSigma)
}

// ReadMapPixel samples a loaded map, see mapcache.Cache.ReadPixel.
func (c *Canvas) ReadMapPixel(mapName string, level, x, y int) (float32, error) {
	return c.maps.ReadPixel(mapName, level, x, y)
}

// Maps returns the map cache of the canvas.
func (c *Canvas) Maps() *mapcache.Cache { return c.maps }

// LoadSteerableViewMap sets the view map style modules read orientation
// densities from. The canvas does not own it.
func (c *Canvas) LoadSteerableViewMap(svm SteerableViewMap) { c.svm = svm }

// SteerableViewMap returns the view map set with LoadSteerableViewMap or nil.
func (c *Canvas) SteerableViewMap() SteerableViewMap { return c.svm }

// SetSelectedFEdge records the selected feature edge; NoFEdge clears the selection.
func (c *Canvas) SetSelectedFEdge(id FEdgeID) { c.selected = id }

// SelectedFEdge returns the selected feature edge or NoFEdge.
func (c *Canvas) SelectedFEdge() FEdgeID { return c.selected }

// Renderer returns the renderer used by Draw: the one set with WithRenderer or
// SetRenderer, otherwise the backend itself.
func (c *Canvas) Renderer() StrokeRenderer {
	if c.renderer != nil {
		return c.renderer
	}
	if r, ok := c.backend.(StrokeRenderer); ok {
		return r
	}
	return backendRenderer{c.backend}
}

// SetRenderer replaces the renderer used by Draw; nil restores the backend.
func (c *Canvas) SetRenderer(r StrokeRenderer) { c.renderer = r }

// SetBasic switches Draw between the full and the basic rendering path.
func (c *Canvas) SetBasic(basic bool) { c.basic = basic }

// Basic reports whether Draw uses the basic rendering path.
func (c *Canvas) Basic() bool { return c.basic }

// RecordFlag reports whether drawn frames are to be recorded.
func (c *Canvas) RecordFlag() bool { return c.record }

// SetRecordFlag sets the record flag.
func (c *Canvas) SetRecordFlag(record bool) { c.record = record }

// CurrentStyleModule returns the module being executed, or nil outside execution.
func (c *Canvas) CurrentStyleModule() StyleModule {
	if c.state != Executing || c.current < 0 {
		return nil
	}
	return c.modules.At(c.current)
}

// StrokeCount returns the number of strokes produced since the last Clear.
func (c *Canvas) StrokeCount() int { return c.strokeCount }

// Timestamp increases by one for every layer produced.
func (c *Canvas) Timestamp() uint64 { return c.timestamp }

// State returns the draw cycle state.
func (c *Canvas) State() State { return c.state }

// Layers returns the layer stack.
func (c *Canvas) Layers() *LayerStack { return &c.layers }

// Modules returns the style module stack.
func (c *Canvas) Modules() *ModuleStack { return &c.modules }

// Backend returns the device the canvas draws on.
func (c *Canvas) Backend() Backend { return c.backend }

// Logger returns the canvas logger.
func (c *Canvas) Logger() *log.Logger { return c.logger }

// Width returns the backend width in pixels.
func (c *Canvas) Width() int { return c.backend.Width() }

// Height returns the backend height in pixels.
func (c *Canvas) Height() int { return c.backend.Height() }

// Border returns the drawable area of the backend.
func (c *Canvas) Border() image.Rectangle { return c.backend.Border() }

// Scene3DBBox returns the bounding box of the rendered scene.
func (c *Canvas) Scene3DBBox() BBox3 { return c.backend.Scene3DBBox() }

// ReadColorPixels copies a lower-left addressed rectangle of the frame into dst.
func (c *Canvas) ReadColorPixels(x, y, w, h int, dst *image.RGBA) error {
	return c.backend.ReadColorPixels(x, y, w, h, dst)
}

// ReadDepthPixels copies a lower-left addressed rectangle of the depth buffer into dst.
func (c *Canvas) ReadDepthPixels(x, y, w, h int, dst *image.Gray) error {
	return c.backend.ReadDepthPixels(x, y, w, h, dst)
}
