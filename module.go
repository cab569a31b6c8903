package freestyle

import "fmt"

// StyleModule is a stroke generating program. Execute may sample the canvas
// maps and view map, and returns the layer to composite at its stack position.
// A nil layer with a nil error means the module produced nothing.
type StyleModule interface {
	Name() string
	Execute(c *Canvas) (*StrokeLayer, error)
}

// Dependent is implemented by style modules consuming the output of other
// modules. When one of the named modules re-executes, so does the dependent.
type Dependent interface {
	DependsOn() []string
}

// ExecuteFunc is the body of a style module built with NewStyleModule.
type ExecuteFunc func(c *Canvas) (*StrokeLayer, error)

type funcModule struct {
	name string
	fn   ExecuteFunc
	deps []string
}

// NewStyleModule wraps fn into a style module depending on the deps modules.
func NewStyleModule(name string, fn ExecuteFunc, deps ...string) StyleModule {
	return &funcModule{name: name, fn: fn, deps: deps}
}

func (m *funcModule) Name() string { return m.name }

func (m *funcModule) DependsOn() []string { return m.deps }

func (m *funcModule) Execute(c *Canvas) (*StrokeLayer, error) {
	if m.fn == nil {
		return nil, nil
	}
	return m.fn(c)
}

type moduleEntry struct {
	module   StyleModule
	visible  bool
	modified bool
	causal   bool
}

// ModuleStack is the ordered list of style modules of a canvas together with
// their visible, modified and causal flags. Edits go through the Canvas so the
// layer stack stays aligned with it.
type ModuleStack struct {
	entries []moduleEntry
}

// Len returns the number of style modules.
func (s *ModuleStack) Len() int { return len(s.entries) }

// At returns the style module at position i or nil.
func (s *ModuleStack) At(i int) StyleModule {
	if !s.valid(i) {
		return nil
	}
	return s.entries[i].module
}

// Index returns the first position holding a module named name, or -1.
func (s *ModuleStack) Index(name string) int {
	for i, e := range s.entries {
		if e.module.Name() == name {
			return i
		}
	}
	return -1
}

// Visible reports whether the layer at position i is composited.
func (s *ModuleStack) Visible(i int) bool { return s.valid(i) && s.entries[i].visible }

// Modified reports whether the module at position i must re-execute.
func (s *ModuleStack) Modified(i int) bool { return s.valid(i) && s.entries[i].modified }

// Causal reports whether the module at position i re-executes whenever an
// earlier module does.
func (s *ModuleStack) Causal(i int) bool { return s.valid(i) && s.entries[i].causal }

// CausalStyleModules appends to out, in ascending order, the positions from
// index onwards that must execute on the next draw. A position is selected when
// its module is flagged modified, when it depends on a module selected at an
// earlier position, or when it is flagged causal and an earlier position was
// selected. index may equal Len, which selects nothing.
func (s *ModuleStack) CausalStyleModules(out []int, index int) ([]int, error) {
	if index < 0 || index > len(s.entries) {
		return out, fmt.Errorf("%w: %d (stack holds %d)", ErrIndexOutOfRange, index, len(s.entries))
	}
	return s.causalFrom(out, index), nil
}

// causalFrom is CausalStyleModules for an index known to be in [0, Len].
func (s *ModuleStack) causalFrom(out []int, index int) []int {
	dirty := make(map[string]struct{})
	for i := index; i < len(s.entries); i++ {
		e := s.entries[i]
		if e.modified || (e.causal && len(dirty) > 0) || dependsOn(e.module, dirty) {
			out = append(out, i)
			dirty[e.module.Name()] = struct{}{}
		}
	}
	return out
}

func dependsOn(m StyleModule, dirty map[string]struct{}) bool {
	if len(dirty) == 0 {
		return false
	}
	d, ok := m.(Dependent)
	if !ok {
		return false
	}
	for _, name := range d.DependsOn() {
		if _, ok := dirty[name]; ok {
			return true
		}
	}
	return false
}

func (s *ModuleStack) valid(i int) bool { return i >= 0 && i < len(s.entries) }

func (s *ModuleStack) check(i int) error {
	if !s.valid(i) {
		return fmt.Errorf("%w: %d (stack holds %d)", ErrIndexOutOfRange, i, len(s.entries))
	}
	return nil
}

func newEntry(m StyleModule) moduleEntry {
	return moduleEntry{module: m, visible: true, modified: true}
}

func (s *ModuleStack) insert(i int, m StyleModule) {
	s.entries = append(s.entries, moduleEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = newEntry(m)
}

func (s *ModuleStack) remove(i int) StyleModule {
	m := s.entries[i].module
	copy(s.entries[i:], s.entries[i+1:])
	s.entries[len(s.entries)-1] = moduleEntry{}
	s.entries = s.entries[:len(s.entries)-1]
	return m
}

func (s *ModuleStack) swap(i, j int) {
	s.entries[i], s.entries[j] = s.entries[j], s.entries[i]
}

// replace keeps the visible and causal flags of the position and marks it modified.
func (s *ModuleStack) replace(i int, m StyleModule) StyleModule {
	old := s.entries[i].module
	s.entries[i].module = m
	s.entries[i].modified = true
	return old
}

// markDependents flags modified the positions from index onwards whose module
// depends on one of names.
func (s *ModuleStack) markDependents(index int, names ...string) {
	dirty := make(map[string]struct{}, len(names))
	for _, name := range names {
		dirty[name] = struct{}{}
	}
	for i := index; i < len(s.entries); i++ {
		if dependsOn(s.entries[i].module, dirty) {
			s.entries[i].modified = true
		}
	}
}

func (s *ModuleStack) setModified(v bool) {
	for i := range s.entries {
		s.entries[i].modified = v
	}
}

func (s *ModuleStack) reset() {
	s.entries = nil
}
