package freestyle

import "sync/atomic"

var active atomic.Pointer[Canvas]

// Active returns the canvas registered with Activate, or nil.
func Active() *Canvas {
	return active.Load()
}

// Activate registers c as the active canvas and returns the previously active one.
func (c *Canvas) Activate() *Canvas {
	return active.Swap(c)
}

// Deactivate unregisters c. It reports false if c was not the active canvas.
func (c *Canvas) Deactivate() bool {
	return active.CompareAndSwap(c, nil)
}
