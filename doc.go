/*
Package freestyle is the orchestration core of a stroke based, non photorealistic
renderer. A Canvas owns an ordered stack of style modules, runs the ones whose
input changed, keeps the stroke layer each module produced in stack order and
composites those layers through a renderer, painter style: later layers cover
earlier ones.

The canvas never rasterizes strokes itself. Device specific work (pixel readback,
dimensions, display refresh, stroke rasterization) is delegated to a Backend;
the backend/raster package provides a software implementation. Style modules may
sample named texture maps, stored as Gaussian pyramids by the mapcache package,
while they generate strokes.

A typical frame looks like this:

	package main

	import (
		"log"

		"github.com/esimov/freestyle"
		"github.com/esimov/freestyle/backend/raster"
		"github.com/esimov/freestyle/style"
	)

	func main() {
		dev := raster.New(800, 600)
		c, err := freestyle.NewCanvas(dev)
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close()

		if err := c.LoadMapDefault("paper.png", "paper"); err != nil {
			log.Fatal(err)
		}
		c.PushBackStyleModule(&style.Hatch{ModuleName: "hatch", Map: "paper", Spacing: 6})

		if err := c.Draw(); err != nil {
			log.Fatalf("Error drawing the canvas: %v", err)
		}
	}

Calling Draw again only re-executes the modules flagged modified and the ones
depending on them, see CausalStyleModules.
*/
package freestyle
