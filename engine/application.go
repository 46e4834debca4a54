package engine

import (
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/views"
)

type ApplicationConfig struct {
	// The application name, used in logs.
	Name string
	// Root of the watched asset tree. Empty disables the asset manager.
	AssetsDir string
	// Stop after this many frames. 0 runs until the context is done or a
	// quit event arrives.
	MaxFrames uint64
	// Sizes of the per frame upload buffers.
	Counts renderer.FrameResourceCounts
}

// DefaultFrameResourceCounts sizes the frame resources for cfg: one main
// pass plus one per cube face, each with room for the whole instance grid.
func DefaultFrameResourceCounts(cfg *core.Config) renderer.FrameResourceCounts {
	grid := cfg.Instancing.Grid
	return renderer.FrameResourceCounts{
		Passes:    1 + views.CubeFaceCount,
		Objects:   16,
		Materials: 16,
		Instances: grid * grid * grid,
	}
}
