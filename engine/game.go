package engine

import (
	"github.com/spaghettifunk/framering/engine/assets"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/spaghettifunk/framering/engine/systems"
)

// Game is the set of hooks the engine calls. The engine fills in the
// system fields before FnInitialize runs.
type Game struct {
	ApplicationConfig *ApplicationConfig
	SystemManager     *systems.SystemManager
	Renderer          *renderer.Renderer
	AssetManager      *assets.AssetManager
	Catalog           *metadata.PipelineCatalog
	State             interface{}
	FnBoot            Boot
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Boot func() error
type Initialize func() error
type Update func(deltaTime float64) error

// Render runs after the frame constants are written and the instances are
// culled, before the world pass. It may record extra passes into the frame.
type Render func(frame *renderer.FrameResource, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
