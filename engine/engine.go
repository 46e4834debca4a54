package engine

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/framering/engine/assets"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/spaghettifunk/framering/engine/renderer/views"
	"github.com/spaghettifunk/framering/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// A frame whose fence wait timed out is attempted this many more times
// before the loop gives up.
const maxFrameRetries = 3

// Frame statistics are logged every statsInterval frames.
const statsInterval = 300

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	isRunning    atomic.Bool

	events        *core.EventSystem
	renderer      *renderer.Renderer
	catalog       *metadata.PipelineCatalog
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	worldView     *views.WorldView
	blur          *views.BlurFilter

	clock    *core.Clock
	stats    *core.FrameStats
	lastCull systems.CullStats

	// guards the changes handed over by event listeners, which may run on
	// other goroutines
	mu            sync.Mutex
	pendingConfig *core.Config
	pendingResize *core.ResizeEvent
}

func New(g *Game, cfg *core.Config, device renderer.Device) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = &ApplicationConfig{}
	}
	app := g.ApplicationConfig
	if app.Counts == (renderer.FrameResourceCounts{}) {
		app.Counts = DefaultFrameResourceCounts(cfg)
	}

	r, err := renderer.NewRenderer(device, renderer.NewRendererConfig(cfg, app.Counts))
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	sm, err := systems.NewSystemManager(cfg, r, app.Counts)
	if err != nil {
		_ = r.Shutdown(context.Background())
		return nil, err
	}
	catalog := metadata.NewPipelineCatalog()
	blur, err := views.NewBlurFilter(device, catalog, r.Width(), r.Height(), renderer.BackBufferFormat, cfg.Blur.Sigma)
	if err != nil {
		_ = sm.Shutdown()
		_ = r.Shutdown(context.Background())
		return nil, err
	}

	var am *assets.AssetManager
	if app.AssetsDir != "" {
		if am, err = assets.NewAssetManager(); err != nil {
			blur.Destroy()
			_ = sm.Shutdown()
			_ = r.Shutdown(context.Background())
			return nil, err
		}
	}

	e := &Engine{
		currentStage:  EngineStageUninitialized,
		gameInstance:  g,
		config:        cfg,
		events:        core.NewEventSystem(),
		renderer:      r,
		catalog:       catalog,
		assetManager:  am,
		systemManager: sm,
		worldView:     views.NewWorldView(catalog),
		blur:          blur,
		clock:         core.NewClock(),
		stats:         core.NewFrameStats(),
	}
	e.isRunning.Store(true)

	g.SystemManager = sm
	g.Renderer = r
	g.AssetManager = am
	g.Catalog = catalog
	return e, nil
}

func (e *Engine) Initialize(ctx context.Context) error {
	e.currentStage = EngineStageBooting
	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			core.LogError("failed to boot game: %s", err.Error())
			return err
		}
	}
	e.currentStage = EngineStageBootComplete
	e.currentStage = EngineStageInitializing

	// register some events
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_CONFIG_RELOADED, e, e.onConfigReloaded)
	e.events.Register(core.EVENT_CODE_DEVICE_LOST, e, e.onDeviceLost)

	if e.assetManager != nil {
		e.assetManager.OnReload(metadata.ResourceTypeConfig, e.onConfigAsset)
		if err := e.assetManager.Initialize(e.gameInstance.ApplicationConfig.AssetsDir); err != nil {
			core.LogError("failed to initialize the asset manager: %s", err.Error())
			return err
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.renderer.Width(), e.renderer.Height()); err != nil {
			return err
		}
	}

	if e.config.Compute.Enabled {
		if err := e.runComputeDemo(ctx); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// runComputeDemo computes the lengths of the sample vectors on the device
// and writes them to the configured results file.
func (e *Engine) runComputeDemo(ctx context.Context) error {
	data := views.GenerateVectors(e.config.Compute.Seed, views.NumVecMagElements)
	demo, err := views.NewVecMagDemo(e.renderer, e.catalog, data)
	if err != nil {
		return err
	}
	defer demo.Destroy()

	lengths, err := demo.Run(ctx)
	if err != nil {
		core.LogError("vector length dispatch failed: %s", err.Error())
		return err
	}
	f, err := os.Create(e.config.Compute.ResultsPath)
	if err != nil {
		return err
	}
	if err := views.WriteResults(f, lengths); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	core.LogInfo("wrote %d vector lengths to %s", len(lengths), e.config.Compute.ResultsPath)
	return nil
}

// Run drives the frame loop until the context is done, a quit event arrives,
// the frame limit is reached or a frame fails.
func (e *Engine) Run(ctx context.Context) error {
	e.currentStage = EngineStageRunning
	e.clock.Reset()
	maxFrames := e.gameInstance.ApplicationConfig.MaxFrames

	for e.isRunning.Load() {
		if ctx.Err() != nil {
			break
		}
		if maxFrames > 0 && e.stats.TotalFrames() >= maxFrames {
			break
		}
		if err := e.applyPending(ctx); err != nil {
			return err
		}

		e.clock.Tick()
		delta := e.clock.DeltaTime()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err.Error())
				return err
			}
		}

		if err := e.drawFrame(ctx, delta); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			if errors.Is(err, core.ErrDeviceLost) {
				e.events.Fire(core.EVENT_CODE_DEVICE_LOST, e, core.EventContext{Data: err})
			}
			core.LogError("frame %d failed (%s): %s", e.renderer.FrameNumber(), core.Classify(err), err.Error())
			return err
		}

		e.stats.Update(delta)
		if e.stats.TotalFrames()%statsInterval == 0 {
			core.LogDebug("%s, %s", e.stats, e.lastCull)
		}
	}
	return nil
}

// beginFrame acquires the next frame resource, retrying timed out waits.
func (e *Engine) beginFrame(ctx context.Context) (*renderer.FrameResource, error) {
	var err error
	for attempt := 0; attempt <= maxFrameRetries; attempt++ {
		var frame *renderer.FrameResource
		frame, err = e.renderer.BeginFrame(ctx)
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, core.ErrWaitTimeout) {
			return nil, err
		}
		// the caller's deadline, not a stuck fence
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		core.LogWarn("frame %d: %s (attempt %d of %d)", e.renderer.FrameNumber(), err.Error(), attempt+1, maxFrameRetries+1)
	}
	return nil, err
}

func (e *Engine) drawFrame(ctx context.Context, delta float64) error {
	frame, err := e.beginFrame(ctx)
	if err != nil {
		return err
	}

	cam := e.systemManager.CameraSystem().GetDefault()
	if _, err := e.systemManager.MaterialSystem().Update(frame); err != nil {
		return err
	}
	if _, err := e.systemManager.RenderItemSystem().UpdateObjectConstants(frame); err != nil {
		return err
	}
	pass := views.NewPassConstants(cam, e.renderer.Width(), e.renderer.Height(), float32(e.clock.TotalTime()), float32(delta))
	if err := frame.PassCB.CopyData(0, pass); err != nil {
		return err
	}

	items := e.systemManager.RenderItemSystem().Items()
	e.lastCull, err = e.systemManager.VisibilitySystem().Filter(cam.GetView(), cam.Frustum(), items, frame)
	if err != nil {
		return err
	}

	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(frame, delta); err != nil {
			core.LogError("game render failed: %s", err.Error())
			return err
		}
	}

	if e.config.Blur.Enabled {
		if err := e.worldView.Draw(e.renderer, frame, items); err != nil {
			return err
		}
		if err := e.blurBackBuffer(); err != nil {
			return err
		}
	} else if err := e.worldView.Render(e.renderer, frame, items); err != nil {
		return err
	}
	return e.renderer.EndFrame(ctx)
}

// blurBackBuffer blurs the drawn back buffer in place and leaves it in PRESENT.
func (e *Engine) blurBackBuffer() error {
	rec := e.renderer.Recorder()
	back, err := e.renderer.CurrentBackBuffer()
	if err != nil {
		return err
	}
	if err := e.blur.Execute(rec, back, e.config.Blur.Count); err != nil {
		return err
	}
	if err := rec.Transition(back, metadata.ResourceStateCopyDest); err != nil {
		return err
	}
	rec.List().CopyResource(back, e.blur.Output())
	if err := e.blur.Finish(rec); err != nil {
		return err
	}
	return rec.Transition(back, metadata.ResourceStatePresent)
}

// applyPending applies reloaded settings and resizes between frames.
func (e *Engine) applyPending(ctx context.Context) error {
	e.mu.Lock()
	cfg, resize := e.pendingConfig, e.pendingResize
	e.pendingConfig, e.pendingResize = nil, nil
	e.mu.Unlock()

	if cfg != nil {
		e.applyConfig(cfg)
	}
	if resize != nil {
		return e.resize(ctx, resize.Width, resize.Height)
	}
	return nil
}

// applyConfig takes over the settings that can change while running. The
// renderer section needs a restart.
func (e *Engine) applyConfig(cfg *core.Config) {
	if cfg.Renderer != e.config.Renderer {
		core.LogWarn("renderer settings changed, they apply on the next start")
	}
	core.SetLogLevel(cfg.Log.Level)
	e.systemManager.OnConfigReloaded(cfg)

	blur := cfg.Blur
	if err := e.blur.SetSigma(blur.Sigma); err != nil {
		core.LogWarn("keeping blur sigma %g: %s", e.config.Blur.Sigma, err.Error())
		blur.Sigma = e.config.Blur.Sigma
	}

	next := *e.config
	next.Log = cfg.Log
	next.Culling.Enabled = cfg.Culling.Enabled
	next.Blur = blur
	e.config = &next
	core.LogInfo("configuration applied: culling %t, blur %t (sigma %g, %d passes)",
		next.Culling.Enabled, next.Blur.Enabled, next.Blur.Sigma, next.Blur.Count)
}

func (e *Engine) resize(ctx context.Context, width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	if err := e.renderer.Resize(ctx, width, height); err != nil {
		return err
	}
	if err := e.blur.OnResize(width, height); err != nil {
		return err
	}
	e.systemManager.CameraSystem().OnResize(width, height)
	if e.gameInstance.FnOnResize != nil {
		return e.gameInstance.FnOnResize(width, height)
	}
	return nil
}

func (e *Engine) Shutdown(ctx context.Context) error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.assetManager != nil {
		errs = append(errs, e.assetManager.Shutdown())
	}
	// nothing below may be released while the GPU still uses it
	if err := e.renderer.Flush(ctx); err != nil {
		core.LogError("flush before shutdown failed: %s", err.Error())
		errs = append(errs, err)
	}
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	e.blur.Destroy()
	errs = append(errs, e.systemManager.Shutdown())
	errs = append(errs, e.renderer.Shutdown(ctx))
	e.events.Shutdown()
	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}

// Stop ends the frame loop after the current frame.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	re, ok := data.Data.(*core.ResizeEvent)
	if !ok {
		return false
	}
	e.mu.Lock()
	e.pendingResize = re
	e.mu.Unlock()
	// Event purposely not handled to allow other listeners to get this.
	return false
}

func (e *Engine) onConfigReloaded(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	cfg, ok := data.Data.(*core.Config)
	if !ok {
		return false
	}
	e.mu.Lock()
	e.pendingConfig = cfg
	e.mu.Unlock()
	return false
}

func (e *Engine) onDeviceLost(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	if err, ok := data.Data.(error); ok {
		core.LogError("device lost: %s", err.Error())
	}
	e.isRunning.Store(false)
	return false
}

// onConfigAsset turns a successful reload of a config file into a
// EVENT_CODE_CONFIG_RELOADED event. A broken file keeps the current settings.
func (e *Engine) onConfigAsset(path string, res *metadata.Resource, err error) {
	if err != nil {
		core.LogWarn("ignoring %s: %s", path, err.Error())
		return
	}
	cfg, ok := res.Data.(*core.Config)
	if !ok {
		core.LogWarn("ignoring %s: unexpected payload %T", path, res.Data)
		return
	}
	e.events.Fire(core.EVENT_CODE_CONFIG_RELOADED, e, core.EventContext{Data: cfg})
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Events() *core.EventSystem {
	return e.events
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) SystemManager() *systems.SystemManager {
	return e.systemManager
}

// Config returns the settings in effect.
func (e *Engine) Config() *core.Config {
	return e.config
}

func (e *Engine) FrameStats() *core.FrameStats {
	return e.stats
}

// LastCullStats reports the visibility pass of the last drawn frame.
func (e *Engine) LastCullStats() systems.CullStats {
	return e.lastCull
}

// GetFramebufferSize returns the width and height (in this order) of the
// render target.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.renderer.Width(), e.renderer.Height()
}
