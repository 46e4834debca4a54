/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spaghettifunk/framering/engine"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/headless"
	"github.com/spaghettifunk/framering/testbed"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "assets/configs/engine.toml", "path of the engine configuration")
	assetsDir := flag.String("assets", "assets", "directory of the watched assets")
	frames := flag.Uint64("frames", 0, "number of frames to draw, 0 runs until interrupted")
	dynamicCube := flag.Bool("cube", false, "also render the grid into a dynamic cube map every frame")
	flag.Parse()

	// nothing to release yet, so a bad config exits right here
	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("failed to load %s: %s", *configPath, err.Error())
	}
	core.SetLogLevel(cfg.Log.Level)

	device, err := headless.NewDevice(headless.Options{Latency: cfg.GPULatency()})
	if err != nil {
		core.LogError(err.Error())
		return 1
	}
	defer device.Shutdown()

	tb, err := testbed.NewTestGame(cfg, *assetsDir, *frames, *dynamicCube)
	if err != nil {
		core.LogError(err.Error())
		return 1
	}
	e, err := engine.New(tb.Game, cfg, device)
	if err != nil {
		return 1
	}

	// capture sigterm and other system call here
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	code := 0
	if err := e.Initialize(ctx); err != nil {
		core.LogError("initialization failed: %s", err.Error())
		code = 1
	} else if err := e.Run(ctx); err != nil {
		core.LogError("engine stopped (%s): %s", core.Classify(err), err.Error())
		code = 1
	}
	core.LogInfo("%d frames, %s", e.FrameStats().TotalFrames(), e.FrameStats())

	// the signal context is likely done already
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		core.LogError("shutdown failed: %s", err.Error())
		code = 1
	}
	return code
}
