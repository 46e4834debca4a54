package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

const (
	BackBufferFormat   = metadata.FormatR32G32B32A32Float
	DepthStencilFormat = metadata.FormatD24UnormS8Uint
)

type RendererConfig struct {
	RingDepth       int
	BackBufferCount int
	Width           uint32
	Height          uint32
	WaitTimeout     time.Duration
	Counts          FrameResourceCounts
}

// NewRendererConfig takes the renderer section of the engine configuration.
func NewRendererConfig(cfg *core.Config, counts FrameResourceCounts) RendererConfig {
	return RendererConfig{
		RingDepth:       cfg.Renderer.RingDepth,
		BackBufferCount: cfg.Renderer.BackBufferCount,
		Width:           uint32(cfg.Renderer.Width),
		Height:          uint32(cfg.Renderer.Height),
		WaitTimeout:     cfg.WaitTimeout(),
		Counts:          counts,
	}
}

// Renderer drives the frame loop: it hands out frame resources from the
// ring, records into them and submits with a fence per frame.
type Renderer struct {
	device    Device
	queue     CommandQueue
	swapChain SwapChain
	clock     *FenceClock
	ring      *FrameRing
	releases  *ReleaseQueue

	list     CommandList
	recorder *CommandRecorder

	immediateAllocator CommandAllocator
	immediateRecorder  *CommandRecorder
	immediateFence     uint64

	depthStencil Resource
	width        uint32
	height       uint32

	current     *FrameResource
	frameNumber uint64
}

func NewRenderer(device Device, config RendererConfig) (*Renderer, error) {
	if config.BackBufferCount < 1 {
		return nil, fmt.Errorf("%w: back buffer count must be >= 1", core.ErrInvalidConfig)
	}
	r := &Renderer{
		device:   device,
		queue:    device.Queue(),
		releases: NewReleaseQueue(),
		width:    config.Width,
		height:   config.Height,
	}

	var err error
	if r.clock, err = NewFenceClock(device, config.WaitTimeout); err != nil {
		return nil, err
	}
	if r.swapChain, err = device.CreateSwapChain(uint32(config.BackBufferCount), config.Width, config.Height); err != nil {
		err = fmt.Errorf("%w: swap chain: %v", core.ErrResourceCreation, err)
		core.LogError(err.Error())
		return nil, err
	}
	if r.ring, err = NewFrameRing(device, r.clock, config.RingDepth, config.Counts); err != nil {
		return nil, err
	}
	if r.list, err = device.CreateCommandList(r.ring.slots[0].Allocator); err != nil {
		r.ring.Destroy()
		return nil, fmt.Errorf("%w: command list: %v", core.ErrResourceCreation, err)
	}
	r.recorder = NewCommandRecorder(r.list)

	if r.immediateAllocator, err = device.CreateCommandAllocator(); err != nil {
		r.ring.Destroy()
		return nil, err
	}
	immediateList, err := device.CreateCommandList(r.immediateAllocator)
	if err != nil {
		r.ring.Destroy()
		return nil, fmt.Errorf("%w: command list: %v", core.ErrResourceCreation, err)
	}
	r.immediateRecorder = NewCommandRecorder(immediateList)

	if err := r.createDepthStencil(); err != nil {
		r.ring.Destroy()
		return nil, err
	}

	core.LogInfo("renderer initialized: %dx%d, %d frame resources, %d back buffers",
		config.Width, config.Height, config.RingDepth, config.BackBufferCount)
	return r, nil
}

func (r *Renderer) createDepthStencil() error {
	desc := metadata.Texture2DDesc("depthStencil", r.width, r.height, 1, DepthStencilFormat, metadata.ResourceFlagAllowDepthStencil)
	ds, err := r.device.CreateCommittedResource(desc, metadata.ResourceStateDepthWrite)
	if err != nil {
		err = fmt.Errorf("%w: depth stencil: %v", core.ErrResourceCreation, err)
		core.LogError(err.Error())
		return err
	}
	r.depthStencil = ds
	return nil
}

// BeginFrame acquires the next frame resource and opens the command list
// on its allocator. The back buffer and depth buffer are tracked.
func (r *Renderer) BeginFrame(ctx context.Context) (*FrameResource, error) {
	if reason := r.device.RemovedReason(); reason != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceLost, reason)
	}
	slot, err := r.ring.AcquireNext(ctx)
	if err != nil {
		return nil, err
	}
	r.releases.Collect(r.clock.Completed())

	if err := slot.Allocator.Reset(); err != nil {
		core.LogError("failed to reset allocator of frame %d: %s", slot.Index, err.Error())
		return nil, err
	}
	if err := r.recorder.Reset(slot.Allocator, metadata.InvalidPipeline); err != nil {
		return nil, err
	}
	back, err := r.CurrentBackBuffer()
	if err != nil {
		return nil, err
	}
	r.recorder.Track(back, metadata.ResourceStatePresent)
	r.recorder.Track(r.depthStencil, metadata.ResourceStateDepthWrite)
	r.current = slot
	return slot, nil
}

// EndFrame closes, submits and presents the frame, then stamps the frame
// resource with a new fence value.
func (r *Renderer) EndFrame(ctx context.Context) error {
	if r.current == nil {
		return fmt.Errorf("%w: EndFrame without BeginFrame", core.ErrSubmission)
	}
	slot := r.current
	r.current = nil

	if err := r.recorder.Close(); err != nil {
		return err
	}
	if err := r.queue.ExecuteCommandLists(r.list); err != nil {
		core.LogError("failed to execute frame %d: %s", r.frameNumber, err.Error())
		return err
	}
	// the list is queued from here on, so the slot is stamped even if the
	// flip fails
	presentErr := r.swapChain.Present()
	if presentErr != nil {
		core.LogError("failed to present frame %d: %s", r.frameNumber, presentErr.Error())
	}
	v, err := r.clock.Signal()
	if err != nil {
		return errors.Join(presentErr, err)
	}
	slot.Fence = v
	r.frameNumber++
	return presentErr
}

// ExecuteImmediate records and submits work outside the frame ring, such as
// resource uploads. It returns the fence value of the submission.
func (r *Renderer) ExecuteImmediate(ctx context.Context, record func(rec *CommandRecorder) error) (uint64, error) {
	if r.immediateFence != 0 {
		if err := r.clock.WaitUntil(ctx, r.immediateFence); err != nil {
			return 0, err
		}
	}
	if err := r.immediateAllocator.Reset(); err != nil {
		return 0, err
	}
	if err := r.immediateRecorder.Reset(r.immediateAllocator, metadata.InvalidPipeline); err != nil {
		return 0, err
	}
	if err := record(r.immediateRecorder); err != nil {
		return 0, err
	}
	if err := r.immediateRecorder.Close(); err != nil {
		return 0, err
	}
	if err := r.queue.ExecuteCommandLists(r.immediateRecorder.List()); err != nil {
		return 0, err
	}
	v, err := r.clock.Signal()
	if err != nil {
		return 0, err
	}
	r.immediateFence = v
	return v, nil
}

// DeferRelease destroys resources once the fence reaches value.
func (r *Renderer) DeferRelease(value uint64, resources ...Resource) {
	r.releases.Defer(value, resources...)
}

// Flush blocks until the GPU is idle and releases everything it no longer uses.
func (r *Renderer) Flush(ctx context.Context) error {
	if err := r.clock.Flush(ctx); err != nil {
		return err
	}
	r.releases.Collect(r.clock.Completed())
	return nil
}

// Resize waits for the GPU, then rebuilds the back buffers and depth buffer.
func (r *Renderer) Resize(ctx context.Context, width, height uint32) error {
	if err := r.clock.Flush(ctx); err != nil {
		return err
	}
	if err := r.swapChain.ResizeBuffers(width, height); err != nil {
		return err
	}
	r.width, r.height = width, height
	if r.depthStencil != nil {
		r.depthStencil.Destroy()
	}
	return r.createDepthStencil()
}

// Shutdown flushes and releases every GPU object the renderer owns.
func (r *Renderer) Shutdown(ctx context.Context) error {
	err := r.clock.Flush(ctx)
	if err != nil {
		core.LogError("flush before shutdown failed: %s", err.Error())
	}
	r.ring.Destroy()
	r.releases.Drain()
	if r.depthStencil != nil {
		r.depthStencil.Destroy()
		r.depthStencil = nil
	}
	r.immediateAllocator.Destroy()
	r.swapChain.Destroy()
	r.clock.Destroy()
	return err
}

func (r *Renderer) CurrentBackBuffer() (Resource, error) {
	return r.swapChain.BackBuffer(r.swapChain.CurrentBackBufferIndex())
}

func (r *Renderer) DepthStencil() Resource {
	return r.depthStencil
}

// Recorder is the recorder of the frame between BeginFrame and EndFrame.
func (r *Renderer) Recorder() *CommandRecorder {
	return r.recorder
}

func (r *Renderer) CurrentFrame() *FrameResource {
	return r.current
}

func (r *Renderer) Device() Device {
	return r.device
}

func (r *Renderer) Clock() *FenceClock {
	return r.clock
}

func (r *Renderer) Ring() *FrameRing {
	return r.ring
}

func (r *Renderer) PendingReleases() int {
	return r.releases.Len()
}

func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *Renderer) Width() uint32 {
	return r.width
}

func (r *Renderer) Height() uint32 {
	return r.height
}

func (r *Renderer) AspectRatio() float32 {
	return float32(r.width) / float32(r.height)
}

func (r *Renderer) Viewport() metadata.Viewport {
	return metadata.NewViewport(r.width, r.height)
}

func (r *Renderer) ScissorRect() metadata.ScissorRect {
	return metadata.NewScissorRect(r.width, r.height)
}
