package renderer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/headless"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stallPipeline metadata.PipelineHandle = 99

var counts = renderer.FrameResourceCounts{Passes: 1, Objects: 4, Materials: 2, Instances: 8}

// newStalledRenderer returns a renderer whose queue blocks on every dispatch
// of stallPipeline until gate is closed.
func newStalledRenderer(t *testing.T, depth int, timeout time.Duration) (*renderer.Renderer, *headless.Device, chan struct{}) {
	t.Helper()
	dev, err := headless.NewDevice(headless.Options{})
	require.NoError(t, err)
	gate := make(chan struct{})
	dev.RegisterKernel(stallPipeline, func(ctx *renderer.KernelContext) error {
		<-gate
		return nil
	})
	r, err := renderer.NewRenderer(dev, renderer.RendererConfig{
		RingDepth:       depth,
		BackBufferCount: 2,
		Width:           8,
		Height:          8,
		WaitTimeout:     timeout,
		Counts:          counts,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		openGate(gate)
		_ = r.Shutdown(context.Background())
		_ = dev.Shutdown()
	})
	return r, dev, gate
}

func openGate(gate chan struct{}) {
	select {
	case <-gate:
	default:
		close(gate)
	}
}

// recordFrame clears the back buffer and stalls the queue on a dispatch,
// leaving every tracked resource at its boundary.
func recordFrame(t *testing.T, r *renderer.Renderer) {
	t.Helper()
	rec := r.Recorder()
	back, err := r.CurrentBackBuffer()
	require.NoError(t, err)
	require.NoError(t, rec.Transition(back, metadata.ResourceStateRenderTarget))
	rec.List().ClearRenderTargetView(back, 0, math.NewVec4(0, 0, 0, 1))
	rec.List().SetPipelineState(stallPipeline)
	rec.List().Dispatch(1, 1, 1)
	require.NoError(t, rec.Transition(back, metadata.ResourceStatePresent))
}

func TestRingFirstFramesNeverBlock(t *testing.T) {
	const depth = 3
	r, _, gate := newStalledRenderer(t, depth, 50*time.Millisecond)
	ctx := context.Background()

	// the queue is stalled: none of these frames completes
	for i := 0; i < depth; i++ {
		slot, err := r.BeginFrame(ctx)
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, i, slot.Index)
		assert.Zero(t, slot.Fence)
		recordFrame(t, r)
		require.NoError(t, r.EndFrame(ctx))
	}
	assert.Equal(t, uint64(depth), r.Clock().Current())
	assert.Zero(t, r.Clock().Completed())

	// slot 0 is still owned by the GPU
	_, err := r.BeginFrame(ctx)
	require.ErrorIs(t, err, core.ErrWaitTimeout)
	assert.True(t, core.IsRecoverable(err))
	assert.Equal(t, depth-1, r.Ring().CurrentIndex())

	openGate(gate)
	slot, err := r.BeginFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.Index)
	assert.True(t, r.Clock().Reached(slot.Fence))
}

func TestRingNeverReturnsBusySlot(t *testing.T) {
	dev, err := headless.NewDevice(headless.Options{Latency: time.Millisecond})
	require.NoError(t, err)
	defer dev.Shutdown()

	for _, depth := range []int{1, 2, 3, 5} {
		r, err := renderer.NewRenderer(dev, renderer.RendererConfig{
			RingDepth: depth, BackBufferCount: 2, Width: 4, Height: 4,
			WaitTimeout: time.Second, Counts: counts,
		})
		require.NoError(t, err)
		ctx := context.Background()
		for frame := 0; frame < 4*depth; frame++ {
			slot, err := r.BeginFrame(ctx)
			require.NoError(t, err)
			// the previous submission from this slot is complete
			assert.True(t, r.Clock().Reached(slot.Fence))
			// at most depth-1 frames are in flight behind it
			assert.LessOrEqual(t, r.Clock().Current()-r.Clock().Completed(), uint64(depth-1))

			back, err := r.CurrentBackBuffer()
			require.NoError(t, err)
			rec := r.Recorder()
			require.NoError(t, rec.Transition(back, metadata.ResourceStateRenderTarget))
			require.NoError(t, rec.Transition(back, metadata.ResourceStatePresent))
			require.NoError(t, r.EndFrame(ctx))
		}
		require.NoError(t, r.Shutdown(ctx))
	}
	assert.Nil(t, dev.RemovedReason())
}

func TestRingSlotBounds(t *testing.T) {
	r, _, _ := newStalledRenderer(t, 2, time.Second)
	_, err := r.Ring().Slot(1)
	assert.NoError(t, err)
	_, err = r.Ring().Slot(2)
	assert.ErrorIs(t, err, core.ErrOutOfRange)
	_, err = r.Ring().Slot(-1)
	assert.ErrorIs(t, err, core.ErrOutOfRange)
}

func TestNewFrameRingRejectsZeroDepth(t *testing.T) {
	dev, err := headless.NewDevice(headless.Options{})
	require.NoError(t, err)
	defer dev.Shutdown()
	clock, err := renderer.NewFenceClock(dev, time.Second)
	require.NoError(t, err)
	_, err = renderer.NewFrameRing(dev, clock, 0, counts)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestFenceWaitDeviceLost(t *testing.T) {
	r, dev, _ := newStalledRenderer(t, 3, 0)
	ctx := context.Background()

	_, err := r.BeginFrame(ctx)
	require.NoError(t, err)
	recordFrame(t, r)
	require.NoError(t, r.EndFrame(ctx))

	errc := make(chan error, 1)
	go func() { errc <- r.Clock().WaitUntil(ctx, r.Clock().Current()) }()

	dev.Remove(errors.New("hung"))
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, core.ErrDeviceLost)
		assert.Contains(t, err.Error(), "hung")
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return after device removal")
	}

	_, err = r.BeginFrame(ctx)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	_, err = r.Clock().Signal()
	assert.ErrorIs(t, err, core.ErrDeviceLost)
}

func TestFenceWaitTimeoutAndCancel(t *testing.T) {
	r, _, gate := newStalledRenderer(t, 3, 30*time.Millisecond)
	ctx := context.Background()

	_, err := r.BeginFrame(ctx)
	require.NoError(t, err)
	recordFrame(t, r)
	require.NoError(t, r.EndFrame(ctx))
	v := r.Clock().Current()

	err = r.Clock().WaitUntil(ctx, v)
	assert.ErrorIs(t, err, core.ErrWaitTimeout)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err = r.Clock().WaitUntil(cctx, v)
	assert.ErrorIs(t, err, context.Canceled)

	openGate(gate)
	assert.NoError(t, r.Clock().WaitUntil(ctx, v))
	assert.NoError(t, r.Flush(ctx))
	assert.Equal(t, r.Clock().Current(), r.Clock().Completed())
}

func TestRecorderPairing(t *testing.T) {
	r, dev, gate := newStalledRenderer(t, 2, time.Second)
	openGate(gate)
	ctx := context.Background()

	_, err := r.BeginFrame(ctx)
	require.NoError(t, err)
	back, err := r.CurrentBackBuffer()
	require.NoError(t, err)

	rec := r.Recorder()
	require.NoError(t, rec.Transition(back, metadata.ResourceStateRenderTarget))
	// no-op transitions record nothing
	require.NoError(t, rec.Transition(back, metadata.ResourceStateRenderTarget))
	require.NoError(t, rec.Transition(back, metadata.ResourceStatePresent))
	assert.Equal(t, []metadata.ResourceState{
		metadata.ResourceStatePresent,
		metadata.ResourceStateRenderTarget,
		metadata.ResourceStatePresent,
	}, rec.History(back))
	require.NoError(t, r.EndFrame(ctx))
	require.NoError(t, r.Flush(ctx))
	assert.Equal(t, metadata.ResourceStatePresent, dev.ResourceState(back))

	// leave the back buffer in RENDER_TARGET
	_, err = r.BeginFrame(ctx)
	require.NoError(t, err)
	back, err = r.CurrentBackBuffer()
	require.NoError(t, err)
	require.NoError(t, r.Recorder().Transition(back, metadata.ResourceStateRenderTarget))
	err = r.EndFrame(ctx)
	assert.ErrorIs(t, err, core.ErrUnpairedTransition)
	assert.Equal(t, core.ErrorClassFatal, core.Classify(err))
}

func TestRecorderUntrackedResource(t *testing.T) {
	r, dev, gate := newStalledRenderer(t, 2, time.Second)
	openGate(gate)
	ctx := context.Background()

	buf, err := dev.CreateCommittedResource(metadata.BufferDesc("loose", metadata.HeapTypeDefault, 64), metadata.ResourceStateCommon)
	require.NoError(t, err)

	_, err = r.BeginFrame(ctx)
	require.NoError(t, err)
	err = r.Recorder().Transition(buf, metadata.ResourceStateCopyDest)
	assert.ErrorIs(t, err, core.ErrUntrackedResource)
	assert.ErrorIs(t, r.EndFrame(ctx), core.ErrUntrackedResource)
}

func TestDeviceRemovedOnMismatchedBarrier(t *testing.T) {
	r, dev, gate := newStalledRenderer(t, 2, time.Second)
	openGate(gate)
	ctx := context.Background()

	buf, err := dev.CreateCommittedResource(metadata.BufferDesc("buf", metadata.HeapTypeDefault, 64), metadata.ResourceStateCommon)
	require.NoError(t, err)

	_, err = r.ExecuteImmediate(ctx, func(rec *renderer.CommandRecorder) error {
		// bypass tracking and claim the wrong before state
		rec.List().ResourceBarrier(renderer.Barrier{
			Resource: buf,
			Before:   metadata.ResourceStateCopyDest,
			After:    metadata.ResourceStateGenericRead,
		})
		return nil
	})
	require.NoError(t, err)

	err = r.Flush(ctx)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.ErrorIs(t, dev.RemovedReason(), core.ErrInvalidTransition)
}

func TestExecuteImmediateCopiesAndDefersRelease(t *testing.T) {
	r, dev, gate := newStalledRenderer(t, 2, time.Second)
	openGate(gate)
	ctx := context.Background()

	payload := []byte("frame resources")
	upload, err := dev.CreateCommittedResource(metadata.BufferDesc("upload", metadata.HeapTypeUpload, uint64(len(payload))), metadata.ResourceStateGenericRead)
	require.NoError(t, err)
	mem, err := upload.Map()
	require.NoError(t, err)
	copy(mem, payload)

	gpu, err := dev.CreateCommittedResource(metadata.BufferDesc("gpu", metadata.HeapTypeDefault, uint64(len(payload))), metadata.ResourceStateCommon)
	require.NoError(t, err)
	readback, err := dev.CreateCommittedResource(metadata.BufferDesc("readback", metadata.HeapTypeReadback, uint64(len(payload))), metadata.ResourceStateCopyDest)
	require.NoError(t, err)

	v, err := r.ExecuteImmediate(ctx, func(rec *renderer.CommandRecorder) error {
		rec.Track(gpu, metadata.ResourceStateCommon)
		if err := rec.Transition(gpu, metadata.ResourceStateCopyDest); err != nil {
			return err
		}
		rec.List().CopyResource(gpu, upload)
		if err := rec.Transition(gpu, metadata.ResourceStateCopySource); err != nil {
			return err
		}
		rec.List().CopyResource(readback, gpu)
		return rec.Transition(gpu, metadata.ResourceStateCommon)
	})
	require.NoError(t, err)
	r.DeferRelease(v, upload)
	assert.Equal(t, 1, r.PendingReleases())

	require.NoError(t, r.Clock().WaitUntil(ctx, v))
	out, err := readback.Map()
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	require.NoError(t, r.Flush(ctx))
	assert.Zero(t, r.PendingReleases())
	assert.True(t, upload.(*headless.Resource).Destroyed())
}

func TestUploadBufferAlignment(t *testing.T) {
	dev, err := headless.NewDevice(headless.Options{})
	require.NoError(t, err)
	defer dev.Shutdown()

	cb, err := renderer.NewUploadBuffer[metadata.ObjectConstants](dev, "cb", 3, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), cb.ElementSize())
	assert.Equal(t, uint64(512), cb.Offset(2))
	assert.Equal(t, uint64(768), cb.Resource().Desc().ByteSize())

	sb, err := renderer.NewUploadBuffer[metadata.InstanceData](dev, "sb", 3, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(metadata.InstanceDataSize), sb.ElementSize())

	require.NoError(t, sb.CopyData(2, metadata.InstanceData{MaterialIndex: 5}))
	assert.Equal(t, uint32(5), metadata.UnmarshalInstanceData(sb.Element(2)).MaterialIndex)
	assert.ErrorIs(t, sb.CopyData(3, metadata.InstanceData{}), core.ErrOutOfRange)

	before := dev.LiveResources()
	cb.Destroy()
	sb.Destroy()
	assert.Equal(t, before-2, dev.LiveResources())
}

func TestShutdownReleasesEverything(t *testing.T) {
	dev, err := headless.NewDevice(headless.Options{})
	require.NoError(t, err)
	defer dev.Shutdown()

	r, err := renderer.NewRenderer(dev, renderer.RendererConfig{
		RingDepth: 3, BackBufferCount: 2, Width: 4, Height: 4, WaitTimeout: time.Second, Counts: counts,
	})
	require.NoError(t, err)
	require.NoError(t, r.Shutdown(context.Background()))
	assert.Zero(t, dev.LiveResources())
}

var errFlipFailed = errors.New("flip failed")

// presentFailDevice hands out swap chains whose Present fails while fail is set.
type presentFailDevice struct {
	*headless.Device
	fail bool
}

func (d *presentFailDevice) CreateSwapChain(bufferCount, width, height uint32) (renderer.SwapChain, error) {
	sc, err := d.Device.CreateSwapChain(bufferCount, width, height)
	if err != nil {
		return nil, err
	}
	return &presentFailSwapChain{SwapChain: sc, device: d}, nil
}

type presentFailSwapChain struct {
	renderer.SwapChain
	device *presentFailDevice
}

func (sc *presentFailSwapChain) Present() error {
	if sc.device.fail {
		return errFlipFailed
	}
	return sc.SwapChain.Present()
}

func TestEndFrameStampsTheSlotWhenPresentFails(t *testing.T) {
	hd, err := headless.NewDevice(headless.Options{})
	require.NoError(t, err)
	defer hd.Shutdown()
	dev := &presentFailDevice{Device: hd}

	r, err := renderer.NewRenderer(dev, renderer.RendererConfig{
		RingDepth: 2, BackBufferCount: 2, Width: 4, Height: 4, WaitTimeout: time.Second, Counts: counts,
	})
	require.NoError(t, err)
	defer r.Shutdown(context.Background())

	ctx := context.Background()
	_, err = r.BeginFrame(ctx)
	require.NoError(t, err)
	slot := r.CurrentFrame()
	require.NotNil(t, slot)

	rec := r.Recorder()
	back, err := r.CurrentBackBuffer()
	require.NoError(t, err)
	require.NoError(t, rec.Transition(back, metadata.ResourceStateRenderTarget))
	rec.List().ClearRenderTargetView(back, 0, math.NewVec4(0, 0, 0, 1))
	require.NoError(t, rec.Transition(back, metadata.ResourceStatePresent))

	dev.fail = true
	require.ErrorIs(t, r.EndFrame(ctx), errFlipFailed)
	assert.Nil(t, r.CurrentFrame())

	// the executed list still owns the slot until its fence is reached
	assert.Equal(t, r.Clock().Current(), slot.Fence)
	assert.NotZero(t, slot.Fence)
	assert.Equal(t, uint64(1), r.FrameNumber())
	require.NoError(t, r.Flush(ctx))
	assert.True(t, r.Clock().Reached(slot.Fence))
}
