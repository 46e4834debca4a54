package headless

import (
	"fmt"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

type SwapChain struct {
	device  *Device
	buffers []*Resource
	current uint32
}

func (sc *SwapChain) createBuffers(count, width, height uint32) error {
	if count == 0 || width == 0 || height == 0 {
		return fmt.Errorf("%w: swap chain %dx%d with %d buffers", core.ErrResourceCreation, width, height, count)
	}
	sc.buffers = make([]*Resource, 0, count)
	for i := uint32(0); i < count; i++ {
		desc := metadata.Texture2DDesc(fmt.Sprintf("backBuffer%d", i), width, height, 1,
			renderer.BackBufferFormat, metadata.ResourceFlagAllowRenderTarget)
		res, err := sc.device.createResource(desc, metadata.ResourceStatePresent)
		if err != nil {
			return err
		}
		sc.buffers = append(sc.buffers, res)
	}
	sc.current = 0
	return nil
}

func (sc *SwapChain) BufferCount() uint32 {
	return uint32(len(sc.buffers))
}

func (sc *SwapChain) CurrentBackBufferIndex() uint32 {
	return sc.current
}

func (sc *SwapChain) BackBuffer(index uint32) (renderer.Resource, error) {
	if int(index) >= len(sc.buffers) {
		return nil, fmt.Errorf("%w: back buffer %d of %d", core.ErrOutOfRange, index, len(sc.buffers))
	}
	return sc.buffers[index], nil
}

// Present queues the flip behind the submitted work. The presented buffer
// must be back in the present state by then.
func (sc *SwapChain) Present() error {
	d := sc.device
	if d.isLost() {
		return fmt.Errorf("present: %w: %v", core.ErrDeviceLost, d.RemovedReason())
	}
	buf := sc.buffers[sc.current]
	err := d.jobs.Submit(core.JobTask{
		OnStart: func() error {
			if d.isLost() {
				return nil
			}
			if err := d.expectState(buf, metadata.ResourceStatePresent); err != nil {
				return err
			}
			d.updateStats(func(s *Stats) { s.Presents++ })
			return nil
		},
		OnFailure: d.Remove,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrSubmission, err)
	}
	sc.current = (sc.current + 1) % uint32(len(sc.buffers))
	return nil
}

// ResizeBuffers recreates the back buffers. The caller flushes first.
func (sc *SwapChain) ResizeBuffers(width, height uint32) error {
	count := uint32(len(sc.buffers))
	for _, b := range sc.buffers {
		b.Destroy()
	}
	return sc.createBuffers(count, width, height)
}

func (sc *SwapChain) Destroy() {
	for _, b := range sc.buffers {
		b.Destroy()
	}
	sc.buffers = nil
}
