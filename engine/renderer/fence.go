package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/framering/engine/core"
)

// FenceClock owns the monotonically increasing fence value the CPU signals
// on the queue after each submission.
type FenceClock struct {
	device  Device
	queue   CommandQueue
	fence   Fence
	current atomic.Uint64
	timeout time.Duration
}

// NewFenceClock creates the fence at 0. A zero timeout bounds waits only by
// the caller's context and device removal.
func NewFenceClock(device Device, timeout time.Duration) (*FenceClock, error) {
	fence, err := device.CreateFence(0)
	if err != nil {
		err = fmt.Errorf("failed to create fence: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &FenceClock{
		device:  device,
		queue:   device.Queue(),
		fence:   fence,
		timeout: timeout,
	}, nil
}

// Current is the last value handed out by Signal.
func (fc *FenceClock) Current() uint64 {
	return fc.current.Load()
}

// Completed is the last value the GPU reached.
func (fc *FenceClock) Completed() uint64 {
	return fc.fence.CompletedValue()
}

// Signal advances the clock and queues a GPU side write of the new value
// behind all previously submitted work.
func (fc *FenceClock) Signal() (uint64, error) {
	v := fc.current.Add(1)
	if err := fc.queue.Signal(fc.fence, v); err != nil {
		err = fmt.Errorf("signal fence %d: %w", v, err)
		core.LogError(err.Error())
		return 0, err
	}
	return v, nil
}

func (fc *FenceClock) Reached(v uint64) bool {
	return fc.fence.CompletedValue() >= v
}

// WaitUntil blocks until the fence reaches v, the device is removed, the
// configured timeout elapses or ctx is done.
func (fc *FenceClock) WaitUntil(ctx context.Context, v uint64) error {
	if fc.Reached(v) {
		return nil
	}

	done := make(chan struct{})
	if err := fc.fence.SetEventOnCompletion(v, done); err != nil {
		return fmt.Errorf("wait for fence %d: %w", v, err)
	}

	if fc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fc.timeout)
		defer cancel()
	}

	select {
	case <-done:
		return nil
	case <-fc.device.Lost():
		err := fmt.Errorf("wait for fence %d: %w: %v", v, core.ErrDeviceLost, fc.device.RemovedReason())
		core.LogError(err.Error())
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// the caller's own deadline looks the same as ours
			core.LogWarn("wait for fence %d timed out (completed %d)", v, fc.Completed())
			return fmt.Errorf("fence %d: %w", v, core.ErrWaitTimeout)
		}
		return ctx.Err()
	}
}

// Flush waits for all work submitted so far.
func (fc *FenceClock) Flush(ctx context.Context) error {
	v, err := fc.Signal()
	if err != nil {
		return err
	}
	return fc.WaitUntil(ctx, v)
}

func (fc *FenceClock) Destroy() {
	fc.fence.Destroy()
}
