package renderer

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/framering/engine/core"
)

// FrameRing cycles through a fixed set of frame resources, keeping at most
// depth-1 frames in flight.
type FrameRing struct {
	slots []*FrameResource
	index int
	clock *FenceClock
}

func NewFrameRing(device Device, clock *FenceClock, depth int, counts FrameResourceCounts) (*FrameRing, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: ring depth must be >= 1, got %d", core.ErrInvalidConfig, depth)
	}
	fr := &FrameRing{
		slots: make([]*FrameResource, 0, depth),
		index: depth - 1,
		clock: clock,
	}
	for i := 0; i < depth; i++ {
		slot, err := NewFrameResource(device, i, counts)
		if err != nil {
			fr.Destroy()
			core.LogError("failed to create frame resource %d: %s", i, err.Error())
			return nil, err
		}
		fr.slots = append(fr.slots, slot)
	}
	return fr, nil
}

// AcquireNext moves to the next slot and waits until the GPU is done with it.
func (fr *FrameRing) AcquireNext(ctx context.Context) (*FrameResource, error) {
	next := (fr.index + 1) % len(fr.slots)
	slot := fr.slots[next]
	if slot.Fence != 0 && !fr.clock.Reached(slot.Fence) {
		// a failed wait leaves the ring where it was so the frame can be retried
		if err := fr.clock.WaitUntil(ctx, slot.Fence); err != nil {
			return nil, err
		}
	}
	fr.index = next
	return slot, nil
}

func (fr *FrameRing) Current() *FrameResource {
	return fr.slots[fr.index]
}

func (fr *FrameRing) CurrentIndex() int {
	return fr.index
}

func (fr *FrameRing) Depth() int {
	return len(fr.slots)
}

func (fr *FrameRing) Slot(i int) (*FrameResource, error) {
	if i < 0 || i >= len(fr.slots) {
		return nil, fmt.Errorf("%w: frame slot %d of %d", core.ErrOutOfRange, i, len(fr.slots))
	}
	return fr.slots[i], nil
}

// Destroy releases every slot. The caller flushes first.
func (fr *FrameRing) Destroy() {
	for _, s := range fr.slots {
		s.Destroy()
	}
	fr.slots = nil
}
