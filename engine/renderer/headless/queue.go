package headless

import (
	"encoding/binary"
	"fmt"
	stdmath "math"
	"time"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// Queue replays command lists on the device's single worker.
type Queue struct {
	device *Device
}

func (q *Queue) ExecuteCommandLists(lists ...renderer.CommandList) error {
	d := q.device
	if d.isLost() {
		return fmt.Errorf("execute: %w: %v", core.ErrDeviceLost, d.RemovedReason())
	}
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return fmt.Errorf("%w: command list %T does not belong to this device", core.ErrSubmission, l)
		}
		if !cl.closed {
			return fmt.Errorf("%w: command list is still recording", core.ErrSubmission)
		}
		cmds := cl.commands
		alloc := cl.allocator
		alloc.inFlight.Add(1)

		err := d.jobs.Submit(core.JobTask{
			OnStart: func() error {
				if d.isLost() {
					return nil
				}
				if d.latency > 0 {
					time.Sleep(d.latency)
				}
				return d.execute(cmds)
			},
			OnComplete: func() {
				alloc.inFlight.Add(-1)
			},
			OnFailure: func(err error) {
				alloc.inFlight.Add(-1)
				d.Remove(err)
			},
		})
		if err != nil {
			alloc.inFlight.Add(-1)
			return fmt.Errorf("%w: %v", core.ErrSubmission, err)
		}
	}
	return nil
}

func (q *Queue) Signal(fence renderer.Fence, value uint64) error {
	d := q.device
	if d.isLost() {
		return fmt.Errorf("signal: %w: %v", core.ErrDeviceLost, d.RemovedReason())
	}
	f, ok := fence.(*Fence)
	if !ok {
		return fmt.Errorf("%w: fence %T does not belong to this device", core.ErrSubmission, fence)
	}
	err := d.jobs.Submit(core.JobTask{
		OnStart: func() error {
			// a removed device never reaches later signals
			if !d.isLost() {
				f.complete(value)
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrSubmission, err)
	}
	return nil
}

type executionState struct {
	pipeline     metadata.PipelineHandle
	renderTarget *Resource
	constants    map[uint32][]uint32
	views        map[uint32]*Resource
}

func asResource(r renderer.Resource) (*Resource, error) {
	res, ok := r.(*Resource)
	if !ok || res == nil {
		return nil, fmt.Errorf("%w: resource %T does not belong to this device", core.ErrSubmission, r)
	}
	if res.Destroyed() {
		return nil, fmt.Errorf("%w: %s used after destroy", core.ErrSubmission, res.Name())
	}
	return res, nil
}

func (d *Device) execute(cmds []Command) error {
	st := &executionState{
		constants: make(map[uint32][]uint32),
		views:     make(map[uint32]*Resource),
	}
	for i := range cmds {
		if err := d.executeOne(st, &cmds[i]); err != nil {
			return fmt.Errorf("command %d (%s): %w", i, cmds[i].Op, err)
		}
	}
	d.updateStats(func(s *Stats) { s.ListsExecuted++ })
	return nil
}

func (d *Device) executeOne(st *executionState, c *Command) error {
	switch c.Op {
	case OpBarrier:
		return d.applyBarriers(c.Barriers)

	case OpCopyResource, OpCopyBufferRegion, OpCopyTextureSlice:
		dst, err := asResource(c.Dst)
		if err != nil {
			return err
		}
		src, err := asResource(c.Src)
		if err != nil {
			return err
		}
		if err := d.checkCopyStates(dst, src); err != nil {
			return err
		}
		if err := copyMemory(c, dst, src); err != nil {
			return err
		}
		d.updateStats(func(s *Stats) { s.Copies++ })

	case OpSetRenderTargets:
		if c.Dst == nil {
			st.renderTarget = nil
			return nil
		}
		rt, err := asResource(c.Dst)
		if err != nil {
			return err
		}
		st.renderTarget = rt

	case OpClearRenderTarget:
		rt, err := asResource(c.Dst)
		if err != nil {
			return err
		}
		if err := d.expectState(rt, metadata.ResourceStateRenderTarget); err != nil {
			return err
		}
		fillSlice(rt, c.DstSlice, []float32{c.Colour.X, c.Colour.Y, c.Colour.Z, c.Colour.W})
		d.updateStats(func(s *Stats) { s.Clears++ })

	case OpClearDepthStencil:
		ds, err := asResource(c.Dst)
		if err != nil {
			return err
		}
		if err := d.expectState(ds, metadata.ResourceStateDepthWrite); err != nil {
			return err
		}
		fillSlice(ds, 0, []float32{c.Depth})
		d.updateStats(func(s *Stats) { s.Clears++ })

	case OpSetPipeline:
		st.pipeline = c.Pipeline

	case OpDrawIndexedInstanced:
		if st.renderTarget != nil {
			if err := d.expectState(st.renderTarget, metadata.ResourceStateRenderTarget); err != nil {
				return err
			}
		}
		d.updateStats(func(s *Stats) {
			s.Draws++
			s.Instances += uint64(c.Args[1])
		})

	case OpSetComputeConstants:
		st.constants[c.Slot] = c.Values

	case OpSetComputeView:
		res, err := asResource(c.Src)
		if err != nil {
			return err
		}
		st.views[c.Slot] = res

	case OpDispatch:
		return d.dispatch(st, c)
	}
	// viewport, scissor, root signatures and graphics bindings carry no
	// state the CPU replay needs
	return nil
}

func (d *Device) applyBarriers(barriers []renderer.Barrier) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range barriers {
		res, err := asResource(b.Resource)
		if err != nil {
			return err
		}
		if res.state != b.Before {
			return fmt.Errorf("%w: %s is %s, barrier expects %s", core.ErrInvalidTransition, res.Name(), res.state, b.Before)
		}
		res.state = b.After
		d.stats.Barriers++
	}
	return nil
}

func (d *Device) expectState(res *Resource, want metadata.ResourceState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res.state != want {
		return fmt.Errorf("%w: %s is %s, expected %s", core.ErrInvalidTransition, res.Name(), res.state, want)
	}
	return nil
}

func (d *Device) checkCopyStates(dst, src *Resource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dst.state != metadata.ResourceStateCopyDest {
		return fmt.Errorf("%w: copy destination %s is %s", core.ErrInvalidTransition, dst.Name(), dst.state)
	}
	// GENERIC_READ includes COPY_SOURCE
	srcOK := src.state == metadata.ResourceStateCopySource || src.state == metadata.ResourceStateGenericRead
	if !srcOK {
		return fmt.Errorf("%w: copy source %s is %s", core.ErrInvalidTransition, src.Name(), src.state)
	}
	return nil
}

func copyMemory(c *Command, dst, src *Resource) error {
	switch c.Op {
	case OpCopyResource:
		if len(dst.data) != len(src.data) {
			return fmt.Errorf("%w: copy between %s (%d bytes) and %s (%d bytes)",
				core.ErrOutOfRange, dst.Name(), len(dst.data), src.Name(), len(src.data))
		}
		copy(dst.data, src.data)
	case OpCopyBufferRegion:
		if c.DstOffset+c.NumBytes > uint64(len(dst.data)) || c.SrcOffset+c.NumBytes > uint64(len(src.data)) {
			return fmt.Errorf("%w: buffer region copy of %d bytes", core.ErrOutOfRange, c.NumBytes)
		}
		copy(dst.data[c.DstOffset:c.DstOffset+c.NumBytes], src.data[c.SrcOffset:c.SrcOffset+c.NumBytes])
	case OpCopyTextureSlice:
		dstSize, srcSize := dst.desc.SliceSize(), src.desc.SliceSize()
		if dstSize != srcSize ||
			uint64(c.DstSlice+1)*dstSize > uint64(len(dst.data)) ||
			uint64(c.SrcSlice+1)*srcSize > uint64(len(src.data)) {
			return fmt.Errorf("%w: texture slice copy %s[%d] <- %s[%d]",
				core.ErrOutOfRange, dst.Name(), c.DstSlice, src.Name(), c.SrcSlice)
		}
		do := uint64(c.DstSlice) * dstSize
		so := uint64(c.SrcSlice) * srcSize
		copy(dst.data[do:do+dstSize], src.data[so:so+srcSize])
	}
	return nil
}

// fillSlice repeats value across one array slice, encoded in the texel
// layout of the resource format.
func fillSlice(res *Resource, slice uint32, value []float32) {
	size := res.desc.SliceSize()
	start := uint64(slice) * size
	if start+size > uint64(len(res.data)) {
		return
	}
	pattern := encodeTexel(res.desc.Format, value)
	mem := res.data[start : start+size]
	for i := 0; i+len(pattern) <= len(mem); i += len(pattern) {
		copy(mem[i:], pattern)
	}
}

// encodeTexel packs UNORM channels into bytes and stores everything else as
// float32 words.
func encodeTexel(format metadata.Format, value []float32) []byte {
	if format == metadata.FormatR8G8B8A8Unorm {
		out := make([]byte, len(value))
		for i, v := range value {
			out[i] = uint8(stdmath.Round(float64(math.Clamp(v, 0, 1)) * 255))
		}
		return out
	}
	out := make([]byte, 4*len(value))
	for i, v := range value {
		binary.LittleEndian.PutUint32(out[i*4:], stdmath.Float32bits(v))
	}
	return out
}

func (d *Device) dispatch(st *executionState, c *Command) error {
	d.updateStats(func(s *Stats) { s.Dispatches++ })
	kernel := d.kernel(st.pipeline)
	if kernel == nil {
		return nil
	}
	ctx := &renderer.KernelContext{
		ThreadGroups: [3]uint32{uint32(c.Args[0]), uint32(c.Args[1]), uint32(c.Args[2])},
		Constants:    st.constants,
		Views:        make(map[uint32]renderer.KernelView, len(st.views)),
	}
	for slot, res := range st.views {
		ctx.Views[slot] = renderer.KernelView{Desc: res.desc, Data: res.data}
	}
	if err := kernel(ctx); err != nil {
		return fmt.Errorf("%w: kernel for pipeline %d: %v", core.ErrSubmission, st.pipeline, err)
	}
	return nil
}
