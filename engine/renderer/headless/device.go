// Package headless implements the renderer backend on the CPU. Command lists
// are replayed in order on a single worker, resource states are validated on
// every barrier and compute dispatches run registered Go kernels.
package headless

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

type Options struct {
	// Latency is slept for every executed command list.
	Latency time.Duration
	// QueueSize bounds the submissions waiting on the worker.
	QueueSize int
}

// Stats counts the work the device executed.
type Stats struct {
	ListsExecuted uint64
	Barriers      uint64
	Copies        uint64
	Clears        uint64
	Draws         uint64
	Instances     uint64
	Dispatches    uint64
	Presents      uint64
}

type Device struct {
	jobs    *core.JobSystem
	queue   *Queue
	latency time.Duration

	// guards resource states, stats and the removal reason
	mu      sync.Mutex
	stats   Stats
	reason  error
	lost    chan struct{}
	kernels map[metadata.PipelineHandle]renderer.ComputeKernel

	live atomic.Int64
}

func NewDevice(opts Options) (*Device, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	// one worker keeps the queue FIFO
	jobs, err := core.NewJobSystem(1, opts.QueueSize)
	if err != nil {
		return nil, err
	}
	d := &Device{
		jobs:    jobs,
		latency: opts.Latency,
		lost:    make(chan struct{}),
		kernels: make(map[metadata.PipelineHandle]renderer.ComputeKernel),
	}
	d.queue = &Queue{device: d}
	core.LogDebug("headless device created (latency %s)", opts.Latency)
	return d, nil
}

func (d *Device) CreateCommittedResource(desc metadata.ResourceDesc, initial metadata.ResourceState) (renderer.Resource, error) {
	return d.createResource(desc, initial)
}

func (d *Device) createResource(desc metadata.ResourceDesc, initial metadata.ResourceState) (*Resource, error) {
	size := desc.ByteSize()
	if size == 0 {
		return nil, fmt.Errorf("%w: %s has zero size", core.ErrResourceCreation, desc)
	}
	switch {
	case desc.Heap == metadata.HeapTypeUpload && initial != metadata.ResourceStateGenericRead:
		return nil, fmt.Errorf("%w: upload heap resources start in GENERIC_READ", core.ErrResourceCreation)
	case desc.Heap == metadata.HeapTypeReadback && initial != metadata.ResourceStateCopyDest:
		return nil, fmt.Errorf("%w: readback heap resources start in COPY_DEST", core.ErrResourceCreation)
	}
	if desc.Name == "" {
		desc.Name = "resource-" + uuid.NewString()
	}
	d.live.Add(1)
	return &Resource{
		device: d,
		desc:   desc,
		data:   make([]byte, size),
		state:  initial,
	}, nil
}

func (d *Device) CreateCommandAllocator() (renderer.CommandAllocator, error) {
	if err := d.RemovedReason(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceLost, err)
	}
	return &CommandAllocator{}, nil
}

func (d *Device) CreateCommandList(allocator renderer.CommandAllocator) (renderer.CommandList, error) {
	alloc, ok := allocator.(*CommandAllocator)
	if !ok {
		return nil, fmt.Errorf("%w: allocator %T does not belong to this device", core.ErrResourceCreation, allocator)
	}
	return &CommandList{allocator: alloc, closed: true}, nil
}

func (d *Device) CreateFence(initialValue uint64) (renderer.Fence, error) {
	f := &Fence{}
	f.completed.Store(initialValue)
	return f, nil
}

func (d *Device) CreateSwapChain(bufferCount, width, height uint32) (renderer.SwapChain, error) {
	sc := &SwapChain{device: d}
	if err := sc.createBuffers(bufferCount, width, height); err != nil {
		return nil, err
	}
	return sc, nil
}

func (d *Device) Queue() renderer.CommandQueue {
	return d.queue
}

// RegisterKernel binds the Go implementation of a compute pipeline.
func (d *Device) RegisterKernel(pipeline metadata.PipelineHandle, kernel renderer.ComputeKernel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernels[pipeline] = kernel
}

func (d *Device) kernel(pipeline metadata.PipelineHandle) renderer.ComputeKernel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.kernels[pipeline]
}

func (d *Device) Lost() <-chan struct{} {
	return d.lost
}

func (d *Device) RemovedReason() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

// Remove puts the device in the removed state. Only the first reason is kept.
func (d *Device) Remove(reason error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reason != nil {
		return
	}
	if reason == nil {
		reason = core.ErrUnknown
	}
	d.reason = reason
	close(d.lost)
	core.LogError("device removed: %s", reason.Error())
}

func (d *Device) isLost() bool {
	select {
	case <-d.lost:
		return true
	default:
		return false
	}
}

// Stats returns a snapshot of the execution counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Device) updateStats(fn func(s *Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

// ResourceState is the state res is in on the queue timeline.
func (d *Device) ResourceState(res renderer.Resource) metadata.ResourceState {
	r := res.(*Resource)
	d.mu.Lock()
	defer d.mu.Unlock()
	return r.state
}

// LiveResources counts resources created and not yet destroyed.
func (d *Device) LiveResources() int {
	return int(d.live.Load())
}

// Shutdown waits for queued work and stops the queue worker.
func (d *Device) Shutdown() error {
	return d.jobs.Shutdown()
}
