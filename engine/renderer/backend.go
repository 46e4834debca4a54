package renderer

import (
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// Device creates GPU objects and reports removal. Implementations must be
// safe for use by the submission goroutine and the queue concurrently.
type Device interface {
	CreateCommittedResource(desc metadata.ResourceDesc, initial metadata.ResourceState) (Resource, error)
	CreateCommandAllocator() (CommandAllocator, error)
	// CreateCommandList returns a closed list; Reset opens it for recording.
	CreateCommandList(allocator CommandAllocator) (CommandList, error)
	CreateFence(initialValue uint64) (Fence, error)
	CreateSwapChain(bufferCount, width, height uint32) (SwapChain, error)
	Queue() CommandQueue
	// Lost is closed once the device is removed.
	Lost() <-chan struct{}
	// RemovedReason is nil while the device is alive.
	RemovedReason() error
	Shutdown() error
}

// CommandQueue executes closed command lists in submission order.
type CommandQueue interface {
	ExecuteCommandLists(lists ...CommandList) error
	// Signal sets fence to value once all previously queued work completed.
	Signal(fence Fence, value uint64) error
}

type Fence interface {
	CompletedValue() uint64
	// SetEventOnCompletion closes done once CompletedValue reaches value.
	SetEventOnCompletion(value uint64, done chan<- struct{}) error
	Destroy()
}

// CommandAllocator backs the memory of recorded commands. It may only be
// reset once the GPU finished every list recorded into it.
type CommandAllocator interface {
	Reset() error
	Destroy()
}

type Resource interface {
	Name() string
	Desc() metadata.ResourceDesc
	// Map returns the CPU view of an upload or readback resource.
	Map() ([]byte, error)
	Destroy()
}

type SwapChain interface {
	BufferCount() uint32
	CurrentBackBufferIndex() uint32
	BackBuffer(index uint32) (Resource, error)
	Present() error
	ResizeBuffers(width, height uint32) error
	Destroy()
}

// CommandList records GPU work. Commands run when the closed list is executed.
type CommandList interface {
	Reset(allocator CommandAllocator, pipeline metadata.PipelineHandle) error
	Close() error

	ResourceBarrier(barriers ...Barrier)
	CopyResource(dst, src Resource)
	CopyBufferRegion(dst Resource, dstOffset uint64, src Resource, srcOffset, numBytes uint64)
	// CopyTextureSlice copies one array slice of src into one slice of dst.
	CopyTextureSlice(dst Resource, dstSlice uint32, src Resource, srcSlice uint32)

	RSSetViewports(viewport metadata.Viewport)
	RSSetScissorRects(rect metadata.ScissorRect)
	OMSetRenderTargets(renderTarget Resource, renderTargetSlice uint32, depthStencil Resource)
	ClearRenderTargetView(renderTarget Resource, slice uint32, colour math.Vec4)
	ClearDepthStencilView(depthStencil Resource, depth float32, stencil uint8)

	SetPipelineState(pipeline metadata.PipelineHandle)
	SetGraphicsRootSignature(signature metadata.RootSignatureHandle)
	SetGraphicsRootBufferView(slot uint32, buffer Resource, offset uint64)
	IASetVertexBuffer(buffer Resource, stride uint32)
	IASetIndexBuffer(buffer Resource)
	DrawIndexedInstanced(indexCountPerInstance, instanceCount, startIndexLocation uint32, baseVertexLocation int32, startInstanceLocation uint32)

	SetComputeRootSignature(signature metadata.RootSignatureHandle)
	SetComputeRoot32BitConstants(slot uint32, values []uint32)
	SetComputeRootView(slot uint32, resource Resource)
	Dispatch(threadGroupCountX, threadGroupCountY, threadGroupCountZ uint32)
}

// Barrier is a transition of a whole resource between two states.
type Barrier struct {
	Resource Resource
	Before   metadata.ResourceState
	After    metadata.ResourceState
}

// KernelView is a resource bound to a compute root slot as seen by a kernel.
type KernelView struct {
	Desc metadata.ResourceDesc
	Data []byte
}

// KernelContext is what a dispatch hands to a ComputeKernel.
type KernelContext struct {
	ThreadGroups [3]uint32
	Constants    map[uint32][]uint32
	Views        map[uint32]KernelView
}

// ComputeKernel stands in for a compute shader on devices without one.
type ComputeKernel func(ctx *KernelContext) error

// KernelRegistry is implemented by devices that run compute work on the CPU.
type KernelRegistry interface {
	RegisterKernel(pipeline metadata.PipelineHandle, kernel ComputeKernel)
}
