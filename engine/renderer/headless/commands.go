package headless

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

type CommandOp uint8

const (
	OpBarrier CommandOp = iota
	OpCopyResource
	OpCopyBufferRegion
	OpCopyTextureSlice
	OpSetViewport
	OpSetScissor
	OpSetRenderTargets
	OpClearRenderTarget
	OpClearDepthStencil
	OpSetPipeline
	OpSetGraphicsRootSignature
	OpSetGraphicsRootBufferView
	OpSetVertexBuffer
	OpSetIndexBuffer
	OpDrawIndexedInstanced
	OpSetComputeRootSignature
	OpSetComputeConstants
	OpSetComputeView
	OpDispatch
)

var opNames = [...]string{
	"Barrier", "CopyResource", "CopyBufferRegion", "CopyTextureSlice",
	"SetViewport", "SetScissor", "SetRenderTargets", "ClearRenderTarget",
	"ClearDepthStencil", "SetPipeline", "SetGraphicsRootSignature",
	"SetGraphicsRootBufferView", "SetVertexBuffer", "SetIndexBuffer",
	"DrawIndexedInstanced", "SetComputeRootSignature", "SetComputeConstants",
	"SetComputeView", "Dispatch",
}

func (op CommandOp) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("CommandOp(%d)", op)
}

// Command is one recorded call. Only the fields of its Op are set.
type Command struct {
	Op       CommandOp
	Barriers []renderer.Barrier

	Dst       renderer.Resource
	Src       renderer.Resource
	DstOffset uint64
	SrcOffset uint64
	NumBytes  uint64
	DstSlice  uint32
	SrcSlice  uint32

	Viewport metadata.Viewport
	Scissor  metadata.ScissorRect
	Colour   math.Vec4
	Depth    float32
	Stencil  uint8

	Pipeline      metadata.PipelineHandle
	RootSignature metadata.RootSignatureHandle
	Slot          uint32
	Values        []uint32

	// draw: index count, instance count, start index, base vertex, start instance
	// dispatch: thread groups x, y, z
	Args [5]int64
}

// CommandAllocator counts the lists recorded into it that are still executing.
type CommandAllocator struct {
	inFlight atomic.Int32
}

func (ca *CommandAllocator) Reset() error {
	if n := ca.inFlight.Load(); n > 0 {
		return fmt.Errorf("%w: allocator reset while %d lists are executing", core.ErrSubmission, n)
	}
	return nil
}

func (ca *CommandAllocator) Destroy() {}

type CommandList struct {
	allocator *CommandAllocator
	commands  []Command
	closed    bool
}

func (cl *CommandList) Reset(allocator renderer.CommandAllocator, pipeline metadata.PipelineHandle) error {
	alloc, ok := allocator.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("%w: allocator %T does not belong to this device", core.ErrSubmission, allocator)
	}
	cl.allocator = alloc
	cl.commands = nil
	cl.closed = false
	if pipeline != metadata.InvalidPipeline {
		cl.SetPipelineState(pipeline)
	}
	return nil
}

func (cl *CommandList) Close() error {
	if cl.closed {
		return fmt.Errorf("command list already closed")
	}
	cl.closed = true
	return nil
}

// Commands returns what was recorded since the last Reset.
func (cl *CommandList) Commands() []Command {
	return cl.commands
}

func (cl *CommandList) record(c Command) {
	cl.commands = append(cl.commands, c)
}

func (cl *CommandList) ResourceBarrier(barriers ...renderer.Barrier) {
	cl.record(Command{Op: OpBarrier, Barriers: append([]renderer.Barrier(nil), barriers...)})
}

func (cl *CommandList) CopyResource(dst, src renderer.Resource) {
	cl.record(Command{Op: OpCopyResource, Dst: dst, Src: src})
}

func (cl *CommandList) CopyBufferRegion(dst renderer.Resource, dstOffset uint64, src renderer.Resource, srcOffset, numBytes uint64) {
	cl.record(Command{Op: OpCopyBufferRegion, Dst: dst, DstOffset: dstOffset, Src: src, SrcOffset: srcOffset, NumBytes: numBytes})
}

func (cl *CommandList) CopyTextureSlice(dst renderer.Resource, dstSlice uint32, src renderer.Resource, srcSlice uint32) {
	cl.record(Command{Op: OpCopyTextureSlice, Dst: dst, DstSlice: dstSlice, Src: src, SrcSlice: srcSlice})
}

func (cl *CommandList) RSSetViewports(viewport metadata.Viewport) {
	cl.record(Command{Op: OpSetViewport, Viewport: viewport})
}

func (cl *CommandList) RSSetScissorRects(rect metadata.ScissorRect) {
	cl.record(Command{Op: OpSetScissor, Scissor: rect})
}

func (cl *CommandList) OMSetRenderTargets(renderTarget renderer.Resource, renderTargetSlice uint32, depthStencil renderer.Resource) {
	cl.record(Command{Op: OpSetRenderTargets, Dst: renderTarget, DstSlice: renderTargetSlice, Src: depthStencil})
}

func (cl *CommandList) ClearRenderTargetView(renderTarget renderer.Resource, slice uint32, colour math.Vec4) {
	cl.record(Command{Op: OpClearRenderTarget, Dst: renderTarget, DstSlice: slice, Colour: colour})
}

func (cl *CommandList) ClearDepthStencilView(depthStencil renderer.Resource, depth float32, stencil uint8) {
	cl.record(Command{Op: OpClearDepthStencil, Dst: depthStencil, Depth: depth, Stencil: stencil})
}

func (cl *CommandList) SetPipelineState(pipeline metadata.PipelineHandle) {
	cl.record(Command{Op: OpSetPipeline, Pipeline: pipeline})
}

func (cl *CommandList) SetGraphicsRootSignature(signature metadata.RootSignatureHandle) {
	cl.record(Command{Op: OpSetGraphicsRootSignature, RootSignature: signature})
}

func (cl *CommandList) SetGraphicsRootBufferView(slot uint32, buffer renderer.Resource, offset uint64) {
	cl.record(Command{Op: OpSetGraphicsRootBufferView, Slot: slot, Src: buffer, SrcOffset: offset})
}

func (cl *CommandList) IASetVertexBuffer(buffer renderer.Resource, stride uint32) {
	cl.record(Command{Op: OpSetVertexBuffer, Src: buffer, NumBytes: uint64(stride)})
}

func (cl *CommandList) IASetIndexBuffer(buffer renderer.Resource) {
	cl.record(Command{Op: OpSetIndexBuffer, Src: buffer})
}

func (cl *CommandList) DrawIndexedInstanced(indexCountPerInstance, instanceCount, startIndexLocation uint32, baseVertexLocation int32, startInstanceLocation uint32) {
	cl.record(Command{Op: OpDrawIndexedInstanced, Args: [5]int64{
		int64(indexCountPerInstance), int64(instanceCount), int64(startIndexLocation),
		int64(baseVertexLocation), int64(startInstanceLocation),
	}})
}

func (cl *CommandList) SetComputeRootSignature(signature metadata.RootSignatureHandle) {
	cl.record(Command{Op: OpSetComputeRootSignature, RootSignature: signature})
}

func (cl *CommandList) SetComputeRoot32BitConstants(slot uint32, values []uint32) {
	cl.record(Command{Op: OpSetComputeConstants, Slot: slot, Values: append([]uint32(nil), values...)})
}

func (cl *CommandList) SetComputeRootView(slot uint32, resource renderer.Resource) {
	cl.record(Command{Op: OpSetComputeView, Slot: slot, Src: resource})
}

func (cl *CommandList) Dispatch(threadGroupCountX, threadGroupCountY, threadGroupCountZ uint32) {
	cl.record(Command{Op: OpDispatch, Args: [5]int64{int64(threadGroupCountX), int64(threadGroupCountY), int64(threadGroupCountZ)}})
}
