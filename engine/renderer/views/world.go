package views

import (
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/components"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/spaghettifunk/framering/engine/systems"
)

const (
	PipelineOpaque      = "opaque"
	RootSignatureOpaque = "opaque"
)

// Root parameters of the opaque root signature.
const (
	RootSlotInstances uint32 = iota
	RootSlotMaterials
	RootSlotPass
	RootSlotObject
)

// WorldView draws the render items into the current back buffer.
type WorldView struct {
	pipeline      metadata.PipelineHandle
	rootSignature metadata.RootSignatureHandle
	ClearColour   math.Vec4
}

func NewWorldView(catalog *metadata.PipelineCatalog) *WorldView {
	return &WorldView{
		pipeline:      catalog.RegisterPipeline(PipelineOpaque),
		rootSignature: catalog.RegisterRootSignature(RootSignatureOpaque),
		ClearColour:   math.NewVec4(0.69, 0.77, 0.87, 1.0),
	}
}

func (wv *WorldView) Pipeline() metadata.PipelineHandle {
	return wv.pipeline
}

/**
 * @brief Records the whole pass and hands the back buffer back in PRESENT.
 */
func (wv *WorldView) Render(r *renderer.Renderer, frame *renderer.FrameResource, items []*systems.RenderItem) error {
	if err := wv.Draw(r, frame, items); err != nil {
		return err
	}
	back, err := r.CurrentBackBuffer()
	if err != nil {
		return err
	}
	return r.Recorder().Transition(back, metadata.ResourceStatePresent)
}

/**
 * @brief Records the pass but leaves the back buffer in RENDER_TARGET so a
 * post process can read it.
 */
func (wv *WorldView) Draw(r *renderer.Renderer, frame *renderer.FrameResource, items []*systems.RenderItem) error {
	rec := r.Recorder()
	list := rec.List()
	back, err := r.CurrentBackBuffer()
	if err != nil {
		return err
	}

	if err := rec.Transition(back, metadata.ResourceStateRenderTarget); err != nil {
		return err
	}
	list.RSSetViewports(r.Viewport())
	list.RSSetScissorRects(r.ScissorRect())
	list.OMSetRenderTargets(back, 0, r.DepthStencil())

	list.ClearRenderTargetView(back, 0, wv.ClearColour)
	list.ClearDepthStencilView(r.DepthStencil(), 1.0, 0)

	wv.DrawWithPass(list, frame, 0, items)
	return nil
}

// DrawWithPass records items against the pass constants at passIndex and
// the instances that pass kept. The caller binds the render target.
func (wv *WorldView) DrawWithPass(list renderer.CommandList, frame *renderer.FrameResource, passIndex int, items []*systems.RenderItem) {
	list.SetPipelineState(wv.pipeline)
	list.SetGraphicsRootSignature(wv.rootSignature)
	list.SetGraphicsRootBufferView(RootSlotMaterials, frame.MaterialBuffer.Resource(), 0)
	list.SetGraphicsRootBufferView(RootSlotPass, frame.PassCB.Resource(), frame.PassCB.Offset(passIndex))

	drawRenderItems(list, frame, passIndex, items)
}

// drawRenderItems draws what pass kept of every item.
func drawRenderItems(list renderer.CommandList, frame *renderer.FrameResource, pass int, items []*systems.RenderItem) {
	for _, item := range items {
		if item.Geo != nil {
			list.IASetVertexBuffer(item.Geo.VertexBuffer, item.Geo.VertexStride)
			list.IASetIndexBuffer(item.Geo.IndexBuffer)
		}
		visible := item.Visible(pass)
		if item.IsInstanced() {
			list.SetGraphicsRootBufferView(RootSlotInstances, frame.InstanceBuffer.Resource(), frame.InstanceBuffer.Offset(visible.Offset))
		} else {
			list.SetGraphicsRootBufferView(RootSlotObject, frame.ObjectCB.Resource(), frame.ObjectCB.Offset(item.ObjCBIndex))
		}
		list.DrawIndexedInstanced(item.IndexCount, visible.Count, item.StartIndexLocation, item.BaseVertexLocation, 0)
	}
}

/**
 * @brief Builds the pass constants seen from cam for a target of the given
 * size. The lights are the three directional key, fill and back lights.
 */
func NewPassConstants(cam *components.Camera, width, height uint32, totalTime, deltaTime float32) metadata.PassConstants {
	view := cam.GetView()
	proj := cam.GetProjection()
	viewProj := view.Mul(proj)

	pc := metadata.PassConstants{
		View:                view,
		InvView:             view.Inverse(),
		Proj:                proj,
		InvProj:             proj.Inverse(),
		ViewProj:            viewProj,
		InvViewProj:         viewProj.Inverse(),
		EyePosW:             cam.GetPosition(),
		RenderTargetSize:    math.Vec2{X: float32(width), Y: float32(height)},
		InvRenderTargetSize: math.Vec2{X: 1.0 / float32(width), Y: 1.0 / float32(height)},
		NearZ:               cam.NearZ,
		FarZ:                cam.FarZ,
		TotalTime:           totalTime,
		DeltaTime:           deltaTime,
		AmbientLight:        math.NewVec4(0.25, 0.25, 0.35, 1.0),
	}
	pc.Lights[0] = metadata.Light{Direction: math.NewVec3(0.57735, -0.57735, 0.57735), Strength: math.NewVec3(0.8, 0.8, 0.8)}
	pc.Lights[1] = metadata.Light{Direction: math.NewVec3(-0.57735, -0.57735, 0.57735), Strength: math.NewVec3(0.4, 0.4, 0.4)}
	pc.Lights[2] = metadata.Light{Direction: math.NewVec3(0.0, -0.707, -0.707), Strength: math.NewVec3(0.2, 0.2, 0.2)}
	return pc
}
