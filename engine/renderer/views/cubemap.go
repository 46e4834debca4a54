package views

import (
	"fmt"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/components"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

const (
	CubeMapSize   uint32 = 512
	CubeFaceCount        = 6
)

// CubeFace is one render target slice of a cube map.
type CubeFace struct {
	Resource renderer.Resource
	Slice    uint32
}

/**
 * @brief A six slice colour texture plus a matching depth buffer that the
 * scene is rendered into once per face. Sampled in GENERIC_READ between
 * passes.
 */
type CubeRenderTarget struct {
	device       renderer.Device
	size         uint32
	format       metadata.Format
	cubeMap      renderer.Resource
	depthStencil renderer.Resource
	faces        [CubeFaceCount]CubeFace

	ClearColour math.Vec4
}

func NewCubeRenderTarget(device renderer.Device, size uint32, format metadata.Format) (*CubeRenderTarget, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: cube map size must be positive", core.ErrInvalidConfig)
	}
	crt := &CubeRenderTarget{
		device:      device,
		size:        size,
		format:      format,
		ClearColour: math.NewVec4(0.69, 0.77, 0.87, 1.0),
	}
	if err := crt.buildResources(); err != nil {
		return nil, err
	}
	return crt, nil
}

func (crt *CubeRenderTarget) buildResources() error {
	var err error
	desc := metadata.Texture2DDesc("cubeMap", crt.size, crt.size, CubeFaceCount, crt.format, metadata.ResourceFlagAllowRenderTarget)
	if crt.cubeMap, err = crt.device.CreateCommittedResource(desc, metadata.ResourceStateGenericRead); err != nil {
		return fmt.Errorf("%w: cube map: %v", core.ErrResourceCreation, err)
	}
	depthDesc := metadata.Texture2DDesc("cubeDepthStencil", crt.size, crt.size, 1, renderer.DepthStencilFormat, metadata.ResourceFlagAllowDepthStencil)
	if crt.depthStencil, err = crt.device.CreateCommittedResource(depthDesc, metadata.ResourceStateDepthWrite); err != nil {
		crt.cubeMap.Destroy()
		crt.cubeMap = nil
		return fmt.Errorf("%w: cube depth buffer: %v", core.ErrResourceCreation, err)
	}
	for i := range crt.faces {
		crt.faces[i] = CubeFace{Resource: crt.cubeMap, Slice: uint32(i)}
	}
	return nil
}

func (crt *CubeRenderTarget) Resource() renderer.Resource {
	return crt.cubeMap
}

func (crt *CubeRenderTarget) DepthStencil() renderer.Resource {
	return crt.depthStencil
}

func (crt *CubeRenderTarget) Size() uint32 {
	return crt.size
}

// Face returns the render target view of face i, ordered +X, -X, +Y, -Y, +Z, -Z.
func (crt *CubeRenderTarget) Face(i int) (CubeFace, error) {
	if i < 0 || i >= CubeFaceCount {
		return CubeFace{}, fmt.Errorf("%w: cube face %d", core.ErrOutOfRange, i)
	}
	return crt.faces[i], nil
}

func (crt *CubeRenderTarget) Viewport() metadata.Viewport {
	return metadata.NewViewport(crt.size, crt.size)
}

func (crt *CubeRenderTarget) ScissorRect() metadata.ScissorRect {
	return metadata.NewScissorRect(crt.size, crt.size)
}

// RenderFaces clears every face and lets drawFace record its draws. The cube
// map is back in GENERIC_READ afterwards.
func (crt *CubeRenderTarget) RenderFaces(rec *renderer.CommandRecorder, drawFace func(face int, list renderer.CommandList) error) error {
	list := rec.List()
	rec.Track(crt.cubeMap, metadata.ResourceStateGenericRead)
	rec.Track(crt.depthStencil, metadata.ResourceStateDepthWrite)

	if err := rec.Transition(crt.cubeMap, metadata.ResourceStateRenderTarget); err != nil {
		return err
	}
	list.RSSetViewports(crt.Viewport())
	list.RSSetScissorRects(crt.ScissorRect())
	for i, face := range crt.faces {
		list.ClearRenderTargetView(face.Resource, face.Slice, crt.ClearColour)
		list.ClearDepthStencilView(crt.depthStencil, 1.0, 0)
		list.OMSetRenderTargets(face.Resource, face.Slice, crt.depthStencil)
		if drawFace != nil {
			if err := drawFace(i, list); err != nil {
				return fmt.Errorf("cube face %d: %w", i, err)
			}
		}
	}
	return rec.Transition(crt.cubeMap, metadata.ResourceStateGenericRead)
}

// OnResize rebuilds the target with a new edge length. The GPU must be done
// with the old one.
func (crt *CubeRenderTarget) OnResize(size uint32) error {
	if size == crt.size {
		return nil
	}
	if size == 0 {
		return fmt.Errorf("%w: cube map size must be positive", core.ErrInvalidConfig)
	}
	crt.Destroy()
	crt.size = size
	return crt.buildResources()
}

func (crt *CubeRenderTarget) Destroy() {
	if crt.cubeMap != nil {
		crt.cubeMap.Destroy()
		crt.cubeMap = nil
	}
	if crt.depthStencil != nil {
		crt.depthStencil.Destroy()
		crt.depthStencil = nil
	}
}

// BuildCubeFaceCameras returns one square 90 degree camera per cube face
// centered at center, in Face order.
func BuildCubeFaceCameras(center math.Vec3) [CubeFaceCount]*components.Camera {
	targets := [CubeFaceCount]math.Vec3{
		center.Add(math.NewVec3(1, 0, 0)),
		center.Add(math.NewVec3(-1, 0, 0)),
		center.Add(math.NewVec3(0, 1, 0)),
		center.Add(math.NewVec3(0, -1, 0)),
		center.Add(math.NewVec3(0, 0, 1)),
		center.Add(math.NewVec3(0, 0, -1)),
	}
	// looking straight up or down needs a different up vector
	ups := [CubeFaceCount]math.Vec3{
		math.NewVec3(0, 1, 0),
		math.NewVec3(0, 1, 0),
		math.NewVec3(0, 0, -1),
		math.NewVec3(0, 0, 1),
		math.NewVec3(0, 1, 0),
		math.NewVec3(0, 1, 0),
	}

	var cameras [CubeFaceCount]*components.Camera
	for i := range cameras {
		c := components.NewCamera()
		c.LookAt(center, targets[i], ups[i])
		c.SetLens(math.DegToRad(90), 1.0, 0.1, 1000.0)
		c.UpdateViewMatrix()
		cameras[i] = c
	}
	return cameras
}
