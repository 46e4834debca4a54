package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

/**
 * @brief A vertex and an index buffer in the default heap plus the named
 * ranges inside them.
 */
type MeshGeometry struct {
	Name string

	VertexBuffer renderer.Resource
	IndexBuffer  renderer.Resource

	VertexStride uint32
	VertexCount  uint32
	IndexCount   uint32

	Submeshes map[metadata.SubmeshID]metadata.SubmeshGeometry
	Bounds    math.BoundingSphere
}

// Submesh returns the range registered under id.
func (mg *MeshGeometry) Submesh(id metadata.SubmeshID) (metadata.SubmeshGeometry, error) {
	sm, ok := mg.Submeshes[id]
	if !ok {
		return metadata.SubmeshGeometry{}, fmt.Errorf("%w: mesh %s has no submesh %d", core.ErrOutOfRange, mg.Name, id)
	}
	return sm, nil
}

func (mg *MeshGeometry) destroy() {
	if mg.VertexBuffer != nil {
		mg.VertexBuffer.Destroy()
	}
	if mg.IndexBuffer != nil {
		mg.IndexBuffer.Destroy()
	}
}

type GeometrySystemConfig struct {
	MaxGeometryCount int
}

// GeometrySystem uploads meshes to the default heap and hands them out by name.
type GeometrySystem struct {
	config     *GeometrySystemConfig
	renderer   *renderer.Renderer
	mu         sync.RWMutex
	geometries map[string]*MeshGeometry
}

func NewGeometrySystem(config *GeometrySystemConfig, r *renderer.Renderer) (*GeometrySystem, error) {
	if config.MaxGeometryCount <= 0 {
		err := fmt.Errorf("func NewGeometrySystem - config.MaxGeometryCount must be > 0")
		core.LogWarn(err.Error())
		return nil, err
	}
	return &GeometrySystem{
		config:     config,
		renderer:   r,
		geometries: make(map[string]*MeshGeometry),
	}, nil
}

/**
 * @brief Copies mesh into two default heap buffers through temporary upload
 * buffers. The upload buffers are released once the copy has retired. When
 * submeshes is empty the whole mesh becomes submesh 0.
 */
func (gs *GeometrySystem) Upload(ctx context.Context, mesh *metadata.MeshData, submeshes map[metadata.SubmeshID]metadata.SubmeshGeometry) (*MeshGeometry, error) {
	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("%w: mesh %s is empty", core.ErrDataFormat, mesh.Name)
	}
	gs.mu.RLock()
	_, exists := gs.geometries[mesh.Name]
	count := len(gs.geometries)
	gs.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("geometry %s is already loaded", mesh.Name)
	}
	if count >= gs.config.MaxGeometryCount {
		return nil, fmt.Errorf("%w: geometry limit %d reached", core.ErrOutOfRange, gs.config.MaxGeometryCount)
	}

	vertexBytes := mesh.VertexBytes()
	indexBytes := mesh.IndexBytes()

	dev := gs.renderer.Device()
	geo := &MeshGeometry{
		Name:         mesh.Name,
		VertexStride: metadata.VertexSize,
		VertexCount:  uint32(len(mesh.Vertices)),
		IndexCount:   uint32(len(mesh.Indices)),
		Bounds:       mesh.Bounds,
		Submeshes:    submeshes,
	}
	if len(geo.Submeshes) == 0 {
		geo.Submeshes = map[metadata.SubmeshID]metadata.SubmeshGeometry{
			0: {IndexCount: geo.IndexCount, Bounds: mesh.Bounds},
		}
	}

	var err error
	geo.VertexBuffer, err = createDefaultBuffer(dev, mesh.Name+"-vb", uint64(len(vertexBytes)))
	if err != nil {
		return nil, err
	}
	geo.IndexBuffer, err = createDefaultBuffer(dev, mesh.Name+"-ib", uint64(len(indexBytes)))
	if err != nil {
		geo.destroy()
		return nil, err
	}
	vbUpload, err := createFilledUploadBuffer(dev, mesh.Name+"-vb-upload", vertexBytes)
	if err != nil {
		geo.destroy()
		return nil, err
	}
	ibUpload, err := createFilledUploadBuffer(dev, mesh.Name+"-ib-upload", indexBytes)
	if err != nil {
		vbUpload.Destroy()
		geo.destroy()
		return nil, err
	}

	fence, err := gs.renderer.ExecuteImmediate(ctx, func(rec *renderer.CommandRecorder) error {
		for _, pair := range [][2]renderer.Resource{{geo.VertexBuffer, vbUpload}, {geo.IndexBuffer, ibUpload}} {
			dst, src := pair[0], pair[1]
			rec.TrackHandoff(dst, metadata.ResourceStateCommon, metadata.ResourceStateGenericRead)
			if err := rec.Transition(dst, metadata.ResourceStateCopyDest); err != nil {
				return err
			}
			rec.List().CopyBufferRegion(dst, 0, src, 0, dst.Desc().Width)
			if err := rec.Transition(dst, metadata.ResourceStateGenericRead); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		core.LogError("failed to upload mesh %s: %s", mesh.Name, err.Error())
		vbUpload.Destroy()
		ibUpload.Destroy()
		geo.destroy()
		return nil, err
	}
	gs.renderer.DeferRelease(fence, vbUpload, ibUpload)

	gs.mu.Lock()
	gs.geometries[mesh.Name] = geo
	gs.mu.Unlock()
	core.LogDebug("uploaded mesh %s: %d vertices, %d indices", mesh.Name, geo.VertexCount, geo.IndexCount)
	return geo, nil
}

func createDefaultBuffer(dev renderer.Device, name string, size uint64) (renderer.Resource, error) {
	res, err := dev.CreateCommittedResource(
		metadata.BufferDesc(name, metadata.HeapTypeDefault, size),
		metadata.ResourceStateCommon,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrResourceCreation, name, err)
	}
	return res, nil
}

func createFilledUploadBuffer(dev renderer.Device, name string, data []byte) (renderer.Resource, error) {
	res, err := dev.CreateCommittedResource(
		metadata.BufferDesc(name, metadata.HeapTypeUpload, uint64(len(data))),
		metadata.ResourceStateGenericRead,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrResourceCreation, name, err)
	}
	mapped, err := res.Map()
	if err != nil {
		res.Destroy()
		return nil, fmt.Errorf("%w: map %s: %v", core.ErrResourceCreation, name, err)
	}
	copy(mapped, data)
	return res, nil
}

// Acquire returns the geometry uploaded under name.
func (gs *GeometrySystem) Acquire(name string) (*MeshGeometry, error) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	geo, ok := gs.geometries[name]
	if !ok {
		return nil, fmt.Errorf("geometry %s not found", name)
	}
	return geo, nil
}

// Release drops the geometry once the frames in flight are done with it.
func (gs *GeometrySystem) Release(name string) {
	gs.mu.Lock()
	geo, ok := gs.geometries[name]
	delete(gs.geometries, name)
	gs.mu.Unlock()
	if !ok {
		return
	}
	gs.renderer.DeferRelease(gs.renderer.Clock().Current(), geo.VertexBuffer, geo.IndexBuffer)
}

func (gs *GeometrySystem) Count() int {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return len(gs.geometries)
}

// Shutdown destroys every geometry. The GPU must be idle.
func (gs *GeometrySystem) Shutdown() error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	for name, geo := range gs.geometries {
		geo.destroy()
		delete(gs.geometries, name)
	}
	return nil
}
