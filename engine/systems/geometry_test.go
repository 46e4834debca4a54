package systems

import (
	"context"
	"testing"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/headless"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) (*renderer.Renderer, *headless.Device) {
	t.Helper()
	dev, err := headless.NewDevice(headless.Options{})
	require.NoError(t, err)
	r, err := renderer.NewRenderer(dev, renderer.RendererConfig{
		RingDepth:       3,
		BackBufferCount: 2,
		Width:           8,
		Height:          8,
		Counts:          testCounts,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Shutdown(context.Background())
		_ = dev.Shutdown()
	})
	return r, dev
}

func quadMesh() *metadata.MeshData {
	positions := []math.Vec3{
		math.NewVec3(-1, -1, 0), math.NewVec3(-1, 1, 0),
		math.NewVec3(1, 1, 0), math.NewVec3(1, -1, 0),
	}
	mesh := &metadata.MeshData{Name: "quad", Indices: []uint32{0, 1, 2, 0, 2, 3}}
	for _, p := range positions {
		mesh.Vertices = append(mesh.Vertices, metadata.Vertex{Position: p, Normal: math.NewVec3(0, 0, -1)})
	}
	mesh.Bounds = math.NewBoundingSphereFromPoints(positions)
	return mesh
}

func TestGeometryUploadLeavesBuffersReadable(t *testing.T) {
	r, dev := newTestRenderer(t)
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: 4}, r)
	require.NoError(t, err)
	ctx := context.Background()

	geo, err := gs.Upload(ctx, quadMesh(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), geo.IndexCount)
	assert.Equal(t, uint32(4), geo.VertexCount)
	assert.Equal(t, uint32(metadata.VertexSize), geo.VertexStride)
	assert.Equal(t, 1, r.PendingReleases())

	require.NoError(t, r.Flush(ctx))
	assert.Equal(t, 0, r.PendingReleases())
	assert.Equal(t, metadata.ResourceStateGenericRead, dev.ResourceState(geo.VertexBuffer))
	assert.Equal(t, metadata.ResourceStateGenericRead, dev.ResourceState(geo.IndexBuffer))
	assert.Equal(t, uint64(4*metadata.VertexSize), geo.VertexBuffer.Desc().Width)

	sm, err := geo.Submesh(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), sm.IndexCount)
	_, err = geo.Submesh(3)
	assert.ErrorIs(t, err, core.ErrOutOfRange)

	got, err := gs.Acquire("quad")
	require.NoError(t, err)
	assert.Same(t, geo, got)

	_, err = gs.Upload(ctx, quadMesh(), nil)
	assert.Error(t, err)
	_, err = gs.Acquire("missing")
	assert.Error(t, err)
}

func TestGeometryUploadRejectsEmptyMesh(t *testing.T) {
	r, _ := newTestRenderer(t)
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: 4}, r)
	require.NoError(t, err)

	_, err = gs.Upload(context.Background(), &metadata.MeshData{Name: "empty"}, nil)
	assert.ErrorIs(t, err, core.ErrDataFormat)
}

func TestGeometryReleaseWaitsForFence(t *testing.T) {
	r, dev := newTestRenderer(t)
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: 4}, r)
	require.NoError(t, err)
	ctx := context.Background()

	geo, err := gs.Upload(ctx, quadMesh(), nil)
	require.NoError(t, err)
	require.NoError(t, r.Flush(ctx))
	live := dev.LiveResources()

	gs.Release("quad")
	assert.Zero(t, gs.Count())
	require.NoError(t, r.Flush(ctx))
	assert.Equal(t, live-2, dev.LiveResources())
	assert.True(t, geo.VertexBuffer.(*headless.Resource).Destroyed())
}
