package systems

import (
	"testing"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/headless"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCounts = renderer.FrameResourceCounts{Passes: 1, Objects: 8, Materials: 8, Instances: 128}

func newTestFrames(t *testing.T, depth int) []*renderer.FrameResource {
	t.Helper()
	dev, err := headless.NewDevice(headless.Options{})
	require.NoError(t, err)
	frames := make([]*renderer.FrameResource, depth)
	for i := range frames {
		frames[i], err = renderer.NewFrameResource(dev, i, testCounts)
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		for _, f := range frames {
			f.Destroy()
		}
		_ = dev.Shutdown()
	})
	return frames
}

func objectConstantsAt(frame *renderer.FrameResource, index int) []byte {
	return frame.ObjectCB.Element(index)[:metadata.ObjectConstants{}.Size()]
}

func TestDirtyPropagationCoversEveryFrameResource(t *testing.T) {
	for _, depth := range []int{1, 2, 3, 4} {
		frames := newTestFrames(t, depth)
		rs, err := NewRenderItemSystem(&RenderItemSystemConfig{
			MaxRenderItems:    testCounts.Objects,
			MaxInstances:      testCounts.Instances,
			NumFrameResources: depth,
		})
		require.NoError(t, err)

		id, err := rs.Add(&RenderItem{World: math.NewMat4Translation(math.NewVec3(1, 2, 3))})
		require.NoError(t, err)

		frame := 0
		runFrames := func(n int) {
			for i := 0; i < n; i++ {
				_, err := rs.UpdateObjectConstants(frames[frame%depth])
				require.NoError(t, err)
				frame++
			}
		}
		runFrames(depth)
		item, err := rs.Item(id)
		require.NoError(t, err)
		assert.Equal(t, 0, item.NumFramesDirty, "depth %d", depth)

		moved := math.NewMat4Translation(math.NewVec3(-5, 0, 7))
		require.NoError(t, rs.SetWorld(id, moved))
		assert.Equal(t, depth, item.NumFramesDirty)

		// every slot reached after the edit must carry the new world
		want := metadata.ObjectConstants{World: moved, TexTransform: math.NewMat4Identity()}.Marshal()
		for i := 0; i < depth; i++ {
			slot := frames[frame%depth]
			runFrames(1)
			assert.Equal(t, want, objectConstantsAt(slot, item.ObjCBIndex), "depth %d slot %d", depth, slot.Index)
		}
		assert.Equal(t, 0, item.NumFramesDirty)

		written, err := rs.UpdateObjectConstants(frames[0])
		require.NoError(t, err)
		assert.Zero(t, written)
	}
}

func TestRenderItemSystemLimits(t *testing.T) {
	rs, err := NewRenderItemSystem(&RenderItemSystemConfig{MaxRenderItems: 2, MaxInstances: 3, NumFrameResources: 3})
	require.NoError(t, err)

	_, err = rs.Add(&RenderItem{Instances: make([]metadata.InstanceData, 2)})
	require.NoError(t, err)
	_, err = rs.Add(&RenderItem{Instances: make([]metadata.InstanceData, 2)})
	assert.ErrorIs(t, err, core.ErrOutOfRange)

	id, err := rs.Add(&RenderItem{Instances: make([]metadata.InstanceData, 1)})
	require.NoError(t, err)
	item, _ := rs.Item(id)
	assert.Equal(t, 2, item.InstanceBufferOffset)
	assert.Equal(t, 3, rs.TotalInstances())

	_, err = rs.Add(&RenderItem{})
	assert.ErrorIs(t, err, core.ErrOutOfRange)

	_, err = rs.Item(7)
	assert.ErrorIs(t, err, core.ErrOutOfRange)
	assert.ErrorIs(t, rs.MarkDirty(-1), core.ErrOutOfRange)

	_, err = NewRenderItemSystem(&RenderItemSystemConfig{MaxRenderItems: 1})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestMaterialDirtyPropagation(t *testing.T) {
	const depth = 3
	frames := newTestFrames(t, depth)
	ms, err := NewMaterialSystem(&MaterialSystemConfig{MaxMaterialCount: 4, NumFrameResources: depth})
	require.NoError(t, err)

	brick := &metadata.Material{Name: "brick", DiffuseAlbedo: math.NewVec4(1, 0, 0, 1), Roughness: 0.3}
	idx, err := ms.Register(brick)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), idx)

	for i := 0; i < depth; i++ {
		written, err := ms.Update(frames[i])
		require.NoError(t, err)
		assert.Equal(t, 2, written)
	}
	assert.Zero(t, brick.NumFramesDirty)

	brick.Roughness = 0.9
	require.NoError(t, ms.MarkDirty("brick"))
	want := brick.Data().Marshal()
	for i := 0; i < depth; i++ {
		written, err := ms.Update(frames[i])
		require.NoError(t, err)
		assert.Equal(t, 1, written)
		assert.Equal(t, want, frames[i].MaterialBuffer.Element(int(idx)))
	}

	_, err = ms.Register(&metadata.Material{Name: "brick"})
	assert.Error(t, err)
	assert.Error(t, ms.MarkDirty("missing"))
	assert.Equal(t, DefaultMaterialName, ms.GetDefault().Name)
}

func TestInstanceGridLayout(t *testing.T) {
	grid := InstanceGrid{N: 5, Width: 200, Height: 200, Depth: 200}
	instances, err := grid.Build(3)
	require.NoError(t, err)
	require.Len(t, instances, 125)

	// k=1, i=2, j=3
	inst := instances[1*25+2*5+3]
	assert.Equal(t, math.NewMat4Translation(math.NewVec3(50, 0, -50)), inst.World)
	assert.Equal(t, uint32((1*25+2*5+3)%3), inst.MaterialIndex)
	assert.Equal(t, math.NewMat4Scale(math.NewVec3(2, 2, 1)), inst.TexTransform)

	_, err = InstanceGrid{N: 0}.Build(1)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
