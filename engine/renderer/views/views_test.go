package views

import (
	"bytes"
	"context"
	"encoding/binary"
	stdmath "math"
	"testing"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/headless"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/spaghettifunk/framering/engine/systems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSize = 8

func newTestRenderer(t *testing.T) (*renderer.Renderer, *headless.Device) {
	t.Helper()
	dev, err := headless.NewDevice(headless.Options{})
	require.NoError(t, err)
	r, err := renderer.NewRenderer(dev, renderer.RendererConfig{
		RingDepth:       3,
		BackBufferCount: 2,
		Width:           testSize,
		Height:          testSize,
		Counts:          renderer.FrameResourceCounts{Passes: 1, Objects: 4, Materials: 4, Instances: 16},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Shutdown(context.Background())
		_ = dev.Shutdown()
	})
	return r, dev
}

func TestGaussWeights(t *testing.T) {
	weights, err := GaussWeights(2.5)
	require.NoError(t, err)
	require.Len(t, weights, 11)

	var sum float32
	for i, w := range weights {
		sum += w
		assert.InDelta(t, w, weights[len(weights)-1-i], 1e-7, "symmetric")
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Greater(t, weights[5], weights[4])

	weights, err = GaussWeights(1.2)
	require.NoError(t, err)
	assert.Len(t, weights, 2*3+1)

	_, err = GaussWeights(3)
	assert.ErrorIs(t, err, core.ErrBlurRadius)
	_, err = GaussWeights(0)
	assert.ErrorIs(t, err, core.ErrBlurRadius)
}

func putTexel(data []byte, offset int, v float32) {
	for c := 0; c < 4; c++ {
		binary.LittleEndian.PutUint32(data[offset+4*c:], stdmath.Float32bits(v))
	}
}

func TestBlurKernelSpreadsAnImpulse(t *testing.T) {
	const w, h = 16, 3
	desc := metadata.Texture2DDesc("img", w, h, 1, metadata.FormatR32G32B32A32Float, 0)
	in := make([]byte, desc.ByteSize())
	out := make([]byte, desc.ByteSize())
	putTexel(in, (1*w+8)*16, 1)

	weights, err := GaussWeights(1)
	require.NoError(t, err)
	constants := []uint32{uint32(len(weights) / 2)}
	for _, wt := range weights {
		constants = append(constants, stdmath.Float32bits(wt))
	}
	ctx := &renderer.KernelContext{
		ThreadGroups: [3]uint32{1, h, 1},
		Constants:    map[uint32][]uint32{blurSlotConstants: constants},
		Views: map[uint32]renderer.KernelView{
			blurSlotInput:  {Desc: desc, Data: in},
			blurSlotOutput: {Desc: desc, Data: out},
		},
	}
	require.NoError(t, BlurKernel(true)(ctx))

	// the impulse row now holds the weights around x=8
	for k := -2; k <= 2; k++ {
		texel := readTexel(out, (1*w+8+k)*16)
		assert.InDelta(t, weights[k+2], texel[0], 1e-6, "offset %d", k)
		assert.InDelta(t, weights[k+2], texel[3], 1e-6, "offset %d", k)
	}
	assert.Zero(t, readTexel(out, (1*w+5)*16)[0])
	assert.Zero(t, readTexel(out, (0*w+8)*16)[0])

	// a constant image stays constant, edges included
	for i := 0; i < w*h; i++ {
		putTexel(in, i*16, 0.5)
	}
	ctx.ThreadGroups = [3]uint32{w, 1, 1}
	require.NoError(t, BlurKernel(false)(ctx))
	for i := 0; i < w*h; i++ {
		assert.InDelta(t, 0.5, readTexel(out, i*16)[1], 1e-5)
	}

	delete(ctx.Views, blurSlotOutput)
	assert.Error(t, BlurKernel(true)(ctx))
}

func TestBlurFilterPairsItsTransitions(t *testing.T) {
	r, dev := newTestRenderer(t)
	catalog := metadata.NewPipelineCatalog()
	world := NewWorldView(catalog)
	blur, err := NewBlurFilter(dev, catalog, testSize, testSize, renderer.BackBufferFormat, 2.5)
	require.NoError(t, err)
	t.Cleanup(blur.Destroy)
	ctx := context.Background()

	const blurCount = 3
	frame, err := r.BeginFrame(ctx)
	require.NoError(t, err)
	require.NoError(t, world.Draw(r, frame, nil))

	rec := r.Recorder()
	back, err := r.CurrentBackBuffer()
	require.NoError(t, err)
	require.NoError(t, blur.Execute(rec, back, blurCount))
	require.NoError(t, rec.Transition(back, metadata.ResourceStateCopyDest))
	rec.List().CopyResource(back, blur.Output())
	require.NoError(t, blur.Finish(rec))
	require.NoError(t, rec.Transition(back, metadata.ResourceStatePresent))

	history := rec.History(blur.Output())
	expected := []metadata.ResourceState{
		metadata.ResourceStateCommon,
		metadata.ResourceStateCopyDest,
		metadata.ResourceStateGenericRead,
	}
	for i := 0; i < blurCount; i++ {
		expected = append(expected, metadata.ResourceStateUnorderedAccess, metadata.ResourceStateGenericRead)
	}
	expected = append(expected, metadata.ResourceStateCommon)
	assert.Equal(t, expected, history)

	require.NoError(t, r.EndFrame(ctx))
	require.NoError(t, r.Flush(ctx))
	assert.NoError(t, dev.RemovedReason())
	assert.Equal(t, uint64(2*blurCount), dev.Stats().Dispatches)
	assert.Equal(t, metadata.ResourceStateCommon, dev.ResourceState(blur.Output()))

	require.NoError(t, blur.OnResize(16, 4))
	assert.Equal(t, uint64(16), blur.Output().Desc().Width)
	require.NoError(t, blur.SetSigma(1))
	assert.Len(t, blur.Weights(), 5)
	assert.Error(t, blur.SetSigma(4))
}

func TestBlurExecuteNeedsTrackedInput(t *testing.T) {
	r, dev := newTestRenderer(t)
	blur, err := NewBlurFilter(dev, metadata.NewPipelineCatalog(), testSize, testSize, renderer.BackBufferFormat, 1)
	require.NoError(t, err)
	t.Cleanup(blur.Destroy)

	_, err = r.ExecuteImmediate(context.Background(), func(rec *renderer.CommandRecorder) error {
		other, err := dev.CreateCommittedResource(
			metadata.Texture2DDesc("loose", testSize, testSize, 1, renderer.BackBufferFormat, 0),
			metadata.ResourceStateRenderTarget)
		require.NoError(t, err)
		return blur.Execute(rec, other, 1)
	})
	assert.ErrorIs(t, err, core.ErrUntrackedResource)
}

func TestBlurFilterRejectsEightBitMaps(t *testing.T) {
	_, dev := newTestRenderer(t)
	_, err := NewBlurFilter(dev, metadata.NewPipelineCatalog(), testSize, testSize, metadata.FormatR8G8B8A8Unorm, 1)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.Equal(t, BlurMapFormat, renderer.BackBufferFormat)
}

func TestWorldViewDrawsEveryItem(t *testing.T) {
	r, dev := newTestRenderer(t)
	world := NewWorldView(metadata.NewPipelineCatalog())
	ctx := context.Background()

	items := []*systems.RenderItem{
		{IndexCount: 36, VisibleInstanceCount: 1},
		{IndexCount: 36, Instances: make([]metadata.InstanceData, 5), VisibleInstanceCount: 3, InstanceBufferOffset: 1},
	}
	frame, err := r.BeginFrame(ctx)
	require.NoError(t, err)
	require.NoError(t, world.Render(r, frame, items))
	back, err := r.CurrentBackBuffer()
	require.NoError(t, err)
	assert.Equal(t, []metadata.ResourceState{
		metadata.ResourceStatePresent,
		metadata.ResourceStateRenderTarget,
		metadata.ResourceStatePresent,
	}, r.Recorder().History(back))
	require.NoError(t, r.EndFrame(ctx))
	require.NoError(t, r.Flush(ctx))

	stats := dev.Stats()
	assert.Equal(t, uint64(2), stats.Draws)
	assert.Equal(t, uint64(4), stats.Instances)
	assert.Equal(t, uint64(2), stats.Clears)
	assert.Equal(t, uint64(1), stats.Presents)
}

func TestCubeRenderTarget(t *testing.T) {
	r, dev := newTestRenderer(t)
	cube, err := NewCubeRenderTarget(dev, 4, renderer.BackBufferFormat)
	require.NoError(t, err)
	t.Cleanup(cube.Destroy)

	for i := 0; i < CubeFaceCount; i++ {
		face, err := cube.Face(i)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), face.Slice)
	}
	_, err = cube.Face(CubeFaceCount)
	assert.ErrorIs(t, err, core.ErrOutOfRange)
	_, err = cube.Face(-1)
	assert.ErrorIs(t, err, core.ErrOutOfRange)
	assert.Equal(t, metadata.NewViewport(4, 4), cube.Viewport())

	var drawn []int
	_, err = r.ExecuteImmediate(context.Background(), func(rec *renderer.CommandRecorder) error {
		return cube.RenderFaces(rec, func(face int, list renderer.CommandList) error {
			drawn = append(drawn, face)
			list.DrawIndexedInstanced(3, 1, 0, 0, 0)
			return nil
		})
	})
	require.NoError(t, err)
	require.NoError(t, r.Flush(context.Background()))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, drawn)
	assert.Equal(t, uint64(12), dev.Stats().Clears)
	assert.Equal(t, uint64(6), dev.Stats().Draws)
	assert.Equal(t, metadata.ResourceStateGenericRead, dev.ResourceState(cube.Resource()))

	require.NoError(t, cube.OnResize(8))
	assert.Equal(t, uint32(8), cube.Size())
	assert.Equal(t, uint16(CubeFaceCount), cube.Resource().Desc().ArraySize)
}

func TestBuildCubeFaceCameras(t *testing.T) {
	center := math.NewVec3(0, 2, 0)
	cameras := BuildCubeFaceCameras(center)
	looks := []math.Vec3{
		math.NewVec3(1, 0, 0), math.NewVec3(-1, 0, 0),
		math.NewVec3(0, 1, 0), math.NewVec3(0, -1, 0),
		math.NewVec3(0, 0, 1), math.NewVec3(0, 0, -1),
	}
	for i, c := range cameras {
		assert.True(t, c.Look.Compare(looks[i], 1e-5), "face %d looks at %v", i, c.Look)
		assert.Equal(t, center, c.Position)
		assert.InDelta(t, 0.5*math.K_PI, c.FovY, 1e-6)
		assert.Equal(t, float32(1), c.Aspect)
		assert.InDelta(t, 0, c.Up.Dot(c.Look), 1e-5)
	}
}

func TestVecMagDemoComputesLengths(t *testing.T) {
	r, dev := newTestRenderer(t)
	data := GenerateVectors(7, NumVecMagElements)
	demo, err := NewVecMagDemo(r, metadata.NewPipelineCatalog(), data)
	require.NoError(t, err)
	t.Cleanup(demo.Destroy)

	lengths, err := demo.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, lengths, NumVecMagElements)
	for i, l := range lengths {
		assert.InDelta(t, data[i].Length(), l, 1e-4)
		assert.GreaterOrEqual(t, l, MinVecLength-1e-4)
		assert.LessOrEqual(t, l, MaxVecLength)
	}
	assert.Equal(t, uint64(1), dev.Stats().Dispatches)
	assert.Zero(t, r.PendingReleases())

	// same seed, same input
	assert.Equal(t, data, GenerateVectors(7, NumVecMagElements))
}

func TestVecMagDemoRunsAgain(t *testing.T) {
	r, dev := newTestRenderer(t)
	demo, err := NewVecMagDemo(r, metadata.NewPipelineCatalog(), GenerateVectors(3, NumVecMagElements))
	require.NoError(t, err)
	t.Cleanup(demo.Destroy)

	first, err := demo.Run(context.Background())
	require.NoError(t, err)
	second, err := demo.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NoError(t, dev.RemovedReason())
	assert.Equal(t, uint64(2), dev.Stats().Dispatches)
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, []float32{1, 2.5, 10, 0.5, 12.345678, 3.14159274}))
	assert.Equal(t, "1\n2.5\n10\nLength out of range\nLength out of range\n3.14159\n", buf.String())
}
