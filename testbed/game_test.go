package testbed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/framering/engine"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runDemo draws frames of the demo with the dynamic cube map on and leaves
// the GPU idle.
func runDemo(t *testing.T, frames uint64) (*TestGame, *engine.Engine, *headless.Device) {
	t.Helper()
	cfg, err := core.LoadConfig(filepath.Join("..", "assets", "configs", "engine.toml"))
	require.NoError(t, err)
	cfg.Renderer.Width = 16
	cfg.Renderer.Height = 16
	cfg.Renderer.GPULatencyMS = 0
	// six 512x512 faces a frame are slow on the CPU, more so under -race
	cfg.Renderer.WaitTimeoutMS = 60000
	cfg.Compute.ResultsPath = filepath.Join(t.TempDir(), "results.txt")

	tb, err := NewTestGame(cfg, filepath.Join("..", "assets"), frames, true)
	require.NoError(t, err)

	dev, err := headless.NewDevice(headless.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Shutdown() })

	e, err := engine.New(tb.Game, cfg, dev)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx))
	require.NoError(t, e.Run(ctx))
	require.NoError(t, e.Renderer().Flush(ctx))
	return tb, e, dev
}

func TestInstancingDemo(t *testing.T) {
	const frames = 3
	tb, e, dev := runDemo(t, frames)

	cull := e.LastCullStats()
	assert.Equal(t, 125, cull.Total)
	assert.Greater(t, cull.Visible, 0)
	assert.Less(t, cull.Visible, cull.Total)

	stats := dev.Stats()
	assert.Equal(t, uint64(frames), stats.Presents)
	// grid and center sphere in the main pass, the grid once per cube face
	assert.Equal(t, uint64(8*frames), stats.Draws)
	assert.Equal(t, uint64(14*frames), stats.Clears)

	state := tb.State.(*gameState)
	assert.Equal(t, uint32(16), state.width)

	require.NoError(t, e.Shutdown(context.Background()))
	assert.Zero(t, dev.LiveResources())
}

func TestCubeFacesCullForTheirOwnCamera(t *testing.T) {
	tb, e, dev := runDemo(t, 1)
	defer e.Shutdown(context.Background())
	state := tb.State.(*gameState)

	seen := make([]bool, len(state.item.Instances))
	facesVisible := 0
	for i, cam := range state.cubeCameras {
		expected := 0
		for k, inst := range state.item.Instances {
			// the instance bounds in the face's view space
			bounds := state.item.Bounds.Transform(inst.World.Mul(cam.GetView()))
			if cam.Frustum().ContainsSphere(bounds) != math.Disjoint {
				expected++
				seen[k] = true
			}
		}
		assert.Equal(t, expected, state.faceCull[i].Visible, "face %d", i)
		assert.Equal(t, 125, state.faceCull[i].Total)
		assert.Equal(t, uint32(expected), state.item.Visible(1+i).Count)
		facesVisible += expected
	}

	// the faces see all around the center
	for k, ok := range seen {
		assert.True(t, ok, "instance %d is on no face", k)
	}
	assert.Less(t, e.LastCullStats().Visible, 125)

	// main pass: the visible grid and the center sphere, then every face
	want := uint64(e.LastCullStats().Visible + 1 + facesVisible)
	assert.Equal(t, want, dev.Stats().Instances)
}
