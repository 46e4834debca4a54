package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleModel = `VertexCount: 3
TriangleCount: 1
VertexList (pos, normal)
{
	0 0 0 0 0 -1
	1 0 0 0 0 -1
	0 1 0 0 0 -1
}
TriangleList
{
	0 1 2
}
`

type reloadResult struct {
	path string
	res  *metadata.Resource
	err  error
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestAssetManager(t *testing.T) (*AssetManager, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "configs", "engine.toml"), "[renderer]\nring_depth = 2\n")
	writeFile(t, filepath.Join(dir, "models", "triangle.txt"), triangleModel)
	writeFile(t, filepath.Join(dir, "README.md"), "ignored")

	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir))
	t.Cleanup(func() { _ = am.Shutdown() })
	return am, dir
}

func TestAssetManagerIndexesKnownTypes(t *testing.T) {
	am, dir := newTestAssetManager(t)
	assert.Equal(t, 2, am.Count())

	info, ok := am.Asset(filepath.Join(dir, "models", "triangle.txt"))
	require.True(t, ok)
	assert.Equal(t, metadata.ResourceTypeMesh, info.Type)

	_, ok = am.Asset(filepath.Join(dir, "README.md"))
	assert.False(t, ok)
}

func TestAssetManagerLoadsConfigAndMesh(t *testing.T) {
	am, _ := newTestAssetManager(t)

	res, err := am.LoadAsset("engine", metadata.ResourceTypeConfig, nil)
	require.NoError(t, err)
	cfg, ok := res.Data.(*core.Config)
	require.True(t, ok)
	assert.Equal(t, 2, cfg.Renderer.RingDepth)
	assert.Equal(t, "engine", res.Name)

	res, err = am.LoadAsset("triangle", metadata.ResourceTypeMesh, nil)
	require.NoError(t, err)
	mesh, ok := res.Data.(*metadata.MeshData)
	require.True(t, ok)
	assert.Len(t, mesh.Vertices, 3)
	assert.Equal(t, []uint32{0, 1, 2}, mesh.Indices)
	require.NoError(t, am.UnloadAsset(res))

	_, err = am.LoadAsset("missing", metadata.ResourceTypeMesh, nil)
	assert.Error(t, err)
	_, err = am.LoadAsset("engine", metadata.ResourceTypeCustom, nil)
	assert.Error(t, err)
}

// waitForReload drains reloads until match accepts one.
func waitForReload(t *testing.T, results <-chan reloadResult, match func(reloadResult) bool) reloadResult {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r := <-results:
			if match(r) {
				return r
			}
		case <-timeout:
			t.Fatal("no matching reload before the timeout")
			return reloadResult{}
		}
	}
}

func TestAssetManagerHotReloadsConfig(t *testing.T) {
	am, dir := newTestAssetManager(t)
	results := make(chan reloadResult, 16)
	am.OnReload(metadata.ResourceTypeConfig, func(path string, res *metadata.Resource, err error) {
		results <- reloadResult{path: path, res: res, err: err}
	})

	path := filepath.Join(dir, "configs", "engine.toml")
	writeFile(t, path, "[culling]\nenabled = false\n")
	r := waitForReload(t, results, func(r reloadResult) bool {
		return r.err == nil && !r.res.Data.(*core.Config).Culling.Enabled
	})
	assert.Equal(t, filepath.Clean(path), r.path)

	writeFile(t, path, "[culling]\nenabled = \"sometimes\"\n")
	r = waitForReload(t, results, func(r reloadResult) bool { return r.err != nil })
	assert.ErrorIs(t, r.err, core.ErrDataFormat)
	assert.Nil(t, r.res)
}

func TestAssetManagerShutdownIsIdempotent(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())
	assert.ErrorIs(t, am.addRecursive(t.TempDir()), ErrAssetManagerClosed)
}
