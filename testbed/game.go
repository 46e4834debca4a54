package testbed

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/framering/engine"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/components"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/spaghettifunk/framering/engine/renderer/views"
	"github.com/spaghettifunk/framering/engine/systems"
)

// The model drawn at every grid point.
const meshName = "sphere"

// Radians per second the camera turns around the grid.
const cameraTurnRate = 0.1

// Radians per second the center sphere spins.
const centerSpinRate = 0.5

type TestGame struct {
	*engine.Game
}

type gameState struct {
	config *core.Config

	worldCamera *components.Camera
	worldView   *views.WorldView
	item        *systems.RenderItem

	// a single sphere at the grid center, the one the cube map is for
	center   *math.Transform
	centerID int

	// the grid seen from its center, once per cube face
	dynamicCube bool
	cube        *views.CubeRenderTarget
	cubeCameras [views.CubeFaceCount]*components.Camera
	faceCull    [views.CubeFaceCount]systems.CullStats

	totalTime float64
	width     uint32
	height    uint32
}

// The materials cycled over the instances.
var materials = []*metadata.Material{
	{Name: "bricks0", DiffuseAlbedo: math.NewVec4(1, 1, 1, 1), FresnelR0: math.NewVec3(0.02, 0.02, 0.02), Roughness: 0.1},
	{Name: "stone0", DiffuseAlbedo: math.NewVec4(1, 1, 1, 1), FresnelR0: math.NewVec3(0.05, 0.05, 0.05), Roughness: 0.3},
	{Name: "tile0", DiffuseAlbedo: math.NewVec4(1, 1, 1, 1), FresnelR0: math.NewVec3(0.02, 0.02, 0.02), Roughness: 0.3},
	{Name: "checkboard0", DiffuseAlbedo: math.NewVec4(1, 1, 1, 1), FresnelR0: math.NewVec3(0.05, 0.05, 0.05), Roughness: 0.2},
	{Name: "ice0", DiffuseAlbedo: math.NewVec4(1, 1, 1, 1), FresnelR0: math.NewVec3(0.1, 0.1, 0.1), Roughness: 0.0},
	{Name: "grass0", DiffuseAlbedo: math.NewVec4(1, 1, 1, 1), FresnelR0: math.NewVec3(0.05, 0.05, 0.05), Roughness: 0.2},
	{Name: "skullMat", DiffuseAlbedo: math.NewVec4(1, 1, 1, 1), FresnelR0: math.NewVec3(0.05, 0.05, 0.05), Roughness: 0.5},
}

/**
 * @brief Creates the instancing and culling demo: a grid of instanced
 * spheres seen by a slowly turning camera. With dynamicCube set the grid is
 * also rendered into a cube map every frame.
 */
func NewTestGame(cfg *core.Config, assetsDir string, maxFrames uint64, dynamicCube bool) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:      "framering instancing demo",
				AssetsDir: assetsDir,
				MaxFrames: maxFrames,
				Counts:    engine.DefaultFrameResourceCounts(cfg),
			},
			State: &gameState{
				config:      cfg,
				dynamicCube: dynamicCube,
			},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting %s...", g.ApplicationConfig.Name)
	return nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil || g.AssetManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers")
	}
	state := g.State.(*gameState)

	for i, m := range materials {
		mat := *m
		mat.DiffuseSrvHeapIndex = uint32(i)
		mat.MatTransform = math.NewMat4Identity()
		if _, err := g.SystemManager.MaterialSystem().Register(&mat); err != nil {
			return err
		}
	}

	res, err := g.AssetManager.LoadAsset(meshName, metadata.ResourceTypeMesh, nil)
	if err != nil {
		core.LogError("failed to load the %s model", meshName)
		return err
	}
	mesh := res.Data.(*metadata.MeshData)
	geo, err := g.SystemManager.GeometrySystem().Upload(context.Background(), mesh, map[metadata.SubmeshID]metadata.SubmeshGeometry{
		0: {IndexCount: uint32(len(mesh.Indices)), Bounds: mesh.Bounds},
	})
	if err != nil {
		return err
	}

	instances, err := systems.NewInstanceGrid(state.config).Build(g.SystemManager.MaterialSystem().Count())
	if err != nil {
		return err
	}
	state.item = &systems.RenderItem{
		Mat:        g.SystemManager.MaterialSystem().GetDefault(),
		Geo:        geo,
		IndexCount: geo.IndexCount,
		Instances:  instances,
		Bounds:     mesh.Bounds,
		HasBounds:  true,
	}
	if _, err := g.SystemManager.RenderItemSystem().Add(state.item); err != nil {
		return err
	}

	centerMat, err := g.SystemManager.MaterialSystem().Acquire("skullMat")
	if err != nil {
		return err
	}
	state.center = math.TransformFromPositionRotationScale(math.NewVec3Zero(), math.NewQuatIdentity(), math.NewVec3(0.4, 0.4, 0.4))
	state.centerID, err = g.SystemManager.RenderItemSystem().Add(&systems.RenderItem{
		World:      state.center.GetWorld(),
		Mat:        centerMat,
		Geo:        geo,
		IndexCount: geo.IndexCount,
	})
	if err != nil {
		return err
	}

	state.worldCamera = g.SystemManager.CameraSystem().GetDefault()
	state.worldCamera.SetPosition(math.NewVec3(0, 2, -15))
	state.worldView = views.NewWorldView(g.Catalog)

	if state.dynamicCube {
		if state.cube, err = views.NewCubeRenderTarget(g.Renderer.Device(), views.CubeMapSize, renderer.BackBufferFormat); err != nil {
			return err
		}
		state.cubeCameras = views.BuildCubeFaceCameras(math.NewVec3Zero())
	}
	core.LogInfo("%d instances of %s in a %d^3 grid", len(instances), meshName, state.config.Instancing.Grid)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.totalTime += deltaTime
	state.worldCamera.RotateY(float32(cameraTurnRate * deltaTime))

	state.center.Rotate(math.NewQuatFromAxisAngle(math.NewVec3Up(), float32(centerSpinRate*deltaTime)))
	return g.SystemManager.RenderItemSystem().SetWorld(state.centerID, state.center.GetWorld())
}

// Render draws the grid, without the center sphere, into the six cube faces
// before the main pass. Face i is pass 1+i and is culled against its own
// camera.
func (g *TestGame) Render(frame *renderer.FrameResource, deltaTime float64) error {
	state := g.State.(*gameState)
	if state.cube == nil {
		return nil
	}
	size := state.cube.Size()
	items := []*systems.RenderItem{state.item}
	for i, cam := range state.cubeCameras {
		pass := views.NewPassConstants(cam, size, size, float32(state.totalTime), float32(deltaTime))
		if err := frame.PassCB.CopyData(1+i, pass); err != nil {
			return err
		}
		stats, err := g.SystemManager.VisibilitySystem().FilterPass(1+i, cam.GetView(), cam.Frustum(), items, frame)
		if err != nil {
			return err
		}
		state.faceCull[i] = stats
	}
	return state.cube.RenderFaces(g.Renderer.Recorder(), func(face int, list renderer.CommandList) error {
		state.worldView.DrawWithPass(list, frame, 1+face, items)
		return nil
	})
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	core.LogDebug("render size is now %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	if state.cube != nil {
		state.cube.Destroy()
		state.cube = nil
	}
	g.SystemManager.GeometrySystem().Release(meshName)
	return nil
}
