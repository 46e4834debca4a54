package systems

import (
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
)

// SystemManager creates the engine systems in dependency order and tears
// them down in reverse.
type SystemManager struct {
	cameraSystem     *CameraSystem
	geometrySystem   *GeometrySystem
	materialSystem   *MaterialSystem
	renderItemSystem *RenderItemSystem
	visibilitySystem *VisibilitySystem
}

func NewSystemManager(cfg *core.Config, r *renderer.Renderer, counts renderer.FrameResourceCounts) (*SystemManager, error) {
	depth := r.Ring().Depth()

	cs, err := NewCameraSystem(&CameraSystemConfig{
		MaxCameraCount: 100,
		FovY:           0.25 * math.K_PI,
		Aspect:         r.AspectRatio(),
		NearZ:          1.0,
		FarZ:           1000.0,
	})
	if err != nil {
		return nil, err
	}
	gs, err := NewGeometrySystem(&GeometrySystemConfig{
		MaxGeometryCount: 1000,
	}, r)
	if err != nil {
		return nil, err
	}
	ms, err := NewMaterialSystem(&MaterialSystemConfig{
		MaxMaterialCount:  uint32(counts.Materials),
		NumFrameResources: depth,
	})
	if err != nil {
		return nil, err
	}
	ris, err := NewRenderItemSystem(&RenderItemSystemConfig{
		MaxRenderItems:    counts.Objects,
		MaxInstances:      counts.Instances,
		NumFrameResources: depth,
	})
	if err != nil {
		return nil, err
	}
	vs, err := NewVisibilitySystem(&VisibilitySystemConfig{
		Workers: cfg.Culling.Workers,
		Enabled: cfg.Culling.Enabled,
	})
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		cameraSystem:     cs,
		geometrySystem:   gs,
		materialSystem:   ms,
		renderItemSystem: ris,
		visibilitySystem: vs,
	}, nil
}

func (sm *SystemManager) CameraSystem() *CameraSystem {
	return sm.cameraSystem
}

func (sm *SystemManager) GeometrySystem() *GeometrySystem {
	return sm.geometrySystem
}

func (sm *SystemManager) MaterialSystem() *MaterialSystem {
	return sm.materialSystem
}

func (sm *SystemManager) RenderItemSystem() *RenderItemSystem {
	return sm.renderItemSystem
}

func (sm *SystemManager) VisibilitySystem() *VisibilitySystem {
	return sm.visibilitySystem
}

// OnConfigReloaded applies the settings that can change at runtime.
func (sm *SystemManager) OnConfigReloaded(cfg *core.Config) {
	sm.visibilitySystem.SetEnabled(cfg.Culling.Enabled)
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.visibilitySystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.renderItemSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.materialSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.geometrySystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.cameraSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
