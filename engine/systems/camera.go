package systems

import (
	"fmt"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/components"
)

type cameraLookup struct {
	referenceCount uint16
	camera         *components.Camera
}

type CameraSystem struct {
	Config  *CameraSystemConfig
	cameras map[string]*cameraLookup
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *components.Camera
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/** @brief The maximum number of cameras that can be managed by the system. */
	MaxCameraCount uint16
	/** @brief Lens applied to new cameras. */
	FovY   float32
	Aspect float32
	NearZ  float32
	FarZ   float32
}

func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config.MaxCameraCount == 0 {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	cs := &CameraSystem{
		Config:  config,
		cameras: make(map[string]*cameraLookup, config.MaxCameraCount),
	}
	cs.DefaultCamera = cs.newCamera()
	return cs, nil
}

func (cs *CameraSystem) newCamera() *components.Camera {
	c := components.NewCamera()
	if cs.Config.FovY > 0 && cs.Config.Aspect > 0 {
		c.SetLens(cs.Config.FovY, cs.Config.Aspect, cs.Config.NearZ, cs.Config.FarZ)
	}
	return c
}

func (cs *CameraSystem) Shutdown() error {
	cs.cameras = make(map[string]*cameraLookup)
	return nil
}

/**
 * @brief Acquires a camera by name. If one is not found, a new one is created
 * and returned. Internal reference counter is incremented.
 */
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == components.DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}
	l, ok := cs.cameras[name]
	if !ok {
		if len(cs.cameras) >= int(cs.Config.MaxCameraCount) {
			err := fmt.Errorf("func CameraSystemAcquire failed to acquire new slot. Adjust camera system config to allow more")
			core.LogError(err.Error())
			return nil, err
		}
		core.LogDebug("Creating new camera named '%s'...", name)
		l = &cameraLookup{camera: cs.newCamera()}
		cs.cameras[name] = l
	}
	l.referenceCount++
	return l.camera, nil
}

/**
 * @brief Releases a camera with the given name. Internal reference
 * counter is decremented. If this reaches 0, the camera is dropped.
 */
func (cs *CameraSystem) Release(name string) {
	if name == components.DEFAULT_CAMERA_NAME {
		core.LogDebug("Cannot release default camera. Nothing was done.")
		return
	}
	l, ok := cs.cameras[name]
	if !ok {
		core.LogWarn("CameraSystemRelease failed lookup. Nothing was done.")
		return
	}
	l.referenceCount--
	if l.referenceCount < 1 {
		delete(cs.cameras, name)
	}
}

// OnResize updates the aspect ratio of every camera.
func (cs *CameraSystem) OnResize(width, height uint32) {
	if height == 0 {
		return
	}
	aspect := float32(width) / float32(height)
	cs.Config.Aspect = aspect
	for _, c := range cs.all() {
		c.SetLens(c.FovY, aspect, c.NearZ, c.FarZ)
	}
}

func (cs *CameraSystem) all() []*components.Camera {
	out := []*components.Camera{cs.DefaultCamera}
	for _, l := range cs.cameras {
		out = append(out, l.camera)
	}
	return out
}

func (cs *CameraSystem) GetDefault() *components.Camera {
	return cs.DefaultCamera
}
