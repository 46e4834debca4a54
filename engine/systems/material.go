package systems

import (
	"fmt"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

type MaterialSystemConfig struct {
	MaxMaterialCount uint32
	/** @brief Frame resources that each hold a copy of the material buffer. */
	NumFrameResources int
}

// MaterialSystem owns the materials and keeps the material buffer of every
// frame resource in sync with them.
type MaterialSystem struct {
	config    *MaterialSystemConfig
	materials []*metadata.Material
	lookup    map[string]uint32
}

func NewMaterialSystem(config *MaterialSystemConfig) (*MaterialSystem, error) {
	if config.MaxMaterialCount == 0 {
		err := fmt.Errorf("func NewMaterialSystem - config.MaxMaterialCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	if config.NumFrameResources < 1 {
		return nil, fmt.Errorf("%w: material system needs at least one frame resource", core.ErrInvalidConfig)
	}
	ms := &MaterialSystem{
		config: config,
		lookup: make(map[string]uint32),
	}
	if _, err := ms.Register(&metadata.Material{
		Name:          DefaultMaterialName,
		DiffuseAlbedo: math.NewVec4(1, 1, 1, 1),
		FresnelR0:     math.NewVec3(0.01, 0.01, 0.01),
		Roughness:     0.5,
	}); err != nil {
		return nil, err
	}
	return ms, nil
}

// Register adds m and assigns its material buffer index. The material is
// dirty for every frame resource.
func (ms *MaterialSystem) Register(m *metadata.Material) (uint32, error) {
	if _, ok := ms.lookup[m.Name]; ok {
		return 0, fmt.Errorf("material %q already registered", m.Name)
	}
	if uint32(len(ms.materials)) >= ms.config.MaxMaterialCount {
		err := fmt.Errorf("%w: material limit %d reached", core.ErrOutOfRange, ms.config.MaxMaterialCount)
		core.LogError(err.Error())
		return 0, err
	}
	if m.MatTransform == (math.Mat4{}) {
		m.MatTransform = math.NewMat4Identity()
	}
	m.MatBufferIndex = uint32(len(ms.materials))
	m.NumFramesDirty = ms.config.NumFrameResources
	ms.materials = append(ms.materials, m)
	ms.lookup[m.Name] = m.MatBufferIndex
	return m.MatBufferIndex, nil
}

func (ms *MaterialSystem) Acquire(name string) (*metadata.Material, error) {
	idx, ok := ms.lookup[name]
	if !ok {
		return nil, fmt.Errorf("material %q not found", name)
	}
	return ms.materials[idx], nil
}

func (ms *MaterialSystem) GetDefault() *metadata.Material {
	return ms.materials[0]
}

// MarkDirty flags a material edit so the next NumFrameResources frames upload it.
func (ms *MaterialSystem) MarkDirty(name string) error {
	m, err := ms.Acquire(name)
	if err != nil {
		return err
	}
	m.NumFramesDirty = ms.config.NumFrameResources
	return nil
}

// Update writes every dirty material into the frame's material buffer and
// returns how many were written.
func (ms *MaterialSystem) Update(frame *renderer.FrameResource) (int, error) {
	written := 0
	for _, m := range ms.materials {
		if m.NumFramesDirty <= 0 {
			continue
		}
		if err := frame.MaterialBuffer.CopyData(int(m.MatBufferIndex), m.Data()); err != nil {
			return written, err
		}
		m.NumFramesDirty--
		written++
	}
	return written, nil
}

func (ms *MaterialSystem) Count() int {
	return len(ms.materials)
}

func (ms *MaterialSystem) Materials() []*metadata.Material {
	return ms.materials
}

func (ms *MaterialSystem) Shutdown() error {
	ms.materials = nil
	ms.lookup = make(map[string]uint32)
	return nil
}
