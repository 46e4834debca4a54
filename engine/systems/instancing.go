package systems

import (
	"fmt"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// InstanceGrid lays n*n*n instances out on a regular lattice centered at
// the origin and spanning Width x Height x Depth.
type InstanceGrid struct {
	N      int
	Width  float32
	Height float32
	Depth  float32
}

func NewInstanceGrid(cfg *core.Config) InstanceGrid {
	return InstanceGrid{
		N:      cfg.Instancing.Grid,
		Width:  cfg.Instancing.Width,
		Height: cfg.Instancing.Height,
		Depth:  cfg.Instancing.Depth,
	}
}

/**
 * @brief Builds the instances, k-major then row then column. Materials are
 * cycled over numMaterials and every instance gets a 2x2 texture tiling.
 */
func (g InstanceGrid) Build(numMaterials int) ([]metadata.InstanceData, error) {
	if g.N < 1 || numMaterials < 1 {
		return nil, fmt.Errorf("%w: grid %d with %d materials", core.ErrInvalidConfig, g.N, numMaterials)
	}
	x, y, z := -0.5*g.Width, -0.5*g.Height, -0.5*g.Depth
	var dx, dy, dz float32
	if g.N > 1 {
		dx = g.Width / float32(g.N-1)
		dy = g.Height / float32(g.N-1)
		dz = g.Depth / float32(g.N-1)
	}
	texTransform := math.NewMat4Scale(math.NewVec3(2, 2, 1))

	instances := make([]metadata.InstanceData, g.N*g.N*g.N)
	for k := 0; k < g.N; k++ {
		for i := 0; i < g.N; i++ {
			for j := 0; j < g.N; j++ {
				index := k*g.N*g.N + i*g.N + j
				pos := math.NewVec3(x+float32(j)*dx, y+float32(i)*dy, z+float32(k)*dz)
				instances[index] = metadata.InstanceData{
					World:         math.NewMat4Translation(pos),
					TexTransform:  texTransform,
					MaterialIndex: uint32(index % numMaterials),
				}
			}
		}
	}
	return instances, nil
}
