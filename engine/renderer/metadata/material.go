package metadata

import "github.com/spaghettifunk/framering/engine/math"

/**
 * @brief A surface description. NumFramesDirty counts the frame resource
 * slots still holding stale data; edits reset it to the ring depth.
 */
type Material struct {
	/** @brief The material name. */
	Name string
	/** @brief Index into the material buffer of every frame resource. */
	MatBufferIndex uint32
	/** @brief Index into the diffuse texture array. */
	DiffuseSrvHeapIndex uint32
	NumFramesDirty      int

	DiffuseAlbedo math.Vec4
	FresnelR0     math.Vec3
	Roughness     float32
	MatTransform  math.Mat4
}

// Data returns the GPU layout of the material.
func (m *Material) Data() MaterialData {
	return MaterialData{
		DiffuseAlbedo:   m.DiffuseAlbedo,
		FresnelR0:       m.FresnelR0,
		Roughness:       m.Roughness,
		MatTransform:    m.MatTransform,
		DiffuseMapIndex: m.DiffuseSrvHeapIndex,
	}
}

/**
 * @brief One element of the structured material buffer.
 */
type MaterialData struct {
	DiffuseAlbedo   math.Vec4
	FresnelR0       math.Vec3
	Roughness       float32
	MatTransform    math.Mat4
	DiffuseMapIndex uint32
}

const MaterialDataSize = 16 + 16 + 64 + 16

func (d MaterialData) Size() uint64 {
	return MaterialDataSize
}

func (d MaterialData) Marshal() []byte {
	buf := make([]byte, MaterialDataSize)
	o := putVec4(buf, 0, d.DiffuseAlbedo)
	o = putVec3(buf, o, d.FresnelR0)
	o = putFloat32(buf, o, d.Roughness)
	o = putMat4(buf, o, d.MatTransform.Transposed())
	putUint32(buf, o, d.DiffuseMapIndex)
	return buf
}
