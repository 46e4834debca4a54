package metadata

import "github.com/spaghettifunk/framering/engine/math"

/** @brief Lights carried by the pass constants. Unused ones have zero strength. */
const MaxLights = 16

/**
 * @brief A light as laid out in the pass constant buffer.
 */
type Light struct {
	Strength     math.Vec3
	FalloffStart float32
	/** @brief Directional and spot lights only. */
	Direction  math.Vec3
	FalloffEnd float32
	/** @brief Point and spot lights only. */
	Position  math.Vec3
	SpotPower float32
}

const lightSize = 48

/**
 * @brief Per pass data. Matrices are stored transposed for the shaders.
 */
type PassConstants struct {
	View                math.Mat4
	InvView             math.Mat4
	Proj                math.Mat4
	InvProj             math.Mat4
	ViewProj            math.Mat4
	InvViewProj         math.Mat4
	EyePosW             math.Vec3
	RenderTargetSize    math.Vec2
	InvRenderTargetSize math.Vec2
	NearZ               float32
	FarZ                float32
	TotalTime           float32
	DeltaTime           float32
	AmbientLight        math.Vec4
	Lights              [MaxLights]Light
}

// 6 matrices, eye + pad, 2 x vec2, 4 scalars, ambient, lights.
const passConstantsSize = 6*64 + 16 + 16 + 16 + 16 + MaxLights*lightSize

func (p PassConstants) Size() uint64 {
	return passConstantsSize
}

func (p PassConstants) Marshal() []byte {
	buf := make([]byte, passConstantsSize)
	o := 0
	for _, m := range []math.Mat4{p.View, p.InvView, p.Proj, p.InvProj, p.ViewProj, p.InvViewProj} {
		o = putMat4(buf, o, m.Transposed())
	}
	o = putVec3(buf, o, p.EyePosW)
	o += 4
	o = putFloat32(buf, o, p.RenderTargetSize.X)
	o = putFloat32(buf, o, p.RenderTargetSize.Y)
	o = putFloat32(buf, o, p.InvRenderTargetSize.X)
	o = putFloat32(buf, o, p.InvRenderTargetSize.Y)
	o = putFloat32(buf, o, p.NearZ)
	o = putFloat32(buf, o, p.FarZ)
	o = putFloat32(buf, o, p.TotalTime)
	o = putFloat32(buf, o, p.DeltaTime)
	o = putVec4(buf, o, p.AmbientLight)
	for _, l := range p.Lights {
		o = putVec3(buf, o, l.Strength)
		o = putFloat32(buf, o, l.FalloffStart)
		o = putVec3(buf, o, l.Direction)
		o = putFloat32(buf, o, l.FalloffEnd)
		o = putVec3(buf, o, l.Position)
		o = putFloat32(buf, o, l.SpotPower)
	}
	return buf
}

/**
 * @brief Per object data for non instanced draws.
 */
type ObjectConstants struct {
	World         math.Mat4
	TexTransform  math.Mat4
	MaterialIndex uint32
}

const objectConstantsSize = 64 + 64 + 16

func (c ObjectConstants) Size() uint64 {
	return objectConstantsSize
}

func (c ObjectConstants) Marshal() []byte {
	buf := make([]byte, objectConstantsSize)
	o := putMat4(buf, 0, c.World.Transposed())
	o = putMat4(buf, o, c.TexTransform.Transposed())
	putUint32(buf, o, c.MaterialIndex)
	return buf
}

/**
 * @brief One element of the structured instance buffer.
 */
type InstanceData struct {
	World         math.Mat4
	TexTransform  math.Mat4
	MaterialIndex uint32
}

// Two matrices, the material index and three pad words.
const InstanceDataSize = 64 + 64 + 16

func (d InstanceData) Size() uint64 {
	return InstanceDataSize
}

func (d InstanceData) Marshal() []byte {
	buf := make([]byte, InstanceDataSize)
	o := putMat4(buf, 0, d.World.Transposed())
	o = putMat4(buf, o, d.TexTransform.Transposed())
	putUint32(buf, o, d.MaterialIndex)
	return buf
}

// UnmarshalInstanceData decodes an element written by Marshal.
func UnmarshalInstanceData(buf []byte) InstanceData {
	return InstanceData{
		World:         getMat4(buf, 0).Transposed(),
		TexTransform:  getMat4(buf, 64).Transposed(),
		MaterialIndex: uint32(buf[128]) | uint32(buf[129])<<8 | uint32(buf[130])<<16 | uint32(buf[131])<<24,
	}
}
