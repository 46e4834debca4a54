package metadata

import "github.com/spaghettifunk/framering/engine/math"

type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	TexC     math.Vec2
}

const VertexSize = 32

func (v Vertex) Size() uint64 {
	return VertexSize
}

func (v Vertex) Marshal() []byte {
	buf := make([]byte, VertexSize)
	o := putVec3(buf, 0, v.Position)
	o = putVec3(buf, o, v.Normal)
	o = putFloat32(buf, o, v.TexC.X)
	putFloat32(buf, o, v.TexC.Y)
	return buf
}

/**
 * @brief CPU side mesh data as produced by the loaders.
 */
type MeshData struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
	/** @brief Sphere around every vertex, in mesh local space. */
	Bounds math.BoundingSphere
}

func (m *MeshData) VertexBytes() []byte {
	buf := make([]byte, 0, len(m.Vertices)*VertexSize)
	for _, v := range m.Vertices {
		buf = append(buf, v.Marshal()...)
	}
	return buf
}

func (m *MeshData) IndexBytes() []byte {
	buf := make([]byte, len(m.Indices)*4)
	for i, idx := range m.Indices {
		putUint32(buf, i*4, idx)
	}
	return buf
}
