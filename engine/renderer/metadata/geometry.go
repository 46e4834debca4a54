package metadata

import "github.com/spaghettifunk/framering/engine/math"

/** @brief Small integer name of a submesh inside a MeshGeometry. */
type SubmeshID uint32

/**
 * @brief A range of a shared vertex/index buffer pair that can be drawn on its own.
 */
type SubmeshGeometry struct {
	IndexCount         uint32
	StartIndexLocation uint32
	BaseVertexLocation int32
	/** @brief Bounds of the submesh in mesh local space. */
	Bounds math.BoundingSphere
}
