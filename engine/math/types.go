package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief A quaternion, used to represent rotational orientation. */
type Quaternion Vec4

/**
 * @brief a 4x4 matrix laid out row-major for row vectors (v' = v * M).
 * Translation lives in Data[12], Data[13] and Data[14].
 */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/** @brief A plane stored as (a, b, c, d) with ax + by + cz + d >= 0 on the inside. */
type Plane Vec4

/**
 * @brief A sphere used as a bounding volume for culling.
 */
type BoundingSphere struct {
	/** @brief The center of the sphere. */
	Center Vec3
	/** @brief The radius of the sphere. */
	Radius float32
}

/** @brief Result of a containment test between two volumes. */
type ContainmentType uint8

const (
	/** @brief The volumes do not overlap at all. */
	Disjoint ContainmentType = iota
	/** @brief The volumes partially overlap. Touching counts as intersecting. */
	Intersects
	/** @brief The tested volume is fully inside. */
	Contains
)

func (c ContainmentType) String() string {
	switch c {
	case Disjoint:
		return "disjoint"
	case Intersects:
		return "intersects"
	case Contains:
		return "contains"
	}
	return "unknown"
}

/** @brief Indices of the six frustum planes. */
const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
	FrustumPlaneCount
)

/**
 * @brief A convex view volume described by six inward facing planes.
 */
type Frustum struct {
	Planes [FrustumPlaneCount]Plane
}

/**
 * @brief Represents the transform of an object in the world.
 * Transforms can have a parent whose own transform is then
 * taken into account. NOTE: The properties of this should not
 * be edited directly, but done via the setters to ensure proper
 * matrix generation.
 */
type Transform struct {
	/** @brief The position in the world. */
	Position Vec3
	/** @brief The rotation in the world. */
	Rotation Quaternion
	/** @brief The scale in the world. */
	Scale Vec3
	/**
	 * @brief Indicates if the position, rotation or scale have changed,
	 * indicating that the local matrix needs to be recalculated.
	 */
	IsDirty bool
	/**
	 * @brief The local transformation matrix, updated whenever
	 * the position, rotation or scale have changed.
	 */
	Local Mat4
	/** @brief A pointer to a parent transform if one is assigned. Can also be null. */
	Parent *Transform
}
