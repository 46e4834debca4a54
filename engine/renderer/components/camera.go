package components

import (
	"github.com/spaghettifunk/framering/engine/math"
)

/**
 * @brief A first person camera described by a position and an orthonormal
 * basis (right, up, look) plus a perspective lens. The view matrix is rebuilt
 * lazily when the camera moved.
 */
type Camera struct {
	/** @brief The position of this camera in world space. */
	Position math.Vec3
	Right    math.Vec3
	Up       math.Vec3
	Look     math.Vec3

	NearZ  float32
	FarZ   float32
	Aspect float32
	FovY   float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool

	ViewMatrix math.Mat4
	ProjMatrix math.Mat4
}

/** @brief The name of the default camera. */
const DEFAULT_CAMERA_NAME string = "default"

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = math.NewVec3Zero()
	c.Right = math.NewVec3Right()
	c.Up = math.NewVec3Up()
	c.Look = math.NewVec3Forward()
	c.SetLens(math.DegToRad(45), 1.0, 1.0, 1000.0)
	c.ViewMatrix = math.NewMat4Identity()
	c.IsDirty = true
}

// SetLens builds a left handed perspective projection.
func (c *Camera) SetLens(fovY, aspect, zn, zf float32) {
	c.FovY = fovY
	c.Aspect = aspect
	c.NearZ = zn
	c.FarZ = zf
	c.ProjMatrix = math.NewMat4PerspectiveLH(fovY, aspect, zn, zf)
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

// LookAt points the camera from pos towards target.
func (c *Camera) LookAt(pos, target, worldUp math.Vec3) {
	c.Look = target.Sub(pos).Normalized()
	c.Right = worldUp.Cross(c.Look).Normalized()
	c.Up = c.Look.Cross(c.Right)
	c.Position = pos
	c.IsDirty = true
}

// Walk moves along the look direction.
func (c *Camera) Walk(d float32) {
	c.Position = c.Position.Add(c.Look.MulScalar(d))
	c.IsDirty = true
}

// Strafe moves along the right direction.
func (c *Camera) Strafe(d float32) {
	c.Position = c.Position.Add(c.Right.MulScalar(d))
	c.IsDirty = true
}

// Pitch rotates up and look about the right vector.
func (c *Camera) Pitch(angle float32) {
	r := math.NewMat4RotationAxis(c.Right, angle)
	c.Up = c.Up.TransformNormal(r)
	c.Look = c.Look.TransformNormal(r)
	c.IsDirty = true
}

// RotateY rotates the basis about the world y axis.
func (c *Camera) RotateY(angle float32) {
	r := math.NewMat4EulerY(angle)
	c.Right = c.Right.TransformNormal(r)
	c.Up = c.Up.TransformNormal(r)
	c.Look = c.Look.TransformNormal(r)
	c.IsDirty = true
}

// UpdateViewMatrix re-orthonormalizes the basis and rebuilds the view matrix.
func (c *Camera) UpdateViewMatrix() {
	if !c.IsDirty {
		return
	}
	// drift from repeated rotations
	c.Look = c.Look.Normalized()
	c.Up = c.Look.Cross(c.Right).Normalized()
	c.Right = c.Up.Cross(c.Look)

	c.ViewMatrix = math.NewMat4View(c.Position, c.Right, c.Up, c.Look)
	c.IsDirty = false
}

func (c *Camera) GetView() math.Mat4 {
	c.UpdateViewMatrix()
	return c.ViewMatrix
}

func (c *Camera) GetProjection() math.Mat4 {
	return c.ProjMatrix
}

// Frustum is the view space frustum of the lens.
func (c *Camera) Frustum() math.Frustum {
	return math.NewFrustumFromProjection(c.ProjMatrix)
}
