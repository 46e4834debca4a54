package math

import "github.com/chewxy/math32"

// NewFrustumFromProjection extracts the six clip planes of a row-vector,
// zero-to-one depth projection matrix. The planes live in the space the
// projection consumes, i.e. view space for a camera projection.
func NewFrustumFromProjection(proj Mat4) Frustum {
	c0, c1, c2, c3 := proj.Column(0), proj.Column(1), proj.Column(2), proj.Column(3)

	f := Frustum{}
	f.Planes[FrustumLeft] = Plane{c3.X + c0.X, c3.Y + c0.Y, c3.Z + c0.Z, c3.W + c0.W}
	f.Planes[FrustumRight] = Plane{c3.X - c0.X, c3.Y - c0.Y, c3.Z - c0.Z, c3.W - c0.W}
	f.Planes[FrustumBottom] = Plane{c3.X + c1.X, c3.Y + c1.Y, c3.Z + c1.Z, c3.W + c1.W}
	f.Planes[FrustumTop] = Plane{c3.X - c1.X, c3.Y - c1.Y, c3.Z - c1.Z, c3.W - c1.W}
	f.Planes[FrustumNear] = Plane{c2.X, c2.Y, c2.Z, c2.W}
	f.Planes[FrustumFar] = Plane{c3.X - c2.X, c3.Y - c2.Y, c3.Z - c2.Z, c3.W - c2.W}
	for i := range f.Planes {
		f.Planes[i] = f.Planes[i].Normalized()
	}
	return f
}

// Normalized scales the plane so its normal has unit length.
func (p Plane) Normalized() Plane {
	l := math32.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
	if l == 0 {
		return p
	}
	return Plane{p.X / l, p.Y / l, p.Z / l, p.W / l}
}

// Distance returns the signed distance of point to a normalized plane.
// Positive values are inside.
func (p Plane) Distance(point Vec3) float32 {
	return p.X*point.X + p.Y*point.Y + p.Z*point.Z + p.W
}

// Transform moves the frustum by m, where m maps points from the frustum's
// current space into the target space. For culling in an object's local
// space m is inverse(view) * inverse(world).
//
// A plane p satisfies dot(p, [x 1]) >= 0. With x' = x*m the same plane in
// the new space is inverse(m) applied to p as a column vector.
func (f Frustum) Transform(m Mat4) Frustum {
	inv := m.Inverse()
	out := Frustum{}
	for i, p := range f.Planes {
		pv := Vec4(p)
		out.Planes[i] = Plane{
			X: inv.Data[0]*pv.X + inv.Data[1]*pv.Y + inv.Data[2]*pv.Z + inv.Data[3]*pv.W,
			Y: inv.Data[4]*pv.X + inv.Data[5]*pv.Y + inv.Data[6]*pv.Z + inv.Data[7]*pv.W,
			Z: inv.Data[8]*pv.X + inv.Data[9]*pv.Y + inv.Data[10]*pv.Z + inv.Data[11]*pv.W,
			W: inv.Data[12]*pv.X + inv.Data[13]*pv.Y + inv.Data[14]*pv.Z + inv.Data[15]*pv.W,
		}.Normalized()
	}
	return out
}

// ContainsSphere classifies s against the frustum. A sphere that only
// touches a plane from the outside is reported as Intersects.
func (f Frustum) ContainsSphere(s BoundingSphere) ContainmentType {
	inside := true
	for _, p := range f.Planes {
		d := p.Distance(s.Center)
		if d < -s.Radius {
			return Disjoint
		}
		if d < s.Radius {
			inside = false
		}
	}
	if inside {
		return Contains
	}
	return Intersects
}

// ContainsPoint reports whether point lies inside or on every plane.
func (f Frustum) ContainsPoint(point Vec3) bool {
	for _, p := range f.Planes {
		if p.Distance(point) < 0 {
			return false
		}
	}
	return true
}
