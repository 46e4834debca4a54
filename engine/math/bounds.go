package math

import "github.com/chewxy/math32"

// NewBoundingSphereFromPoints builds a sphere enclosing every point using
// Ritter's two pass approximation. An empty input yields a zero sphere.
func NewBoundingSphereFromPoints(points []Vec3) BoundingSphere {
	if len(points) == 0 {
		return BoundingSphere{}
	}

	// pick the axis with the widest spread as the seed diameter
	minX, maxX, minY, maxY, minZ, maxZ := 0, 0, 0, 0, 0, 0
	for i, p := range points {
		if p.X < points[minX].X {
			minX = i
		}
		if p.X > points[maxX].X {
			maxX = i
		}
		if p.Y < points[minY].Y {
			minY = i
		}
		if p.Y > points[maxY].Y {
			maxY = i
		}
		if p.Z < points[minZ].Z {
			minZ = i
		}
		if p.Z > points[maxZ].Z {
			maxZ = i
		}
	}
	a, b := points[minX], points[maxX]
	if d := points[maxY].Sub(points[minY]).LengthSquared(); d > b.Sub(a).LengthSquared() {
		a, b = points[minY], points[maxY]
	}
	if d := points[maxZ].Sub(points[minZ]).LengthSquared(); d > b.Sub(a).LengthSquared() {
		a, b = points[minZ], points[maxZ]
	}

	center := a.Add(b).MulScalar(0.5)
	radius := b.Sub(a).Length() * 0.5

	for _, p := range points {
		d := p.Distance(center)
		if d > radius {
			newRadius := 0.5 * (radius + d)
			center = center.Add(p.Sub(center).MulScalar((newRadius - radius) / d))
			radius = newRadius
		}
	}
	return BoundingSphere{Center: center, Radius: radius}
}

// Transform moves the sphere by m. The radius grows by the largest axis
// scale so the result still encloses the transformed volume.
func (s BoundingSphere) Transform(m Mat4) BoundingSphere {
	sx := Vec3{m.Data[0], m.Data[1], m.Data[2]}.LengthSquared()
	sy := Vec3{m.Data[4], m.Data[5], m.Data[6]}.LengthSquared()
	sz := Vec3{m.Data[8], m.Data[9], m.Data[10]}.LengthSquared()
	scale := math32.Sqrt(math32.Max(sx, math32.Max(sy, sz)))
	return BoundingSphere{Center: s.Center.Transform(m), Radius: s.Radius * scale}
}
