package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func TestInverse(t *testing.T) {
	m := NewMat4Scale(NewVec3(2, 3, 4)).
		Mul(NewMat4RotationAxis(NewVec3(1, 1, 0), 0.7)).
		Mul(NewMat4Translation(NewVec3(5, -6, 7)))

	assert.True(t, m.Mul(m.Inverse()).Compare(NewMat4Identity(), 1e-5))
	assert.True(t, m.Inverse().Mul(m).Compare(NewMat4Identity(), 1e-5))
	assert.InDelta(t, 24.0, m.Determinant(), 1e-3)
}

func TestInverseOfSingularIsIdentity(t *testing.T) {
	assert.Equal(t, NewMat4Identity(), Mat4{}.Inverse())
}

func TestRowVectorComposition(t *testing.T) {
	// scale first, then translate
	m := NewMat4Scale(NewVec3(2, 2, 2)).Mul(NewMat4Translation(NewVec3(1, 0, 0)))
	assert.Equal(t, NewVec3(3, 2, 2), NewVec3(1, 1, 1).Transform(m))
	assert.Equal(t, NewVec3(2, 2, 2), NewVec3(1, 1, 1).TransformNormal(m))
}

func TestTransposed(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3))
	tr := m.Transposed()
	assert.Equal(t, float32(1), tr.Data[3])
	assert.Equal(t, float32(2), tr.Data[7])
	assert.Equal(t, float32(3), tr.Data[11])
	assert.Equal(t, m, tr.Transposed())
}

func TestPerspectiveDepthRange(t *testing.T) {
	p := NewMat4PerspectiveLH(0.25*K_PI, 4.0/3.0, 1, 1000)

	near := NewVec4(0, 0, 1, 1).Transform(p)
	far := NewVec4(0, 0, 1000, 1).Transform(p)
	assert.InDelta(t, 0.0, near.Z/near.W, 1e-6)
	assert.InDelta(t, 1.0, far.Z/far.W, 1e-6)
}

func TestQuaternionMatchesAxisRotation(t *testing.T) {
	axis := NewVec3(0.3, 1, -0.2)
	q := NewQuatFromAxisAngle(axis, 1.1)
	assert.True(t, q.ToMat4().Compare(NewMat4RotationAxis(axis, 1.1), 1e-5))
	assert.True(t, NewMat4RotationAxis(NewVec3Up(), 0.4).Compare(NewMat4EulerY(0.4), 1e-6))
}

func TestLookAt(t *testing.T) {
	view := NewMat4LookAtLH(NewVec3(0, 0, -10), NewVec3Zero(), NewVec3Up())
	assert.True(t, NewVec3(0, 0, 10).Compare(NewVec3Zero().Transform(view), 1e-5))
	assert.True(t, NewVec3(1, 0, 10).Compare(NewVec3(1, 0, 0).Transform(view), 1e-5))
}

func TestTransformWorld(t *testing.T) {
	parent := TransformFromPosition(NewVec3(10, 0, 0))
	child := TransformFromPosition(NewVec3(0, 5, 0))
	child.Parent = parent
	assert.Equal(t, NewVec3(10, 5, 0), NewVec3Zero().Transform(child.GetWorld()))
}

func TestBoundingSphereFromPoints(t *testing.T) {
	points := []Vec3{
		{-1, -1, -1}, {1, 1, 1}, {1, -1, 1}, {-1, 1, -1}, {0, 2, 0},
	}
	s := NewBoundingSphereFromPoints(points)
	for _, p := range points {
		assert.LessOrEqual(t, p.Distance(s.Center), s.Radius+1e-4)
	}
	assert.Equal(t, BoundingSphere{}, NewBoundingSphereFromPoints(nil))
}

func TestBoundingSphereTransform(t *testing.T) {
	s := BoundingSphere{Center: NewVec3(1, 0, 0), Radius: 2}
	m := NewMat4Scale(NewVec3(1, 3, 1)).Mul(NewMat4Translation(NewVec3(0, 0, 5)))
	out := s.Transform(m)
	assert.Equal(t, NewVec3(1, 0, 5), out.Center)
	assert.InDelta(t, 6.0, out.Radius, 1e-6)
}

func TestRandUnitVec3(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		assert.InDelta(t, 1.0, RandUnitVec3(r).Length(), 1e-5)
		v := RandF(r, 1, 10)
		assert.GreaterOrEqual(t, v, float32(1))
		assert.Less(t, v, float32(10))
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 0, 3))
	assert.Equal(t, float32(-1), Clamp(float32(-4), -1, 1))
}
