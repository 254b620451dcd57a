package math3d

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulIdentity(t *testing.T) {
	m := Translation(Vec3{1, 2, 3})
	assert.Equal(t, m, Identity().Mul(m))
	assert.Equal(t, m, m.Mul(Identity()))
}

func TestTransformPoint(t *testing.T) {
	m := Translation(Vec3{10, 0, -5})
	p := m.TransformPoint(Vec3{1, 2, 3})
	assert.Equal(t, Vec3{11, 2, -2}, p)

	s := Scaling(Vec3{2, 3, 4})
	p = s.TransformPoint(Vec3{1, 1, 1})
	assert.Equal(t, Vec3{2, 3, 4}, p)
}

func TestQuatToMat4_QuarterTurnZ(t *testing.T) {
	// 90 degrees around Z maps +X to +Y.
	half := math.Pi / 4
	m := QuatToMat4(0, 0, math.Sin(half), math.Cos(half))
	p := m.TransformPoint(Vec3{1, 0, 0})
	assert.InDelta(t, 0, p[0], 1e-12)
	assert.InDelta(t, 1, p[1], 1e-12)
	assert.InDelta(t, 0, p[2], 1e-12)
}

func TestCompose(t *testing.T) {
	m := Compose(Vec3{5, 0, 0}, [4]float64{0, 0, 0, 1}, Vec3{2, 2, 2})
	p := m.TransformPoint(Vec3{1, 1, 1})
	assert.Equal(t, Vec3{7, 2, 2}, p)
}

func TestVecOps(t *testing.T) {
	a := Vec3{1, 0, 0}
	b := Vec3{0, 1, 0}
	assert.Equal(t, Vec3{0, 0, 1}, a.Cross(b))
	assert.Equal(t, 0.0, a.Dot(b))
	assert.Equal(t, Vec3{1, 1, 0}, a.Add(b))
	assert.InDelta(t, 1.0, Vec3{3, 4, 0}.Normalized().Length(), 1e-12)
	assert.Equal(t, Vec3{0, 0, 0}, Vec3{}.Normalized())
}
