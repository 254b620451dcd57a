package scene

import (
	"math"

	"github.com/bimkit/bimkit/internal/math3d"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min math3d.Vec3
	Max math3d.Vec3
}

// EmptyAABB returns an inverted box that unions correctly with any point.
func EmptyAABB() AABB {
	return AABB{
		Min: math3d.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: math3d.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
}

// Empty reports whether the box contains no points.
func (b AABB) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// ExpandPoint grows the box to include p.
func (b AABB) ExpandPoint(p math3d.Vec3) AABB {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
	return b
}

// Union returns the smallest box containing both b and other.
func (b AABB) Union(other AABB) AABB {
	if other.Empty() {
		return b
	}
	return b.ExpandPoint(other.Min).ExpandPoint(other.Max)
}

// Center returns the midpoint of the box.
func (b AABB) Center() math3d.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the box extents per axis.
func (b AABB) Size() math3d.Vec3 {
	return b.Max.Sub(b.Min)
}

// Transformed returns the AABB of the box's eight corners under m.
func (b AABB) Transformed(m math3d.Mat4) AABB {
	if b.Empty() {
		return b
	}
	out := EmptyAABB()
	for i := 0; i < 8; i++ {
		corner := math3d.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out = out.ExpandPoint(m.TransformPoint(corner))
	}
	return out
}
