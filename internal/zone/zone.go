// Package zone builds extruded zone volumes from 2D floor footprints: the
// footprint is ear-clipped into cap triangles and extruded into wall quads
// between a base elevation and a height. Footprints also serve as polygons
// for area and containment queries.
package zone

import (
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/rclancey/earcut"
)

var (
	// ErrDegenerate is returned for footprints with fewer than 3 vertices or
	// no enclosed area.
	ErrDegenerate = errors.New("zone: degenerate footprint")
	// ErrSelfIntersecting is returned when footprint edges cross.
	ErrSelfIntersecting = errors.New("zone: self-intersecting footprint")
)

// Point2 is a footprint vertex in plan coordinates.
type Point2 struct {
	X float64
	Y float64
}

// Volume is an extruded zone mesh. Positions are x,y,z triples with y
// vertical; plan X maps to x and plan Y to z.
type Volume struct {
	Positions []float64
	Indices   []uint32
}

// Build extrudes a footprint into a closed volume spanning [base, base+height].
// The footprint must not repeat its first vertex.
func Build(footprint []Point2, base, height float64) (*Volume, error) {
	if len(footprint) < 3 {
		return nil, fmt.Errorf("%w: %d vertices", ErrDegenerate, len(footprint))
	}
	if height <= 0 {
		return nil, fmt.Errorf("zone: height must be positive, got %v", height)
	}
	if selfIntersects(footprint) {
		return nil, ErrSelfIntersecting
	}

	flat := make([]float64, len(footprint)*2)
	for i, p := range footprint {
		flat[i*2] = p.X
		flat[i*2+1] = p.Y
	}
	capIndices, err := earcut.Earcut(flat, nil, 2)
	if err != nil {
		return nil, fmt.Errorf("zone: triangulation: %w", err)
	}
	if len(capIndices) == 0 {
		return nil, ErrDegenerate
	}

	n := len(footprint)
	v := &Volume{Positions: make([]float64, 0, n*6)}
	for _, p := range footprint {
		v.Positions = append(v.Positions, p.X, base, p.Y)
	}
	for _, p := range footprint {
		v.Positions = append(v.Positions, p.X, base+height, p.Y)
	}

	// Bottom cap faces down, top cap faces up.
	for t := 0; t+2 < len(capIndices); t += 3 {
		a, b, c := uint32(capIndices[t]), uint32(capIndices[t+1]), uint32(capIndices[t+2])
		v.Indices = append(v.Indices, c, b, a)
		v.Indices = append(v.Indices, a+uint32(n), b+uint32(n), c+uint32(n))
	}

	// One quad per footprint edge.
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		bi, bj := uint32(i), uint32(j)
		ti, tj := bi+uint32(n), bj+uint32(n)
		v.Indices = append(v.Indices, bi, bj, tj)
		v.Indices = append(v.Indices, bi, tj, ti)
	}
	return v, nil
}

// VertexCount returns the number of vertices in the volume.
func (v *Volume) VertexCount() int { return len(v.Positions) / 3 }

// TriangleCount returns the number of triangles in the volume.
func (v *Volume) TriangleCount() int { return len(v.Indices) / 3 }

// Polygon builds the footprint polygon for spatial queries.
func Polygon(footprint []Point2) (geom.Polygon, error) {
	if len(footprint) < 3 {
		return geom.Polygon{}, fmt.Errorf("%w: %d vertices", ErrDegenerate, len(footprint))
	}
	flat := make([]float64, 0, (len(footprint)+1)*2)
	for _, p := range footprint {
		flat = append(flat, p.X, p.Y)
	}
	flat = append(flat, footprint[0].X, footprint[0].Y)

	ring := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	poly := geom.NewPolygon([]geom.LineString{ring})
	if err := poly.Validate(); err != nil {
		return geom.Polygon{}, fmt.Errorf("zone: invalid footprint: %w", err)
	}
	return poly, nil
}

// Area returns the footprint area.
func Area(footprint []Point2) (float64, error) {
	poly, err := Polygon(footprint)
	if err != nil {
		return 0, err
	}
	return poly.Area(), nil
}

// Contains reports whether a plan point lies inside the footprint.
func Contains(footprint []Point2, p Point2) (bool, error) {
	poly, err := Polygon(footprint)
	if err != nil {
		return false, err
	}
	pt := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Type: geom.DimXY,
	})
	return geom.Intersects(poly.AsGeometry(), pt.AsGeometry()), nil
}

// selfIntersects reports whether any two non-adjacent footprint edges
// properly cross.
func selfIntersects(footprint []Point2) bool {
	n := len(footprint)
	for i := 0; i < n; i++ {
		a1 := footprint[i]
		a2 := footprint[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Edges sharing a vertex cannot properly cross.
			if j == i || (j+1)%n == i || (i+1)%n == j {
				continue
			}
			b1 := footprint[j]
			b2 := footprint[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(p1, p2, p3, p4 Point2) bool {
	d1 := orientation(p3, p4, p1)
	d2 := orientation(p3, p4, p2)
	d3 := orientation(p1, p2, p3)
	d4 := orientation(p1, p2, p4)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// orientation returns the sign of the cross product (b-a) x (c-a).
func orientation(a, b, c Point2) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}
