package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimkit/bimkit/internal/math3d"
)

func TestQuantizeRoundTrip(t *testing.T) {
	positions := []float64{
		-10, 0, 5,
		3.5, 20, -7,
		100, -50, 0,
	}
	aabb := EmptyAABB()
	for i := 0; i < len(positions); i += 3 {
		aabb = aabb.ExpandPoint(math3d.Vec3{positions[i], positions[i+1], positions[i+2]})
	}

	quantized := QuantizePositions(positions, aabb)
	decode := DecompressMatrix(aabb)

	// Error bound is half a quantization step per axis.
	size := aabb.Size()
	for i := 0; i < len(positions); i += 3 {
		p := decode.TransformPoint(math3d.Vec3{
			float64(quantized[i]),
			float64(quantized[i+1]),
			float64(quantized[i+2]),
		})
		for axis := 0; axis < 3; axis++ {
			tolerance := size[axis]/65535 + 1e-9
			assert.InDelta(t, positions[i+axis], p[axis], tolerance)
		}
	}
}

func TestQuantize_DegenerateAxis(t *testing.T) {
	// All points share z=4; the quantized z must decode back to 4 exactly.
	positions := []float64{0, 0, 4, 1, 1, 4}
	aabb := EmptyAABB().
		ExpandPoint(math3d.Vec3{0, 0, 4}).
		ExpandPoint(math3d.Vec3{1, 1, 4})

	quantized := QuantizePositions(positions, aabb)
	decode := DecompressMatrix(aabb)
	p := decode.TransformPoint(math3d.Vec3{float64(quantized[0]), float64(quantized[1]), float64(quantized[2])})
	assert.Equal(t, 4.0, p[2])
}

func TestOctNormalRoundTrip(t *testing.T) {
	normals := [][3]float32{
		{0, 0, 1},
		{0, 0, -1},
		{1, 0, 0},
		{0, -1, 0},
		{0.577350269, 0.577350269, 0.577350269},
		{-0.707106781, 0, -0.707106781},
	}
	for _, n := range normals {
		decoded := OctDecodeNormal(OctEncodeNormal(n))

		// Unit length.
		length := math.Sqrt(float64(decoded[0]*decoded[0] + decoded[1]*decoded[1] + decoded[2]*decoded[2]))
		require.InDelta(t, 1.0, length, 1e-5)

		// Within a byte of angular precision.
		for axis := 0; axis < 3; axis++ {
			assert.InDelta(t, float64(n[axis]), float64(decoded[axis]), 0.02, "normal %v axis %d", n, axis)
		}
	}
}

func TestGeometryPosition_Quantized(t *testing.T) {
	positions := []float64{0, 0, 0, 10, 20, 30}
	aabb := EmptyAABB().
		ExpandPoint(math3d.Vec3{0, 0, 0}).
		ExpandPoint(math3d.Vec3{10, 20, 30})

	m := NewModel("test", nil)
	require.NoError(t, m.CreateGeometry(GeometryParams{
		ID:                 "g",
		PositionsQuantized: QuantizePositions(positions, aabb),
		DecodeMatrix:       DecompressMatrix(aabb),
		Indices:            []uint32{0, 1},
		Primitive:          PrimitiveLines,
	}))
	m.Finalize()

	g, ok := m.Geometry("g")
	require.True(t, ok)
	assert.Equal(t, 2, g.VertexCount())
	last := g.Position(1)
	assert.InDelta(t, 10, last[0], 1e-3)
	assert.InDelta(t, 20, last[1], 1e-3)
	assert.InDelta(t, 30, last[2], 1e-3)
}
