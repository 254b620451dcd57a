package scene

import (
	"github.com/chewxy/math32"

	"github.com/bimkit/bimkit/internal/math3d"
)

// quantMax is the full range of a quantized coordinate component.
const quantMax = 65535.0

// QuantizePositions maps float positions into uint16 coordinates spanning the
// given box. Callers pair the result with DecompressMatrix(aabb).
func QuantizePositions(positions []float64, aabb AABB) []uint16 {
	size := aabb.Size()
	scale := math3d.Vec3{1, 1, 1}
	for i := 0; i < 3; i++ {
		if size[i] != 0 {
			scale[i] = quantMax / size[i]
		}
	}

	out := make([]uint16, len(positions))
	for i := 0; i < len(positions); i += 3 {
		for axis := 0; axis < 3; axis++ {
			v := (positions[i+axis] - aabb.Min[axis]) * scale[axis]
			if v < 0 {
				v = 0
			}
			if v > quantMax {
				v = quantMax
			}
			out[i+axis] = uint16(v + 0.5)
		}
	}
	return out
}

// DecompressMatrix builds the 4x4 matrix mapping quantized coordinates back
// into the given box.
func DecompressMatrix(aabb AABB) math3d.Mat4 {
	size := aabb.Size()
	scale := math3d.Vec3{
		size[0] / quantMax,
		size[1] / quantMax,
		size[2] / quantMax,
	}
	return math3d.Translation(aabb.Min).Mul(math3d.Scaling(scale))
}

// OctEncodeNormal packs a unit normal into two bytes using octahedral
// projection.
func OctEncodeNormal(n [3]float32) [2]uint8 {
	sum := math32.Abs(n[0]) + math32.Abs(n[1]) + math32.Abs(n[2])
	if sum == 0 {
		return [2]uint8{128, 128}
	}
	x := n[0] / sum
	y := n[1] / sum
	if n[2] < 0 {
		ox, oy := x, y
		x = (1 - math32.Abs(oy)) * signNotZero(ox)
		y = (1 - math32.Abs(ox)) * signNotZero(oy)
	}
	return [2]uint8{octFloatToByte(x), octFloatToByte(y)}
}

// OctDecodeNormal unpacks a two-byte octahedral normal into a unit vector.
func OctDecodeNormal(oct [2]uint8) [3]float32 {
	x := octByteToFloat(oct[0])
	y := octByteToFloat(oct[1])
	z := 1 - math32.Abs(x) - math32.Abs(y)
	if z < 0 {
		ox, oy := x, y
		x = (1 - math32.Abs(oy)) * signNotZero(ox)
		y = (1 - math32.Abs(ox)) * signNotZero(oy)
	}
	length := math32.Sqrt(x*x + y*y + z*z)
	if length == 0 {
		return [3]float32{0, 0, 1}
	}
	return [3]float32{x / length, y / length, z / length}
}

func signNotZero(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

func octFloatToByte(v float32) uint8 {
	scaled := math32.Round((v*0.5 + 0.5) * 255)
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 255 {
		scaled = 255
	}
	return uint8(scaled)
}

func octByteToFloat(b uint8) float32 {
	return float32(b)/255*2 - 1
}
