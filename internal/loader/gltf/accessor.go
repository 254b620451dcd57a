package gltf

import (
	"encoding/binary"
	"fmt"
	"math"
)

var componentSizes = map[int]int{
	componentByte:          1,
	componentUnsignedByte:  1,
	componentShort:         2,
	componentUnsignedShort: 2,
	componentUnsignedInt:   4,
	componentFloat:         4,
}

var typeComponents = map[string]int{
	"SCALAR": 1,
	"VEC2":   2,
	"VEC3":   3,
	"VEC4":   4,
	"MAT4":   16,
}

// accessorBytes locates the raw bytes and layout of accessor a. The returned
// stride is in bytes between elements, never zero.
func accessorBytes(doc *document, a *accessor) (data []byte, stride, components int, err error) {
	components, ok := typeComponents[a.Type]
	if !ok {
		return nil, 0, 0, fmt.Errorf("unsupported accessor type %q", a.Type)
	}
	size, ok := componentSizes[a.ComponentType]
	if !ok {
		return nil, 0, 0, fmt.Errorf("unsupported component type %d", a.ComponentType)
	}
	if a.BufferView == nil {
		// Viewless accessors are zero-initialized per spec, but nothing a
		// scene loader reads is stored that way.
		return nil, 0, 0, fmt.Errorf("accessor has no bufferView")
	}
	if *a.BufferView < 0 || *a.BufferView >= len(doc.BufferViews) {
		return nil, 0, 0, fmt.Errorf("bufferView %d out of range", *a.BufferView)
	}
	view := doc.BufferViews[*a.BufferView]
	if view.Buffer < 0 || view.Buffer >= len(doc.Buffers) {
		return nil, 0, 0, fmt.Errorf("buffer %d out of range", view.Buffer)
	}
	raw := doc.Buffers[view.Buffer].data
	if view.ByteOffset < 0 || view.ByteLength < 0 || view.ByteOffset+view.ByteLength > len(raw) {
		return nil, 0, 0, fmt.Errorf("bufferView [%d,%d) exceeds buffer of %d bytes",
			view.ByteOffset, view.ByteOffset+view.ByteLength, len(raw))
	}
	raw = raw[view.ByteOffset : view.ByteOffset+view.ByteLength]

	stride = size * components
	if view.ByteStride != nil {
		if *view.ByteStride < stride {
			return nil, 0, 0, fmt.Errorf("byteStride %d below element size %d", *view.ByteStride, stride)
		}
		stride = *view.ByteStride
	}
	if a.Count < 0 || a.ByteOffset < 0 || a.ByteOffset > len(raw) {
		return nil, 0, 0, fmt.Errorf("accessor offset %d count %d outside view of %d bytes",
			a.ByteOffset, a.Count, len(raw))
	}
	if a.Count > 0 {
		need := a.ByteOffset + (a.Count-1)*stride + size*components
		if need > len(raw) {
			return nil, 0, 0, fmt.Errorf("accessor needs %d bytes, view holds %d", need, len(raw))
		}
	}
	return raw[a.ByteOffset:], stride, components, nil
}

// floats decodes accessor idx into float32 values, count x components.
// Integer data is converted; normalized integers map onto [0,1] or [-1,1].
func floats(doc *document, idx int) ([]float32, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	a := &doc.Accessors[idx]
	data, stride, components, err := accessorBytes(doc, a)
	if err != nil {
		return nil, fmt.Errorf("accessor %d: %w", idx, err)
	}

	size := componentSizes[a.ComponentType]
	out := make([]float32, a.Count*components)
	for i := 0; i < a.Count; i++ {
		base := i * stride
		for c := 0; c < components; c++ {
			b := data[base+c*size:]
			var v float32
			switch a.ComponentType {
			case componentFloat:
				v = math.Float32frombits(binary.LittleEndian.Uint32(b))
			case componentByte:
				v = float32(int8(b[0]))
				if a.Normalized {
					v = max(v/127, -1)
				}
			case componentUnsignedByte:
				v = float32(b[0])
				if a.Normalized {
					v /= 255
				}
			case componentShort:
				v = float32(int16(binary.LittleEndian.Uint16(b)))
				if a.Normalized {
					v = max(v/32767, -1)
				}
			case componentUnsignedShort:
				v = float32(binary.LittleEndian.Uint16(b))
				if a.Normalized {
					v /= 65535
				}
			case componentUnsignedInt:
				v = float32(binary.LittleEndian.Uint32(b))
			}
			out[i*components+c] = v
		}
	}
	return out, nil
}

// uints decodes scalar accessor idx into uint32 values, as used for index
// buffers.
func uints(doc *document, idx int) ([]uint32, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	a := &doc.Accessors[idx]
	if a.Type != "SCALAR" {
		return nil, fmt.Errorf("accessor %d: index data must be SCALAR, got %q", idx, a.Type)
	}
	data, stride, _, err := accessorBytes(doc, a)
	if err != nil {
		return nil, fmt.Errorf("accessor %d: %w", idx, err)
	}

	out := make([]uint32, a.Count)
	for i := 0; i < a.Count; i++ {
		b := data[i*stride:]
		switch a.ComponentType {
		case componentUnsignedByte:
			out[i] = uint32(b[0])
		case componentUnsignedShort:
			out[i] = uint32(binary.LittleEndian.Uint16(b))
		case componentUnsignedInt:
			out[i] = binary.LittleEndian.Uint32(b)
		default:
			return nil, fmt.Errorf("accessor %d: component type %d not valid for indices", idx, a.ComponentType)
		}
	}
	return out, nil
}
