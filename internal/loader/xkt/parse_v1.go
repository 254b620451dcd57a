package xkt

import (
	"encoding/json"
	"fmt"

	"github.com/bimkit/bimkit/internal/math3d"
	"github.com/bimkit/bimkit/internal/scene"
)

// Version 1 element layout. Geometry is quantized against a single
// model-wide decode matrix; every mesh owns its vertex and index span, with
// no sharing between meshes.
//
//	0  positions     uint16, quantized, 3 per vertex
//	1  normals       uint8, oct-encoded, 2 per vertex
//	2  indices       uint32, absolute vertex indices
//	3  meshPositions uint32, first vertex per mesh
//	4  meshIndices   uint32, first index per mesh
//	5  meshColors    uint32, packed 0xRRGGBBAA per mesh (may be empty)
//	6  entityIDs     JSON array of strings
//	7  entityMeshes  uint32, first mesh per entity
//	8  decodeMatrix  float32 x16
const v1ElementCount = 9

// v1Arrays is the container content shared by the v1 and v2 layouts.
type v1Arrays struct {
	positions     []uint16
	normals       []uint8
	indices       []uint32
	meshPositions []uint32
	meshIndices   []uint32
	meshColors    []uint32
	entityIDs     []string
	entityMeshes  []uint32
	decodeMatrix  math3d.Mat4
}

func readV1Arrays(c *container) (*v1Arrays, error) {
	var a v1Arrays
	var err error

	if a.positions, err = c.elements[0].uint16s(); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	a.normals = c.elements[1].uint8s()
	if a.indices, err = c.elements[2].uint32s(); err != nil {
		return nil, fmt.Errorf("indices: %w", err)
	}
	if a.meshPositions, err = c.elements[3].uint32s(); err != nil {
		return nil, fmt.Errorf("meshPositions: %w", err)
	}
	if a.meshIndices, err = c.elements[4].uint32s(); err != nil {
		return nil, fmt.Errorf("meshIndices: %w", err)
	}
	if a.meshColors, err = c.elements[5].uint32s(); err != nil {
		return nil, fmt.Errorf("meshColors: %w", err)
	}
	if err = json.Unmarshal(c.elements[6], &a.entityIDs); err != nil {
		return nil, fmt.Errorf("entityIDs: %w", err)
	}
	if a.entityMeshes, err = c.elements[7].uint32s(); err != nil {
		return nil, fmt.Errorf("entityMeshes: %w", err)
	}

	matrix, err := c.elements[8].float32s()
	if err != nil {
		return nil, fmt.Errorf("decodeMatrix: %w", err)
	}
	if len(matrix) != 16 {
		return nil, fmt.Errorf("decodeMatrix has %d values, want 16", len(matrix))
	}
	for i, v := range matrix {
		a.decodeMatrix[i] = float64(v)
	}

	if len(a.positions)%3 != 0 {
		return nil, fmt.Errorf("positions length %d not divisible by 3", len(a.positions))
	}
	if len(a.meshPositions) != len(a.meshIndices) {
		return nil, fmt.Errorf("mesh tables disagree: %d position offsets, %d index offsets",
			len(a.meshPositions), len(a.meshIndices))
	}
	if len(a.meshColors) != 0 && len(a.meshColors) != len(a.meshPositions) {
		return nil, fmt.Errorf("meshColors has %d entries for %d meshes", len(a.meshColors), len(a.meshPositions))
	}
	if len(a.entityMeshes) != len(a.entityIDs) {
		return nil, fmt.Errorf("%d entity ids but %d mesh offsets", len(a.entityIDs), len(a.entityMeshes))
	}
	return &a, nil
}

// meshGeometry carves mesh i's vertex and index spans into a standalone
// geometry, rebasing indices to the span start.
func (a *v1Arrays) meshGeometry(b *builder, i int) (string, error) {
	vertexCount := len(a.positions) / 3
	vs := int(a.meshPositions[i])
	ve := spanEnd(a.meshPositions, i, vertexCount)
	is := int(a.meshIndices[i])
	ie := spanEnd(a.meshIndices, i, len(a.indices))

	if vs > ve || ve > vertexCount {
		return "", fmt.Errorf("mesh %d vertex span [%d,%d) out of range (%d vertices)", i, vs, ve, vertexCount)
	}
	if is > ie || ie > len(a.indices) {
		return "", fmt.Errorf("mesh %d index span [%d,%d) out of range (%d indices)", i, is, ie, len(a.indices))
	}

	indices := make([]uint32, ie-is)
	for j, idx := range a.indices[is:ie] {
		if int(idx) < vs || int(idx) >= ve {
			return "", fmt.Errorf("mesh %d index %d outside vertex span [%d,%d)", i, idx, vs, ve)
		}
		indices[j] = idx - uint32(vs)
	}

	var normals []uint8
	if len(a.normals) > 0 {
		normals = a.normals[vs*2 : ve*2]
	}

	geomID := fmt.Sprintf("geometry-%d", i)
	err := b.model.CreateGeometry(scene.GeometryParams{
		ID:                 geomID,
		Primitive:          scene.PrimitiveTriangles,
		PositionsQuantized: a.positions[vs*3 : ve*3],
		DecodeMatrix:       a.decodeMatrix,
		NormalsOct:         normals,
		Indices:            indices,
	})
	if err != nil {
		return "", err
	}
	return geomID, nil
}

func (a *v1Arrays) pendingMesh(geomID string, i int) pendingMesh {
	pm := pendingMesh{geometryID: geomID}
	if len(a.meshColors) > 0 {
		pm.color, pm.opacity = unpackColor(a.meshColors[i])
		pm.hasColor = true
	}
	return pm
}

// collectEntities groups meshes into pending entities by the entityMeshes
// offset table. makeMesh builds the pending mesh for a mesh index.
func (a *v1Arrays) collectEntities(b *builder, makeMesh func(i int) (pendingMesh, error)) error {
	numMeshes := len(a.meshPositions)
	for e := range a.entityIDs {
		ms := int(a.entityMeshes[e])
		me := spanEnd(a.entityMeshes, e, numMeshes)
		if ms > me || me > numMeshes {
			return fmt.Errorf("entity %q mesh span [%d,%d) out of range (%d meshes)", a.entityIDs[e], ms, me, numMeshes)
		}

		pe := pendingEntity{id: a.entityIDs[e]}
		for i := ms; i < me; i++ {
			pm, err := makeMesh(i)
			if err != nil {
				return err
			}
			pe.meshes = append(pe.meshes, pm)
		}
		b.addEntity(pe)
	}
	return nil
}

func parseV1(c *container, b *builder) error {
	if len(c.elements) != v1ElementCount {
		return fmt.Errorf("expected %d elements, got %d", v1ElementCount, len(c.elements))
	}
	a, err := readV1Arrays(c)
	if err != nil {
		return err
	}

	return a.collectEntities(b, func(i int) (pendingMesh, error) {
		geomID, err := a.meshGeometry(b, i)
		if err != nil {
			return pendingMesh{}, err
		}
		return a.pendingMesh(geomID, i), nil
	})
}
