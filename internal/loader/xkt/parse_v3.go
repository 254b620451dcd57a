package xkt

import (
	"encoding/json"
	"fmt"

	"github.com/bimkit/bimkit/internal/math3d"
	"github.com/bimkit/bimkit/internal/scene"
)

// Version 3 introduces geometry reuse. Vertex data is carved into a table of
// shared geometries and meshes reference them by index, each with its own
// modeling matrix, so repeated shapes are stored once.
//
//	0   positions          uint16, quantized, 3 per vertex
//	1   normals            uint8, oct-encoded, 2 per vertex
//	2   indices            uint32, absolute vertex indices
//	3   geometryPositions  uint32, first vertex per geometry
//	4   geometryIndices    uint32, first index per geometry
//	5   meshGeometries     uint32, geometry index per mesh
//	6   meshMatrices       float32 x16 per mesh
//	7   meshColors         uint32, packed 0xRRGGBBAA per mesh (may be empty)
//	8   entityIDs          JSON array of strings
//	9   entityMeshes       uint32, first mesh per entity
//	10  decodeMatrix       float32 x16
const v3ElementCount = 11

type v3Arrays struct {
	positions         []uint16
	normals           []uint8
	indices           []uint32
	geometryPositions []uint32
	geometryIndices   []uint32
	meshGeometries    []uint32
	meshMatrices      []math3d.Mat4
	meshColors        []uint32
	entityIDs         []string
	entityMeshes      []uint32
}

func readV3Arrays(c *container) (*v3Arrays, error) {
	var a v3Arrays
	var err error

	if a.positions, err = c.elements[0].uint16s(); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	a.normals = c.elements[1].uint8s()
	if a.indices, err = c.elements[2].uint32s(); err != nil {
		return nil, fmt.Errorf("indices: %w", err)
	}
	if a.geometryPositions, err = c.elements[3].uint32s(); err != nil {
		return nil, fmt.Errorf("geometryPositions: %w", err)
	}
	if a.geometryIndices, err = c.elements[4].uint32s(); err != nil {
		return nil, fmt.Errorf("geometryIndices: %w", err)
	}
	if a.meshGeometries, err = c.elements[5].uint32s(); err != nil {
		return nil, fmt.Errorf("meshGeometries: %w", err)
	}

	rawMatrices, err := c.elements[6].float32s()
	if err != nil {
		return nil, fmt.Errorf("meshMatrices: %w", err)
	}
	if len(rawMatrices) != 16*len(a.meshGeometries) {
		return nil, fmt.Errorf("meshMatrices has %d values for %d meshes", len(rawMatrices), len(a.meshGeometries))
	}
	a.meshMatrices = make([]math3d.Mat4, len(a.meshGeometries))
	for m := range a.meshMatrices {
		for i := 0; i < 16; i++ {
			a.meshMatrices[m][i] = float64(rawMatrices[m*16+i])
		}
	}

	if a.meshColors, err = c.elements[7].uint32s(); err != nil {
		return nil, fmt.Errorf("meshColors: %w", err)
	}
	if err = json.Unmarshal(c.elements[8], &a.entityIDs); err != nil {
		return nil, fmt.Errorf("entityIDs: %w", err)
	}
	if a.entityMeshes, err = c.elements[9].uint32s(); err != nil {
		return nil, fmt.Errorf("entityMeshes: %w", err)
	}

	if len(a.positions)%3 != 0 {
		return nil, fmt.Errorf("positions length %d not divisible by 3", len(a.positions))
	}
	if len(a.geometryPositions) != len(a.geometryIndices) {
		return nil, fmt.Errorf("geometry tables disagree: %d position offsets, %d index offsets",
			len(a.geometryPositions), len(a.geometryIndices))
	}
	if len(a.meshColors) != 0 && len(a.meshColors) != len(a.meshGeometries) {
		return nil, fmt.Errorf("meshColors has %d entries for %d meshes", len(a.meshColors), len(a.meshGeometries))
	}
	if len(a.entityMeshes) != len(a.entityIDs) {
		return nil, fmt.Errorf("%d entity ids but %d mesh offsets", len(a.entityIDs), len(a.entityMeshes))
	}
	return &a, nil
}

// createGeometry carves geometry g out of the shared vertex arrays.
// decodeMatrix may differ per geometry in the tiled layout.
func (a *v3Arrays) createGeometry(b *builder, g int, decodeMatrix math3d.Mat4) (string, error) {
	vertexCount := len(a.positions) / 3
	vs := int(a.geometryPositions[g])
	ve := spanEnd(a.geometryPositions, g, vertexCount)
	is := int(a.geometryIndices[g])
	ie := spanEnd(a.geometryIndices, g, len(a.indices))

	if vs > ve || ve > vertexCount {
		return "", fmt.Errorf("geometry %d vertex span [%d,%d) out of range (%d vertices)", g, vs, ve, vertexCount)
	}
	if is > ie || ie > len(a.indices) {
		return "", fmt.Errorf("geometry %d index span [%d,%d) out of range (%d indices)", g, is, ie, len(a.indices))
	}

	indices := make([]uint32, ie-is)
	for j, idx := range a.indices[is:ie] {
		if int(idx) < vs || int(idx) >= ve {
			return "", fmt.Errorf("geometry %d index %d outside vertex span [%d,%d)", g, idx, vs, ve)
		}
		indices[j] = idx - uint32(vs)
	}

	var normals []uint8
	if len(a.normals) > 0 {
		normals = a.normals[vs*2 : ve*2]
	}

	geomID := fmt.Sprintf("geometry-%d", g)
	err := b.model.CreateGeometry(scene.GeometryParams{
		ID:                 geomID,
		Primitive:          scene.PrimitiveTriangles,
		PositionsQuantized: a.positions[vs*3 : ve*3],
		DecodeMatrix:       decodeMatrix,
		NormalsOct:         normals,
		Indices:            indices,
	})
	if err != nil {
		return "", err
	}
	return geomID, nil
}

// entitiesInRange collects pending entities for entity indices [first,last),
// referencing previously created geometries by their table index.
func (a *v3Arrays) entitiesInRange(b *builder, first, last int, geomIDs []string) error {
	numMeshes := len(a.meshGeometries)
	for e := first; e < last; e++ {
		ms := int(a.entityMeshes[e])
		me := spanEnd(a.entityMeshes, e, numMeshes)
		if ms > me || me > numMeshes {
			return fmt.Errorf("entity %q mesh span [%d,%d) out of range (%d meshes)", a.entityIDs[e], ms, me, numMeshes)
		}

		pe := pendingEntity{id: a.entityIDs[e]}
		for i := ms; i < me; i++ {
			g := int(a.meshGeometries[i])
			if g >= len(geomIDs) || geomIDs[g] == "" {
				return fmt.Errorf("mesh %d references geometry %d, have %d", i, g, len(geomIDs))
			}
			pm := pendingMesh{geometryID: geomIDs[g]}
			if !a.meshMatrices[i].IsIdentity() {
				matrix := a.meshMatrices[i]
				pm.matrix = &matrix
			}
			if len(a.meshColors) > 0 {
				pm.color, pm.opacity = unpackColor(a.meshColors[i])
				pm.hasColor = true
			}
			pe.meshes = append(pe.meshes, pm)
		}
		b.addEntity(pe)
	}
	return nil
}

func parseV3(c *container, b *builder) error {
	if len(c.elements) != v3ElementCount {
		return fmt.Errorf("expected %d elements, got %d", v3ElementCount, len(c.elements))
	}
	a, err := readV3Arrays(c)
	if err != nil {
		return err
	}

	rawMatrix, err := c.elements[10].float32s()
	if err != nil {
		return fmt.Errorf("decodeMatrix: %w", err)
	}
	if len(rawMatrix) != 16 {
		return fmt.Errorf("decodeMatrix has %d values, want 16", len(rawMatrix))
	}
	var decodeMatrix math3d.Mat4
	for i, v := range rawMatrix {
		decodeMatrix[i] = float64(v)
	}

	geomIDs := make([]string, len(a.geometryPositions))
	for g := range a.geometryPositions {
		if geomIDs[g], err = a.createGeometry(b, g, decodeMatrix); err != nil {
			return err
		}
	}
	return a.entitiesInRange(b, 0, len(a.entityIDs), geomIDs)
}
