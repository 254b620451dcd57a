package xkt

import (
	"fmt"

	"github.com/bimkit/bimkit/internal/math3d"
)

// Version 2 extends the v1 layout with one trailing element:
//
//	9  entityMatrices  float32 x16 per entity
//
// The matrix of an entity is applied to all of its meshes.
const v2ElementCount = 10

func parseV2(c *container, b *builder) error {
	if len(c.elements) != v2ElementCount {
		return fmt.Errorf("expected %d elements, got %d", v2ElementCount, len(c.elements))
	}
	a, err := readV1Arrays(c)
	if err != nil {
		return err
	}

	rawMatrices, err := c.elements[9].float32s()
	if err != nil {
		return fmt.Errorf("entityMatrices: %w", err)
	}
	if len(rawMatrices) != 16*len(a.entityIDs) {
		return fmt.Errorf("entityMatrices has %d values for %d entities", len(rawMatrices), len(a.entityIDs))
	}

	matrices := make([]math3d.Mat4, len(a.entityIDs))
	for e := range matrices {
		for i := 0; i < 16; i++ {
			matrices[e][i] = float64(rawMatrices[e*16+i])
		}
	}

	// Meshes of entity e carry matrix e. collectEntities walks entities in
	// order, so track the current entity by advancing past its mesh span.
	entityOf := make([]int, len(a.meshPositions))
	for e := range a.entityIDs {
		ms := int(a.entityMeshes[e])
		me := spanEnd(a.entityMeshes, e, len(a.meshPositions))
		for i := ms; i < me && i < len(entityOf); i++ {
			entityOf[i] = e
		}
	}

	return a.collectEntities(b, func(i int) (pendingMesh, error) {
		geomID, err := a.meshGeometry(b, i)
		if err != nil {
			return pendingMesh{}, err
		}
		pm := a.pendingMesh(geomID, i)
		matrix := matrices[entityOf[i]]
		if !matrix.IsIdentity() {
			pm.matrix = &matrix
		}
		return pm, nil
	})
}
