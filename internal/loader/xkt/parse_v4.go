package xkt

import (
	"fmt"

	"github.com/bimkit/bimkit/internal/math3d"
	"github.com/bimkit/bimkit/internal/scene"
)

// Version 4 partitions entities into tiles, each quantized against its own
// bounding box, and embeds the metadata document in the container itself.
// Elements 0 through 9 are the v3 layout without the trailing decode matrix.
//
//	10  tileAABBs      float64 x6 per tile (min xyz, max xyz)
//	11  tileEntities   uint32, first entity per tile
//	12  metaModelData  JSON metadata document (may be empty)
//
// A geometry takes the decode matrix of the tile owning the first mesh that
// references it.
const v4ElementCount = 13

func parseV4(c *container, b *builder) error {
	if len(c.elements) != v4ElementCount {
		return fmt.Errorf("expected %d elements, got %d", v4ElementCount, len(c.elements))
	}
	a, err := readV3Arrays(c)
	if err != nil {
		return err
	}

	tileAABBs, err := c.elements[10].float64s()
	if err != nil {
		return fmt.Errorf("tileAABBs: %w", err)
	}
	if len(tileAABBs)%6 != 0 {
		return fmt.Errorf("tileAABBs length %d not divisible by 6", len(tileAABBs))
	}
	numTiles := len(tileAABBs) / 6

	tileEntities, err := c.elements[11].uint32s()
	if err != nil {
		return fmt.Errorf("tileEntities: %w", err)
	}
	if len(tileEntities) != numTiles {
		return fmt.Errorf("%d tile entity offsets for %d tiles", len(tileEntities), numTiles)
	}

	if len(c.elements[12]) > 0 {
		b.embeddedMeta = c.elements[12]
	}

	decodeMatrices := make([]math3d.Mat4, numTiles)
	for t := 0; t < numTiles; t++ {
		box := tileAABBs[t*6 : t*6+6]
		decodeMatrices[t] = scene.DecompressMatrix(scene.AABB{
			Min: math3d.Vec3{box[0], box[1], box[2]},
			Max: math3d.Vec3{box[3], box[4], box[5]},
		})
	}

	// Resolve which tile each mesh belongs to through its entity span, then
	// pin each geometry to the tile of its first referencing mesh.
	geomTile := make([]int, len(a.geometryPositions))
	for g := range geomTile {
		geomTile[g] = -1
	}
	numMeshes := len(a.meshGeometries)
	for t := 0; t < numTiles; t++ {
		es := int(tileEntities[t])
		ee := spanEnd(tileEntities, t, len(a.entityIDs))
		if es > ee || ee > len(a.entityIDs) {
			return fmt.Errorf("tile %d entity span [%d,%d) out of range (%d entities)", t, es, ee, len(a.entityIDs))
		}
		for e := es; e < ee; e++ {
			ms := int(a.entityMeshes[e])
			me := spanEnd(a.entityMeshes, e, numMeshes)
			for i := ms; i < me && i < numMeshes; i++ {
				g := int(a.meshGeometries[i])
				if g < len(geomTile) && geomTile[g] < 0 {
					geomTile[g] = t
				}
			}
		}
	}

	geomIDs := make([]string, len(a.geometryPositions))
	for g := range a.geometryPositions {
		t := geomTile[g]
		if t < 0 {
			// Unreferenced geometry, skip it rather than guess a tile.
			continue
		}
		if geomIDs[g], err = a.createGeometry(b, g, decodeMatrices[t]); err != nil {
			return err
		}
	}

	for t := 0; t < numTiles; t++ {
		es := int(tileEntities[t])
		ee := spanEnd(tileEntities, t, len(a.entityIDs))
		if err := a.entitiesInRange(b, es, ee, geomIDs); err != nil {
			return err
		}
	}
	return nil
}
