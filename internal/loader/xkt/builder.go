package xkt

import (
	"fmt"

	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/math3d"
	"github.com/bimkit/bimkit/internal/meta"
	"github.com/bimkit/bimkit/internal/scene"
)

// pendingMesh is a mesh decoded from the container but not yet created.
// Mesh and entity creation is deferred until metadata is available so the
// include/exclude type filter can drop whole entities.
type pendingMesh struct {
	geometryID string
	matrix     *math3d.Mat4
	color      [3]float32
	opacity    float32
	hasColor   bool
}

type pendingEntity struct {
	id     string
	meshes []pendingMesh
}

// builder accumulates decoded container content and flushes it into the
// scene model.
type builder struct {
	model    *scene.Model
	defaults loader.ObjectDefaults

	entities     []pendingEntity
	embeddedMeta []byte
}

func (b *builder) addEntity(e pendingEntity) {
	b.entities = append(b.entities, e)
}

// createEntities creates meshes and entities for every pending entity that
// passes the type filter. With no metadata all entities pass; with metadata,
// entities lacking a meta object are typed meta.TypeDefault.
func (b *builder) createEntities(pass func(string) bool, metaModel *meta.Model) error {
	for _, pe := range b.entities {
		objType := meta.TypeDefault
		if metaModel != nil {
			if obj, ok := metaModel.Object(pe.id); ok {
				objType = obj.Type
			}
		}
		if !pass(objType) {
			continue
		}

		meshIDs := make([]string, 0, len(pe.meshes))
		for i, pm := range pe.meshes {
			color, opacity := pm.color, pm.opacity
			if !pm.hasColor {
				color = b.defaults.Color
				opacity = b.defaults.Opacity
				if opacity == 0 {
					opacity = 1
				}
			}
			meshID := fmt.Sprintf("%s-mesh-%d", pe.id, i)
			err := b.model.CreateMesh(scene.MeshParams{
				ID:         meshID,
				GeometryID: pm.geometryID,
				Matrix:     pm.matrix,
				Color:      color,
				Opacity:    opacity,
			})
			if err != nil {
				return err
			}
			meshIDs = append(meshIDs, meshID)
		}
		if len(meshIDs) == 0 {
			continue
		}
		err := b.model.CreateEntity(scene.EntityParams{
			ID:       pe.id,
			MeshIDs:  meshIDs,
			IsObject: metaModel != nil,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// unpackColor splits a packed 0xRRGGBBAA color into normalized RGB + opacity.
func unpackColor(rgba uint32) ([3]float32, float32) {
	return [3]float32{
		float32(rgba>>24&0xff) / 255,
		float32(rgba>>16&0xff) / 255,
		float32(rgba>>8&0xff) / 255,
	}, float32(rgba&0xff) / 255
}

// spanEnd returns the end offset for entry i of an offset table whose spans
// run to the next entry, or to total for the last entry.
func spanEnd(offsets []uint32, i int, total int) int {
	if i+1 < len(offsets) {
		return int(offsets[i+1])
	}
	return total
}
