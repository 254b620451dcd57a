package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bimkit/bimkit/internal/geo"
	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/util"
)

// ViewerExport is the root JSON structure consumed by the web viewer.
type ViewerExport struct {
	ModelID     string           `json:"modelId"`
	Format      string           `json:"format"`
	AABB        [6]float64       `json:"aabb"`
	Site        *geo.Origin      `json:"site,omitempty"`
	Geometries  int              `json:"geometries"`
	Triangles   int              `json:"triangles"`
	Entities    []EntityJSON     `json:"entities"`
	MetaObjects []MetaObjectJSON `json:"metaObjects,omitempty"`
}

// EntityJSON represents one displayable object.
type EntityJSON struct {
	ID       string     `json:"id"`
	IsObject int        `json:"isObject"`
	Meshes   []MeshJSON `json:"meshes"`
}

// MeshJSON references a shared geometry with a transform and color.
type MeshJSON struct {
	Geometry string       `json:"geometry"`
	Color    [3]float32   `json:"color"`
	Opacity  float32      `json:"opacity"`
	Matrix   *[16]float64 `json:"matrix,omitempty"` // omitted when identity
}

// MetaObjectJSON mirrors the metaModelData object shape.
type MetaObjectJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Type   string `json:"type"`
	Parent string `json:"parent,omitempty"`
}

// exportJSON writes the model data to a (possibly gzipped) JSON file.
// Caller holds the lock.
func (b *Backend) exportJSON(res *loader.Result) error {
	export := b.buildExport(res)

	name := util.SanitizeFileName(res.Scene.ID)
	timestamp := time.Now().Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport(res *loader.Result) ViewerExport {
	sc := res.Scene
	stats := sc.Stats()

	export := ViewerExport{
		ModelID:    sc.ID,
		Format:     res.Stats.Format,
		Site:       sc.Origin,
		Geometries: stats.Geometries,
		Triangles:  stats.Triangles,
		Entities:   make([]EntityJSON, 0, stats.Entities),
	}

	aabb := sc.AABB()
	if !aabb.Empty() {
		export.AABB = [6]float64{
			aabb.Min[0], aabb.Min[1], aabb.Min[2],
			aabb.Max[0], aabb.Max[1], aabb.Max[2],
		}
	}

	for _, entityID := range sc.EntityIDs() {
		entity, ok := sc.Entity(entityID)
		if !ok {
			continue
		}

		ej := EntityJSON{
			ID:       entity.ID,
			IsObject: util.BoolToInt(entity.IsObject),
			Meshes:   make([]MeshJSON, 0, len(entity.MeshIDs)),
		}

		for _, meshID := range entity.MeshIDs {
			mesh, ok := sc.Mesh(meshID)
			if !ok {
				continue
			}
			mj := MeshJSON{
				Geometry: mesh.GeometryID,
				Color:    mesh.Color,
				Opacity:  mesh.Opacity,
			}
			if !mesh.Matrix.IsIdentity() {
				matrix := [16]float64(mesh.Matrix)
				mj.Matrix = &matrix
			}
			ej.Meshes = append(ej.Meshes, mj)
		}

		export.Entities = append(export.Entities, ej)
	}

	for _, obj := range b.models[sc.ID].objects {
		export.MetaObjects = append(export.MetaObjects, MetaObjectJSON{
			ID:     obj.ID,
			Name:   obj.Name,
			Type:   obj.Type,
			Parent: obj.ParentID,
		})
	}

	return export
}

func writeJSON(path string, export ViewerExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

func writeGzipJSON(path string, export ViewerExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	if err := json.NewEncoder(gzWriter).Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}
