// Package storage persists loaded model manifests, metadata objects and
// saved viewpoints. Backends share one interface so the toolkit can run
// against an in-memory store, a local SQLite file or a Postgres server.
package storage

import (
	"time"

	"github.com/bimkit/bimkit/internal/bcf"
	"github.com/bimkit/bimkit/internal/geo"
	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/meta"
)

// Manifest summarizes one stored model.
type Manifest struct {
	ModelID     string
	Name        string
	Format      string
	SourcePath  string
	Entities    int
	Meshes      int
	Geometries  int
	Triangles   int
	MetaObjects int
	AABB        [6]float64  // minX, minY, minZ, maxX, maxY, maxZ
	Site        *geo.Origin // nil when the model is unplaced
	CreatedAt   time.Time
}

// SavedViewpoint is a named BCF viewpoint attached to a model.
type SavedViewpoint struct {
	ModelID   string
	Name      string
	Viewpoint *bcf.Viewpoint
	CreatedAt time.Time
}

// Backend is the interface all storage implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Model persistence
	SaveModel(res *loader.Result) error
	ListManifests() ([]Manifest, error)

	// Viewpoint persistence
	SaveViewpoint(vp SavedViewpoint) error
	GetViewpoints(modelID string) ([]SavedViewpoint, error)
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a viewer frontend.
type Uploadable interface {
	GetExportedFilePath() string
}

// ManifestFromResult builds a manifest from a completed load.
func ManifestFromResult(res *loader.Result) Manifest {
	m := Manifest{
		ModelID:    res.Scene.ID,
		Name:       res.Scene.ID,
		Format:     res.Stats.Format,
		SourcePath: res.Scene.Source,
		Entities:   res.Stats.Scene.Entities,
		Meshes:     res.Stats.Scene.Meshes,
		Geometries: res.Stats.Scene.Geometries,
		Triangles:  res.Stats.Scene.Triangles,
		Site:       res.Scene.Origin,
		CreatedAt:  time.Now(),
	}

	aabb := res.Scene.AABB()
	if !aabb.Empty() {
		m.AABB = [6]float64{
			aabb.Min[0], aabb.Min[1], aabb.Min[2],
			aabb.Max[0], aabb.Max[1], aabb.Max[2],
		}
	}

	if res.Meta != nil {
		m.MetaObjects = res.Meta.ObjectCount()
		if res.Meta.ID != "" {
			m.Name = res.Meta.ID
		}
	}

	return m
}

// FlattenMeta returns all metadata objects of a model in depth-first order,
// or nil for a model without metadata.
func FlattenMeta(m *meta.Model) []*meta.Object {
	if m == nil {
		return nil
	}
	var out []*meta.Object
	for _, root := range m.RootObjects {
		out = append(out, root.Subtree()...)
	}
	return out
}
