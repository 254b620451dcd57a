package gormstorage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimkit/bimkit/internal/bcf"
	"github.com/bimkit/bimkit/internal/database"
	"github.com/bimkit/bimkit/internal/geo"
	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/meta"
	"github.com/bimkit/bimkit/internal/scene"
	"github.com/bimkit/bimkit/internal/storage"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()

	db, err := database.GetSqliteDBStandalone(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	b := New(Dependencies{DB: db})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func sampleResult(t *testing.T, modelID string) *loader.Result {
	t.Helper()

	model := scene.NewModel(modelID, nil)
	require.NoError(t, model.CreateGeometry(scene.GeometryParams{
		ID:        "geometry-0",
		Positions: []float64{0, 0, 0, 2, 0, 0, 0, 2, 0},
		Indices:   []uint32{0, 1, 2},
	}))
	require.NoError(t, model.CreateMesh(scene.MeshParams{
		ID:         "slab-1-mesh-0",
		GeometryID: "geometry-0",
		Color:      [3]float32{0.8, 0.8, 0.8},
		Opacity:    1,
	}))
	require.NoError(t, model.CreateEntity(scene.EntityParams{
		ID:       "slab-1",
		MeshIDs:  []string{"slab-1-mesh-0"},
		IsObject: true,
	}))
	model.Finalize()

	metaModel, err := meta.ParseModel([]byte(`{
		"id": "project-9",
		"metaObjects": [
			{"id": "storey", "type": "IfcBuildingStorey"},
			{"id": "slab-1", "name": "Ground Slab", "type": "IfcSlab", "parent": "storey"}
		]
	}`))
	require.NoError(t, err)

	return &loader.Result{
		Scene: model,
		Meta:  metaModel,
		Stats: loader.Stats{
			Format:      "gltf",
			Scene:       model.Stats(),
			MetaObjects: metaModel.ObjectCount(),
		},
	}
}

func TestSaveModelAndListManifests(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveModel(sampleResult(t, "tower")))
	require.NoError(t, b.Flush())

	manifests, err := b.ListManifests()
	require.NoError(t, err)
	require.Len(t, manifests, 1)

	m := manifests[0]
	assert.Equal(t, "tower", m.ModelID)
	assert.Equal(t, "project-9", m.Name)
	assert.Equal(t, "gltf", m.Format)
	assert.Equal(t, 1, m.Entities)
	assert.Equal(t, 2, m.MetaObjects)
	assert.Equal(t, [6]float64{0, 0, 0, 2, 2, 0}, m.AABB)
	assert.Nil(t, m.Site)
}

func TestSaveModelSiteOriginRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	res := sampleResult(t, "tower")
	origin := geo.NewOrigin(13.4, 52.52, 34)
	res.Scene.Origin = &origin
	require.NoError(t, b.SaveModel(res))
	require.NoError(t, b.Flush())

	manifests, err := b.ListManifests()
	require.NoError(t, err)
	require.Len(t, manifests, 1)

	site := manifests[0].Site
	require.NotNil(t, site)
	assert.Equal(t, 13.4, site.Longitude)
	assert.Equal(t, 52.52, site.Latitude)
	assert.Equal(t, 34.0, site.Elevation)
	assert.Equal(t, origin.X, site.X)
	assert.Equal(t, origin.Y, site.Y)
}

func TestSaveModelUpsertsManifest(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveModel(sampleResult(t, "tower")))
	require.NoError(t, b.SaveModel(sampleResult(t, "tower")))
	require.NoError(t, b.Flush())

	manifests, err := b.ListManifests()
	require.NoError(t, err)
	assert.Len(t, manifests, 1, "reloading a model should not duplicate its manifest")

	var count int64
	require.NoError(t, b.deps.DB.Model(&MetaObjectRow{}).Where("model_id = ?", "tower").Count(&count).Error)
	assert.Equal(t, int64(2), count, "reloading should replace, not append, metadata rows")
}

func TestMetaObjectsFlushedInBackground(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveModel(sampleResult(t, "tower")))
	require.NoError(t, b.Flush())

	var rows []MetaObjectRow
	require.NoError(t, b.deps.DB.Where("model_id = ?", "tower").Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "storey", rows[0].ObjectID)
	assert.Equal(t, "slab-1", rows[1].ObjectID)
	assert.Equal(t, "IfcSlab", rows[1].IfcType)
	assert.Equal(t, "storey", rows[1].ParentID)
}

func TestViewpointRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	vp := &bcf.Viewpoint{
		PerspectiveCamera: &bcf.PerspectiveCamera{
			CameraViewPoint: bcf.Point{X: 1, Y: 2, Z: 3},
			CameraDirection: bcf.Point{X: 0, Y: 1, Z: 0},
			CameraUpVector:  bcf.Point{X: 0, Y: 0, Z: 1},
			FieldOfView:     45,
		},
		Components: &bcf.Components{
			Selection: []bcf.Component{{IfcGUID: "slab-1"}},
		},
	}
	require.NoError(t, b.SaveViewpoint(storage.SavedViewpoint{
		ModelID:   "tower",
		Name:      "issue-12",
		Viewpoint: vp,
	}))

	got, err := b.GetViewpoints("tower")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "issue-12", got[0].Name)
	assert.Equal(t, 45.0, got[0].Viewpoint.PerspectiveCamera.FieldOfView)
	require.Len(t, got[0].Viewpoint.Components.Selection, 1)
	assert.Equal(t, "slab-1", got[0].Viewpoint.Components.Selection[0].IfcGUID)
	assert.False(t, got[0].CreatedAt.IsZero())

	none, err := b.GetViewpoints("bridge")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInitWithoutDB(t *testing.T) {
	b := New(Dependencies{})
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database connection")
}
