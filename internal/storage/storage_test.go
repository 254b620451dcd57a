package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimkit/bimkit/internal/geo"
	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/meta"
	"github.com/bimkit/bimkit/internal/scene"
)

func sampleResult(t *testing.T) *loader.Result {
	t.Helper()

	model := scene.NewModel("tower", nil)
	require.NoError(t, model.CreateGeometry(scene.GeometryParams{
		ID:        "geometry-0",
		Positions: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Indices:   []uint32{0, 1, 2},
	}))
	require.NoError(t, model.CreateMesh(scene.MeshParams{
		ID:         "wall-1-mesh-0",
		GeometryID: "geometry-0",
		Color:      [3]float32{1, 0, 0},
		Opacity:    1,
	}))
	require.NoError(t, model.CreateEntity(scene.EntityParams{
		ID:       "wall-1",
		MeshIDs:  []string{"wall-1-mesh-0"},
		IsObject: true,
	}))
	model.Finalize()

	metaModel, err := meta.ParseModel([]byte(`{
		"id": "project-1",
		"metaObjects": [
			{"id": "site", "type": "IfcSite"},
			{"id": "wall-1", "name": "South Wall", "type": "IfcWall", "parent": "site"}
		]
	}`))
	require.NoError(t, err)

	return &loader.Result{
		Scene: model,
		Meta:  metaModel,
		Stats: loader.Stats{
			Format:      "xkt",
			Duration:    50 * time.Millisecond,
			Scene:       model.Stats(),
			MetaObjects: metaModel.ObjectCount(),
		},
	}
}

func TestManifestFromResult(t *testing.T) {
	res := sampleResult(t)

	m := ManifestFromResult(res)
	assert.Equal(t, "tower", m.ModelID)
	assert.Equal(t, "project-1", m.Name, "meta project id becomes the display name")
	assert.Equal(t, "xkt", m.Format)
	assert.Equal(t, 1, m.Entities)
	assert.Equal(t, 1, m.Meshes)
	assert.Equal(t, 1, m.Geometries)
	assert.Equal(t, 1, m.Triangles)
	assert.Equal(t, 2, m.MetaObjects)
	assert.Equal(t, [6]float64{0, 0, 0, 1, 1, 0}, m.AABB)
	assert.Nil(t, m.Site, "unplaced model carries no site origin")
	assert.False(t, m.CreatedAt.IsZero())
}

func TestManifestFromResult_Georeferenced(t *testing.T) {
	res := sampleResult(t)
	origin := geo.NewOrigin(13.4, 52.52, 34)
	res.Scene.Origin = &origin

	m := ManifestFromResult(res)
	require.NotNil(t, m.Site)
	assert.Equal(t, 13.4, m.Site.Longitude)
	assert.Equal(t, 52.52, m.Site.Latitude)
	assert.NotZero(t, m.Site.X)
	assert.NotZero(t, m.Site.Y)
}

func TestFlattenMeta(t *testing.T) {
	res := sampleResult(t)

	objects := FlattenMeta(res.Meta)
	require.Len(t, objects, 2)
	assert.Equal(t, "site", objects[0].ID)
	assert.Equal(t, "wall-1", objects[1].ID)

	assert.Nil(t, FlattenMeta(nil))
}

func TestValidateType(t *testing.T) {
	assert.NoError(t, ValidateType(TypeMemory))
	assert.NoError(t, ValidateType(TypeSQLite))
	assert.NoError(t, ValidateType(TypePostgres))

	err := ValidateType("redis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage type")
}
