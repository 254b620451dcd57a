package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimkit/bimkit/internal/math3d"
)

// unitQuad is a single square in the XY plane.
var unitQuad = GeometryParams{
	ID: "quad",
	Positions: []float64{
		0, 0, 0,
		1, 0, 0,
		1, 1, 0,
		0, 1, 0,
	},
	Indices: []uint32{0, 1, 2, 0, 2, 3},
}

func TestCreateGeometry_Validation(t *testing.T) {
	tests := []struct {
		name    string
		params  GeometryParams
		wantErr bool
	}{
		{"plain positions", unitQuad, false},
		{"missing id", GeometryParams{Positions: []float64{0, 0, 0}}, true},
		{"no positions", GeometryParams{ID: "g"}, true},
		{"both position kinds", GeometryParams{
			ID:                 "g",
			Positions:          []float64{0, 0, 0},
			PositionsQuantized: []uint16{0, 0, 0},
		}, true},
		{"ragged positions", GeometryParams{ID: "g", Positions: []float64{0, 0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel("test", nil)
			err := m.CreateGeometry(tt.params)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateMesh_UnknownGeometry(t *testing.T) {
	m := NewModel("test", nil)
	err := m.CreateMesh(MeshParams{ID: "m", GeometryID: "nope"})
	assert.ErrorIs(t, err, ErrUnknownGeometry)
}

func TestCreateEntity_MeshOwnership(t *testing.T) {
	m := NewModel("test", nil)
	require.NoError(t, m.CreateGeometry(unitQuad))
	require.NoError(t, m.CreateMesh(MeshParams{ID: "m1", GeometryID: "quad"}))
	require.NoError(t, m.CreateEntity(EntityParams{ID: "e1", MeshIDs: []string{"m1"}}))

	// A second entity may not claim m1.
	err := m.CreateEntity(EntityParams{ID: "e2", MeshIDs: []string{"m1"}})
	assert.ErrorIs(t, err, ErrMeshClaimed)

	mesh, ok := m.Mesh("m1")
	require.True(t, ok)
	assert.Equal(t, "e1", mesh.EntityID())
}

func TestCreateAfterFinalize(t *testing.T) {
	m := NewModel("test", nil)
	require.NoError(t, m.CreateGeometry(unitQuad))
	m.Finalize()

	assert.ErrorIs(t, m.CreateGeometry(GeometryParams{ID: "g2", Positions: []float64{0, 0, 0}}), ErrFinalized)
	assert.ErrorIs(t, m.CreateMesh(MeshParams{ID: "m", GeometryID: "quad"}), ErrFinalized)
	assert.ErrorIs(t, m.CreateEntity(EntityParams{ID: "e", MeshIDs: []string{"m"}}), ErrFinalized)
}

func TestFinalize_StatsAndAABB(t *testing.T) {
	m := NewModel("test", nil)
	require.NoError(t, m.CreateGeometry(unitQuad))

	offset := math3d.Translation(math3d.Vec3{10, 0, 0})
	require.NoError(t, m.CreateMesh(MeshParams{ID: "m1", GeometryID: "quad"}))
	require.NoError(t, m.CreateMesh(MeshParams{ID: "m2", GeometryID: "quad", Matrix: &offset}))
	require.NoError(t, m.CreateEntity(EntityParams{ID: "e1", MeshIDs: []string{"m1", "m2"}, IsObject: true}))

	m.Finalize()

	stats := m.Stats()
	assert.Equal(t, 1, stats.Geometries)
	assert.Equal(t, 2, stats.Meshes)
	assert.Equal(t, 1, stats.Entities)
	assert.Equal(t, 4, stats.Vertices)
	assert.Equal(t, 4, stats.Triangles) // 2 triangles per mesh instance

	aabb := m.AABB()
	assert.Equal(t, math3d.Vec3{0, 0, 0}, aabb.Min)
	assert.Equal(t, math3d.Vec3{11, 1, 0}, aabb.Max)
}

func TestFinalize_Idempotent(t *testing.T) {
	m := NewModel("test", nil)
	require.NoError(t, m.CreateGeometry(unitQuad))
	m.Finalize()
	first := m.Stats()
	m.Finalize()
	assert.Equal(t, first, m.Stats())
}

func TestDuplicateIDs(t *testing.T) {
	m := NewModel("test", nil)
	require.NoError(t, m.CreateGeometry(unitQuad))
	assert.ErrorIs(t, m.CreateGeometry(unitQuad), ErrDuplicateID)

	require.NoError(t, m.CreateMesh(MeshParams{ID: "m", GeometryID: "quad"}))
	assert.ErrorIs(t, m.CreateMesh(MeshParams{ID: "m", GeometryID: "quad"}), ErrDuplicateID)
}

func TestOrderPreserved(t *testing.T) {
	m := NewModel("test", nil)
	require.NoError(t, m.CreateGeometry(unitQuad))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.CreateMesh(MeshParams{ID: id, GeometryID: "quad"}))
	}
	assert.Equal(t, []string{"a", "b", "c"}, m.MeshIDs())
}
