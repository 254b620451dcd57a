package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleModel = `{
	"id": "office",
	"projectId": "proj1",
	"author": "arch",
	"createdAt": "2024-03-01",
	"schema": "IFC4",
	"metaObjects": [
		{"id": "project", "name": "Office", "type": "IfcProject"},
		{"id": "site", "name": "Site", "type": "IfcSite", "parent": "project"},
		{"id": "building", "name": "Building A", "type": "IfcBuilding", "parent": "site"},
		{"id": "storey1", "name": "Level 1", "type": "IfcBuildingStorey", "parent": "building"},
		{"id": "wall1", "name": "North Wall", "type": "IfcWall", "parent": "storey1"},
		{"id": "wall2", "name": "South Wall", "type": "IfcWall", "parent": "storey1"},
		{"id": "door1", "name": "Entry", "type": "IfcDoor", "parent": "wall1"},
		{"id": "orphan", "name": "Lost", "type": "IfcSlab", "parent": "missing"}
	]
}`

func TestParseModel(t *testing.T) {
	m, err := ParseModel([]byte(sampleModel))
	require.NoError(t, err)

	assert.Equal(t, "office", m.ID)
	assert.Equal(t, "IFC4", m.Schema)
	assert.Equal(t, 8, m.ObjectCount())

	// Objects whose parent is absent become roots.
	rootIDs := make([]string, len(m.RootObjects))
	for i, o := range m.RootObjects {
		rootIDs[i] = o.ID
	}
	assert.Equal(t, []string{"orphan", "project"}, rootIDs)

	wall, ok := m.Object("wall1")
	require.True(t, ok)
	assert.Equal(t, "storey1", wall.Parent.ID)
	require.Len(t, wall.Children, 1)
	assert.Equal(t, "door1", wall.Children[0].ID)
}

func TestParseModel_Errors(t *testing.T) {
	_, err := ParseModel([]byte(`{invalid`))
	assert.Error(t, err)

	_, err = ParseModel([]byte(`{"id":"m","metaObjects":[{"id":"a"},{"id":"a"}]}`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ParseModel([]byte(`{"id":"m","metaObjects":[{"name":"no id"}]}`))
	assert.ErrorContains(t, err, "id required")
}

func TestParseModel_ParentCycle(t *testing.T) {
	_, err := ParseModel([]byte(`{"id":"m","metaObjects":[
		{"id": "root", "type": "IfcProject"},
		{"id": "a", "type": "IfcWall", "parent": "b"},
		{"id": "b", "type": "IfcWall", "parent": "a"}
	]}`))
	assert.ErrorContains(t, err, `meta object "a": parent chain forms a cycle`)

	// Self-parenting is the one-object cycle.
	_, err = ParseModel([]byte(`{"id":"m","metaObjects":[{"id":"a","parent":"a"}]}`))
	assert.ErrorContains(t, err, "cycle")
}

func TestSubtreeAndAncestors(t *testing.T) {
	m, err := ParseModel([]byte(sampleModel))
	require.NoError(t, err)

	storey, ok := m.Object("storey1")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"storey1", "wall1", "wall2", "door1"}, storey.SubtreeIDs())

	door, ok := m.Object("door1")
	require.True(t, ok)
	chain := door.Ancestors()
	ids := make([]string, len(chain))
	for i, o := range chain {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{"wall1", "storey1", "building", "site", "project"}, ids)
}

func TestObjectsByType(t *testing.T) {
	m, err := ParseModel([]byte(sampleModel))
	require.NoError(t, err)

	walls := m.ObjectsByType(TypeWall)
	require.Len(t, walls, 2)
	assert.Equal(t, "wall1", walls[0].ID)
	assert.Equal(t, "wall2", walls[1].ID)

	counts := m.TypeCounts()
	assert.Equal(t, 2, counts[TypeWall])
	assert.Equal(t, 1, counts[TypeDoor])
}

func TestScene(t *testing.T) {
	s := NewScene(nil)

	m, err := ParseModel([]byte(sampleModel))
	require.NoError(t, err)
	require.NoError(t, s.AddModel(m))

	// Same model id rejected.
	assert.Error(t, s.AddModel(m))

	// Overlapping object ids rejected.
	other, err := ParseModel([]byte(`{"id":"other","metaObjects":[{"id":"wall1","type":"IfcWall"}]}`))
	require.NoError(t, err)
	assert.Error(t, s.AddModel(other))

	o, ok := s.Object("door1")
	require.True(t, ok)
	assert.Equal(t, "Entry", o.Name)

	s.RemoveModel("office")
	_, ok = s.Object("door1")
	assert.False(t, ok)
	assert.Empty(t, s.ObjectIDs())
}
