package loader

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	name string
	ext  string
}

func (f *fakeLoader) Name() string { return f.name }

func (f *fakeLoader) CanLoad(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), "."+f.ext)
}

func (f *fakeLoader) Load(ctx context.Context, p Params) (*Result, error) {
	return &Result{Stats: Stats{Format: f.name}}, nil
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr error
	}{
		{"path only", Params{Path: "a.xkt"}, nil},
		{"data only", Params{Data: []byte{1}}, nil},
		{"neither", Params{}, ErrNoSource},
		{"both", Params{Path: "a.xkt", Data: []byte{1}}, ErrAmbiguousSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTypeFilter(t *testing.T) {
	p := Params{
		IncludeTypes: []string{"IfcWall", "IfcDoor"},
		ExcludeTypes: []string{"IfcDoor"},
	}
	filter := p.TypeFilter()
	assert.True(t, filter("IfcWall"))
	assert.False(t, filter("IfcDoor"))  // exclude beats include
	assert.False(t, filter("IfcSlab")) // not included

	open := Params{}
	assert.True(t, open.TypeFilter()("anything"))
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeLoader{name: "xkt", ext: "xkt"})
	r.Register(&fakeLoader{name: "gltf", ext: "gltf"})

	l, err := r.For("building.XKT")
	require.NoError(t, err)
	assert.Equal(t, "xkt", l.Name())

	_, err = r.For("building.obj")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	res, err := r.Load(context.Background(), Params{Path: "scene.gltf"})
	require.NoError(t, err)
	assert.Equal(t, "gltf", res.Stats.Format)

	byName, ok := r.ByName("gltf")
	require.True(t, ok)
	assert.Equal(t, "gltf", byName.Name())
}

func TestRegistryLoad_RequiresPath(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Load(context.Background(), Params{Data: []byte{1}})
	assert.Error(t, err)
}
