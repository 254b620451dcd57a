package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimQuotes(t *testing.T) {
	assert.Equal(t, "abc", TrimQuotes(`"abc"`))
	assert.Equal(t, "abc", TrimQuotes("abc"))
	assert.Equal(t, "", TrimQuotes(`""`))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "Office_Tower_rev_3", SanitizeFileName("Office Tower:rev/3"))
}

func TestExt(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"model.xkt", "xkt"},
		{"scene.GLTF", "gltf"},
		{"archive.json.gz", "gz"},
		{"noext", ""},
		{"trailing.", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Ext(tt.path), tt.path)
	}
}
