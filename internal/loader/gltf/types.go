// Package gltf loads glTF 2.0 assets, both the JSON form with external or
// data-URI buffers and the GLB binary container. Each scene node carrying a
// mesh becomes an entity; identical primitives are shared between nodes.
package gltf

// The JSON types below follow the glTF 2.0 schema, trimmed to the parts a
// scene loader reads. Textures, skins and animations are ignored.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html

type document struct {
	Asset       asset        `json:"asset"`
	Scene       *int         `json:"scene,omitempty"`
	Scenes      []sceneDef   `json:"scenes,omitempty"`
	Nodes       []node       `json:"nodes,omitempty"`
	Meshes      []mesh       `json:"meshes,omitempty"`
	Accessors   []accessor   `json:"accessors,omitempty"`
	BufferViews []bufferView `json:"bufferViews,omitempty"`
	Buffers     []buffer     `json:"buffers,omitempty"`
	Materials   []material   `json:"materials,omitempty"`
}

type asset struct {
	Version   string `json:"version"`
	Generator string `json:"generator,omitempty"`
}

type sceneDef struct {
	Name  string `json:"name,omitempty"`
	Nodes []int  `json:"nodes,omitempty"`
}

type node struct {
	Name     string `json:"name,omitempty"`
	Children []int  `json:"children,omitempty"`
	Mesh     *int   `json:"mesh,omitempty"`

	Matrix      *[16]float64 `json:"matrix,omitempty"`
	Translation *[3]float64  `json:"translation,omitempty"`
	Rotation    *[4]float64  `json:"rotation,omitempty"`
	Scale       *[3]float64  `json:"scale,omitempty"`
}

type mesh struct {
	Name       string      `json:"name,omitempty"`
	Primitives []primitive `json:"primitives"`
}

type primitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices,omitempty"`
	Material   *int           `json:"material,omitempty"`
	Mode       *int           `json:"mode,omitempty"`
}

// Primitive topology modes.
const (
	modePoints    = 0
	modeLines     = 1
	modeTriangles = 4
)

type accessor struct {
	BufferView    *int   `json:"bufferView,omitempty"`
	ByteOffset    int    `json:"byteOffset,omitempty"`
	ComponentType int    `json:"componentType"`
	Normalized    bool   `json:"normalized,omitempty"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
}

// Accessor component types.
const (
	componentByte          = 5120
	componentUnsignedByte  = 5121
	componentShort         = 5122
	componentUnsignedShort = 5123
	componentUnsignedInt   = 5125
	componentFloat         = 5126
)

type bufferView struct {
	Buffer     int  `json:"buffer"`
	ByteOffset int  `json:"byteOffset,omitempty"`
	ByteLength int  `json:"byteLength"`
	ByteStride *int `json:"byteStride,omitempty"`
}

type buffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`

	// Resolved binary content, filled in by resolveBuffers.
	data []byte
}

type material struct {
	Name                 string         `json:"name,omitempty"`
	PBRMetallicRoughness *pbrScalars    `json:"pbrMetallicRoughness,omitempty"`
	Extensions           map[string]any `json:"extensions,omitempty"`
}

type pbrScalars struct {
	BaseColorFactor *[4]float64 `json:"baseColorFactor,omitempty"`
}
