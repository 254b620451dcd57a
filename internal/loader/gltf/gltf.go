package gltf

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bimkit/bimkit/internal/cache"
	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/math3d"
	"github.com/bimkit/bimkit/internal/meta"
	"github.com/bimkit/bimkit/internal/scene"
)

// Loader decodes .gltf and .glb files.
type Loader struct {
	log *slog.Logger
}

// New creates a glTF loader.
func New(log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{log: log}
}

// Name implements loader.Loader.
func (l *Loader) Name() string { return "gltf" }

// CanLoad implements loader.Loader.
func (l *Loader) CanLoad(path string) bool {
	ext := filepath.Ext(path)
	return strings.EqualFold(ext, ".gltf") || strings.EqualFold(ext, ".glb")
}

// Load implements loader.Loader.
func (l *Loader) Load(ctx context.Context, p loader.Params) (*loader.Result, error) {
	start := time.Now()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docJSON := data
	var binChunk []byte
	if isGLB(data) {
		if docJSON, binChunk, err = readGLB(data); err != nil {
			return nil, fmt.Errorf("gltf: %w", err)
		}
	}

	var doc document
	if err := json.Unmarshal(docJSON, &doc); err != nil {
		return nil, fmt.Errorf("gltf: error parsing document: %w", err)
	}
	if v := doc.Asset.Version; v != "" && !strings.HasPrefix(v, "2.") {
		return nil, fmt.Errorf("gltf: unsupported asset version %q", v)
	}

	var baseDir string
	if p.Path != "" {
		baseDir = filepath.Dir(p.Path)
	}
	if err := resolveBuffers(&doc, baseDir, binChunk); err != nil {
		return nil, fmt.Errorf("gltf: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var metaModel *meta.Model
	if len(p.Meta) > 0 {
		if metaModel, err = meta.ParseModel(p.Meta); err != nil {
			return nil, fmt.Errorf("gltf: metadata: %w", err)
		}
	}

	modelID := p.ModelID
	if modelID == "" && p.Path != "" {
		modelID = strings.TrimSuffix(filepath.Base(p.Path), filepath.Ext(p.Path))
	}
	if modelID == "" {
		modelID = "gltf-model"
	}

	w := &walker{
		doc:       &doc,
		log:       l.log,
		model:     scene.NewModel(modelID, l.log),
		defaults:  p.Defaults,
		pass:      p.TypeFilter(),
		meta:      metaModel,
		cache:     cache.NewGeometryCache(),
		geometryN: make(map[uint64]string),
		usedIDs:   make(map[string]bool),
		visited:   make(map[int]bool),
	}
	w.model.Source = p.Path
	w.model.Origin = p.Georeference

	for _, root := range rootNodes(&doc) {
		if err := w.walk(root, math3d.Identity()); err != nil {
			return nil, fmt.Errorf("gltf: %w", err)
		}
	}
	w.model.Finalize()

	hits, misses := w.cache.Stats()
	l.log.Info("Loaded glTF model",
		"model", modelID,
		"bytes", len(data),
		"entities", w.model.Stats().Entities,
		"geometryHits", hits,
		"geometryMisses", misses)

	res := &loader.Result{
		Scene: w.model,
		Meta:  metaModel,
		Stats: loader.Stats{
			Format:      l.Name(),
			SourceBytes: len(data),
			Duration:    time.Since(start),
			Scene:       w.model.Stats(),
		},
	}
	if metaModel != nil {
		res.Stats.MetaObjects = metaModel.ObjectCount()
	}
	return res, nil
}

// rootNodes returns the node indices to start traversal from: the default
// scene when present, otherwise every node that is not some node's child.
func rootNodes(doc *document) []int {
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil {
			idx = *doc.Scene
		}
		if idx >= 0 && idx < len(doc.Scenes) {
			return doc.Scenes[idx].Nodes
		}
	}

	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// walker carries the traversal state of one load.
type walker struct {
	doc      *document
	log      *slog.Logger
	model    *scene.Model
	defaults loader.ObjectDefaults
	pass     func(string) bool
	meta     *meta.Model

	cache     *cache.GeometryCache
	geometryN map[uint64]string
	usedIDs   map[string]bool
	visited   map[int]bool

	geometries int
}

func (w *walker) walk(idx int, parent math3d.Mat4) error {
	if idx < 0 || idx >= len(w.doc.Nodes) {
		return fmt.Errorf("node %d out of range", idx)
	}
	if w.visited[idx] {
		return fmt.Errorf("node %d appears twice in the hierarchy", idx)
	}
	w.visited[idx] = true

	n := &w.doc.Nodes[idx]
	world := parent.Mul(nodeMatrix(n))

	if n.Mesh != nil {
		if err := w.createEntity(idx, n, world); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := w.walk(c, world); err != nil {
			return err
		}
	}
	return nil
}

// nodeMatrix resolves the local transform: an explicit matrix wins over the
// translation/rotation/scale triple.
func nodeMatrix(n *node) math3d.Mat4 {
	if n.Matrix != nil {
		return math3d.Mat4(*n.Matrix)
	}
	translation := math3d.Vec3{}
	if n.Translation != nil {
		translation = math3d.Vec3(*n.Translation)
	}
	rotation := [4]float64{0, 0, 0, 1}
	if n.Rotation != nil {
		rotation = *n.Rotation
	}
	sc := math3d.Vec3{1, 1, 1}
	if n.Scale != nil {
		sc = math3d.Vec3(*n.Scale)
	}
	return math3d.Compose(translation, rotation, sc)
}

func (w *walker) createEntity(idx int, n *node, world math3d.Mat4) error {
	entityID := n.Name
	if entityID == "" {
		entityID = fmt.Sprintf("node-%d", idx)
	}
	if w.usedIDs[entityID] {
		base := entityID
		for n := 2; w.usedIDs[entityID]; n++ {
			entityID = fmt.Sprintf("%s-%d", base, n)
		}
	}

	objType := meta.TypeDefault
	if w.meta != nil {
		if obj, ok := w.meta.Object(entityID); ok {
			objType = obj.Type
		}
	}
	if !w.pass(objType) {
		return nil
	}

	if *n.Mesh < 0 || *n.Mesh >= len(w.doc.Meshes) {
		return fmt.Errorf("node %d references mesh %d, have %d", idx, *n.Mesh, len(w.doc.Meshes))
	}
	m := &w.doc.Meshes[*n.Mesh]

	var matrix *math3d.Mat4
	if !world.IsIdentity() {
		matrix = &world
	}

	var meshIDs []string
	for pi := range m.Primitives {
		prim := &m.Primitives[pi]
		primitive, ok := primitiveKind(prim)
		if !ok {
			w.log.Debug("Skipping unsupported primitive mode", "node", idx, "mode", *prim.Mode)
			continue
		}
		geomID, err := w.geometry(prim, primitive)
		if err != nil {
			return fmt.Errorf("node %d: %w", idx, err)
		}
		color, opacity := w.materialColor(prim.Material)

		meshID := fmt.Sprintf("%s-mesh-%d", entityID, pi)
		err = w.model.CreateMesh(scene.MeshParams{
			ID:         meshID,
			GeometryID: geomID,
			Matrix:     matrix,
			Color:      color,
			Opacity:    opacity,
		})
		if err != nil {
			return err
		}
		meshIDs = append(meshIDs, meshID)
	}
	if len(meshIDs) == 0 {
		return nil
	}

	w.usedIDs[entityID] = true
	return w.model.CreateEntity(scene.EntityParams{
		ID:       entityID,
		MeshIDs:  meshIDs,
		IsObject: w.meta != nil,
	})
}

func primitiveKind(p *primitive) (scene.Primitive, bool) {
	if p.Mode == nil {
		return scene.PrimitiveTriangles, true
	}
	switch *p.Mode {
	case modeTriangles:
		return scene.PrimitiveTriangles, true
	case modeLines:
		return scene.PrimitiveLines, true
	case modePoints:
		return scene.PrimitivePoints, true
	}
	return "", false
}

// geometry decodes a primitive's vertex data, sharing geometries with
// identical content.
func (w *walker) geometry(p *primitive, kind scene.Primitive) (string, error) {
	posIdx, ok := p.Attributes["POSITION"]
	if !ok {
		return "", fmt.Errorf("primitive has no POSITION attribute")
	}
	posF32, err := floats(w.doc, posIdx)
	if err != nil {
		return "", err
	}
	positions := make([]float64, len(posF32))
	for i, v := range posF32 {
		positions[i] = float64(v)
	}

	var indices []uint32
	if p.Indices != nil {
		if indices, err = uints(w.doc, *p.Indices); err != nil {
			return "", err
		}
	} else {
		indices = make([]uint32, len(positions)/3)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	key := cache.Key(positions, indices)
	if id, ok := w.cache.Lookup(key); ok {
		return id, nil
	}

	var normals []float32
	if ni, ok := p.Attributes["NORMAL"]; ok {
		if normals, err = floats(w.doc, ni); err != nil {
			return "", err
		}
	}
	var colors []float32
	if ci, ok := p.Attributes["COLOR_0"]; ok {
		raw, err := floats(w.doc, ci)
		if err != nil {
			return "", err
		}
		colors = expandRGBA(raw, w.doc.Accessors[ci].Type)
	}

	geomID := fmt.Sprintf("geometry-%d", w.geometries)
	w.geometries++
	err = w.model.CreateGeometry(scene.GeometryParams{
		ID:        geomID,
		Primitive: kind,
		Positions: positions,
		Normals:   normals,
		Colors:    colors,
		Indices:   indices,
	})
	if err != nil {
		return "", err
	}
	w.cache.Store(key, geomID)
	return geomID, nil
}

// expandRGBA pads VEC3 vertex colors with alpha 1.
func expandRGBA(raw []float32, accessorType string) []float32 {
	if accessorType != "VEC3" {
		return raw
	}
	out := make([]float32, 0, len(raw)/3*4)
	for i := 0; i+2 < len(raw); i += 3 {
		out = append(out, raw[i], raw[i+1], raw[i+2], 1)
	}
	return out
}

// materialColor resolves a primitive's material to a flat color. Missing
// materials take the load defaults.
func (w *walker) materialColor(idx *int) ([3]float32, float32) {
	if idx != nil && *idx >= 0 && *idx < len(w.doc.Materials) {
		m := &w.doc.Materials[*idx]
		if m.PBRMetallicRoughness != nil && m.PBRMetallicRoughness.BaseColorFactor != nil {
			f := *m.PBRMetallicRoughness.BaseColorFactor
			return [3]float32{float32(f[0]), float32(f[1]), float32(f[2])}, float32(f[3])
		}
	}
	color := w.defaults.Color
	opacity := w.defaults.Opacity
	if color == [3]float32{} {
		color = [3]float32{1, 1, 1}
	}
	if opacity == 0 {
		opacity = 1
	}
	return color, opacity
}
