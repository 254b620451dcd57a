// Package scene holds the in-memory scene model that the format loaders
// populate. A Model is built incrementally through CreateGeometry,
// CreateMesh and CreateEntity, then sealed with Finalize, which resolves
// quantized geometry bounds and aggregate statistics.
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bimkit/bimkit/internal/geo"
	"github.com/bimkit/bimkit/internal/math3d"
)

// Primitive is the geometry primitive type.
type Primitive string

const (
	PrimitiveTriangles Primitive = "triangles"
	PrimitiveLines     Primitive = "lines"
	PrimitivePoints    Primitive = "points"
)

var (
	// ErrFinalized is returned when creating against a finalized model.
	ErrFinalized = errors.New("model is finalized")
	// ErrDuplicateID is returned when an id is reused within a component class.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrUnknownGeometry is returned when a mesh references a missing geometry.
	ErrUnknownGeometry = errors.New("unknown geometry id")
	// ErrUnknownMesh is returned when an entity references a missing mesh.
	ErrUnknownMesh = errors.New("unknown mesh id")
	// ErrMeshClaimed is returned when a mesh is assigned to a second entity.
	ErrMeshClaimed = errors.New("mesh already belongs to an entity")
)

// Geometry holds vertex data shared by one or more meshes. Positions are
// either plain float64 or quantized uint16 with a decode matrix; normals are
// either plain float32 or oct-encoded byte pairs.
type Geometry struct {
	ID        string
	Primitive Primitive

	Positions          []float64
	PositionsQuantized []uint16
	DecodeMatrix       math3d.Mat4

	Normals    []float32
	NormalsOct []uint8

	Colors  []float32 // RGBA per vertex, optional
	Indices []uint32

	AABB AABB
}

// Quantized reports whether the geometry carries quantized positions.
func (g *Geometry) Quantized() bool {
	return len(g.PositionsQuantized) > 0
}

// VertexCount returns the number of vertices in the geometry.
func (g *Geometry) VertexCount() int {
	if g.Quantized() {
		return len(g.PositionsQuantized) / 3
	}
	return len(g.Positions) / 3
}

// Position returns the dequantized vertex at index i.
func (g *Geometry) Position(i int) math3d.Vec3 {
	if g.Quantized() {
		return g.DecodeMatrix.TransformPoint(math3d.Vec3{
			float64(g.PositionsQuantized[i*3]),
			float64(g.PositionsQuantized[i*3+1]),
			float64(g.PositionsQuantized[i*3+2]),
		})
	}
	return math3d.Vec3{g.Positions[i*3], g.Positions[i*3+1], g.Positions[i*3+2]}
}

// Mesh instances a geometry with a transform and material color.
type Mesh struct {
	ID         string
	GeometryID string
	Matrix     math3d.Mat4
	Color      [3]float32
	Opacity    float32

	entityID string
}

// EntityID returns the id of the owning entity, or "" before assignment.
func (m *Mesh) EntityID() string { return m.entityID }

// Entity is a displayable object composed of one or more meshes. When
// IsObject is set the entity id corresponds to a metadata object id.
type Entity struct {
	ID       string
	MeshIDs  []string
	IsObject bool
}

// Stats summarizes a finalized model.
type Stats struct {
	Geometries int
	Meshes     int
	Entities   int
	Vertices   int
	Triangles  int
}

// Model is an in-memory scene model under construction.
type Model struct {
	ID     string
	Source string      // originating file path or format tag
	Origin *geo.Origin // site geo-reference, nil when the model is unplaced

	mu        sync.Mutex
	finalized bool

	geometries map[string]*Geometry
	meshes     map[string]*Mesh
	entities   map[string]*Entity

	geometryOrder []string
	meshOrder     []string
	entityOrder   []string

	aabb  AABB
	stats Stats

	log *slog.Logger
}

// NewModel creates an empty model. A nil logger falls back to slog.Default.
func NewModel(id string, log *slog.Logger) *Model {
	if log == nil {
		log = slog.Default()
	}
	return &Model{
		ID:         id,
		geometries: make(map[string]*Geometry),
		meshes:     make(map[string]*Mesh),
		entities:   make(map[string]*Entity),
		log:        log,
	}
}

// GeometryParams are the inputs to CreateGeometry. Exactly one of Positions
// or PositionsQuantized must be set; PositionsQuantized requires DecodeMatrix.
type GeometryParams struct {
	ID                 string
	Primitive          Primitive
	Positions          []float64
	PositionsQuantized []uint16
	DecodeMatrix       math3d.Mat4
	Normals            []float32
	NormalsOct         []uint8
	Colors             []float32
	Indices            []uint32
}

// CreateGeometry registers a shared geometry.
func (m *Model) CreateGeometry(p GeometryParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finalized {
		return ErrFinalized
	}
	if p.ID == "" {
		return errors.New("geometry id required")
	}
	if _, ok := m.geometries[p.ID]; ok {
		return fmt.Errorf("geometry %q: %w", p.ID, ErrDuplicateID)
	}
	hasPlain := len(p.Positions) > 0
	hasQuant := len(p.PositionsQuantized) > 0
	if hasPlain == hasQuant {
		return fmt.Errorf("geometry %q: exactly one of Positions or PositionsQuantized required", p.ID)
	}
	if hasPlain && len(p.Positions)%3 != 0 {
		return fmt.Errorf("geometry %q: positions length %d not divisible by 3", p.ID, len(p.Positions))
	}
	if hasQuant && len(p.PositionsQuantized)%3 != 0 {
		return fmt.Errorf("geometry %q: quantized positions length %d not divisible by 3", p.ID, len(p.PositionsQuantized))
	}
	prim := p.Primitive
	if prim == "" {
		prim = PrimitiveTriangles
	}

	g := &Geometry{
		ID:                 p.ID,
		Primitive:          prim,
		Positions:          p.Positions,
		PositionsQuantized: p.PositionsQuantized,
		DecodeMatrix:       p.DecodeMatrix,
		Normals:            p.Normals,
		NormalsOct:         p.NormalsOct,
		Colors:             p.Colors,
		Indices:            p.Indices,
	}
	m.geometries[p.ID] = g
	m.geometryOrder = append(m.geometryOrder, p.ID)
	return nil
}

// MeshParams are the inputs to CreateMesh. A nil Matrix means identity.
type MeshParams struct {
	ID         string
	GeometryID string
	Matrix     *math3d.Mat4
	Color      [3]float32
	Opacity    float32
}

// CreateMesh registers a mesh instancing a previously created geometry.
func (m *Model) CreateMesh(p MeshParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finalized {
		return ErrFinalized
	}
	if p.ID == "" {
		return errors.New("mesh id required")
	}
	if _, ok := m.meshes[p.ID]; ok {
		return fmt.Errorf("mesh %q: %w", p.ID, ErrDuplicateID)
	}
	if _, ok := m.geometries[p.GeometryID]; !ok {
		return fmt.Errorf("mesh %q references %q: %w", p.ID, p.GeometryID, ErrUnknownGeometry)
	}
	matrix := math3d.Identity()
	if p.Matrix != nil {
		matrix = *p.Matrix
	}
	opacity := p.Opacity
	if opacity == 0 {
		opacity = 1
	}

	m.meshes[p.ID] = &Mesh{
		ID:         p.ID,
		GeometryID: p.GeometryID,
		Matrix:     matrix,
		Color:      p.Color,
		Opacity:    opacity,
	}
	m.meshOrder = append(m.meshOrder, p.ID)
	return nil
}

// EntityParams are the inputs to CreateEntity.
type EntityParams struct {
	ID       string
	MeshIDs  []string
	IsObject bool
}

// CreateEntity registers an entity claiming the given meshes. A mesh may be
// claimed by at most one entity.
func (m *Model) CreateEntity(p EntityParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finalized {
		return ErrFinalized
	}
	if p.ID == "" {
		return errors.New("entity id required")
	}
	if _, ok := m.entities[p.ID]; ok {
		return fmt.Errorf("entity %q: %w", p.ID, ErrDuplicateID)
	}
	if len(p.MeshIDs) == 0 {
		return fmt.Errorf("entity %q: at least one mesh required", p.ID)
	}
	for _, meshID := range p.MeshIDs {
		mesh, ok := m.meshes[meshID]
		if !ok {
			return fmt.Errorf("entity %q references %q: %w", p.ID, meshID, ErrUnknownMesh)
		}
		if mesh.entityID != "" {
			return fmt.Errorf("entity %q references %q (owned by %q): %w", p.ID, meshID, mesh.entityID, ErrMeshClaimed)
		}
	}
	for _, meshID := range p.MeshIDs {
		m.meshes[meshID].entityID = p.ID
	}

	m.entities[p.ID] = &Entity{
		ID:       p.ID,
		MeshIDs:  append([]string(nil), p.MeshIDs...),
		IsObject: p.IsObject,
	}
	m.entityOrder = append(m.entityOrder, p.ID)
	return nil
}

// Finalize seals the model: geometry and model AABBs are computed and the
// aggregate stats are filled in. Further Create calls fail with ErrFinalized.
func (m *Model) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finalized {
		return
	}
	m.finalized = true

	m.aabb = EmptyAABB()
	vertices := 0
	triangles := 0

	for _, id := range m.geometryOrder {
		g := m.geometries[id]
		g.AABB = geometryAABB(g)
		vertices += g.VertexCount()
	}

	for _, id := range m.meshOrder {
		mesh := m.meshes[id]
		g := m.geometries[mesh.GeometryID]
		if g.Primitive == PrimitiveTriangles {
			triangles += len(g.Indices) / 3
		}
		m.aabb = m.aabb.Union(g.AABB.Transformed(mesh.Matrix))
	}

	m.stats = Stats{
		Geometries: len(m.geometryOrder),
		Meshes:     len(m.meshOrder),
		Entities:   len(m.entityOrder),
		Vertices:   vertices,
		Triangles:  triangles,
	}

	m.log.Debug("Finalized scene model",
		"model", m.ID,
		"entities", m.stats.Entities,
		"meshes", m.stats.Meshes,
		"geometries", m.stats.Geometries,
		"triangles", m.stats.Triangles)
}

// Finalized reports whether Finalize has been called.
func (m *Model) Finalized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalized
}

// Geometry returns a geometry by id.
func (m *Model) Geometry(id string) (*Geometry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.geometries[id]
	return g, ok
}

// Mesh returns a mesh by id.
func (m *Model) Mesh(id string) (*Mesh, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mesh, ok := m.meshes[id]
	return mesh, ok
}

// Entity returns an entity by id.
func (m *Model) Entity(id string) (*Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	return e, ok
}

// EntityIDs returns entity ids in creation order.
func (m *Model) EntityIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.entityOrder...)
}

// GeometryIDs returns geometry ids in creation order.
func (m *Model) GeometryIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.geometryOrder...)
}

// MeshIDs returns mesh ids in creation order.
func (m *Model) MeshIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.meshOrder...)
}

// Stats returns the aggregate statistics. Zero value before Finalize.
func (m *Model) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// AABB returns the model bounds. Valid after Finalize.
func (m *Model) AABB() AABB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aabb
}

func geometryAABB(g *Geometry) AABB {
	aabb := EmptyAABB()
	for i := 0; i < g.VertexCount(); i++ {
		aabb = aabb.ExpandPoint(g.Position(i))
	}
	return aabb
}
