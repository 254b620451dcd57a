package bcf

import (
	"sort"
	"sync"

	"github.com/bimkit/bimkit/internal/math3d"
)

// Projection names the active camera projection.
type Projection string

const (
	ProjectionPerspective Projection = "perspective"
	ProjectionOrtho       Projection = "ortho"
)

// Camera is the viewer camera pose in scene coordinates.
type Camera struct {
	Eye  math3d.Vec3
	Look math3d.Vec3
	Up   math3d.Vec3

	Projection Projection
	FOV        float64 // degrees, perspective
	Scale      float64 // view-to-world, ortho
}

// Plane is a section plane in scene coordinates.
type Plane struct {
	Position  math3d.Vec3
	Direction math3d.Vec3
}

// SceneState is the viewer surface a Recorder reads and writes: camera pose,
// per-object display state, section planes and an optional snapshot image.
type SceneState interface {
	Camera() Camera
	SetCamera(Camera)

	ObjectIDs() []string
	ObjectVisible(id string) bool
	SetObjectVisible(id string, visible bool)
	ObjectSelected(id string) bool
	SetObjectSelected(id string, selected bool)
	ObjectColor(id string) (color string, ok bool)
	SetObjectColor(id, color string)
	ClearObjectColors()

	Planes() []Plane
	SetPlanes([]Plane)

	SnapshotPNG() string
}

// MemoryScene is an in-memory SceneState used by the CLI and by tests.
type MemoryScene struct {
	mu       sync.Mutex
	camera   Camera
	visible  map[string]bool
	selected map[string]bool
	colors   map[string]string
	planes   []Plane
	snapshot string
}

// NewMemoryScene creates a scene where every given object starts visible.
func NewMemoryScene(objectIDs []string) *MemoryScene {
	s := &MemoryScene{
		visible:  make(map[string]bool, len(objectIDs)),
		selected: make(map[string]bool),
		colors:   make(map[string]string),
	}
	for _, id := range objectIDs {
		s.visible[id] = true
	}
	return s
}

func (s *MemoryScene) Camera() Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

func (s *MemoryScene) SetCamera(c Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = c
}

func (s *MemoryScene) ObjectIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.visible))
	for id := range s.visible {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *MemoryScene) ObjectVisible(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible[id]
}

func (s *MemoryScene) SetObjectVisible(id string, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visible[id]; ok {
		s.visible[id] = visible
	}
}

func (s *MemoryScene) ObjectSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected[id]
}

func (s *MemoryScene) SetObjectSelected(id string, selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if selected {
		s.selected[id] = true
	} else {
		delete(s.selected, id)
	}
}

func (s *MemoryScene) ObjectColor(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.colors[id]
	return c, ok
}

func (s *MemoryScene) SetObjectColor(id, color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors[id] = color
}

func (s *MemoryScene) ClearObjectColors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors = make(map[string]string)
}

func (s *MemoryScene) Planes() []Plane {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Plane(nil), s.planes...)
}

func (s *MemoryScene) SetPlanes(planes []Plane) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planes = append([]Plane(nil), planes...)
}

func (s *MemoryScene) SnapshotPNG() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// SetSnapshotPNG stores a base64 PNG returned by SnapshotPNG.
func (s *MemoryScene) SetSnapshotPNG(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = data
}
