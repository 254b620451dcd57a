// Package meta holds the semantic metadata tree that mirrors the IFC spatial
// and aggregation hierarchy of a loaded model: a Scene of Models, each Model
// a tree of Objects keyed by globally unique ids.
package meta

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Object is one node of the metadata tree.
type Object struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID string `json:"parent,omitempty"`

	Parent   *Object   `json:"-"`
	Children []*Object `json:"-"`
}

// Subtree returns the object and all its descendants in depth-first order.
func (o *Object) Subtree() []*Object {
	out := []*Object{o}
	for _, child := range o.Children {
		out = append(out, child.Subtree()...)
	}
	return out
}

// SubtreeIDs returns the ids of the object and all its descendants.
func (o *Object) SubtreeIDs() []string {
	objects := o.Subtree()
	ids := make([]string, len(objects))
	for i, obj := range objects {
		ids[i] = obj.ID
	}
	return ids
}

// Ancestors returns the chain of parents from closest to root.
func (o *Object) Ancestors() []*Object {
	var out []*Object
	for p := o.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// Model is the metadata for one loaded model.
type Model struct {
	ID        string
	ProjectID string
	Author    string
	CreatedAt string
	Schema    string

	RootObjects []*Object
	objects     map[string]*Object
}

// Object returns an object by id.
func (m *Model) Object(id string) (*Object, bool) {
	o, ok := m.objects[id]
	return o, ok
}

// ObjectCount returns the number of objects in the model.
func (m *Model) ObjectCount() int {
	return len(m.objects)
}

// ObjectsByType returns all objects of the given IFC type, sorted by id.
func (m *Model) ObjectsByType(ifcType string) []*Object {
	var out []*Object
	for _, o := range m.objects {
		if o.Type == ifcType {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TypeCounts returns a histogram of object types.
func (m *Model) TypeCounts() map[string]int {
	out := make(map[string]int)
	for _, o := range m.objects {
		out[o.Type]++
	}
	return out
}

// modelData is the on-disk metadata JSON shape ("metaModelData").
type modelData struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"projectId"`
	Author      string   `json:"author"`
	CreatedAt   string   `json:"createdAt"`
	Schema      string   `json:"schema"`
	MetaObjects []Object `json:"metaObjects"`
}

// ParseModel builds a metadata model from metaModelData JSON. Objects whose
// parent id is missing from the document become roots; duplicate object ids
// are an error.
func ParseModel(data []byte) (*Model, error) {
	var doc modelData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error unmarshalling metadata: %w", err)
	}
	return buildModel(doc)
}

func buildModel(doc modelData) (*Model, error) {
	m := &Model{
		ID:        doc.ID,
		ProjectID: doc.ProjectID,
		Author:    doc.Author,
		CreatedAt: doc.CreatedAt,
		Schema:    doc.Schema,
		objects:   make(map[string]*Object, len(doc.MetaObjects)),
	}

	for i := range doc.MetaObjects {
		o := doc.MetaObjects[i]
		if o.ID == "" {
			return nil, fmt.Errorf("meta object %d: id required", i)
		}
		if _, ok := m.objects[o.ID]; ok {
			return nil, fmt.Errorf("duplicate meta object id %q", o.ID)
		}
		m.objects[o.ID] = &o
	}

	// Link parents; unresolvable parents make roots.
	for _, o := range m.objects {
		if o.ParentID == "" {
			m.RootObjects = append(m.RootObjects, o)
			continue
		}
		parent, ok := m.objects[o.ParentID]
		if !ok {
			m.RootObjects = append(m.RootObjects, o)
			continue
		}
		o.Parent = parent
		parent.Children = append(parent.Children, o)
	}

	// Parent links must form a forest. A parent cycle leaves its members
	// reachable from no root, so every traversal would silently skip them.
	reached := make(map[string]bool, len(m.objects))
	stack := append([]*Object(nil), m.RootObjects...)
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached[o.ID] = true
		stack = append(stack, o.Children...)
	}
	if len(reached) != len(m.objects) {
		var orphaned []string
		for id := range m.objects {
			if !reached[id] {
				orphaned = append(orphaned, id)
			}
		}
		sort.Strings(orphaned)
		return nil, fmt.Errorf("meta object %q: parent chain forms a cycle", orphaned[0])
	}

	sort.Slice(m.RootObjects, func(i, j int) bool { return m.RootObjects[i].ID < m.RootObjects[j].ID })
	for _, o := range m.objects {
		children := o.Children
		sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	}

	return m, nil
}

// Scene aggregates the metadata of all loaded models. Object ids are global:
// the same id may not be contributed by two models.
type Scene struct {
	mu      sync.RWMutex
	models  map[string]*Model
	objects map[string]*Object
	log     *slog.Logger
}

// NewScene creates an empty metadata scene.
func NewScene(log *slog.Logger) *Scene {
	if log == nil {
		log = slog.Default()
	}
	return &Scene{
		models:  make(map[string]*Model),
		objects: make(map[string]*Object),
		log:     log,
	}
}

// AddModel registers a parsed model's objects into the scene.
func (s *Scene) AddModel(m *Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[m.ID]; ok {
		return fmt.Errorf("meta model %q already loaded", m.ID)
	}
	for id := range m.objects {
		if _, ok := s.objects[id]; ok {
			return fmt.Errorf("meta object %q already present in scene", id)
		}
	}

	s.models[m.ID] = m
	for id, o := range m.objects {
		s.objects[id] = o
	}

	s.log.Debug("Added metadata model", "model", m.ID, "objects", len(m.objects))
	return nil
}

// RemoveModel drops a model and its objects from the scene.
func (s *Scene) RemoveModel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.models[id]
	if !ok {
		return
	}
	for objID := range m.objects {
		delete(s.objects, objID)
	}
	delete(s.models, id)
}

// Model returns a model by id.
func (s *Scene) Model(id string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	return m, ok
}

// Object returns an object by id across all models.
func (s *Scene) Object(id string) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[id]
	return o, ok
}

// ObjectIDs returns all object ids in the scene, sorted.
func (s *Scene) ObjectIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.objects))
	for id := range s.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
