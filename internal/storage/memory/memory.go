// Package memory stores manifests and viewpoints in memory and exports each
// saved model as a viewer JSON file.
package memory

import (
	"fmt"
	"sync"

	"github.com/bimkit/bimkit/internal/config"
	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/meta"
	"github.com/bimkit/bimkit/internal/storage"
)

// modelRecord groups everything stored for one model.
type modelRecord struct {
	manifest storage.Manifest
	objects  []*meta.Object
}

// Backend stores model data in memory and exports to JSON.
type Backend struct {
	cfg config.MemoryConfig

	models     map[string]*modelRecord
	order      []string
	viewpoints map[string][]storage.SavedViewpoint

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend.
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:        cfg,
		models:     make(map[string]*modelRecord),
		viewpoints: make(map[string][]storage.SavedViewpoint),
	}
}

// Init initializes the backend.
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources.
func (b *Backend) Close() error {
	return nil
}

// SaveModel stores the manifest and metadata of a loaded model and writes
// the viewer JSON export.
func (b *Backend) SaveModel(res *loader.Result) error {
	if res == nil || res.Scene == nil {
		return fmt.Errorf("nil load result")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := res.Scene.ID
	if _, ok := b.models[id]; !ok {
		b.order = append(b.order, id)
	}
	b.models[id] = &modelRecord{
		manifest: storage.ManifestFromResult(res),
		objects:  storage.FlattenMeta(res.Meta),
	}

	return b.exportJSON(res)
}

// ListManifests returns manifests in save order.
func (b *Backend) ListManifests() ([]storage.Manifest, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]storage.Manifest, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.models[id].manifest)
	}
	return out, nil
}

// SaveViewpoint stores a named viewpoint for a model.
func (b *Backend) SaveViewpoint(vp storage.SavedViewpoint) error {
	if vp.ModelID == "" {
		return fmt.Errorf("viewpoint is missing a model id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.viewpoints[vp.ModelID] = append(b.viewpoints[vp.ModelID], vp)
	return nil
}

// GetViewpoints returns all viewpoints saved for a model.
func (b *Backend) GetViewpoints(modelID string) ([]storage.SavedViewpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]storage.SavedViewpoint, len(b.viewpoints[modelID]))
	copy(out, b.viewpoints[modelID])
	return out, nil
}

// GetExportedFilePath returns the path of the last written export file.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
