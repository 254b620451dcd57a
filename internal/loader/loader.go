// Package loader defines the format loader interface and the registry that
// dispatches model files to the right decoder. Concrete loaders live in the
// subpackages xkt, gltf and dotbim; each walks its parsed representation and
// populates a scene.Model plus an optional meta.Model.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bimkit/bimkit/internal/geo"
	"github.com/bimkit/bimkit/internal/meta"
	"github.com/bimkit/bimkit/internal/scene"
	"github.com/bimkit/bimkit/internal/util"
)

var (
	// ErrNoSource is returned when neither Path nor Data is set.
	ErrNoSource = errors.New("load params: either Path or Data required")
	// ErrAmbiguousSource is returned when both Path and Data are set.
	ErrAmbiguousSource = errors.New("load params: Path and Data are mutually exclusive")
	// ErrUnknownFormat is returned when no loader accepts the source.
	ErrUnknownFormat = errors.New("no loader for source")
)

// ObjectDefaults hold fallback appearance for entities whose source carries
// no material.
type ObjectDefaults struct {
	Color   [3]float32
	Opacity float32
}

// Params describe one load request.
type Params struct {
	// ModelID names the created model. Defaults to the file base name.
	ModelID string

	// Path is the source file. Mutually exclusive with Data.
	Path string

	// Data is an in-memory source buffer. Mutually exclusive with Path.
	Data []byte

	// Meta is pre-fetched metaModelData JSON attached to the model.
	Meta []byte

	// IncludeTypes restricts created objects to these meta types. Empty
	// means all.
	IncludeTypes []string

	// ExcludeTypes suppresses objects of these meta types.
	ExcludeTypes []string

	// Defaults applies to entities without source material.
	Defaults ObjectDefaults

	// Georeference places the model at a projected site origin. Nil leaves
	// the model unplaced.
	Georeference *geo.Origin
}

// Validate checks the source fields.
func (p *Params) Validate() error {
	hasPath := p.Path != ""
	hasData := len(p.Data) > 0
	if !hasPath && !hasData {
		return ErrNoSource
	}
	if hasPath && hasData {
		return ErrAmbiguousSource
	}
	return nil
}

// Bytes returns the source buffer, reading Path when Data is not inline.
func (p *Params) Bytes() ([]byte, error) {
	if len(p.Data) > 0 {
		return p.Data, nil
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("error reading source: %w", err)
	}
	return data, nil
}

// TypeFilter builds an object-type predicate from the include/exclude lists.
func (p *Params) TypeFilter() func(objectType string) bool {
	var include map[string]bool
	if len(p.IncludeTypes) > 0 {
		include = make(map[string]bool, len(p.IncludeTypes))
		for _, t := range p.IncludeTypes {
			include[t] = true
		}
	}
	exclude := make(map[string]bool, len(p.ExcludeTypes))
	for _, t := range p.ExcludeTypes {
		exclude[t] = true
	}
	return func(objectType string) bool {
		if exclude[objectType] {
			return false
		}
		if include != nil {
			return include[objectType]
		}
		return true
	}
}

// Stats describe one completed load.
type Stats struct {
	Format      string
	SourceBytes int
	Duration    time.Duration
	Scene       scene.Stats
	MetaObjects int
}

// Result is the outcome of a load.
type Result struct {
	Scene *scene.Model
	Meta  *meta.Model
	Stats Stats
}

// Loader is a format decoder plugin.
type Loader interface {
	// Name is the short format tag ("xkt", "gltf", "dotbim").
	Name() string

	// CanLoad reports whether the loader handles the given source path.
	CanLoad(path string) bool

	// Load decodes the source into a scene model and optional metadata.
	Load(ctx context.Context, p Params) (*Result, error)
}

// Registry dispatches load requests to registered loaders.
type Registry struct {
	loaders []Loader
	log     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log}
}

// Register appends a loader. Earlier registrations win on overlap.
func (r *Registry) Register(l Loader) {
	r.loaders = append(r.loaders, l)
	r.log.Debug("Registered loader", "format", l.Name())
}

// Loaders returns the registered loaders in registration order.
func (r *Registry) Loaders() []Loader {
	return append([]Loader(nil), r.loaders...)
}

// ByName returns a loader by format tag.
func (r *Registry) ByName(name string) (Loader, bool) {
	for _, l := range r.loaders {
		if l.Name() == name {
			return l, true
		}
	}
	return nil, false
}

// For selects the loader for a source path.
func (r *Registry) For(path string) (Loader, error) {
	for _, l := range r.loaders {
		if l.CanLoad(path) {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (extension %q)", ErrUnknownFormat, path, util.Ext(path))
}

// Load validates params, picks a loader by path and runs it.
func (r *Registry) Load(ctx context.Context, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, fmt.Errorf("registry load requires Path for format dispatch; call a loader directly for inline data")
	}
	l, err := r.For(p.Path)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, p)
}
