package xkt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/meta"
	"github.com/bimkit/bimkit/internal/scene"
)

// parserFunc decodes one container version into the model under construction.
type parserFunc func(c *container, b *builder) error

// parsers dispatches container versions. Older versions stay supported as
// new ones are added.
var parsers = map[uint32]parserFunc{
	1: parseV1,
	2: parseV2,
	3: parseV3,
	4: parseV4,
}

// Loader decodes .xkt files.
type Loader struct {
	log *slog.Logger
}

// New creates an XKT loader.
func New(log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{log: log}
}

// Name implements loader.Loader.
func (l *Loader) Name() string { return "xkt" }

// CanLoad implements loader.Loader.
func (l *Loader) CanLoad(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xkt")
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

	c, err := readContainer(data)
	if err != nil {
		return nil, err
	}
	parse, ok := parsers[c.version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.version)
	}

	modelID := p.ModelID
	if modelID == "" && p.Path != "" {
		modelID = strings.TrimSuffix(filepath.Base(p.Path), filepath.Ext(p.Path))
	}
	if modelID == "" {
		modelID = "xkt-model"
	}

	b := &builder{
		model:    scene.NewModel(modelID, l.log),
		defaults: p.Defaults,
	}
	b.model.Source = p.Path
	b.model.Origin = p.Georeference

	if err := parse(c, b); err != nil {
		return nil, fmt.Errorf("xkt: version %d: %w", c.version, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Metadata: explicit Params.Meta wins over container-embedded metadata.
	metaJSON := p.Meta
	if metaJSON == nil {
		metaJSON = b.embeddedMeta
	}
	var metaModel *meta.Model
	if len(metaJSON) > 0 {
		metaModel, err = meta.ParseModel(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("xkt: metadata: %w", err)
		}
	}

	if err := b.createEntities(p.TypeFilter(), metaModel); err != nil {
		return nil, err
	}
	b.model.Finalize()

	l.log.Info("Loaded XKT model",
		"model", modelID,
		"version", c.version,
		"bytes", len(data),
		"entities", b.model.Stats().Entities)

	res := &loader.Result{
		Scene: b.model,
		Meta:  metaModel,
		Stats: loader.Stats{
			Format:      l.Name(),
			SourceBytes: len(data),
			Duration:    time.Since(start),
			Scene:       b.model.Stats(),
		},
	}
	if metaModel != nil {
		res.Stats.MetaObjects = metaModel.ObjectCount()
	}
	return res, nil
}
