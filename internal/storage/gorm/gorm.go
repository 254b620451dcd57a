// Package gormstorage implements the storage.Backend interface on a GORM
// database. Manifests and viewpoints are written synchronously; metadata
// objects go through a queue drained by a background writer because a large
// IFC model carries tens of thousands of them.
package gormstorage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bimkit/bimkit/internal/bcf"
	"github.com/bimkit/bimkit/internal/geo"
	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/logging"
	"github.com/bimkit/bimkit/internal/queue"
	"github.com/bimkit/bimkit/internal/storage"
)

// writeInterval is how often the background writer drains the meta queue.
const writeInterval = 500 * time.Millisecond

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
}

// Backend implements storage.Backend using GORM with queue-based batch
// writes for metadata objects.
type Backend struct {
	deps      Dependencies
	metaQueue *queue.Queue[MetaObjectRow]
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init runs schema migration and starts the background writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("no database connection provided")
	}

	b.metaQueue = queue.New[MetaObjectRow]()
	b.stopChan = make(chan struct{})
	b.doneChan = make(chan struct{})

	if err := b.deps.DB.AutoMigrate(DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	go b.writerLoop()
	return nil
}

// Close stops the background writer after a final queue drain.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.doneChan
	}
	return nil
}

// SaveModel upserts the manifest and queues the metadata objects.
func (b *Backend) SaveModel(res *loader.Result) error {
	if res == nil || res.Scene == nil {
		return fmt.Errorf("nil load result")
	}

	manifest := storage.ManifestFromResult(res)
	aabbJSON, err := json.Marshal(manifest.AABB)
	if err != nil {
		return fmt.Errorf("failed to encode AABB: %w", err)
	}

	row := ManifestRow{
		ModelID:     manifest.ModelID,
		Name:        manifest.Name,
		Format:      manifest.Format,
		SourcePath:  manifest.SourcePath,
		Entities:    manifest.Entities,
		Meshes:      manifest.Meshes,
		Geometries:  manifest.Geometries,
		Triangles:   manifest.Triangles,
		MetaObjects: manifest.MetaObjects,
		AABB:        aabbJSON,
		CreatedAt:   manifest.CreatedAt,
	}
	if manifest.Site != nil {
		siteJSON, err := json.Marshal(manifest.Site)
		if err != nil {
			return fmt.Errorf("failed to encode site origin: %w", err)
		}
		row.Site = siteJSON
	}

	err = b.deps.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert manifest: %w", err)
	}

	// reloading a model replaces its metadata
	err = b.deps.DB.Where("model_id = ?", manifest.ModelID).Delete(&MetaObjectRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear old metadata: %w", err)
	}

	for _, obj := range storage.FlattenMeta(res.Meta) {
		b.metaQueue.Push(MetaObjectRow{
			ModelID:  manifest.ModelID,
			ObjectID: obj.ID,
			Name:     obj.Name,
			IfcType:  obj.Type,
			ParentID: obj.ParentID,
		})
	}

	return nil
}

// ListManifests returns all manifests ordered by creation time.
func (b *Backend) ListManifests() ([]storage.Manifest, error) {
	var rows []ManifestRow
	if err := b.deps.DB.Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}

	out := make([]storage.Manifest, 0, len(rows))
	for _, row := range rows {
		m := storage.Manifest{
			ModelID:     row.ModelID,
			Name:        row.Name,
			Format:      row.Format,
			SourcePath:  row.SourcePath,
			Entities:    row.Entities,
			Meshes:      row.Meshes,
			Geometries:  row.Geometries,
			Triangles:   row.Triangles,
			MetaObjects: row.MetaObjects,
			CreatedAt:   row.CreatedAt,
		}
		if len(row.AABB) > 0 {
			if err := json.Unmarshal(row.AABB, &m.AABB); err != nil {
				return nil, fmt.Errorf("failed to decode AABB for %s: %w", row.ModelID, err)
			}
		}
		if len(row.Site) > 0 {
			m.Site = &geo.Origin{}
			if err := json.Unmarshal(row.Site, m.Site); err != nil {
				return nil, fmt.Errorf("failed to decode site origin for %s: %w", row.ModelID, err)
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// SaveViewpoint stores an encoded BCF viewpoint.
func (b *Backend) SaveViewpoint(vp storage.SavedViewpoint) error {
	if vp.ModelID == "" {
		return fmt.Errorf("viewpoint is missing a model id")
	}

	data, err := vp.Viewpoint.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode viewpoint: %w", err)
	}

	createdAt := vp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := ViewpointRow{
		ModelID:   vp.ModelID,
		Name:      vp.Name,
		Data:      data,
		CreatedAt: createdAt,
	}
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert viewpoint: %w", err)
	}
	return nil
}

// GetViewpoints returns all viewpoints saved for a model.
func (b *Backend) GetViewpoints(modelID string) ([]storage.SavedViewpoint, error) {
	var rows []ViewpointRow
	err := b.deps.DB.Where("model_id = ?", modelID).Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list viewpoints: %w", err)
	}

	out := make([]storage.SavedViewpoint, 0, len(rows))
	for _, row := range rows {
		viewpoint, err := bcf.Parse(row.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse viewpoint %d: %w", row.ID, err)
		}
		out = append(out, storage.SavedViewpoint{
			ModelID:   row.ModelID,
			Name:      row.Name,
			Viewpoint: viewpoint,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// Flush synchronously drains the meta queue. Tests and CLI tools use this
// instead of waiting for the writer tick.
func (b *Backend) Flush() error {
	return b.drainMetaQueue()
}

// writerLoop drains the meta queue on an interval until Close.
func (b *Backend) writerLoop() {
	defer close(b.doneChan)

	ticker := time.NewTicker(writeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			if err := b.drainMetaQueue(); err != nil {
				b.logError("final meta drain failed", err)
			}
			return
		case <-ticker.C:
			if err := b.drainMetaQueue(); err != nil {
				b.logError("meta drain failed", err)
			}
		}
	}
}

func (b *Backend) drainMetaQueue() error {
	rows := b.metaQueue.Drain()
	if len(rows) == 0 {
		return nil
	}
	if err := b.deps.DB.CreateInBatches(rows, 1000).Error; err != nil {
		return fmt.Errorf("failed to insert %d meta objects: %w", len(rows), err)
	}
	return nil
}

func (b *Backend) logError(msg string, err error) {
	if b.deps.LogManager != nil {
		b.deps.LogManager.Logger().Error(msg, "error", err)
	}
}
