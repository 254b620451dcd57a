package gormstorage

import (
	"time"

	"gorm.io/datatypes"
)

// ManifestRow is the manifests table.
type ManifestRow struct {
	ID          uint   `gorm:"primarykey"`
	ModelID     string `gorm:"uniqueIndex"`
	Name        string
	Format      string
	SourcePath  string
	Entities    int
	Meshes      int
	Geometries  int
	Triangles   int
	MetaObjects int
	AABB        datatypes.JSON
	Site        datatypes.JSON
	CreatedAt   time.Time
}

// MetaObjectRow is one metadata object of a stored model.
type MetaObjectRow struct {
	ID       uint   `gorm:"primarykey"`
	ModelID  string `gorm:"index"`
	ObjectID string
	Name     string
	IfcType  string
	ParentID string
}

// ViewpointRow is one saved BCF viewpoint.
type ViewpointRow struct {
	ID        uint   `gorm:"primarykey"`
	ModelID   string `gorm:"index"`
	Name      string
	Data      datatypes.JSON
	CreatedAt time.Time
}

// DatabaseModels lists all tables migrated by the backend.
var DatabaseModels = []any{
	&ManifestRow{},
	&MetaObjectRow{},
	&ViewpointRow{},
}
