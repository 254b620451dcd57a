// Package postgresstorage implements the storage.Backend interface on a
// Postgres server. It wraps the GORM backend; the only Postgres-specific
// concern is establishing and validating the connection.
package postgresstorage

import (
	"fmt"

	"github.com/bimkit/bimkit/internal/database"
	"github.com/bimkit/bimkit/internal/logging"
	gormstorage "github.com/bimkit/bimkit/internal/storage/gorm"
)

// Backend wraps the GORM backend with a Postgres connection.
type Backend struct {
	*gormstorage.Backend
}

// New creates a new Postgres storage backend using viper config for the DSN.
func New(logManager *logging.SlogManager) (*Backend, error) {
	db, err := database.GetPostgresDBStandalone()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:         db,
			LogManager: logManager,
		}),
	}, nil
}
