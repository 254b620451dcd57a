// Package factory constructs storage backends from configuration.
package factory

import (
	"fmt"

	"github.com/bimkit/bimkit/internal/config"
	"github.com/bimkit/bimkit/internal/logging"
	"github.com/bimkit/bimkit/internal/storage"
	"github.com/bimkit/bimkit/internal/storage/memory"
	postgresstorage "github.com/bimkit/bimkit/internal/storage/postgres"
	sqlitestorage "github.com/bimkit/bimkit/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration.
func NewBackend(cfg config.StorageConfig, logManager *logging.SlogManager) (storage.Backend, error) {
	switch cfg.Type {
	case storage.TypePostgres:
		return postgresstorage.New(logManager)
	case storage.TypeSQLite:
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.DumpPath,
		}, logManager)
	case storage.TypeMemory:
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
