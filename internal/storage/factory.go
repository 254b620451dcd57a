package storage

import "fmt"

// Backend type names accepted in configuration.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// ValidateType checks a configured backend type name.
func ValidateType(t string) error {
	switch t {
	case TypeMemory, TypeSQLite, TypePostgres:
		return nil
	default:
		return fmt.Errorf("unknown storage type: %s", t)
	}
}
