package backend

import (
	"fmt"

	"spendlens/internal/config"
	"spendlens/internal/store"
)

// BackendType represents the configured persistence backend.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	FileBackend   BackendType = "file"
)

// String implements fmt.Stringer.
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid.
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, FileBackend:
		return true
	default:
		return false
	}
}

// CleanupFunc releases backend resources at shutdown.
type CleanupFunc func() error

// Result contains the store instance and its cleanup function. Cleanup is
// never nil, so callers may defer it unconditionally.
type Result struct {
	Store   store.ReceiptStore
	Cleanup CleanupFunc
}

// Config holds what backend creation needs, decoupled from the app config.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// File specific
	ReceiptsFilePath string
}

// FromAppConfig converts the application config to a backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{
		Type:             backendType,
		SQLiteDBPath:     appConfig.SQLiteDBPath,
		ReceiptsFilePath: appConfig.ReceiptsFilePath,
	}, nil
}
