package backend

import (
	"fmt"
	"log/slog"

	"spendlens/internal/store/file"
	"spendlens/internal/store/sqlite"
)

// Factory creates receipt stores based on configuration. The two backends
// are interchangeable implementations of store.ReceiptStore, selected once
// at startup.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Create builds the configured store.
func (f *Factory) Create(config Config) (*Result, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := sqlite.New(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &Result{Store: repo, Cleanup: repo.Close}, nil

	case FileBackend:
		fs, err := file.New(config.ReceiptsFilePath)
		if err != nil {
			return nil, fmt.Errorf("initialize file store: %w", err)
		}
		f.logger.Info("Initialized file backend", "path", config.ReceiptsFilePath)
		return &Result{Store: fs, Cleanup: func() error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
