// Package file provides a flat-file ReceiptStore: one JSON array of
// receipts at a fixed path, rewritten in full on every write. There is no
// append-only log and no compaction; the single-writer assumption makes a
// mutex sufficient.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"spendlens/internal/core"
	"spendlens/internal/store"
)

var _ store.ReceiptStore = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a file store at path, creating the parent directory if needed.
// A missing file is treated as an empty store.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return &Store{path: path}, nil
}

// Create implements store.ReceiptStore.
func (s *Store) Create(_ context.Context, r core.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipts, err := s.load()
	if err != nil {
		return err
	}
	receipts = append(receipts, r)
	return s.save(receipts)
}

// ListAll implements store.ReceiptStore.
func (s *Store) ListAll(_ context.Context, userID string) ([]core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipts, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []core.Receipt
	for _, r := range receipts {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRecent implements store.ReceiptStore.
func (s *Store) ListRecent(ctx context.Context, userID string, limit int) ([]core.Receipt, error) {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	receipts, err := s.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Date descending; the YYYY-MM-DD format sorts lexicographically.
	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].Date > receipts[j].Date
	})
	if len(receipts) > limit {
		receipts = receipts[:limit]
	}
	return receipts, nil
}

func (s *Store) load() ([]core.Receipt, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read receipts file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var receipts []core.Receipt
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, fmt.Errorf("decode receipts file: %w", err)
	}
	return receipts, nil
}

func (s *Store) save(receipts []core.Receipt) error {
	data, err := json.MarshalIndent(receipts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode receipts: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write receipts file: %w", err)
	}
	return nil
}
