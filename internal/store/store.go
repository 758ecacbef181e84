// Package store defines the port for receipt persistence.
package store

import (
	"context"

	"spendlens/internal/core"
)

// DefaultRecentLimit is the truncation applied by ListRecent when callers
// pass a non-positive limit.
const DefaultRecentLimit = 10

// ReceiptStore persists and retrieves receipts scoped by an opaque user
// identifier. Receipts are write-once: there is no update or delete.
type ReceiptStore interface {
	// Create persists a receipt and its items. The caller is responsible
	// for assigning the ID before calling.
	Create(ctx context.Context, r core.Receipt) error

	// ListAll returns every receipt for the user, items nested inside.
	ListAll(ctx context.Context, userID string) ([]core.Receipt, error)

	// ListRecent returns the user's receipts sorted by date descending,
	// truncated to limit (DefaultRecentLimit when limit <= 0).
	ListRecent(ctx context.Context, userID string, limit int) ([]core.Receipt, error)
}
