// Package sqlite provides the SQLite-backed ReceiptStore.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"spendlens/internal/core"
	"spendlens/internal/store"
)

var _ store.ReceiptStore = (*Repository)(nil)

// Repository stores receipts in two related tables (receipts, items)
// joined on read. Writes are sequential inserts; the receipt row lands
// first and items follow best-effort, matching the single-writer model.
type Repository struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs the
// embedded migrations.
func New(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Create implements store.ReceiptStore.
func (r *Repository) Create(ctx context.Context, receipt core.Receipt) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO receipts (id, store, date, total, user_id) VALUES (?, ?, ?, ?, ?)",
		receipt.ID, receipt.Store, receipt.Date, receipt.Total, receipt.UserID,
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	for _, item := range receipt.Items {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO items (id, receipt_id, name, category, price) VALUES (?, ?, ?, ?, ?)",
			uuid.New().String(), receipt.ID, item.Name, item.Category, item.Price,
		)
		if err != nil {
			return fmt.Errorf("insert item %q: %w", item.Name, err)
		}
	}

	slog.InfoContext(ctx, "Receipt saved to SQLite",
		"id", receipt.ID,
		"store", receipt.Store,
		"date", receipt.Date,
		"items", len(receipt.Items),
		"total", receipt.Total)

	return nil
}

// ListAll implements store.ReceiptStore.
func (r *Repository) ListAll(ctx context.Context, userID string) ([]core.Receipt, error) {
	return r.list(ctx,
		"SELECT id, store, date, total, user_id FROM receipts WHERE user_id = ? ORDER BY date",
		userID, 0)
}

// ListRecent implements store.ReceiptStore.
func (r *Repository) ListRecent(ctx context.Context, userID string, limit int) ([]core.Receipt, error) {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}
	return r.list(ctx,
		"SELECT id, store, date, total, user_id FROM receipts WHERE user_id = ? ORDER BY date DESC LIMIT ?",
		userID, limit)
}

func (r *Repository) list(ctx context.Context, query, userID string, limit int) ([]core.Receipt, error) {
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query, userID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []core.Receipt
	for rows.Next() {
		var rec core.Receipt
		if err := rows.Scan(&rec.ID, &rec.Store, &rec.Date, &rec.Total, &rec.UserID); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}

	for i := range receipts {
		items, err := r.listItems(ctx, receipts[i].ID)
		if err != nil {
			return nil, err
		}
		receipts[i].Items = items
	}

	return receipts, nil
}

func (r *Repository) listItems(ctx context.Context, receiptID string) ([]core.ReceiptItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name, category, price FROM items WHERE receipt_id = ? ORDER BY rowid",
		receiptID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []core.ReceiptItem
	for rows.Next() {
		var item core.ReceiptItem
		if err := rows.Scan(&item.Name, &item.Category, &item.Price); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}
