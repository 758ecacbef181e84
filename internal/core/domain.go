package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeYear  Timeframe = "year"
)

// DateLayout is the wire format for receipt dates.
const DateLayout = "2006-01-02"

type (
	// Timeframe selects the window for spending aggregation.
	Timeframe string

	// ReceiptItem is a single line on a receipt.
	ReceiptItem struct {
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Category string  `json:"category"`
	}

	// Receipt is a persisted receipt. Immutable once created; there are
	// no update or delete operations in the system.
	Receipt struct {
		ID     string        `json:"id"`
		Date   string        `json:"date"` // YYYY-MM-DD
		Store  string        `json:"store"`
		Total  float64       `json:"total"`
		Items  []ReceiptItem `json:"items"`
		UserID string        `json:"user_id,omitempty"`
	}

	// CategoryData is a derived per-category sum. Never persisted.
	CategoryData struct {
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
	}

	// SpendingData is the on-demand spending view for one timeframe.
	SpendingData struct {
		Timeframe  Timeframe      `json:"timeframe"`
		Total      float64        `json:"total"`
		Categories []CategoryData `json:"categories"`
	}
)

var (
	ErrEmptyStore    = errors.New("empty store name")
	ErrEmptyDate     = errors.New("empty date")
	ErrInvalidDate   = errors.New("invalid date")
	ErrNoItems       = errors.New("receipt has no items")
	ErrEmptyCategory = errors.New("empty item category")
	ErrEmptyItemName = errors.New("empty item name")
	ErrNegativePrice = errors.New("negative item price")
)

// IsValid reports whether the timeframe is one of week, month or year.
// Unknown timeframes are not an error anywhere in the system; they simply
// match no receipts.
func (t Timeframe) IsValid() bool {
	switch t {
	case TimeframeWeek, TimeframeMonth, TimeframeYear:
		return true
	default:
		return false
	}
}

// ParseDate parses a receipt date in the YYYY-MM-DD wire format.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

func (i ReceiptItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyItemName
	}
	if strings.TrimSpace(i.Category) == "" {
		return ErrEmptyCategory
	}
	if i.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}

func (r Receipt) Validate() error {
	if strings.TrimSpace(r.Store) == "" {
		return ErrEmptyStore
	}
	if strings.TrimSpace(r.Date) == "" {
		return ErrEmptyDate
	}
	if _, err := ParseDate(r.Date); err != nil {
		return err
	}
	if len(r.Items) == 0 {
		return ErrNoItems
	}
	for _, item := range r.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ItemsTotal returns the sum of the item prices. The stored Total is not
// reconciled against this value; callers pick one of the two.
func (r Receipt) ItemsTotal() float64 {
	return sumPrices(r.Items)
}
