package core

import (
	"errors"
	"testing"
)

func TestTimeframeIsValid(t *testing.T) {
	for _, tf := range []Timeframe{TimeframeWeek, TimeframeMonth, TimeframeYear} {
		if !tf.IsValid() {
			t.Fatalf("%q should be valid", tf)
		}
	}
	for _, tf := range []Timeframe{"", "day", "WEEK", "quarter"} {
		if tf.IsValid() {
			t.Fatalf("%q should be invalid", tf)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-04-09")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2025 || int(d.Month()) != 4 || d.Day() != 9 {
		t.Fatalf("parsed wrong date: %v", d)
	}

	for _, s := range []string{"", "09/04/2025", "2025-13-01", "yesterday"} {
		if _, err := ParseDate(s); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q: expected ErrInvalidDate, got %v", s, err)
		}
	}
}

func TestReceiptItemValidate(t *testing.T) {
	good := ReceiptItem{Name: "Milk", Price: 2.49, Category: "Dairy"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	// Zero-price lines (promotions, deposits) are accepted.
	if err := (ReceiptItem{Name: "Coupon", Price: 0, Category: "Pantry"}).Validate(); err != nil {
		t.Fatalf("zero price should validate: %v", err)
	}

	cases := []struct {
		item ReceiptItem
		want error
	}{
		{ReceiptItem{Name: "", Price: 1, Category: "Dairy"}, ErrEmptyItemName},
		{ReceiptItem{Name: "Milk", Price: 1, Category: " "}, ErrEmptyCategory},
		{ReceiptItem{Name: "Milk", Price: -0.01, Category: "Dairy"}, ErrNegativePrice},
	}
	for i, tc := range cases {
		if err := tc.item.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestReceiptValidate(t *testing.T) {
	good := Receipt{
		ID:    "r1",
		Date:  "2025-04-09",
		Store: "Fresh Mart",
		Total: 5.5,
		Items: []ReceiptItem{
			{Name: "Apples", Price: 3.5, Category: "Produce"},
			{Name: "Milk", Price: 2.0, Category: "Dairy"},
		},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Receipt{
		{Date: "2025-04-09", Items: good.Items},                                  // no store
		{Store: "S", Items: good.Items},                                          // no date
		{Store: "S", Date: "not-a-date", Items: good.Items},                      // bad date
		{Store: "S", Date: "2025-04-09"},                                         // no items
		{Store: "S", Date: "2025-04-09", Items: []ReceiptItem{{Name: "x"}}},      // bad item
		{Store: "S", Date: "2025-04-09", Items: []ReceiptItem{{Price: -1, Name: "x", Category: "c"}}},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestReceiptItemsTotal(t *testing.T) {
	r := Receipt{Items: []ReceiptItem{
		{Name: "a", Price: 0.1, Category: "c"},
		{Name: "b", Price: 0.2, Category: "c"},
	}}
	// 0.1+0.2 must come out exactly 0.3 thanks to decimal summation.
	if got := r.ItemsTotal(); got != 0.3 {
		t.Fatalf("ItemsTotal = %v, want 0.3", got)
	}
}
