// Package core holds the domain types and the spending aggregation.
//
// ComputeSpending is a pure reduction: it never touches storage and each
// invocation works on an immutable snapshot of receipts.
package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// weekWindow is the trailing window used by the week timeframe. It is a
// rolling 7x24h window, not aligned to calendar weeks.
const weekWindow = 7 * 24 * time.Hour

// ComputeSpending filters receipts by timeframe relative to now and reduces
// their items into per-category sums.
//
// Categories are matched case-sensitively with no normalization. The output
// is sorted by amount descending; ties keep first-seen order (the order in
// which a category first appears while walking receipts and items). Receipts
// whose date does not parse are excluded from every window, and an unknown
// timeframe matches nothing. Both cases yield {total: 0, categories: []}
// rather than an error.
func ComputeSpending(receipts []Receipt, timeframe Timeframe, now time.Time) SpendingData {
	sums := make(map[string]decimal.Decimal)
	var order []string

	for _, r := range receipts {
		date, err := ParseDate(r.Date)
		if err != nil {
			continue
		}
		if !inWindow(date, timeframe, now) {
			continue
		}
		for _, item := range r.Items {
			if _, seen := sums[item.Category]; !seen {
				order = append(order, item.Category)
			}
			sums[item.Category] = sums[item.Category].Add(decimal.NewFromFloat(item.Price))
		}
	}

	categories := make([]CategoryData, 0, len(order))
	for _, name := range order {
		categories = append(categories, CategoryData{
			Category: name,
			Amount:   sums[name].InexactFloat64(),
		})
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Amount > categories[j].Amount
	})

	// The grand total is the sum of the emitted per-category amounts, not a
	// separately rounded decimal, so sum(categories[*].amount) == total holds
	// exactly for every input.
	total := 0.0
	for _, c := range categories {
		total += c.Amount
	}

	return SpendingData{
		Timeframe:  timeframe,
		Total:      total,
		Categories: categories,
	}
}

// inWindow reports whether date falls inside the timeframe window ending at
// now. The week boundary is inclusive: a receipt dated exactly seven days
// ago is still counted.
func inWindow(date time.Time, timeframe Timeframe, now time.Time) bool {
	switch timeframe {
	case TimeframeWeek:
		return now.Sub(date) <= weekWindow
	case TimeframeMonth:
		return date.Month() == now.Month() && date.Year() == now.Year()
	case TimeframeYear:
		return date.Year() == now.Year()
	default:
		return false
	}
}

// sumPrices adds item prices with decimal arithmetic to avoid accumulating
// float error over long receipts.
func sumPrices(items []ReceiptItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.Price))
	}
	return total.InexactFloat64()
}
