// Package billing turns fetched time entries into an invoice and
// enforces the double-billing interlock: only unlocked entries are
// billed, and exactly the billed entries are locked once the invoice
// exists.
package billing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Tiliavir/mitebill/internal/mite"
)

// ErrEmptyInput signals an aggregation attempt over zero entries.
// The orchestrator handles the empty fetch result before aggregation;
// hitting this error means a caller skipped that check.
var ErrEmptyInput = errors.New("cannot aggregate an empty set of time entries")

// Aggregate is the per-project billing summary for one run. It is
// immutable after creation; total minutes and amount are always derived
// from the contributing entries and the rate, never stored separately.
type Aggregate struct {
	ProjectID    int
	ProjectName  string
	CustomerName string
	// EntryIDs lists the contributing entries, unique, in fetch order.
	EntryIDs     []int
	TotalMinutes int
	HourlyRate   float64
	Amount       float64
	Currency     string
	From, To     time.Time
}

// Hours returns the total as decimal hours.
func (a Aggregate) Hours() float64 {
	return float64(a.TotalMinutes) / 60
}

// Summarize reduces the entries of one project into an Aggregate.
// Minutes are summed as integers; the amount is hours * rate rounded to
// two decimals, half away from zero. Project and customer names are
// display-only and taken from the first entry; inconsistent names in
// the batch are not an error.
func Summarize(entries []mite.TimeEntry, hourlyRate float64, currency string, from, to time.Time) (Aggregate, error) {
	if len(entries) == 0 {
		return Aggregate{}, ErrEmptyInput
	}
	if hourlyRate <= 0 {
		return Aggregate{}, fmt.Errorf("hourly rate must be > 0, got %v", hourlyRate)
	}

	seen := make(map[int]bool, len(entries))
	ids := make([]int, 0, len(entries))
	totalMinutes := 0
	for _, e := range entries {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		ids = append(ids, e.ID)
		totalMinutes += e.Minutes
	}

	return Aggregate{
		ProjectID:    entries[0].ProjectID,
		ProjectName:  entries[0].ProjectName,
		CustomerName: entries[0].CustomerName,
		EntryIDs:     ids,
		TotalMinutes: totalMinutes,
		HourlyRate:   hourlyRate,
		Amount:       round2(float64(totalMinutes) / 60 * hourlyRate),
		Currency:     currency,
		From:         from,
		To:           to,
	}, nil
}

// round2 rounds to two decimals, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
