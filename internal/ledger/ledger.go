// Package ledger holds the counter state machine over an append-only log
// of signed per-prayer adjustments, and an observable in-memory store of
// the derived counters.
package ledger

import (
	"github.com/julianstephens/qada/internal/models"
)

// Apply folds a single entry into agg, in append order:
//
//	Debt      = max(0, Debt + amount)
//	Completed += 1   for every negative make-up entry, whatever its magnitude
//
// A completion also bumps the history bucket of the entry's local date and,
// when rated, the category's quality stats.
func Apply(agg *models.Aggregate, e models.LedgerEntry) {
	if !e.Category.Valid() {
		return
	}
	debt := agg.Debt[e.Category] + e.Amount
	if debt < 0 {
		debt = 0
	}
	agg.Debt[e.Category] = debt

	if !e.IsCompletion() {
		return
	}
	agg.Completed[e.Category]++
	if agg.History == nil {
		agg.History = models.DailyHistory{}
	}
	if e.LocalDate != "" {
		agg.History[e.LocalDate]++
	}
	if e.Quality > 0 {
		q := agg.Quality[e.Category]
		q.Sum += e.Quality
		q.Count++
		agg.Quality[e.Category] = q
	}
}

// Replay folds entries from an empty aggregate.
func Replay(entries []models.LedgerEntry) models.Aggregate {
	agg := models.Aggregate{History: models.DailyHistory{}}
	for _, e := range entries {
		Apply(&agg, e)
	}
	return agg
}

// Clone deep-copies an aggregate so callers cannot alias its history map.
func Clone(agg models.Aggregate) models.Aggregate {
	out := agg
	if agg.History == nil {
		out.History = models.DailyHistory{}
	} else {
		out.History = agg.History.Clone()
	}
	return out
}
