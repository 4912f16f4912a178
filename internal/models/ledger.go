package models

import (
	"time"

	"github.com/julianstephens/qada/internal/constants"
)

// LedgerEntry is an immutable, signed adjustment of one category's debt.
// Positive amounts add debt; negative make-up entries pay it down and
// count as exactly one completion each.
type LedgerEntry struct {
	ID        string              `json:"id"`
	AccountID string              `json:"account_id"`
	Category  Category            `json:"category"`
	Amount    int                 `json:"amount"`
	Quality   int                 `json:"quality,omitempty"` // 0 = unrated, otherwise 1-3
	Kind      constants.EntryKind `json:"kind"`
	LocalDate string              `json:"local_date"` // YYYY-MM-DD in the account's timezone
	CreatedAt time.Time           `json:"created_at"`
}

// IsCompletion reports whether the entry credits a completed make-up prayer.
func (e LedgerEntry) IsCompletion() bool {
	return e.Amount < 0 && e.Kind == constants.EntryKindQada
}

// DailyHistory maps a local ISO date to the number of completions made that day.
type DailyHistory map[string]int

func (h DailyHistory) Clone() DailyHistory {
	out := make(DailyHistory, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// QualityStat accumulates khushu ratings for one category.
type QualityStat struct {
	Sum   int `json:"sum"`
	Count int `json:"count"`
}

// Average returns the mean rating; ok is false when nothing was rated.
func (q QualityStat) Average() (avg float64, ok bool) {
	if q.Count == 0 {
		return 0, false
	}
	return float64(q.Sum) / float64(q.Count), true
}

type QualityStats [NumCategories]QualityStat

// Aggregate is the durable store's summary of an account's ledger.
type Aggregate struct {
	Debt      Counts       `json:"debt"`
	Completed Counts       `json:"completed"`
	History   DailyHistory `json:"history"`
	Quality   QualityStats `json:"quality"`
}

// HasStarted reports whether the account carries any debt or any history.
func (a Aggregate) HasStarted() bool {
	return a.Debt.Total() > 0 || len(a.History) > 0
}
