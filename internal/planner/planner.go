// Package planner derives the read-only planning views shown next to the
// ledger: required pace for a target date, projected finish, recent trend,
// streak and overall progress.
package planner

import (
	"math"
	"time"

	"github.com/julianstephens/qada/internal/constants"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/utils"
)

const day = 24 * time.Hour

// Sets converts a number of individual prayers into full sets of six, rounding up.
func Sets(prayers int) int {
	if prayers <= 0 {
		return 0
	}
	return int(math.Ceil(float64(prayers) / constants.PrayersPerSet))
}

// RequiredCapacity returns the whole sets per day needed to clear
// totalMissed prayers between now and target.
func RequiredCapacity(totalMissed int, now, target time.Time) (int, error) {
	days := math.Ceil(float64(target.Sub(now)) / float64(day))
	if days <= 0 {
		return 0, qerrors.NewValidationError("target date", "must be in the future")
	}
	sets := Sets(totalMissed)
	if sets == 0 {
		return 0, nil
	}
	return int(math.Ceil(float64(sets) / days)), nil
}

// ProjectedFinish returns the date the remaining debt is cleared at
// capacity sets per day. ok is false when there is no meaningful projection.
func ProjectedFinish(totalMissed int, capacity float64, today time.Time) (finish time.Time, ok bool) {
	if capacity <= 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		return time.Time{}, false
	}
	today = utils.StartOfDay(today)
	sets := Sets(totalMissed)
	if sets == 0 {
		return today, true
	}
	days := int(math.Ceil(float64(sets) / capacity))
	return today.AddDate(0, 0, days), true
}

// DayCount is one bucket of a trend window.
type DayCount struct {
	Date  string
	Count int
}

// Trend returns the last days of history ending today, oldest first,
// with missing days reported as zero.
func Trend(history models.DailyHistory, today time.Time, days int) []DayCount {
	if days <= 0 {
		days = constants.DefaultTrendDays
	}
	out := make([]DayCount, 0, days)
	for _, d := range utils.DateRange(today, days) {
		out = append(out, DayCount{Date: d, Count: history[d]})
	}
	return out
}

// Streak counts consecutive days with at least one completion, ending
// today or, when nothing is logged yet today, yesterday.
func Streak(history models.DailyHistory, today time.Time) int {
	cur := utils.StartOfDay(today)
	if history[cur.Format(constants.DateFormat)] == 0 {
		cur = cur.AddDate(0, 0, -1)
	}
	streak := 0
	for history[cur.Format(constants.DateFormat)] > 0 {
		streak++
		cur = cur.AddDate(0, 0, -1)
	}
	return streak
}

// Summary is the overall progress of an account.
type Summary struct {
	TotalMissed    int
	TotalCompleted int
	Percent        float64 // 0-100
	Plants         int     // one per CompletionsPerSeed completions
}

// Progress summarizes remaining debt against completions.
func Progress(debt, completed models.Counts) Summary {
	s := Summary{
		TotalMissed:    debt.Total(),
		TotalCompleted: completed.Total(),
	}
	if all := s.TotalMissed + s.TotalCompleted; all > 0 {
		s.Percent = float64(s.TotalCompleted) / float64(all) * 100
	}
	s.Plants = s.TotalCompleted / constants.CompletionsPerSeed
	return s
}
