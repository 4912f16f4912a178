// Package estimator converts historical date ranges into initial per-prayer
// debt counts.
//
// The cyclical exemption is a linear approximation: a fixed number of
// exempt days per month spread proportionally over the whole interval
// (totalDays/365 * 12 * days). It deliberately does not walk the calendar
// month by month, so the numbers match what users were shown before.
package estimator

import (
	"math"
	"sort"
	"time"

	"github.com/julianstephens/qada/internal/constants"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/utils"
)

const day = 24 * time.Hour

// Exemption describes the cyclical exemption shared by every interval.
type Exemption struct {
	Applies      bool
	DaysPerCycle int
}

// Interval is one period of missed prayers. Categories marks which
// prayers were obligatory during it.
type Interval struct {
	Start      time.Time
	End        time.Time
	Categories models.CategorySet
}

// ParseInterval builds an Interval from YYYY-MM-DD strings. An empty date
// is allowed and makes the interval contribute nothing.
func ParseInterval(start, end string, cats models.CategorySet) (Interval, error) {
	s, err := utils.ParseDate(start)
	if err != nil {
		return Interval{}, qerrors.NewValidationError("start date", "%q is not a YYYY-MM-DD date", start)
	}
	e, err := utils.ParseDate(end)
	if err != nil {
		return Interval{}, qerrors.NewValidationError("end date", "%q is not a YYYY-MM-DD date", end)
	}
	return Interval{Start: s, End: e, Categories: cats}, nil
}

// TotalDays returns the whole days between start and end, or 0 when a
// date is missing or end precedes start.
func TotalDays(start, end time.Time) int {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	diff := end.Sub(start)
	if diff < 0 {
		return 0
	}
	return int(diff / day)
}

// Days returns the number of missed sets in [start, end) after the exemption.
func Days(start, end time.Time, ex Exemption) int {
	total := TotalDays(start, end)
	if !ex.Applies || ex.DaysPerCycle <= 0 {
		return total
	}
	exempt := int(math.Floor(float64(total) / constants.DaysPerYear * constants.CyclesPerYear * float64(ex.DaysPerCycle)))
	if exempt >= total {
		return 0
	}
	return total - exempt
}

// EstimateInterval returns the debt for a single interval; every category
// receives the same number of days.
func EstimateInterval(start, end time.Time, ex Exemption) models.Counts {
	return models.Uniform(Days(start, end, ex))
}

// EstimateIntervals sums the debt of several intervals, each contributing
// only to the categories it includes. Overlapping intervals are counted
// once per interval; ranges are never merged.
func EstimateIntervals(intervals []Interval, ex Exemption) models.Counts {
	var total models.Counts
	for _, iv := range intervals {
		days := Days(iv.Start, iv.End, ex)
		if days == 0 {
			continue
		}
		for _, c := range models.Categories() {
			if iv.Categories.Has(c) {
				total[c] += days
			}
		}
	}
	return total
}

// Overlaps reports whether any two intervals share at least one day.
// Callers use it to warn that overlapping ranges are double counted.
func Overlaps(intervals []Interval) bool {
	var valid []Interval
	for _, iv := range intervals {
		if TotalDays(iv.Start, iv.End) > 0 {
			valid = append(valid, iv)
		}
	}
	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})
	var maxEnd time.Time
	for i, iv := range valid {
		if i > 0 && iv.Start.Before(maxEnd) {
			return true
		}
		if iv.End.After(maxEnd) {
			maxEnd = iv.End
		}
	}
	return false
}
