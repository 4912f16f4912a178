package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/julianstephens/qada/internal/constants"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/utils"
)

const (
	maxAccountIDLen         = 64
	maxCalculationMethodLen = 32
)

// Rating checks a khushu rating. Zero means "not rated".
func Rating(r int) error {
	if r == 0 {
		return nil
	}
	if r < constants.MinQualityRating || r > constants.MaxQualityRating {
		return qerrors.NewValidationError("rating", "must be between %d and %d, got %d",
			constants.MinQualityRating, constants.MaxQualityRating, r)
	}
	return nil
}

// ExemptionDays checks the exemption-days-per-cycle parameter.
func ExemptionDays(days int) error {
	if days < 0 || days > constants.MaxExemptionDays {
		return qerrors.NewValidationError("exemption days", "must be between 0 and %d, got %d", constants.MaxExemptionDays, days)
	}
	return nil
}

// DailyCapacity checks the number of sets per day the user commits to.
func DailyCapacity(capacity float64) error {
	if math.IsNaN(capacity) || capacity < constants.MinDailyCapacity {
		return qerrors.NewValidationError("daily capacity", "must be at least %.1f sets per day, got %v", constants.MinDailyCapacity, capacity)
	}
	return nil
}

// Timezone checks that the timezone name can be loaded.
func Timezone(tz string) error {
	if _, err := utils.LoadLocation(tz); err != nil {
		return qerrors.NewValidationError("timezone", "%q is not a known IANA timezone", tz)
	}
	return nil
}

// Date checks an optional YYYY-MM-DD date.
func Date(field, s string) error {
	if _, err := utils.ParseDate(s); err != nil {
		return qerrors.NewValidationError(field, "%q is not a YYYY-MM-DD date", s)
	}
	return nil
}

// AccountID checks an account name.
func AccountID(id string) error {
	if strings.TrimSpace(id) == "" {
		return qerrors.NewValidationError("account", "name cannot be empty")
	}
	if len(id) > maxAccountIDLen {
		return qerrors.NewValidationError("account", "name must be at most %d characters", maxAccountIDLen)
	}
	if strings.ContainsAny(id, " \t\r\n") {
		return qerrors.NewValidationError("account", "name cannot contain whitespace")
	}
	return nil
}

// HabitRule checks that an active rule names both a trigger and an action.
func HabitRule(rule models.HabitRule) error {
	if strings.TrimSpace(rule.Trigger) == "" {
		return qerrors.NewValidationError("habit rule", "trigger cannot be empty")
	}
	if strings.TrimSpace(rule.Action) == "" {
		return qerrors.NewValidationError("habit rule", "action cannot be empty")
	}
	return nil
}

// CalculationMethod checks a prayer-time calculation method name, e.g. MWL or ISNA.
func CalculationMethod(method string) error {
	method = strings.TrimSpace(method)
	if method == "" {
		return qerrors.NewValidationError("calculation method", "cannot be empty")
	}
	if len(method) > maxCalculationMethodLen || strings.ContainsAny(method, " \t\r\n") {
		return qerrors.NewValidationError("calculation method", "%q is not a method name", method)
	}
	return nil
}

func Madhab(m string) error {
	if m != constants.MadhabHanafi && m != constants.MadhabShafi {
		return qerrors.NewValidationError("madhab", "must be %q or %q, got %q", constants.MadhabHanafi, constants.MadhabShafi, m)
	}
	return nil
}

// SettingsPatch validates every field present in the patch.
func SettingsPatch(p models.SettingsPatch) error {
	if p.StartDate != nil {
		if err := Date("start date", *p.StartDate); err != nil {
			return err
		}
	}
	if p.ExemptionDays != nil {
		if err := ExemptionDays(*p.ExemptionDays); err != nil {
			return err
		}
	}
	if p.DailyCapacity != nil {
		if err := DailyCapacity(*p.DailyCapacity); err != nil {
			return err
		}
	}
	if p.HabitRule != nil && !p.ClearHabitRule {
		if err := HabitRule(*p.HabitRule); err != nil {
			return err
		}
	}
	if p.Timezone != nil {
		if err := Timezone(*p.Timezone); err != nil {
			return err
		}
	}
	if p.CalculationMethod != nil {
		if err := CalculationMethod(*p.CalculationMethod); err != nil {
			return err
		}
	}
	if p.Madhab != nil {
		if err := Madhab(*p.Madhab); err != nil {
			return err
		}
	}
	return nil
}

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictNegativeDebt     ConflictType = "negative_debt"
	ConflictNegativeCount    ConflictType = "negative_completed"
	ConflictQualityRange     ConflictType = "quality_out_of_range"
	ConflictHistoryMismatch  ConflictType = "history_mismatch"
	ConflictInvalidHistory   ConflictType = "invalid_history_date"
	ConflictRatedOverCounted ConflictType = "rated_exceeds_completed"
)

// Conflict represents an inconsistency detected in a loaded aggregate
type Conflict struct {
	Type        ConflictType
	Description string
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	report := "Conflicts detected:\n"
	for _, conflict := range vr.Conflicts {
		report += fmt.Sprintf("- %s\n", conflict.Description)
	}
	return report
}

func (vr *ValidationResult) add(t ConflictType, format string, args ...interface{}) {
	vr.Conflicts = append(vr.Conflicts, Conflict{Type: t, Description: fmt.Sprintf(format, args...)})
}

// CheckAggregate verifies the invariants a durable aggregate must satisfy:
// non-negative counters, ratings within bounds, and daily history summing
// to the total number of completions.
func CheckAggregate(agg models.Aggregate) ValidationResult {
	var result ValidationResult

	for _, c := range models.Categories() {
		if agg.Debt[c] < 0 {
			result.add(ConflictNegativeDebt, "%s debt is negative (%d)", c, agg.Debt[c])
		}
		if agg.Completed[c] < 0 {
			result.add(ConflictNegativeCount, "%s completed count is negative (%d)", c, agg.Completed[c])
		}
		q := agg.Quality[c]
		if q.Count > agg.Completed[c] {
			result.add(ConflictRatedOverCounted, "%s has %d ratings but only %d completions", c, q.Count, agg.Completed[c])
		}
		if q.Count > 0 && (q.Sum < q.Count*constants.MinQualityRating || q.Sum > q.Count*constants.MaxQualityRating) {
			result.add(ConflictQualityRange, "%s rating sum %d is impossible for %d ratings", c, q.Sum, q.Count)
		}
	}

	historyTotal := 0
	for day, n := range agg.History {
		if _, err := utils.ParseDate(day); err != nil || day == "" {
			result.add(ConflictInvalidHistory, "history contains invalid date %q", day)
		}
		historyTotal += n
	}
	if historyTotal != agg.Completed.Total() {
		result.add(ConflictHistoryMismatch, "daily history sums to %d but %d completions are recorded", historyTotal, agg.Completed.Total())
	}

	return result
}
