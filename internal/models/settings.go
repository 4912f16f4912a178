package models

import "github.com/julianstephens/qada/internal/constants"

// HabitRule pairs a daily trigger with a make-up action, e.g.
// "after dhuhr" -> "pray one qada fajr".
type HabitRule struct {
	Trigger string `json:"trigger"`
	Action  string `json:"action"`
	Active  bool   `json:"active"`
}

// Settings is the per-account settings document. Version increases on every save.
type Settings struct {
	StartDate        string     `json:"start_date"`        // start of the missed-prayer period, YYYY-MM-DD
	ExemptionApplies bool       `json:"exemption_applies"` // whether a cyclical exemption is deducted
	ExemptionDays    int        `json:"exemption_days"`    // exempt days per cycle, 0-15
	DailyCapacity    float64    `json:"daily_capacity"`    // sets per day the user commits to
	HabitRule        *HabitRule `json:"habit_rule,omitempty"`
	Timezone         string     `json:"timezone"` // IANA timezone name or "Local"
	// Stored for prayer-time lookups; nothing in qada computes times itself
	CalculationMethod string `json:"calculation_method"`
	Madhab            string `json:"madhab"`
	Version           int    `json:"version"`
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	StartDate        *string
	ExemptionApplies *bool
	ExemptionDays    *int
	DailyCapacity    *float64
	HabitRule        *HabitRule
	ClearHabitRule   bool
	Timezone         *string

	CalculationMethod *string
	Madhab            *string
}

// DefaultSettings returns the settings a new account starts with.
func DefaultSettings() Settings {
	return Settings{
		ExemptionApplies: constants.DefaultExemptionApplies,
		ExemptionDays:    constants.DefaultExemptionDays,
		DailyCapacity:    constants.DefaultDailyCapacity,
		Timezone:         constants.DefaultTimezone,

		CalculationMethod: constants.DefaultCalculationMethod,
		Madhab:            constants.DefaultMadhab,
	}
}

// Merge returns s with every non-nil field of p applied. Version is not touched.
func (s Settings) Merge(p SettingsPatch) Settings {
	if p.StartDate != nil {
		s.StartDate = *p.StartDate
	}
	if p.ExemptionApplies != nil {
		s.ExemptionApplies = *p.ExemptionApplies
	}
	if p.ExemptionDays != nil {
		s.ExemptionDays = *p.ExemptionDays
	}
	if p.DailyCapacity != nil {
		s.DailyCapacity = *p.DailyCapacity
	}
	if p.ClearHabitRule {
		s.HabitRule = nil
	} else if p.HabitRule != nil {
		rule := *p.HabitRule
		s.HabitRule = &rule
	}
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
	if p.CalculationMethod != nil {
		s.CalculationMethod = *p.CalculationMethod
	}
	if p.Madhab != nil {
		s.Madhab = *p.Madhab
	}
	return s
}

// ApplyDefaultSettings fills in values missing from older settings documents.
func ApplyDefaultSettings(settings *Settings) {
	if settings.DailyCapacity == 0 {
		settings.DailyCapacity = constants.DefaultDailyCapacity
	}
	if settings.Timezone == "" {
		settings.Timezone = constants.DefaultTimezone
	}
	if settings.CalculationMethod == "" {
		settings.CalculationMethod = constants.DefaultCalculationMethod
	}
	if settings.Madhab == "" {
		settings.Madhab = constants.DefaultMadhab
	}
}
