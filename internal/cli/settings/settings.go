package settings

import (
	"context"
	"fmt"

	"github.com/julianstephens/qada/internal/cli"
	"github.com/julianstephens/qada/internal/models"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	StartDate        *string  `help:"Start of the missed-prayer period (YYYY-MM-DD)."`
	ExemptionApplies *bool    `help:"Deduct a monthly exemption when estimating."`
	ExemptionDays    *int     `help:"Exempt days per month (0-15)."`
	DailyCapacity    *float64 `help:"Sets of six prayers per day you commit to."`
	Timezone         *string  `help:"IANA timezone used for 'today', or Local."`
	Method           *string  `help:"Prayer-time calculation method, e.g. MWL or ISNA."`
	Madhab           *string  `help:"School for the asr time: hanafi or shafi." enum:"hanafi,shafi"`
	HabitTrigger     string   `help:"Habit rule trigger, e.g. 'after dhuhr'."`
	HabitAction      string   `help:"Habit rule action, e.g. 'pray one qada fajr'."`
	HabitActive      *bool    `help:"Enable or pause the habit rule."`
	ClearHabit       bool     `help:"Remove the habit rule."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.SignIn(bg)
	if err != nil {
		return err
	}
	settings := t.Settings()

	if c.List {
		printSettings(t.Account(), settings)
		return nil
	}

	patch, updated := c.patch(settings)
	if !updated {
		fmt.Println("No changes specified. Use --list to view settings or flags to update them.")
		return nil
	}

	saved, err := t.SaveSettings(bg, patch)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Printf("Settings updated successfully (version %d).\n", saved.Version)
	return nil
}

// patch builds the update from the flags that were set. Habit flags are
// merged into the current rule so one field can change at a time.
func (c *SettingsCmd) patch(current models.Settings) (models.SettingsPatch, bool) {
	p := models.SettingsPatch{
		StartDate:        c.StartDate,
		ExemptionApplies: c.ExemptionApplies,
		ExemptionDays:    c.ExemptionDays,
		DailyCapacity:    c.DailyCapacity,
		Timezone:         c.Timezone,
		ClearHabitRule:   c.ClearHabit,

		CalculationMethod: c.Method,
		Madhab:            c.Madhab,
	}
	updated := c.StartDate != nil || c.ExemptionApplies != nil || c.ExemptionDays != nil ||
		c.DailyCapacity != nil || c.Timezone != nil || c.ClearHabit ||
		c.Method != nil || c.Madhab != nil

	if !c.ClearHabit && (c.HabitTrigger != "" || c.HabitAction != "" || c.HabitActive != nil) {
		rule := models.HabitRule{Active: true}
		if current.HabitRule != nil {
			rule = *current.HabitRule
		}
		if c.HabitTrigger != "" {
			rule.Trigger = c.HabitTrigger
		}
		if c.HabitAction != "" {
			rule.Action = c.HabitAction
		}
		if c.HabitActive != nil {
			rule.Active = *c.HabitActive
		}
		p.HabitRule = &rule
		updated = true
	}
	return p, updated
}

func printSettings(account string, s models.Settings) {
	fmt.Printf("Settings for %s:\n", account)
	start := s.StartDate
	if start == "" {
		start = "(not set)"
	}
	fmt.Printf("  Start Date:        %s\n", start)
	fmt.Printf("  Exemption Applies: %v\n", s.ExemptionApplies)
	fmt.Printf("  Exemption Days:    %d per month\n", s.ExemptionDays)
	fmt.Printf("  Daily Capacity:    %.1f sets\n", s.DailyCapacity)
	fmt.Printf("  Timezone:          %s\n", s.Timezone)
	fmt.Printf("  Method / Madhab:   %s / %s\n", s.CalculationMethod, s.Madhab)
	if s.HabitRule != nil {
		state := "active"
		if !s.HabitRule.Active {
			state = "paused"
		}
		fmt.Printf("  Habit Rule:        %s -> %s (%s)\n", s.HabitRule.Trigger, s.HabitRule.Action, state)
	} else {
		fmt.Println("  Habit Rule:        (none)")
	}
	fmt.Printf("  Version:           %d\n", s.Version)
}
