package report

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/qada/internal/cli"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/planner"
	"github.com/julianstephens/qada/internal/utils"
)

// PlanCmd works out a daily pace, either for a target finish date or from a capacity.
type PlanCmd struct {
	TargetDate string   `help:"Date (YYYY-MM-DD) by which to finish; prints the sets needed per day."`
	Capacity   *float64 `help:"Sets per day; prints the projected finish date. Defaults to the account setting."`
	Save       bool     `help:"Store the required capacity for --target-date in the account settings."`
}

func (c *PlanCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.SignIn(bg)
	if err != nil {
		return err
	}
	st := t.Snapshot()
	missed := st.Aggregate.Debt.Total()
	now := localNow(nowFunc(), st.Settings.Timezone)

	fmt.Printf("Remaining: %d prayers (%d sets)\n", missed, planner.Sets(missed))

	if c.TargetDate != "" {
		target, err := utils.ParseDate(c.TargetDate)
		if err != nil || target.IsZero() {
			return qerrors.NewValidationError("target date", "%q is not a YYYY-MM-DD date", c.TargetDate)
		}
		// Midnight in the account timezone, not UTC
		y, m, d := target.Date()
		target = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		required, err := planner.RequiredCapacity(missed, now, target)
		if err != nil {
			return err
		}
		fmt.Printf("To finish by %s: %d set(s) per day\n", c.TargetDate, required)

		if c.Save && required > 0 {
			capacity := float64(required)
			if _, err := t.SaveSettings(bg, models.SettingsPatch{DailyCapacity: &capacity}); err != nil {
				return fmt.Errorf("failed to save capacity: %w", err)
			}
			fmt.Println("✓ Daily capacity updated")
		}
		return nil
	}

	capacity := st.Settings.DailyCapacity
	if c.Capacity != nil {
		capacity = *c.Capacity
	}
	finish, ok := planner.ProjectedFinish(missed, capacity, now)
	if !ok {
		return qerrors.NewValidationError("capacity", "must be greater than zero")
	}
	fmt.Printf("At %.1f set(s) per day you finish on %s\n", capacity, finish.Format("2006-01-02"))
	return nil
}
