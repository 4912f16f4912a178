package debt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/qada/internal/cli"
	"github.com/julianstephens/qada/internal/constants"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/estimator"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/utils"
	"github.com/julianstephens/qada/internal/validation"
)

var nowFunc = time.Now

type EstimateCmd struct {
	Start     string   `help:"Start of the missed period (YYYY-MM-DD). Simple mode."`
	End       string   `help:"End of the missed period (YYYY-MM-DD, exclusive). Defaults to today."`
	Interval  []string `help:"Advanced mode: START:END[:prayers] with a comma-separated prayer list, e.g. 2010-01-01:2012-06-01:fajr,isha. Repeatable; overlapping intervals are counted once per interval, not merged." sep:"none"`
	Exemption *bool    `help:"Deduct a monthly exemption. Defaults to the account setting."`
	Days      *int     `name:"exemption-days" help:"Exempt days per month (0-15). Defaults to the account setting."`
	Capacity  *float64 `help:"Daily capacity in sets to store with the estimate."`
	Save      bool     `help:"Record the estimate as debt."`
	Mode      string   `help:"How to record: replace wipes history, additive adds to current debt." enum:"replace,additive" default:"replace"`
	Yes       bool     `short:"y" help:"Skip the confirmation prompt."`
}

func (c *EstimateCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	settings := models.DefaultSettings()
	t, err := ctx.SignIn(bg)
	switch {
	case err == nil:
		settings = t.Settings()
	case errors.Is(err, qerrors.ErrNoAccount) && !c.Save:
		// Estimating alone does not need an account
	default:
		return err
	}

	ex := estimator.Exemption{Applies: settings.ExemptionApplies, DaysPerCycle: settings.ExemptionDays}
	if c.Exemption != nil {
		ex.Applies = *c.Exemption
	}
	if c.Days != nil {
		if err := validation.ExemptionDays(*c.Days); err != nil {
			return err
		}
		ex.DaysPerCycle = *c.Days
	}
	if c.Capacity != nil {
		if err := validation.DailyCapacity(*c.Capacity); err != nil {
			return err
		}
	}

	intervals, err := c.intervals(settings.Timezone)
	if err != nil {
		return err
	}
	counts := estimator.EstimateIntervals(intervals, ex)

	printEstimate(counts, ex)
	if len(intervals) > 1 && estimator.Overlaps(intervals) {
		fmt.Println("\nNote: some intervals overlap; overlapping days are counted once per interval.")
	}

	if !c.Save {
		return nil
	}
	return c.save(bg, ctx, counts, intervals, ex)
}

// intervals builds the estimation periods from either the simple or the
// advanced flags.
func (c *EstimateCmd) intervals(timezone string) ([]estimator.Interval, error) {
	today := utils.LocalDate(nowFunc(), timezone)

	if len(c.Interval) > 0 {
		if c.Start != "" {
			return nil, qerrors.NewValidationError("interval", "use either --start/--end or --interval, not both")
		}
		out := make([]estimator.Interval, 0, len(c.Interval))
		for _, spec := range c.Interval {
			iv, err := ParseIntervalSpec(spec, today)
			if err != nil {
				return nil, err
			}
			out = append(out, iv)
		}
		return out, nil
	}

	if c.Start == "" {
		return nil, qerrors.NewValidationError("start date", "--start or --interval is required")
	}
	end := c.End
	if end == "" {
		end = today
	}
	iv, err := estimator.ParseInterval(c.Start, end, models.AllCategories())
	if err != nil {
		return nil, err
	}
	return []estimator.Interval{iv}, nil
}

// ParseIntervalSpec parses START:END[:prayers]. An empty END means today.
func ParseIntervalSpec(spec, today string) (estimator.Interval, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 {
		return estimator.Interval{}, qerrors.NewValidationError("interval", "%q must look like START:END[:prayers]", spec)
	}
	end := strings.TrimSpace(parts[1])
	if end == "" {
		end = today
	}
	cats := models.AllCategories()
	if len(parts) == 3 {
		var err error
		if cats, err = models.ParseCategorySet(parts[2]); err != nil {
			return estimator.Interval{}, err
		}
	}
	return estimator.ParseInterval(strings.TrimSpace(parts[0]), end, cats)
}

func (c *EstimateCmd) save(bg context.Context, ctx *cli.Context, counts models.Counts, intervals []estimator.Interval, ex estimator.Exemption) error {
	mode := constants.ResetMode(c.Mode)
	t := ctx.Tracker

	if mode == constants.ResetModeReplace && t.Snapshot().Aggregate.HasStarted() && !c.Yes {
		ok, err := cli.Confirm(
			"Replace your current debt?",
			"This deletes every recorded prayer, your history and ratings for "+t.Account()+".",
		)
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cli.ReportPersistence(t.InitializeDebt(bg, counts, mode)); err != nil {
		return fmt.Errorf("failed to record debt: %w", err)
	}
	fmt.Printf("\n✓ Recorded %d prayers of debt (%s)\n", counts.Total(), mode)

	patch := models.SettingsPatch{
		ExemptionApplies: &ex.Applies,
		ExemptionDays:    &ex.DaysPerCycle,
		DailyCapacity:    c.Capacity,
	}
	if start := earliestStart(intervals); start != "" {
		patch.StartDate = &start
	}
	if _, err := t.SaveSettings(bg, patch); err != nil {
		return fmt.Errorf("debt recorded but failed to update settings: %w", err)
	}
	return nil
}

func earliestStart(intervals []estimator.Interval) string {
	var earliest time.Time
	for _, iv := range intervals {
		if iv.Start.IsZero() {
			continue
		}
		if earliest.IsZero() || iv.Start.Before(earliest) {
			earliest = iv.Start
		}
	}
	if earliest.IsZero() {
		return ""
	}
	return earliest.Format(constants.DateFormat)
}

func printEstimate(counts models.Counts, ex estimator.Exemption) {
	fmt.Println("Estimated missed prayers:")
	for _, cat := range models.Categories() {
		fmt.Printf("  %-8s %6d\n", cat, counts[cat])
	}
	fmt.Printf("  %-8s %6d\n", "total", counts.Total())
	if ex.Applies {
		fmt.Printf("  (after deducting %d exempt days per month)\n", ex.DaysPerCycle)
	}
}
