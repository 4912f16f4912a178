package report

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/qada/internal/cli"
	"github.com/julianstephens/qada/internal/ledger"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/planner"
	"github.com/julianstephens/qada/internal/utils"
)

var nowFunc = time.Now

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	t, err := ctx.SignIn(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(renderStatus(t.Snapshot(), nowFunc()))
	for _, w := range t.Warnings() {
		fmt.Println(warningStyle.Render("⚠ " + w))
	}
	return nil
}

func renderStatus(st ledger.State, now time.Time) string {
	agg := st.Aggregate
	summary := planner.Progress(agg.Debt, agg.Completed)

	out := titleStyle.Render("Qada · "+st.Account) + "\n\n"
	if !agg.HasStarted() && summary.TotalCompleted == 0 {
		return out + mutedStyle.Render("No debt recorded yet. Run 'qada estimate --start YYYY-MM-DD --save' to begin.")
	}

	out += debtTable(agg).Render() + "\n\n"

	now = localNow(now, st.Settings.Timezone)
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	out += fmt.Sprintf("%s %.1f%%\n", bar.ViewAs(summary.Percent/100), summary.Percent)
	out += fmt.Sprintf("Garden: %d plant(s)   Streak: %d day(s)\n",
		summary.Plants, planner.Streak(agg.History, now))

	if finish, ok := planner.ProjectedFinish(summary.TotalMissed, st.Settings.DailyCapacity, now); ok && summary.TotalMissed > 0 {
		out += mutedStyle.Render(fmt.Sprintf("At %.1f set(s) a day you finish around %s",
			st.Settings.DailyCapacity, finish.Format("2 Jan 2006")))
	}
	return out
}

func debtTable(agg models.Aggregate) *table.Table {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("Prayer", "Remaining", "Completed", "Avg khushu").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, c := range models.Categories() {
		avg := "-"
		if a, ok := agg.Quality[c].Average(); ok {
			avg = strconv.FormatFloat(a, 'f', 1, 64)
		}
		t.Row(c.String(), strconv.Itoa(agg.Debt[c]), strconv.Itoa(agg.Completed[c]), avg)
	}
	t.Row("total", strconv.Itoa(agg.Debt.Total()), strconv.Itoa(agg.Completed.Total()), "")
	return t
}

// localNow moves now into the account timezone so date math agrees with
// the dates stored in the history.
func localNow(now time.Time, timezone string) time.Time {
	loc, err := utils.LoadLocation(timezone)
	if err != nil {
		return now
	}
	return now.In(loc)
}
