package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/qada/internal/cli"
	"github.com/julianstephens/qada/internal/constants"
	"github.com/julianstephens/qada/internal/planner"
)

type HistoryCmd struct {
	Days int `help:"Number of days to show." default:"14"`
}

func (c *HistoryCmd) Run(ctx *cli.Context) error {
	t, err := ctx.SignIn(context.Background())
	if err != nil {
		return err
	}
	st := t.Snapshot()
	trend := planner.Trend(st.Aggregate.History, localNow(nowFunc(), st.Settings.Timezone), c.Days)

	fmt.Println(titleStyle.Render(fmt.Sprintf("Last %d days", len(trend))))
	fmt.Print(renderTrend(trend))
	return nil
}

func renderTrend(trend []planner.DayCount) string {
	peak := 0
	total := 0
	for _, d := range trend {
		total += d.Count
		if d.Count > peak {
			peak = d.Count
		}
	}

	const width = 30
	var b strings.Builder
	for _, d := range trend {
		n := 0
		if peak > 0 {
			n = d.Count * width / peak
		}
		if d.Count > 0 && n == 0 {
			n = 1
		}
		fmt.Fprintf(&b, "%s %s %d\n", d.Date, strings.Repeat("█", n), d.Count)
	}
	avg := 0.0
	if len(trend) > 0 {
		avg = float64(total) / float64(len(trend))
	}
	fmt.Fprintf(&b, "%s\n", mutedStyle.Render(fmt.Sprintf("%d prayers, %.1f per day (%.1f sets)", total, avg, avg/constants.PrayersPerSet)))
	return b.String()
}
