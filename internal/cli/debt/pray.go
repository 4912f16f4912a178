package debt

import (
	"context"
	"fmt"

	"github.com/julianstephens/qada/internal/cli"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/models"
)

// PrayCmd records completed make-up prayers.
type PrayCmd struct {
	Prayer string `arg:"" help:"Prayer made up: fajr, dhuhr, asr, maghrib, isha or witr."`
	Rating int    `short:"r" help:"Khushu (focus) rating from 1 to 3; 0 leaves it unrated." default:"0"`
	Count  int    `short:"n" help:"Number of prayers to record." default:"1"`
}

func (c *PrayCmd) Run(ctx *cli.Context) error {
	cat, err := models.ParseCategory(c.Prayer)
	if err != nil {
		return err
	}
	if c.Count < 1 {
		return qerrors.NewValidationError("count", "must be at least 1, got %d", c.Count)
	}

	bg := context.Background()
	t, err := ctx.SignIn(bg)
	if err != nil {
		return err
	}

	for i := 0; i < c.Count; i++ {
		if err := cli.ReportPersistence(t.RecordCompletion(bg, cat, c.Rating)); err != nil {
			return err
		}
	}

	agg := t.Snapshot().Aggregate
	fmt.Printf("✓ Recorded %d %s qada\n", c.Count, cat)
	fmt.Printf("  Remaining %s: %d   Completed: %d\n", cat, agg.Debt[cat], agg.Completed[cat])
	if agg.Debt[cat] == 0 {
		fmt.Printf("  All %s prayers are made up. Alhamdulillah!\n", cat)
	}
	return nil
}
