package debt

import (
	"context"
	"fmt"

	"github.com/julianstephens/qada/internal/cli"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/models"
)

// AmountFlags are shared by adjust and correct.
type AmountFlags struct {
	Prayer string `arg:"" help:"Prayer to change."`
	Add    int    `help:"Prayers to add to the debt."`
	Remove int    `help:"Prayers to remove from the debt."`
}

func (f AmountFlags) parse() (models.Category, int, error) {
	cat, err := models.ParseCategory(f.Prayer)
	if err != nil {
		return 0, 0, err
	}
	if f.Add < 0 || f.Remove < 0 {
		return 0, 0, qerrors.NewValidationError("amount", "--add and --remove take positive numbers")
	}
	delta := f.Add - f.Remove
	if delta == 0 {
		return 0, 0, qerrors.NewValidationError("amount", "pass --add or --remove")
	}
	return cat, delta, nil
}

// AdjustCmd changes a prayer's debt by hand. Removing debt this way also
// counts as made-up prayers for today.
type AdjustCmd struct {
	AmountFlags `embed:""`
}

func (c *AdjustCmd) Run(ctx *cli.Context) error {
	return runAmount(ctx, c.AmountFlags, false)
}

// CorrectCmd fixes a prayer's debt without touching completions or history.
type CorrectCmd struct {
	AmountFlags `embed:""`
}

func (c *CorrectCmd) Run(ctx *cli.Context) error {
	return runAmount(ctx, c.AmountFlags, true)
}

func runAmount(ctx *cli.Context, f AmountFlags, correction bool) error {
	cat, delta, err := f.parse()
	if err != nil {
		return err
	}

	bg := context.Background()
	t, err := ctx.SignIn(bg)
	if err != nil {
		return err
	}

	if correction {
		err = t.CorrectDebt(bg, cat, delta)
	} else {
		err = t.Adjust(bg, cat, delta)
	}
	if err := cli.ReportPersistence(err); err != nil {
		return err
	}

	fmt.Printf("✓ %s debt is now %d\n", cat, t.Snapshot().Aggregate.Debt[cat])
	return nil
}
