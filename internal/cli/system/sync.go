package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/qada/internal/cli"
)

// SyncCmd flushes queued changes and reloads the account from the database.
type SyncCmd struct{}

func (c *SyncCmd) Run(ctx *cli.Context) error {
	bg := context.Background()

	pending, rejected := 0, 0
	if ctx.Outbox != nil {
		var err error
		if pending, rejected, err = outboxCounts(ctx); err != nil {
			return err
		}
	}

	t, err := ctx.SignIn(bg)
	if err != nil {
		return err
	}
	if err := t.Reconcile(bg); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if pending > 0 {
		left, nowRejected, err := outboxCounts(ctx)
		if err != nil {
			return err
		}
		if saved := pending - left - (nowRejected - rejected); saved > 0 {
			fmt.Printf("✓ Saved %d queued change(s)\n", saved)
		}
		if n := nowRejected - rejected; n > 0 {
			fmt.Printf("⚠ %d queued change(s) were refused by the database, see %s\n", n, ctx.Outbox.RejectedPath())
		}
	}
	fmt.Printf("✓ Account %s is in sync\n", t.Account())
	return nil
}

func outboxCounts(ctx *cli.Context) (pending, rejected int, err error) {
	if pending, err = ctx.Outbox.Len(); err != nil {
		return 0, 0, fmt.Errorf("failed to read outbox: %w", err)
	}
	refused, err := ctx.Outbox.Rejected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read rejected entries: %w", err)
	}
	return pending, len(refused), nil
}
