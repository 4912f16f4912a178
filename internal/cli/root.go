package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/qada/internal/backup"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/logger"
	"github.com/julianstephens/qada/internal/storage"
	"github.com/julianstephens/qada/internal/storage/sqlite"
	"github.com/julianstephens/qada/internal/tracker"
)

type Context struct {
	Store   storage.Provider
	Tracker *tracker.Tracker
	Outbox  *storage.Outbox
	// Account overrides the active account stored in the database
	Account string
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup() {
	if _, ok := c.Store.(*sqlite.Store); !ok {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.Create(); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// ResolveAccount returns the --account override or the stored active account.
func (c *Context) ResolveAccount(ctx context.Context) (string, error) {
	if c.Account != "" {
		return c.Account, nil
	}
	account, err := c.Store.GetActiveAccount(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get active account: %w", err)
	}
	if account == "" {
		return "", qerrors.ErrNoAccount
	}
	return account, nil
}

// SignIn signs the tracker in to the resolved account unless it already is
// and its state was loaded.
func (c *Context) SignIn(ctx context.Context) (*tracker.Tracker, error) {
	account, err := c.ResolveAccount(ctx)
	if err != nil {
		return nil, err
	}
	if c.Tracker.Account() == account && c.Tracker.Loaded() {
		return c.Tracker, nil
	}
	if err := c.Tracker.SignIn(ctx, account); err != nil {
		// A failed outbox flush still leaves a usable session once the
		// durable state was loaded; without it the counters are just zeros
		if !qerrors.IsPersistence(err) || c.Tracker.Account() != account || !c.Tracker.Loaded() {
			return nil, err
		}
		logger.Warn("Signed in with unsynced state", "account", account, "error", err)
		fmt.Printf("⚠ Could not sync with the database: %v\n", err)
	}
	printWarnings(c.Tracker.Warnings())
	return c.Tracker, nil
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Printf("⚠ %s\n", w)
	}
}

// ReportPersistence prints a warning for a change that was queued in the
// outbox and swallows the error; anything else is returned unchanged.
func ReportPersistence(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, qerrors.ErrRetriesExhausted) {
		fmt.Printf("⚠ Saved locally but not yet in the database: %v\n", err)
		fmt.Println("  Run 'qada sync' to retry.")
		return nil
	}
	return err
}

// Confirm asks a yes/no question on the terminal. Tests replace it.
var Confirm = func(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}
