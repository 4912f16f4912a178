package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/qada/internal/cli"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/storage"
	"github.com/julianstephens/qada/internal/storage/postgres"
	"github.com/julianstephens/qada/internal/storage/sqlite"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting existing database before initialization."`
	Source string `help:"Source database path or connection string to copy accounts and ledgers from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if _, ok := ctx.Store.(*sqlite.Store); !ok {
			return fmt.Errorf("--force is only supported for SQLite storage")
		}
		dbPath := ctx.Store.GetConfigPath()
		if c.Source != "" {
			absDbPath, err := filepath.Abs(dbPath)
			if err == nil {
				dbPath = absDbPath
			}
			absSource, err := filepath.Abs(c.Source)
			if err == nil && absSource == dbPath {
				return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
			}
		}
		if _, err := os.Stat(dbPath); err == nil {
			// Close first so the file is not locked
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			fmt.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized qada storage at: %s\n", ctx.Store.GetConfigPath())

	if c.Source != "" {
		fmt.Printf("Copying data from: %s\n", c.Source)
		if err := c.copyData(context.Background(), ctx.Store); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Println("Migration completed successfully!")
	}
	return nil
}

func (c *InitCmd) copyData(ctx context.Context, dest storage.Provider) error {
	var source storage.Provider
	if postgres.IsConnString(c.Source) {
		if err := postgres.ValidateConnString(c.Source); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return fmt.Errorf("PostgreSQL source connection string contains embedded credentials. Use the keyring or .pgpass instead")
			}
			return err
		}
		source = postgres.New(c.Source)
	} else {
		source = sqlite.NewStore(c.Source)
	}

	if err := source.Load(); err != nil {
		return fmt.Errorf("failed to load source database: %w", err)
	}
	defer source.Close()

	accounts, err := source.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list source accounts: %w", err)
	}
	for _, account := range accounts {
		n, err := copyAccount(ctx, source, dest, account)
		if err != nil {
			return fmt.Errorf("failed to copy account %s: %w", account, err)
		}
		fmt.Printf("  Copied account %s (%d ledger entries)\n", account, n)
	}

	if active, err := source.GetActiveAccount(ctx); err == nil && active != "" {
		if err := dest.SetActiveAccount(ctx, active); err != nil {
			return fmt.Errorf("failed to set active account: %w", err)
		}
	}
	return nil
}

// copyAccount copies settings and every ledger entry. Entry IDs are kept,
// so running the copy twice does not double any totals.
func copyAccount(ctx context.Context, source, dest storage.Provider, account string) (int, error) {
	if err := dest.EnsureAccount(ctx, account); err != nil {
		return 0, err
	}

	settings, err := source.LoadSettings(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to load settings: %w", err)
	}
	if _, err := dest.SaveSettings(ctx, account, patchFrom(settings)); err != nil {
		return 0, fmt.Errorf("failed to save settings: %w", err)
	}

	entries, err := source.ListEntries(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to list entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := dest.AppendEntries(ctx, account, entries); err != nil {
		return 0, fmt.Errorf("failed to append entries: %w", err)
	}
	return len(entries), nil
}

// patchFrom turns a full settings document into a patch that sets every field.
func patchFrom(s models.Settings) models.SettingsPatch {
	return models.SettingsPatch{
		StartDate:        &s.StartDate,
		ExemptionApplies: &s.ExemptionApplies,
		ExemptionDays:    &s.ExemptionDays,
		DailyCapacity:    &s.DailyCapacity,
		HabitRule:        s.HabitRule,
		ClearHabitRule:   s.HabitRule == nil,
		Timezone:         &s.Timezone,
	}
}
