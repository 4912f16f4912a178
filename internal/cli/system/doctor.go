package system

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/qada/internal/backup"
	"github.com/julianstephens/qada/internal/cli"
	"github.com/julianstephens/qada/internal/ledger"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/storage/sqlite"
	"github.com/julianstephens/qada/internal/validation"
)

var nowFunc = time.Now

type DoctorCmd struct{}

type check struct {
	name     string
	needsDB  bool
	warnOnly bool
	run      func(context.Context, *cli.Context) error
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	checks := []check{
		{name: "Schema version", needsDB: true, run: checkSchemaVersion},
		{name: "Migrations complete", needsDB: true, run: checkMigrationsComplete},
		{name: "Backups present", warnOnly: true, run: checkBackupsPresent},
		{name: "Outbox empty", warnOnly: true, run: checkOutbox},
		{name: "No rejected changes", warnOnly: true, run: checkRejected},
		{name: "Ledger totals", needsDB: true, run: checkLedgerTotals},
		{name: "Clock/timezone", run: func(context.Context, *cli.Context) error { return checkClockTimezone() }},
	}

	bg := context.Background()
	hasError := false

	dbReachable := true
	if err := checkDBReachable(bg, ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
		dbReachable = false
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
	}

	for _, c := range checks {
		if c.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(bg, ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warnOnly:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(bg context.Context, ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if s, ok := ctx.Store.(*sqlite.Store); ok {
		db := s.GetDB()
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		var result int
		if err := db.QueryRowContext(bg, "SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
	}
	return nil
}

func checkSchemaVersion(bg context.Context, ctx *cli.Context) error {
	m, ok := ctx.Store.(migrator)
	if !ok {
		return nil
	}
	current, latest, err := m.SchemaVersion(bg)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	return nil
}

func checkMigrationsComplete(bg context.Context, ctx *cli.Context) error {
	m, ok := ctx.Store.(migrator)
	if !ok {
		return nil
	}
	current, latest, err := m.SchemaVersion(bg)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest)
	}
	return nil
}

func checkBackupsPresent(_ context.Context, ctx *cli.Context) error {
	if _, ok := ctx.Store.(*sqlite.Store); !ok {
		return nil
	}
	backups, err := backup.NewManager(ctx.Store.GetConfigPath()).List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'qada backup create'")
	}
	return nil
}

func checkOutbox(_ context.Context, ctx *cli.Context) error {
	if ctx.Outbox == nil {
		return nil
	}
	n, err := ctx.Outbox.Len()
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%d change(s) waiting to be saved - run 'qada sync'", n)
	}
	return nil
}

func checkRejected(_ context.Context, ctx *cli.Context) error {
	if ctx.Outbox == nil {
		return nil
	}
	rejected, err := ctx.Outbox.Rejected()
	if err != nil {
		return err
	}
	if len(rejected) > 0 {
		return fmt.Errorf("%d change(s) were refused by the database - review %s", len(rejected), ctx.Outbox.RejectedPath())
	}
	return nil
}

// checkLedgerTotals verifies, per account, that the stored totals satisfy
// their invariants and equal a replay of the account's ledger.
func checkLedgerTotals(bg context.Context, ctx *cli.Context) error {
	accounts, err := ctx.Store.ListAccounts(bg)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	for _, account := range accounts {
		agg, err := ctx.Store.LoadAggregate(bg, account)
		if err != nil {
			return fmt.Errorf("failed to load totals for %s: %w", account, err)
		}
		if result := validation.CheckAggregate(agg); result.HasConflicts() {
			return fmt.Errorf("account %s: %s", account, result.FormatReport())
		}

		entries, err := ctx.Store.ListEntries(bg, account)
		if err != nil {
			return fmt.Errorf("failed to list entries for %s: %w", account, err)
		}
		if diff := diffAggregates(agg, ledger.Replay(entries)); diff != "" {
			return fmt.Errorf("account %s: stored totals disagree with the ledger (%s)", account, diff)
		}
	}
	return nil
}

func diffAggregates(stored, replayed models.Aggregate) string {
	for _, c := range models.Categories() {
		switch {
		case stored.Debt[c] != replayed.Debt[c]:
			return fmt.Sprintf("%s debt %d != %d", c, stored.Debt[c], replayed.Debt[c])
		case stored.Completed[c] != replayed.Completed[c]:
			return fmt.Sprintf("%s completed %d != %d", c, stored.Completed[c], replayed.Completed[c])
		case stored.Quality[c] != replayed.Quality[c]:
			return fmt.Sprintf("%s quality %+v != %+v", c, stored.Quality[c], replayed.Quality[c])
		}
	}
	if len(stored.History) != len(replayed.History) {
		return fmt.Sprintf("history has %d days, ledger has %d", len(stored.History), len(replayed.History))
	}
	for day, n := range replayed.History {
		if stored.History[day] != n {
			return fmt.Sprintf("history %s %d != %d", day, stored.History[day], n)
		}
	}
	return ""
}

func checkClockTimezone() error {
	now := nowFunc()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}
