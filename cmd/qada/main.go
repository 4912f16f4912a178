package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/qada/internal/backup"
	"github.com/julianstephens/qada/internal/cli"
	"github.com/julianstephens/qada/internal/cli/accounts"
	"github.com/julianstephens/qada/internal/cli/backups"
	"github.com/julianstephens/qada/internal/cli/debt"
	"github.com/julianstephens/qada/internal/cli/report"
	"github.com/julianstephens/qada/internal/cli/settings"
	"github.com/julianstephens/qada/internal/cli/system"
	"github.com/julianstephens/qada/internal/constants"
	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/keyring"
	"github.com/julianstephens/qada/internal/logger"
	"github.com/julianstephens/qada/internal/storage"
	"github.com/julianstephens/qada/internal/storage/postgres"
	"github.com/julianstephens/qada/internal/storage/sqlite"
	"github.com/julianstephens/qada/internal/tracker"
)

var CLI struct {
	Version  kong.VersionFlag
	Config   string `help:"Database file path or PostgreSQL connection string. For PostgreSQL, credentials must NOT be embedded in the connection string. Use QADA_DB_CONNECTION, .pgpass, or the OS keyring instead." type:"string" env:"QADA_CONFIG" default:"~/.config/qada/qada.db"`
	Account  string `help:"Account to use instead of the active one." env:"QADA_ACCOUNT"`
	Debug    bool   `help:"Log debug output to stderr."`
	LogLevel string `help:"Level written to the log file." env:"QADA_LOG_LEVEL" enum:"debug,info,warn,error" default:"warn"`

	Init     system.InitCmd       `cmd:"" help:"Initialize qada storage."`
	Migrate  system.MigrateCmd    `cmd:"" help:"Run database migrations."`
	Doctor   system.DoctorCmd     `cmd:"" help:"Run health checks and diagnostics."`
	Sync     system.SyncCmd       `cmd:"" help:"Save queued changes and reload from the database."`
	Keyring  system.KeyringCmd    `cmd:"" help:"Manage the PostgreSQL connection string in the OS keyring."`
	Accounts accounts.AccountCmd  `cmd:"" name:"account" help:"Manage accounts."`
	Estimate debt.EstimateCmd     `cmd:"" help:"Estimate missed prayers for a period and optionally record them."`
	Pray     debt.PrayCmd         `cmd:"" help:"Record a completed make-up prayer."`
	Adjust   debt.AdjustCmd       `cmd:"" help:"Adjust a prayer's debt; removals count as made-up prayers."`
	Correct  debt.CorrectCmd      `cmd:"" help:"Correct a prayer's debt without recording completions."`
	Status   report.StatusCmd     `cmd:"" help:"Show remaining debt and progress." default:"1"`
	History  report.HistoryCmd    `cmd:"" help:"Show recent daily completions."`
	Plan     report.PlanCmd       `cmd:"" help:"Plan a daily pace or projected finish date."`
	Settings settings.SettingsCmd `cmd:"" help:"Manage account settings."`
	Backup   backups.BackupCmd    `cmd:"" help:"Manage database backups."`
}

// commands that run without loading the store first
var skipLoad = map[string]bool{"init": true, "keyring": true, "migrate": true}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Track and pay down missed obligatory prayers (qada)"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	store, configDir, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, qerrors.Format(err))
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Debug: CLI.Debug, Level: CLI.LogLevel, ConfigDir: configDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	outbox := storage.NewOutbox(filepath.Join(configDir, constants.OutboxFileName))
	cfg := tracker.Config{Outbox: outbox}
	if _, ok := store.(*sqlite.Store); ok {
		mgr := backup.NewManager(store.GetConfigPath())
		cfg.BeforeReset = func(context.Context) error {
			_, err := mgr.Create()
			return err
		}
	}

	appCtx := &cli.Context{
		Store:   store,
		Tracker: tracker.New(store, cfg),
		Outbox:  outbox,
		Account: CLI.Account,
	}

	command := strings.Fields(ctx.Command())
	if len(command) > 0 && !skipLoad[command[0]] {
		if err := store.Load(); err != nil {
			fmt.Fprintln(os.Stderr, qerrors.Format(err))
			os.Exit(1)
		}
	}

	err = ctx.Run(appCtx)
	appCtx.Tracker.Close()
	if cerr := store.Close(); cerr != nil {
		logger.Warn("Failed to close store", "error", cerr)
	}
	qerrors.Fatal(err)
}

// openStore picks the backend: a PostgreSQL --config, then a connection
// string from QADA_DB_CONNECTION or the keyring, then the SQLite file.
func openStore() (storage.Provider, string, error) {
	if postgres.IsConnString(CLI.Config) {
		if err := postgres.ValidateConnString(CLI.Config); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, "", fmt.Errorf("PostgreSQL connection strings with embedded credentials are NOT allowed on the command line; store it with 'qada keyring set' or export %s instead", keyring.EnvConnection)
			}
			return nil, "", err
		}
		dir, err := defaultConfigDir()
		return postgres.New(CLI.Config), dir, err
	}

	if CLI.Config == constants.DefaultConfigPath {
		connStr, source, err := keyring.Resolve("")
		if err != nil {
			return nil, "", err
		}
		if connStr != "" {
			// Env and keyring values may carry a password; only the format is checked
			if err := postgres.ValidateConnString(connStr); err != nil && !errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, "", fmt.Errorf("connection string from %s: %w", source, err)
			}
			dir, err := defaultConfigDir()
			return postgres.New(connStr), dir, err
		}
	}

	path, err := expandPath(CLI.Config)
	if err != nil {
		return nil, "", err
	}
	return sqlite.NewStore(path), filepath.Dir(path), nil
}

func defaultConfigDir() (string, error) {
	path, err := expandPath(constants.DefaultConfigPath)
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
