package system

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/qada/internal/cli"
	"github.com/julianstephens/qada/internal/keyring"
	"github.com/julianstephens/qada/internal/storage/postgres"
)

type KeyringCmd struct {
	Set    KeyringSetCmd    `cmd:"" help:"Store a PostgreSQL connection string in the OS keyring."`
	Get    KeyringGetCmd    `cmd:"" help:"Show the stored connection string with the password hidden."`
	Delete KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
	Status KeyringStatusCmd `cmd:"" help:"Show which database qada connects to and where the setting comes from." default:"1"`
}

type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL URL or key=value connection string."`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	if !postgres.IsConnString(cmd.ConnectionString) {
		return fmt.Errorf("%q does not look like a PostgreSQL connection string", postgres.Redact(cmd.ConnectionString))
	}
	err := postgres.ValidateConnString(cmd.ConnectionString)
	switch {
	case errors.Is(err, postgres.ErrEmbeddedCredentials):
		// Allowed here, unlike on the command line: the keyring is encrypted at rest
		fmt.Println("⚠ The connection string includes a password; it is stored as-is in the keyring.")
	case err != nil:
		return err
	}

	_, getErr := keyring.GetConnectionString()
	replaced := getErr == nil
	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return err
	}
	if replaced {
		fmt.Println("✓ Replaced the connection string in the OS keyring")
	} else {
		fmt.Println("✓ Stored the connection string in the OS keyring")
	}
	if os.Getenv(keyring.EnvConnection) != "" {
		fmt.Printf("⚠ %s is set and takes precedence over the keyring\n", keyring.EnvConnection)
	}
	return nil
}

type KeyringGetCmd struct{}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.GetConnectionString()
	if errors.Is(err, keyring.ErrNotFound) {
		return errors.New("no connection string in the keyring; store one with 'qada keyring set'")
	}
	if err != nil {
		return err
	}
	fmt.Println(postgres.Redact(connStr))
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	err := keyring.DeleteConnectionString()
	if errors.Is(err, keyring.ErrNotFound) {
		return errors.New("no connection string in the keyring")
	}
	if err != nil {
		return err
	}
	fmt.Println("✓ Removed the connection string from the OS keyring")
	return nil
}

// KeyringStatusCmd reports the connection qada would use without --config.
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	available := keyring.IsAvailable()
	if available {
		fmt.Println("✓ OS keyring is available")
	} else {
		fmt.Println("⚠ OS keyring is not available")
	}

	connStr, source, err := keyring.Resolve("")
	if err != nil {
		return err
	}
	switch source {
	case keyring.SourceEnv:
		fmt.Printf("✓ Using PostgreSQL from %s: %s\n", keyring.EnvConnection, postgres.Redact(connStr))
		if _, kerr := keyring.GetConnectionString(); kerr == nil {
			fmt.Println("  The keyring entry is ignored while the variable is set.")
		}
	case keyring.SourceKeyring:
		fmt.Printf("✓ Using PostgreSQL from the keyring: %s\n", postgres.Redact(connStr))
	default:
		fmt.Println("⊘ No connection string configured; qada uses the local SQLite database")
		if !available {
			return keyring.ErrKeyringUnavailable
		}
	}
	return nil
}
