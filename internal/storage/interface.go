package storage

import (
	"context"
	"errors"

	qerrors "github.com/julianstephens/qada/internal/errors"
	"github.com/julianstephens/qada/internal/models"
)

var (
	// ErrAccountNotFound is returned when an account has not been created yet
	ErrAccountNotFound = errors.New("account not found")
	// ErrSettingsConflict is returned when the settings document changed between read and write
	ErrSettingsConflict = errors.New("settings were modified concurrently")
)

// IsPermanent reports whether err will recur however often the same call is
// retried: the input was invalid or the account does not exist.
func IsPermanent(err error) bool {
	return qerrors.IsValidation(err) || errors.Is(err, ErrAccountNotFound)
}

// Provider is the durable ledger store. Appends are transactional: the
// entries and the per-category totals they affect commit together, and an
// entry whose ID is already stored is skipped.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Accounts
	EnsureAccount(ctx context.Context, accountID string) error
	ListAccounts(ctx context.Context) ([]string, error)
	GetActiveAccount(ctx context.Context) (string, error)
	SetActiveAccount(ctx context.Context, accountID string) error

	// Ledger
	AppendEntries(ctx context.Context, accountID string, entries []models.LedgerEntry) error
	// LoadAggregate returns the store-side totals and daily history of an account.
	LoadAggregate(ctx context.Context, accountID string) (models.Aggregate, error)
	// ListEntries returns every entry of an account in append order.
	ListEntries(ctx context.Context, accountID string) ([]models.LedgerEntry, error)
	DeleteAllEntries(ctx context.Context, accountID string) error

	// Settings
	LoadSettings(ctx context.Context, accountID string) (models.Settings, error)
	SaveSettings(ctx context.Context, accountID string, patch models.SettingsPatch) (models.Settings, error)

	// Utils
	GetConfigPath() string
}
