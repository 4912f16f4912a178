package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/qada/internal/constants"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/storage"
)

// EnsureAccount creates the account with default settings if it does not exist.
func (s *Store) EnsureAccount(ctx context.Context, accountID string) error {
	doc, err := storage.EncodeSettings(models.DefaultSettings())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, settings, version, created_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(id) DO NOTHING`,
		accountID, string(doc), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", accountID, err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM accounts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetActiveAccount returns the account selected with SetActiveAccount, or "" if none.
func (s *Store) GetActiveAccount(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE key = ?", constants.SettingActiveAccount).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active account: %w", err)
	}
	return id, nil
}

// SetActiveAccount records accountID as active; an empty ID clears the selection.
func (s *Store) SetActiveAccount(ctx context.Context, accountID string) error {
	var err error
	if accountID == "" {
		_, err = s.db.ExecContext(ctx, "DELETE FROM app_settings WHERE key = ?", constants.SettingActiveAccount)
	} else {
		_, err = s.db.ExecContext(ctx, "INSERT OR REPLACE INTO app_settings (key, value) VALUES (?, ?)", constants.SettingActiveAccount, accountID)
	}
	if err != nil {
		return fmt.Errorf("failed to save active account: %w", err)
	}
	return nil
}
