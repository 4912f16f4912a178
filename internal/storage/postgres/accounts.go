package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/qada/internal/constants"
	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/storage"
)

func (s *Store) EnsureAccount(ctx context.Context, accountID string) error {
	doc, err := storage.EncodeSettings(models.DefaultSettings())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, settings, version)
		VALUES ($1, $2, 0)
		ON CONFLICT (id) DO NOTHING`,
		accountID, string(doc))
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

func (s *Store) GetActiveAccount(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE key = $1", constants.SettingActiveAccount).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active account: %w", err)
	}
	return id, nil
}

func (s *Store) SetActiveAccount(ctx context.Context, accountID string) error {
	var err error
	if accountID == "" {
		_, err = s.db.ExecContext(ctx, "DELETE FROM app_settings WHERE key = $1", constants.SettingActiveAccount)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO app_settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			constants.SettingActiveAccount, accountID)
	}
	if err != nil {
		return fmt.Errorf("failed to save active account: %w", err)
	}
	return nil
}
