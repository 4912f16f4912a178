package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/storage"
)

func (s *Store) LoadSettings(ctx context.Context, accountID string) (models.Settings, error) {
	var doc string
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT settings, version FROM accounts WHERE id = ?", accountID).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{}, fmt.Errorf("%w: %s", storage.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return storage.DecodeSettings([]byte(doc), version)
}

// SaveSettings merges patch into the stored document and bumps its version.
func (s *Store) SaveSettings(ctx context.Context, accountID string, patch models.SettingsPatch) (models.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to begin settings update: %w", err)
	}
	defer tx.Rollback()

	var doc string
	var version int
	err = tx.QueryRowContext(ctx, "SELECT settings, version FROM accounts WHERE id = ?", accountID).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{}, fmt.Errorf("%w: %s", storage.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	current, err := storage.DecodeSettings([]byte(doc), version)
	if err != nil {
		return models.Settings{}, err
	}
	next := current.Merge(patch)
	next.Version = version + 1

	data, err := storage.EncodeSettings(next)
	if err != nil {
		return models.Settings{}, err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE accounts SET settings = ?, version = ? WHERE id = ? AND version = ?",
		string(data), next.Version, accountID, version)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Settings{}, err
	} else if n == 0 {
		return models.Settings{}, storage.ErrSettingsConflict
	}

	if err := tx.Commit(); err != nil {
		return models.Settings{}, fmt.Errorf("failed to commit settings: %w", err)
	}
	return next, nil
}
