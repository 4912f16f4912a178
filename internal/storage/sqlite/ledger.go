package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/storage"
)

// AppendEntries stores entries and folds them into ledger_totals in one
// transaction. Entries whose ID is already stored are skipped.
func (s *Store) AppendEntries(ctx context.Context, accountID string, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := storage.CheckEntries(accountID, entries); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	if err := requireAccount(ctx, tx, accountID); err != nil {
		return err
	}

	for _, e := range entries {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, account_id, category, amount, quality, kind, local_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			e.ID, accountID, e.Category.String(), e.Amount, e.Quality, string(e.Kind), e.LocalDate,
			e.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			continue
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO ledger_totals (account_id, category) VALUES (?, ?)",
			accountID, e.Category.String()); err != nil {
			return fmt.Errorf("failed to create totals row: %w", err)
		}
		d := storage.DeltaFor(e)
		if _, err := tx.ExecContext(ctx, `
			UPDATE ledger_totals SET
				debt = MAX(0, debt + ?),
				completed = completed + ?,
				quality_sum = quality_sum + ?,
				quality_count = quality_count + ?
			WHERE account_id = ? AND category = ?`,
			d.Amount, d.Completed, d.QualitySum, d.QualityCount, accountID, e.Category.String()); err != nil {
			return fmt.Errorf("failed to update totals: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) LoadAggregate(ctx context.Context, accountID string) (models.Aggregate, error) {
	agg := models.Aggregate{History: models.DailyHistory{}}
	if err := s.loadTotals(ctx, accountID, &agg); err != nil {
		return models.Aggregate{}, err
	}
	if err := s.loadHistory(ctx, accountID, agg.History); err != nil {
		return models.Aggregate{}, err
	}
	return agg, nil
}

func (s *Store) loadTotals(ctx context.Context, accountID string, agg *models.Aggregate) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, debt, completed, quality_sum, quality_count
		FROM ledger_totals WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("failed to load totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var debt, completed, qSum, qCount int
		if err := rows.Scan(&name, &debt, &completed, &qSum, &qCount); err != nil {
			return err
		}
		cat, err := models.ParseCategory(name)
		if err != nil {
			return err
		}
		agg.Debt[cat] = debt
		agg.Completed[cat] = completed
		agg.Quality[cat] = models.QualityStat{Sum: qSum, Count: qCount}
	}
	return rows.Err()
}

func (s *Store) loadHistory(ctx context.Context, accountID string, history models.DailyHistory) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT local_date, completions FROM daily_history WHERE account_id = ?", accountID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return err
		}
		history[day] = n
	}
	return rows.Err()
}

func (s *Store) ListEntries(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, amount, quality, kind, local_date, created_at
		FROM ledger_entries WHERE account_id = ? ORDER BY seq`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var name, kind, createdAt string
		if err := rows.Scan(&e.ID, &name, &e.Amount, &e.Quality, &kind, &e.LocalDate, &createdAt); err != nil {
			return nil, err
		}
		if e.Category, err = models.ParseCategory(name); err != nil {
			return nil, err
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for entry %s: %w", e.ID, err)
		}
		e.AccountID = accountID
		e.Kind = storage.ParseKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteAllEntries wipes the ledger of an account. Settings are kept.
func (s *Store) DeleteAllEntries(ctx context.Context, accountID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ledger_entries WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM ledger_totals WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("failed to delete totals: %w", err)
	}
	return tx.Commit()
}

// requireAccount fails with ErrAccountNotFound inside tx, so a missing
// account is told apart from a constraint error on insert.
func requireAccount(ctx context.Context, tx *sql.Tx, accountID string) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE id = ?", accountID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", storage.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}
	return nil
}
