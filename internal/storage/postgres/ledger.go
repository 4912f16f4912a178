package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/qada/internal/models"
	"github.com/julianstephens/qada/internal/storage"
)

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
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, accountID, e.Category.String(), e.Amount, e.Quality, string(e.Kind), e.LocalDate, e.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			continue
		}

		// Debt is clamped per entry, which a plain SUM over the log cannot express
		d := storage.DeltaFor(e)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_totals (account_id, category, debt, completed, quality_sum, quality_count)
			VALUES ($1, $2, GREATEST(0, $3::integer), $4, $5, $6)
			ON CONFLICT (account_id, category) DO UPDATE SET
				debt = GREATEST(0, ledger_totals.debt + $3::integer),
				completed = ledger_totals.completed + EXCLUDED.completed,
				quality_sum = ledger_totals.quality_sum + EXCLUDED.quality_sum,
				quality_count = ledger_totals.quality_count + EXCLUDED.quality_count`,
			accountID, e.Category.String(), d.Amount, d.Completed, d.QualitySum, d.QualityCount); err != nil {
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
		FROM ledger_totals WHERE account_id = $1`, accountID)
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
		"SELECT local_date, completions FROM daily_history WHERE account_id = $1", accountID)
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
		SELECT id::text, category, amount, quality, kind, to_char(local_date, 'YYYY-MM-DD'), created_at
		FROM ledger_entries WHERE account_id = $1 ORDER BY seq`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var name, kind string
		if err := rows.Scan(&e.ID, &name, &e.Amount, &e.Quality, &kind, &e.LocalDate, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Category, err = models.ParseCategory(name); err != nil {
			return nil, err
		}
		e.AccountID = accountID
		e.Kind = storage.ParseKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) DeleteAllEntries(ctx context.Context, accountID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ledger_entries WHERE account_id = $1", accountID); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM ledger_totals WHERE account_id = $1", accountID); err != nil {
		return fmt.Errorf("failed to delete totals: %w", err)
	}
	return tx.Commit()
}

// requireAccount fails with ErrAccountNotFound inside tx, so a missing
// account is told apart from a constraint error on insert.
func requireAccount(ctx context.Context, tx *sql.Tx, accountID string) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE id = $1", accountID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", storage.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}
	return nil
}
