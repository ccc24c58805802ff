// Package storage is the SQLite persistence layer for the pieces of state
// this service owns: budget targets and view preferences. Everything else
// (transactions, categories) belongs to the upstream ledger API and is never
// written here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pocketsight/internal/core"
	"pocketsight/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ ports.TargetStore     = (*SQLiteRepository)(nil)
	_ ports.PreferenceStore = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListTargets implements ports.TargetStore
func (r *SQLiteRepository) ListTargets(ctx context.Context, monthKey string) ([]core.BudgetTarget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT month_key, category_id, category_name, target_cents, notes
		FROM budget_targets
		WHERE month_key = ?
		ORDER BY category_id`, monthKey)
	if err != nil {
		return nil, fmt.Errorf("list targets for %s: %w", monthKey, err)
	}
	defer rows.Close()

	var targets []core.BudgetTarget
	for rows.Next() {
		var t core.BudgetTarget
		if err := rows.Scan(&t.MonthKey, &t.CategoryID, &t.CategoryName, &t.Target.Cents, &t.Notes); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate targets: %w", err)
	}
	return targets, nil
}

// PutTarget implements ports.TargetStore. Upserts on (month_key, category_id).
func (r *SQLiteRepository) PutTarget(ctx context.Context, target core.BudgetTarget) error {
	if err := target.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_targets (month_key, category_id, category_name, target_cents, notes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (month_key, category_id) DO UPDATE SET
			category_name = excluded.category_name,
			target_cents = excluded.target_cents,
			notes = excluded.notes,
			updated_at = CURRENT_TIMESTAMP`,
		target.MonthKey, target.CategoryID, target.CategoryName, target.Target.Cents, target.Notes)
	if err != nil {
		return fmt.Errorf("put target: %w", err)
	}

	slog.InfoContext(ctx, "Budget target saved",
		"month_key", target.MonthKey,
		"category_id", target.CategoryID,
		"target_cents", target.Target.Cents)
	return nil
}

// DeleteTarget implements ports.TargetStore. Deleting a missing target is
// not an error.
func (r *SQLiteRepository) DeleteTarget(ctx context.Context, monthKey string, categoryID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM budget_targets
		WHERE month_key = ? AND category_id = ?`, monthKey, categoryID)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	return nil
}

// GetPreference implements ports.PreferenceStore
func (r *SQLiteRepository) GetPreference(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

// SetPreference implements ports.PreferenceStore
func (r *SQLiteRepository) SetPreference(ctx context.Context, key, value string) error {
	if key == "" {
		return core.ErrEmptyPreferenceKey
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value)
		VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`, key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// DeletePreference implements ports.PreferenceStore
func (r *SQLiteRepository) DeletePreference(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM preferences WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}
