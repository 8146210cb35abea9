// Package storage is the server-side record repository backing the REST
// service.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"spesesync/internal/core"
	"spesesync/internal/dbmigrate"
	"spesesync/internal/merge"
	"spesesync/internal/remote"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := dbmigrate.Up(dbPath, dbmigrate.Source{FS: migrationsFS, Dir: "migrations", Table: "records_schema_migrations"}); err != nil {
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

// Ping reports whether the database is usable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Upsert stores rec, replacing any record with the same id. It reports
// whether the record was new.
func (r *SQLiteRepository) Upsert(ctx context.Context, rec core.Record) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM records WHERE id = ?`, rec.ID).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("lookup %s: %w", rec.ID, err)
	}
	created := errors.Is(err, sql.ErrNoRows)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, title, amount_cents, date, category, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			amount_cents = excluded.amount_cents,
			date = excluded.date,
			category = excluded.category,
			notes = excluded.notes,
			updated_at = CURRENT_TIMESTAMP`,
		rec.ID, rec.Title, rec.AmountCents(), rec.Date, rec.Category, rec.Notes)
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", rec.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Record saved",
		"record_id", rec.ID,
		"amount_cents", rec.AmountCents(),
		"category", rec.Category,
		"created", created)
	return created, nil
}

// Get returns the record with id or remote.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, amount_cents, date, category, notes
		FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, remote.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes id. It reports whether a record was removed.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Record deleted", "record_id", id)
	}
	return n > 0, nil
}

// List returns one page ordered by date (newest first) then id, plus the
// number of records matching the category filter.
func (r *SQLiteRepository) List(ctx context.Context, q remote.ListQuery) (remote.ListResult, error) {
	category := strings.TrimSpace(q.Category)
	if category == merge.AllCategories {
		category = ""
	}

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE (? = '' OR category = ?)`,
		category, category).Scan(&total)
	if err != nil {
		return remote.ListResult{}, fmt.Errorf("count records: %w", err)
	}

	limit, offset := -1, 0
	if q.PageSize > 0 {
		page := max(q.Page, 1)
		limit = q.PageSize
		offset = (page - 1) * q.PageSize
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, amount_cents, date, category, notes
		FROM records
		WHERE (? = '' OR category = ?)
		ORDER BY date DESC, id ASC
		LIMIT ? OFFSET ?`,
		category, category, limit, offset)
	if err != nil {
		return remote.ListResult{}, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	items := []core.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return remote.ListResult{}, fmt.Errorf("scan record: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return remote.ListResult{}, fmt.Errorf("iterate records: %w", err)
	}
	return remote.ListResult{Items: items, Total: total}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (core.Record, error) {
	var (
		rec   core.Record
		cents int64
	)
	if err := s.Scan(&rec.ID, &rec.Title, &cents, &rec.Date, &rec.Category, &rec.Notes); err != nil {
		return core.Record{}, err
	}
	rec.Amount = float64(cents) / 100.0
	return rec, nil
}
