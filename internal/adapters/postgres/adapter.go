// Package postgres provides a PostgreSQL-backed implementation of the history repository port.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // Import the driver anonymously

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

// Adapter implements ports.HistoryRepository for PostgreSQL
type Adapter struct {
	db *sql.DB
}

// NewAdapter connects to databaseURL and runs the schema migration
func NewAdapter(databaseURL string) (*Adapter, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return adapter, nil
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) Create(ctx context.Context, ownerID int64, audio []byte, urlFor func(id int64) string) (domain.HistoryRecord, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.HistoryRecord{}, persistErr("begin transaction", err)
	}
	defer tx.Rollback()

	if audio == nil {
		audio = []byte{}
	}
	rec := domain.HistoryRecord{OwnerID: ownerID, Audio: audio}
	err = tx.QueryRowContext(ctx,
		"INSERT INTO history (user_id, music, url) VALUES ($1, $2, '') RETURNING id, created_at",
		ownerID, audio,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return domain.HistoryRecord{}, persistErr("insert history record", err)
	}

	rec.URL = urlFor(rec.ID)
	if _, err := tx.ExecContext(ctx, "UPDATE history SET url = $1 WHERE id = $2", rec.URL, rec.ID); err != nil {
		return domain.HistoryRecord{}, persistErr("set history url", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.HistoryRecord{}, persistErr("commit history record", err)
	}
	return rec, nil
}

func (a *Adapter) Get(ctx context.Context, id int64) (domain.HistoryRecord, error) {
	row := a.db.QueryRowContext(ctx, "SELECT id, user_id, music, url, created_at FROM history WHERE id = $1", id)
	var rec domain.HistoryRecord
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Audio, &rec.URL, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.HistoryRecord{}, domain.ErrNotFound
		}
		return domain.HistoryRecord{}, persistErr("load history record", err)
	}
	return rec, nil
}

func (a *Adapter) List(ctx context.Context, ownerID int64, limit, offset int) ([]domain.HistoryRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, user_id, music, url, created_at
		FROM history
		WHERE user_id = $1
		ORDER BY id ASC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, persistErr("list history", err)
	}
	defer rows.Close()

	records := []domain.HistoryRecord{}
	for rows.Next() {
		var rec domain.HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Audio, &rec.URL, &rec.CreatedAt); err != nil {
			return nil, persistErr("scan history record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate history", err)
	}
	return records, nil
}

func (a *Adapter) Count(ctx context.Context, ownerID int64) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history WHERE user_id = $1", ownerID).Scan(&n); err != nil {
		return 0, persistErr("count history", err)
	}
	return n, nil
}

func (a *Adapter) Delete(ctx context.Context, ownerID, id int64) (int64, error) {
	res, err := a.db.ExecContext(ctx, "DELETE FROM history WHERE id = $1 AND user_id = $2", id, ownerID)
	if err != nil {
		return 0, persistErr("delete history record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistErr("read deleted rows", err)
	}
	return n, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS history (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		music BYTEA NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_history_user_id ON history (user_id, id);
	`
	_, err := a.db.Exec(query)
	return err
}

func persistErr(action string, err error) error {
	return fmt.Errorf("postgres: failed to %s: %w: %w", action, domain.ErrPersistence, err)
}
