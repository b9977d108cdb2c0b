// Package sqlite provides a SQLite-backed implementation of the history repository port.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously
)

// Adapter implements ports.HistoryRepository for SQLite
type Adapter struct {
	db *sql.DB
}

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", dsn(storagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if isMemory(storagePath) {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Create inserts the record and sets its URL in one transaction, so a row
// without a URL is never visible.
func (a *Adapter) Create(ctx context.Context, ownerID int64, audio []byte, urlFor func(id int64) string) (domain.HistoryRecord, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.HistoryRecord{}, persistErr("begin transaction", err)
	}
	defer tx.Rollback()

	if audio == nil {
		audio = []byte{}
	}
	now := time.Now().UTC()
	var id int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO history (user_id, music, url, created_at) VALUES (?, ?, '', ?) RETURNING id",
		ownerID, audio, now,
	).Scan(&id)
	if err != nil {
		return domain.HistoryRecord{}, persistErr("insert history record", err)
	}

	url := urlFor(id)
	if _, err := tx.ExecContext(ctx, "UPDATE history SET url = ? WHERE id = ?", url, id); err != nil {
		return domain.HistoryRecord{}, persistErr("set history url", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.HistoryRecord{}, persistErr("commit history record", err)
	}

	return domain.HistoryRecord{
		ID:        id,
		OwnerID:   ownerID,
		Audio:     audio,
		URL:       url,
		CreatedAt: now,
	}, nil
}

func (a *Adapter) Get(ctx context.Context, id int64) (domain.HistoryRecord, error) {
	row := a.db.QueryRowContext(ctx, "SELECT id, user_id, music, url, created_at FROM history WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.HistoryRecord{}, domain.ErrNotFound
		}
		return domain.HistoryRecord{}, persistErr("load history record", err)
	}
	return rec, nil
}

// List returns the owner's records in ascending id order.
func (a *Adapter) List(ctx context.Context, ownerID int64, limit, offset int) ([]domain.HistoryRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, user_id, music, url, created_at
		FROM history
		WHERE user_id = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`, ownerID, limit, offset)
	if err != nil {
		return nil, persistErr("list history", err)
	}
	defer rows.Close()

	records := []domain.HistoryRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
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
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history WHERE user_id = ?", ownerID).Scan(&n); err != nil {
		return 0, persistErr("count history", err)
	}
	return n, nil
}

func (a *Adapter) Delete(ctx context.Context, ownerID, id int64) (int64, error) {
	res, err := a.db.ExecContext(ctx, "DELETE FROM history WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		return 0, persistErr("delete history record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistErr("read deleted rows", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (domain.HistoryRecord, error) {
	var rec domain.HistoryRecord
	if err := s.Scan(&rec.ID, &rec.OwnerID, &rec.Audio, &rec.URL, &rec.CreatedAt); err != nil {
		return domain.HistoryRecord{}, err
	}
	if rec.Audio == nil {
		rec.Audio = []byte{}
	}
	return rec, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		music BLOB NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_history_user_id ON history (user_id, id);
	`
	_, err := a.db.Exec(query)
	return err
}

func persistErr(action string, err error) error {
	return fmt.Errorf("sqlite: failed to %s: %w: %w", action, domain.ErrPersistence, err)
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// dsn adds a busy timeout to file databases so concurrent writers wait
// instead of failing with SQLITE_BUSY.
func dsn(path string) string {
	if isMemory(path) || strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}
