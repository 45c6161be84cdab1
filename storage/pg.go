package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ConnectPostgres opens a connection pool and checks it.
func ConnectPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// check the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

const createFailuresTable = `
CREATE TABLE IF NOT EXISTS delivery_failures (
	id          BIGSERIAL PRIMARY KEY,
	task_id     TEXT        NOT NULL,
	task        TEXT        NOT NULL,
	sender_id   TEXT        NOT NULL,
	payload     JSONB,
	error       TEXT        NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
)`

const insertFailure = `
INSERT INTO delivery_failures (task_id, task, sender_id, payload, error, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// PGFailureLog stores failed deliveries in the delivery_failures table.
type PGFailureLog struct {
	db *sql.DB
}

// NewPGFailureLog creates the table if needed and returns the log.
func NewPGFailureLog(ctx context.Context, db *sql.DB) (*PGFailureLog, error) {
	if _, err := db.ExecContext(ctx, createFailuresTable); err != nil {
		return nil, fmt.Errorf("create delivery_failures: %w", err)
	}
	return &PGFailureLog{db: db}, nil
}

func (l *PGFailureLog) Record(ctx context.Context, f Failure) error {
	var payload any
	if len(f.Payload) > 0 {
		payload = []byte(f.Payload)
	}
	if _, err := l.db.ExecContext(ctx, insertFailure,
		f.TaskID, f.Task, f.SenderID, payload, f.Error, f.OccurredAt,
	); err != nil {
		return fmt.Errorf("insert delivery failure: %w", err)
	}
	return nil
}
