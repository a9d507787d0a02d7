// Package db owns the SQLite handle shared by every repository. All writes
// go through WithTx, which acquires the single writer with BEGIN IMMEDIATE
// semantics and retries on lock contention.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Config controls connection and busy-retry behaviour.
type Config struct {
	Path             string
	BusyRetryMax     int
	BusyRetryInitial time.Duration
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "primanota.db"
	}
	if c.BusyRetryMax <= 0 {
		c.BusyRetryMax = 5
	}
	if c.BusyRetryInitial <= 0 {
		c.BusyRetryInitial = 150 * time.Millisecond
	}
	return c
}

// Queryer is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories accept it so the same statement helpers run inside and
// outside a transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the SQLite connection.
type Store struct {
	db  *sql.DB
	cfg Config
}

// Open connects to the database at cfg.Path. The handle is restricted to a
// single connection so in-memory databases behave like file-backed ones and
// writers serialize at the pool boundary as well as at the SQLite lock.
func Open(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	dsn := cfg.Path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", cfg.Path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return &Store{db: conn, cfg: cfg}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for read-only paths.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a write transaction. BEGIN is retried with
// exponential backoff while SQLite reports the database busy or locked;
// after BusyRetryMax attempts the last error surfaces to the caller.
// fn returning an error rolls the transaction back, otherwise it commits.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var tx *sql.Tx
	backoff := s.cfg.BusyRetryInitial
	for attempt := 1; ; attempt++ {
		var err error
		tx, err = s.db.BeginTx(ctx, nil)
		if err == nil {
			break
		}
		if !IsBusy(err) || attempt >= s.cfg.BusyRetryMax {
			return fmt.Errorf("db: begin tx: %w", err)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("db: begin tx: %w", ctx.Err())
		}
		backoff *= 2
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit tx: %w", err)
	}
	return nil
}

// ExecScript runs a multi-statement DDL script.
func (s *Store) ExecScript(ctx context.Context, script string) error {
	if _, err := s.db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("db: exec script: %w", err)
	}
	return nil
}

// IsBusy reports whether err is SQLite lock contention.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
