// Package db provides database connectivity helpers and migration support
// for the engine's SQLite store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

// Pool modes. Every membership, role, and delegation mutation goes through a
// write pool; authorization reads may use a read pool against the same file.
const (
	ModeWrite = "write"
	ModeRead  = "read"
)

// OpenSQLite opens a *sql.DB pool for the given SQLite file path.
//
// ModeWrite pins the pool to a single connection and opens transactions with
// _txlock=immediate; that single writer is what serializes concurrent
// administrative mutations, so conditional updates (status CAS, the archived
// circle freeze) see committed state. ModeRead allows maxOpen concurrent
// connections (0 defaults to 4).
//
// Both modes run WAL with busy_timeout=5000ms, synchronous=NORMAL, and
// foreign_keys=on.
func OpenSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q", mode)
	}

	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_synchronous", "NORMAL")
	params.Set("_foreign_keys", "on")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}

	db, err := sql.Open("sqlite3", path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}

	return db, nil
}
