// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package sqlite is a store.Backend persisted in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/staranto/brickify/internal/backend/sqlite/migrations"
	"github.com/staranto/brickify/internal/store"
)

// Backend provides SQLite-backed persistence for cache stores.
type Backend struct {
	sqlDB *sql.DB
}

// Open opens and migrates the database at path.
func Open(ctx context.Context, path string) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Backend{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite connection.
func (b *Backend) Close() error {
	if b == nil || b.sqlDB == nil {
		return nil
	}
	return b.sqlDB.Close()
}

func (b *Backend) Create(ctx context.Context, name string) error {
	if !store.ValidName(name) {
		return store.ErrInvalidName
	}
	_, err := b.sqlDB.ExecContext(ctx,
		`INSERT INTO cache_stores (name, created_at) VALUES (?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("create cache store: %w", err)
	}
	return nil
}

func (b *Backend) Stores(ctx context.Context) ([]string, error) {
	rows, err := b.sqlDB.QueryContext(ctx, `SELECT name FROM cache_stores ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list cache stores: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan cache store: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache stores: %w", err)
	}
	return names, nil
}

func (b *Backend) Drop(ctx context.Context, name string) (bool, error) {
	tx, err := b.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin drop: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE store_name = ?`, name); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("drop cache entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cache_stores WHERE name = ?`, name)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("drop cache store: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit drop: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (b *Backend) Get(ctx context.Context, name, key string) (store.Entry, bool, error) {
	if err := b.requireStore(ctx, name); err != nil {
		return store.Entry{}, false, err
	}

	row := b.sqlDB.QueryRowContext(ctx,
		`SELECT cache_key, method, url, status, header_json, body, stored_at
		 FROM cache_entries
		 WHERE store_name = ? AND cache_key = ?`,
		name, key,
	)

	var entry store.Entry
	var headerJSON string
	var storedAt int64
	if err := row.Scan(&entry.Key, &entry.Method, &entry.URL, &entry.Status, &headerJSON, &entry.Body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Entry{}, false, nil
		}
		return store.Entry{}, false, fmt.Errorf("get cache entry: %w", err)
	}

	entry.Header = http.Header{}
	if err := json.Unmarshal([]byte(headerJSON), &entry.Header); err != nil {
		return store.Entry{}, false, fmt.Errorf("decode cache entry header: %w", err)
	}
	entry.StoredAt = unixMillisToTime(storedAt)
	return entry, true, nil
}

func (b *Backend) Put(ctx context.Context, name string, entry store.Entry) error {
	if err := b.requireStore(ctx, name); err != nil {
		return err
	}

	header := entry.Header
	if header == nil {
		header = http.Header{}
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode cache entry header: %w", err)
	}
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now().UTC()
	}

	_, err = b.sqlDB.ExecContext(ctx,
		`INSERT INTO cache_entries (
		    store_name, cache_key, method, url, status, header_json, body, stored_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(store_name, cache_key) DO UPDATE SET
		    method = excluded.method,
		    url = excluded.url,
		    status = excluded.status,
		    header_json = excluded.header_json,
		    body = excluded.body,
		    stored_at = excluded.stored_at`,
		name,
		entry.Key,
		entry.Method,
		entry.URL,
		entry.Status,
		string(headerJSON),
		entry.Body,
		timeToUnixMillis(entry.StoredAt),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, name, key string) (bool, error) {
	if err := b.requireStore(ctx, name); err != nil {
		return false, err
	}
	res, err := b.sqlDB.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE store_name = ? AND cache_key = ?`, name, key)
	if err != nil {
		return false, fmt.Errorf("delete cache entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (b *Backend) Keys(ctx context.Context, name string) ([]string, error) {
	if err := b.requireStore(ctx, name); err != nil {
		return nil, err
	}
	rows, err := b.sqlDB.QueryContext(ctx,
		`SELECT cache_key FROM cache_entries WHERE store_name = ? ORDER BY cache_key`, name)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache keys: %w", err)
	}
	return keys, nil
}

func (b *Backend) requireStore(ctx context.Context, name string) error {
	var found int
	err := b.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM cache_stores WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNoStore
	}
	if err != nil {
		return fmt.Errorf("lookup cache store: %w", err)
	}
	return nil
}

func timeToUnixMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func unixMillisToTime(value int64) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

var _ store.Backend = (*Backend)(nil)
