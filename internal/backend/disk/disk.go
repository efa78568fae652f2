// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package disk is a store.Backend that keeps one directory per store and one
// JSON file per entry beneath a base cache directory.
package disk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/apex/log"

	"github.com/staranto/brickify/internal/store"
)

const entrySuffix = ".json"

// Backend stores entries as files. Entry filenames are the hashed request
// key; the clear-text key lives inside the file.
type Backend struct {
	base string
	// mu serializes writers; readers rely on rename being atomic.
	mu sync.Mutex
}

// Dir resolves the base cache directory.
// Precedence:
//  1. override, if non-empty (BRICKIFY_CACHE_DIR or --cache-dir)
//  2. os.UserCacheDir()/brickify
//
// Returns ("", false) if a base cannot be resolved.
func Dir(override string) (string, bool) {
	if override != "" {
		return override, true
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "brickify"), true
	}
	return "", false
}

// New creates base if needed and returns a Backend rooted there.
func New(base string) (*Backend, error) {
	if base == "" {
		return nil, errors.New("cache base directory is required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create cache base directory: %w", err)
	}
	return &Backend{base: base}, nil
}

func (b *Backend) storeDir(name string) string {
	return filepath.Join(b.base, name)
}

func (b *Backend) entryPath(name, key string) string {
	return filepath.Join(b.storeDir(name), store.EncodeKey(key)+entrySuffix)
}

func (b *Backend) exists(name string) bool {
	if !store.ValidName(name) {
		return false
	}
	info, err := os.Stat(b.storeDir(name))
	return err == nil && info.IsDir()
}

func (b *Backend) Create(_ context.Context, name string) error {
	if !store.ValidName(name) {
		return store.ErrInvalidName
	}
	if err := os.MkdirAll(b.storeDir(name), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create cache store directory: %w", err)
	}
	return nil
}

func (b *Backend) Stores(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.base)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache base directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (b *Backend) Drop(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.exists(name) {
		return false, nil
	}
	if err := os.RemoveAll(b.storeDir(name)); err != nil {
		return true, fmt.Errorf("failed to remove cache store %s: %w", name, err)
	}
	log.Debugf("removed cache store %s", b.storeDir(name))
	return true, nil
}

func (b *Backend) Get(_ context.Context, name, key string) (store.Entry, bool, error) {
	if !b.exists(name) {
		return store.Entry{}, false, store.ErrNoStore
	}
	e, err := readEntry(b.entryPath(name, key))
	if errors.Is(err, fs.ErrNotExist) {
		return store.Entry{}, false, nil
	}
	if err != nil {
		return store.Entry{}, false, err
	}
	return e, true, nil
}

func (b *Backend) Put(_ context.Context, name string, entry store.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.exists(name) {
		return store.ErrNoStore
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	p := b.entryPath(name, entry.Key)
	tmp, err := os.CreateTemp(b.storeDir(name), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := os.Chmod(tmp.Name(), os.FileMode(0o600)); err != nil { //nolint:mnd
		log.WithError(err).Warnf("failed to chmod %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, name, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.exists(name) {
		return false, store.ErrNoStore
	}
	err := os.Remove(b.entryPath(name, key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove cache entry: %w", err)
	}
	return true, nil
}

func (b *Backend) Keys(_ context.Context, name string) ([]string, error) {
	if !b.exists(name) {
		return nil, store.ErrNoStore
	}
	files, err := os.ReadDir(b.storeDir(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read cache store %s: %w", name, err)
	}

	var keys []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), entrySuffix) {
			continue
		}
		e, err := readEntry(filepath.Join(b.storeDir(name), f.Name()))
		if err != nil {
			// A half-written or foreign file is skipped, not fatal.
			log.WithError(err).Warnf("skipping cache file %s", f.Name())
			continue
		}
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Backend) Close() error {
	return nil
}

func readEntry(p string) (store.Entry, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return store.Entry{}, err
	}
	var e store.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return store.Entry{}, fmt.Errorf("failed to decode cache entry %s: %w", p, err)
	}
	return e, nil
}

var _ store.Backend = (*Backend)(nil)
