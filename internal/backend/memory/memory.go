// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package memory is an in-process store.Backend. Nothing survives the
// process; it backs tests and one-shot commands.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/staranto/brickify/internal/store"
)

// Backend keeps every store in a map guarded by a single RWMutex.
type Backend struct {
	mu     sync.RWMutex
	stores map[string]map[string]store.Entry
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{stores: make(map[string]map[string]store.Entry)}
}

func (b *Backend) Create(_ context.Context, name string) error {
	if !store.ValidName(name) {
		return store.ErrInvalidName
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.stores[name]; !ok {
		b.stores[name] = make(map[string]store.Entry)
	}
	return nil
}

func (b *Backend) Stores(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.stores))
	for name := range b.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *Backend) Drop(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.stores[name]
	delete(b.stores, name)
	return ok, nil
}

func (b *Backend) Get(_ context.Context, name, key string) (store.Entry, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries, ok := b.stores[name]
	if !ok {
		return store.Entry{}, false, store.ErrNoStore
	}
	e, ok := entries[key]
	if !ok {
		return store.Entry{}, false, nil
	}
	return cloneEntry(e), true, nil
}

func (b *Backend) Put(_ context.Context, name string, entry store.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, ok := b.stores[name]
	if !ok {
		return store.ErrNoStore
	}
	entries[entry.Key] = cloneEntry(entry)
	return nil
}

func (b *Backend) Delete(_ context.Context, name, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, ok := b.stores[name]
	if !ok {
		return false, store.ErrNoStore
	}
	_, ok = entries[key]
	delete(entries, key)
	return ok, nil
}

func (b *Backend) Keys(_ context.Context, name string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries, ok := b.stores[name]
	if !ok {
		return nil, store.ErrNoStore
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Backend) Close() error {
	return nil
}

// cloneEntry copies the mutable parts so callers can't reach into the map.
func cloneEntry(e store.Entry) store.Entry {
	e.Header = e.Header.Clone()
	if e.Body != nil {
		body := make([]byte, len(e.Body))
		copy(body, e.Body)
		e.Body = body
	}
	return e
}

var _ store.Backend = (*Backend)(nil)
