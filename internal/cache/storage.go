// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/staranto/brickify/internal/store"
)

// Storage is the set of named caches held by one backend.
type Storage struct {
	backend store.Backend
	now     func() time.Time
}

// NewStorage wraps backend.
func NewStorage(backend store.Backend) *Storage {
	return &Storage{backend: backend, now: time.Now}
}

// Open returns the named cache, creating it if absent.
func (s *Storage) Open(ctx context.Context, name string) (*Cache, error) {
	if err := s.backend.Create(ctx, name); err != nil {
		return nil, fmt.Errorf("failed to open cache %q: %w", name, err)
	}
	return &Cache{name: name, backend: s.backend, now: s.now}, nil
}

// Has reports whether a cache with this name exists.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}

// Names lists every cache in ascending order.
func (s *Storage) Names(ctx context.Context) ([]string, error) {
	names, err := s.backend.Stores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}
	return names, nil
}

// Delete drops the named cache and reports whether it existed.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	ok, err := s.backend.Drop(ctx, name)
	if err != nil {
		return ok, fmt.Errorf("failed to delete cache %q: %w", name, err)
	}
	return ok, nil
}
