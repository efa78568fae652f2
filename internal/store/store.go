// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package store defines the persistence contract shared by every cache
// backend. A backend holds any number of named stores, each a mapping from
// request identity to the most recent response.
package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrNoStore is returned when an operation names a store that was never
// created or has been dropped.
var ErrNoStore = errors.New("cache store does not exist")

// ErrInvalidName is returned for empty store names or names containing a path
// separator.
var ErrInvalidName = errors.New("invalid cache store name")

// Entry is a persisted response.
type Entry struct {
	// Key is the clear-text request identity, "METHOD URL".
	Key      string      `json:"key"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	StoredAt time.Time   `json:"stored_at"`
}

// Backend is implemented by every cache persistence layer. Implementations
// must be safe for concurrent use. Entry operations on a missing store return
// ErrNoStore.
type Backend interface {
	// Create makes the named store if it does not exist yet.
	Create(ctx context.Context, name string) error
	// Stores lists store names in ascending order.
	Stores(ctx context.Context) ([]string, error)
	// Drop removes a store and all its entries. It reports whether the store
	// existed.
	Drop(ctx context.Context, name string) (bool, error)

	Get(ctx context.Context, name, key string) (Entry, bool, error)
	Put(ctx context.Context, name string, entry Entry) error
	Delete(ctx context.Context, name, key string) (bool, error)
	// Keys lists the entry keys of a store in ascending order.
	Keys(ctx context.Context, name string) ([]string, error)

	Close() error
}

// EncodeKey hashes k with MD5 and returns the hex string. Backends that need
// a filesystem or object-key safe name for an entry use it.
func EncodeKey(k string) string {
	h := md5.New()
	_, _ = h.Write([]byte(k))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidName reports whether name can be used as a store name.
func ValidName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.TrimSpace(name) != "" && !strings.ContainsAny(name, "/\\")
}
