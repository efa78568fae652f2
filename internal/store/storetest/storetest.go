// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package storetest is the conformance suite every store.Backend must pass.
package storetest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/brickify/internal/store"
)

// Run exercises a fresh backend returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) store.Backend) {
	t.Helper()

	ctx := context.Background()

	entry := func(key, body string) store.Entry {
		return store.Entry{
			Key:      key,
			Method:   http.MethodGet,
			URL:      key[len("GET "):],
			Status:   http.StatusOK,
			Header:   http.Header{"Content-Type": {"text/plain"}},
			Body:     []byte(body),
			StoredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}
	}

	t.Run("create and list stores", func(t *testing.T) {
		be := open(t)
		defer be.Close()

		names, err := be.Stores(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		require.NoError(t, be.Create(ctx, "brickify-cache-v2"))
		require.NoError(t, be.Create(ctx, "brickify-cache-v1"))
		require.NoError(t, be.Create(ctx, "brickify-cache-v1"), "create is idempotent")

		names, err = be.Stores(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"brickify-cache-v1", "brickify-cache-v2"}, names)
	})

	t.Run("invalid store name", func(t *testing.T) {
		be := open(t)
		defer be.Close()

		assert.ErrorIs(t, be.Create(ctx, ""), store.ErrInvalidName)
		assert.ErrorIs(t, be.Create(ctx, "a/b"), store.ErrInvalidName)
	})

	t.Run("missing store", func(t *testing.T) {
		be := open(t)
		defer be.Close()

		_, _, err := be.Get(ctx, "nope", "GET http://x/")
		assert.ErrorIs(t, err, store.ErrNoStore)
		assert.ErrorIs(t, be.Put(ctx, "nope", entry("GET http://x/", "x")), store.ErrNoStore)
		_, err = be.Keys(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrNoStore)
		_, err = be.Delete(ctx, "nope", "GET http://x/")
		assert.ErrorIs(t, err, store.ErrNoStore)
	})

	t.Run("put get overwrite", func(t *testing.T) {
		be := open(t)
		defer be.Close()
		require.NoError(t, be.Create(ctx, "v1"))

		_, ok, err := be.Get(ctx, "v1", "GET http://localhost/art/rock")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, be.Put(ctx, "v1", entry("GET http://localhost/art/rock", "first")))
		require.NoError(t, be.Put(ctx, "v1", entry("GET http://localhost/art/rock", "second")))

		got, ok, err := be.Get(ctx, "v1", "GET http://localhost/art/rock")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "GET http://localhost/art/rock", got.Key)
		assert.Equal(t, http.MethodGet, got.Method)
		assert.Equal(t, "http://localhost/art/rock", got.URL)
		assert.Equal(t, http.StatusOK, got.Status)
		assert.Equal(t, "text/plain", got.Header.Get("Content-Type"))
		assert.Equal(t, "second", string(got.Body))
		assert.True(t, got.StoredAt.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
	})

	t.Run("keys and delete", func(t *testing.T) {
		be := open(t)
		defer be.Close()
		require.NoError(t, be.Create(ctx, "v1"))

		for _, k := range []string{"GET http://localhost/static/icon-512.png", "GET http://localhost/", "GET http://localhost/static/icon-192.png"} {
			require.NoError(t, be.Put(ctx, "v1", entry(k, k)))
		}

		keys, err := be.Keys(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"GET http://localhost/",
			"GET http://localhost/static/icon-192.png",
			"GET http://localhost/static/icon-512.png",
		}, keys)

		ok, err := be.Delete(ctx, "v1", "GET http://localhost/")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = be.Delete(ctx, "v1", "GET http://localhost/")
		require.NoError(t, err)
		assert.False(t, ok)

		keys, err = be.Keys(ctx, "v1")
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})

	t.Run("stores are isolated", func(t *testing.T) {
		be := open(t)
		defer be.Close()
		require.NoError(t, be.Create(ctx, "v1"))
		require.NoError(t, be.Create(ctx, "v2"))

		require.NoError(t, be.Put(ctx, "v1", entry("GET http://localhost/", "old")))

		_, ok, err := be.Get(ctx, "v2", "GET http://localhost/")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("drop", func(t *testing.T) {
		be := open(t)
		defer be.Close()
		require.NoError(t, be.Create(ctx, "v1"))
		require.NoError(t, be.Put(ctx, "v1", entry("GET http://localhost/", "x")))

		ok, err := be.Drop(ctx, "v1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = be.Drop(ctx, "v1")
		require.NoError(t, err)
		assert.False(t, ok)

		names, err := be.Stores(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		// A recreated store starts empty.
		require.NoError(t, be.Create(ctx, "v1"))
		keys, err := be.Keys(ctx, "v1")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}
