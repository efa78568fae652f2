// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package disk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/brickify/internal/store"
	"github.com/staranto/brickify/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		be, err := New(t.TempDir())
		require.NoError(t, err)
		return be
	})
}

func TestDir(t *testing.T) {
	dir, ok := Dir("/tmp/override")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/override", dir)

	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")
	dir, ok = Dir("")
	assert.True(t, ok)
	assert.Equal(t, "brickify", filepath.Base(dir))
}

func TestEntryFileIsHashed(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	be, err := New(base)
	require.NoError(t, err)

	require.NoError(t, be.Create(ctx, "brickify-cache-v1"))
	key := "GET http://localhost:5000/static/icon-192.png"
	require.NoError(t, be.Put(ctx, "brickify-cache-v1", store.Entry{Key: key, Status: 200}))

	p := filepath.Join(base, "brickify-cache-v1", store.EncodeKey(key)+".json")
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestKeysSkipsCorruptFiles(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	be, err := New(base)
	require.NoError(t, err)
	require.NoError(t, be.Create(ctx, "v1"))
	require.NoError(t, be.Put(ctx, "v1", store.Entry{Key: "GET http://x/"}))
	require.NoError(t, os.WriteFile(filepath.Join(base, "v1", "junk.json"), []byte("{"), 0o600))

	keys, err := be.Keys(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET http://x/"}, keys)
}

func TestNew_RequiresBase(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
