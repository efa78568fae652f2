// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/brickify/internal/backend/memory"
	"github.com/staranto/brickify/internal/fetch"
	"github.com/staranto/brickify/internal/store"
)

const origin = "http://localhost:5000"

func newStorage(t *testing.T) *Storage {
	t.Helper()
	s := NewStorage(memory.New())
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func mustRequest(t *testing.T, path string) *fetch.Request {
	t.Helper()
	req, err := fetch.NewRequest("", origin+path)
	require.NoError(t, err)
	return req
}

// network answers every request with its path as the body, or with the
// status configured for that path.
type network struct {
	calls    atomic.Int32
	statuses map[string]int
	fail     map[string]bool
}

func (n *network) Fetch(_ context.Context, req *fetch.Request) (*fetch.Response, error) {
	n.calls.Add(1)
	if n.fail[req.Path()] {
		return nil, errors.New("connection refused")
	}
	status := http.StatusOK
	if s, ok := n.statuses[req.Path()]; ok {
		status = s
	}
	return fetch.NewBufferedResponse(status, http.Header{"X-Path": {req.Path()}}, []byte(req.Path())), nil
}

func TestStorage_OpenHasNamesDelete(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)

	ok, err := s.Has(ctx, "brickify-cache-v1")
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := s.Open(ctx, "brickify-cache-v1")
	require.NoError(t, err)
	assert.Equal(t, "brickify-cache-v1", c.Name())

	_, err = s.Open(ctx, "brickify-cache-v0")
	require.NoError(t, err)

	names, err := s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"brickify-cache-v0", "brickify-cache-v1"}, names)

	ok, err = s.Delete(ctx, "brickify-cache-v0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, "brickify-cache-v0")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Has(ctx, "brickify-cache-v1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStorage_OpenInvalidName(t *testing.T) {
	_, err := newStorage(t).Open(context.Background(), "a/b")
	assert.Error(t, err)
}

func TestCache_PutMatch(t *testing.T) {
	ctx := context.Background()
	c, err := newStorage(t).Open(ctx, "brickify-cache-v1")
	require.NoError(t, err)

	req := mustRequest(t, "/music/rock/song.mp3")
	_, ok, err := c.Match(ctx, req)
	require.NoError(t, err)
	assert.False(t, ok)

	resp := fetch.NewBufferedResponse(http.StatusPartialContent, http.Header{"Content-Type": {"audio/mpeg"}}, []byte("riff"))
	require.NoError(t, c.Put(ctx, req, resp))
	assert.True(t, resp.BodyUsed())

	got, ok, err := c.Match(ctx, req)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, http.StatusPartialContent, got.Status)
	assert.Equal(t, "audio/mpeg", got.Header.Get("Content-Type"))
	assert.Equal(t, origin+"/music/rock/song.mp3", got.URL)
	body, err := got.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "riff", string(body))

	// Every match hands out a fresh body.
	again, _, err := c.Match(ctx, req)
	require.NoError(t, err)
	body, err = again.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "riff", string(body))

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "GET", entries[0].Method)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), entries[0].StoredAt)
}

func TestCache_PutUsedBody(t *testing.T) {
	ctx := context.Background()
	c, err := newStorage(t).Open(ctx, "brickify-cache-v1")
	require.NoError(t, err)

	resp := fetch.NewBufferedResponse(http.StatusOK, nil, []byte("x"))
	_, err = resp.Bytes()
	require.NoError(t, err)

	err = c.Put(ctx, mustRequest(t, "/"), resp)
	assert.ErrorIs(t, err, fetch.ErrBodyUsed)
}

func TestCache_MatchAfterDrop(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	c, err := s.Open(ctx, "brickify-cache-v1")
	require.NoError(t, err)

	_, err = s.Delete(ctx, "brickify-cache-v1")
	require.NoError(t, err)

	_, _, err = c.Match(ctx, mustRequest(t, "/"))
	assert.Error(t, err)
}

func TestCache_AddAll(t *testing.T) {
	ctx := context.Background()
	c, err := newStorage(t).Open(ctx, "brickify-cache-v1")
	require.NoError(t, err)

	net := &network{}
	paths := []string{"/", "/index.html", "/manifest.json", "/static/icon-192.png", "/static/icon-512.png"}
	var reqs []*fetch.Request
	for _, p := range paths {
		reqs = append(reqs, mustRequest(t, p))
	}

	require.NoError(t, c.AddAll(ctx, net, reqs))
	assert.Equal(t, int32(5), net.calls.Load())

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 5)

	got, ok, err := c.Match(ctx, mustRequest(t, "/manifest.json"))
	require.NoError(t, err)
	require.True(t, ok)
	body, _ := got.Bytes()
	assert.Equal(t, "/manifest.json", string(body))
}

func TestCache_AddAllIsAtomic(t *testing.T) {
	tests := []struct {
		name string
		net  *network
	}{
		{name: "bad status", net: &network{statuses: map[string]int{"/static/icon-512.png": http.StatusNotFound}}},
		{name: "network failure", net: &network{fail: map[string]bool{"/manifest.json": true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, err := newStorage(t).Open(ctx, "brickify-cache-v1")
			require.NoError(t, err)

			reqs := []*fetch.Request{
				mustRequest(t, "/"),
				mustRequest(t, "/manifest.json"),
				mustRequest(t, "/static/icon-512.png"),
			}
			assert.Error(t, c.AddAll(ctx, tt.net, reqs))

			keys, err := c.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

// failingPut is a memory backend whose Put fails for one key.
type failingPut struct {
	store.Backend
	key string
}

func (f *failingPut) Put(ctx context.Context, name string, e store.Entry) error {
	if e.Key == f.key {
		return errors.New("disk full")
	}
	return f.Backend.Put(ctx, name, e)
}

func TestCache_AddAllRollsBackOnPutFailure(t *testing.T) {
	ctx := context.Background()
	reqs := []*fetch.Request{
		mustRequest(t, "/"),
		mustRequest(t, "/manifest.json"),
		mustRequest(t, "/static/icon-512.png"),
	}
	be := &failingPut{Backend: memory.New(), key: reqs[2].Key()}
	storage := NewStorage(be)
	c, err := storage.Open(ctx, "brickify-cache-v1")
	require.NoError(t, err)

	// An older "/" must survive the failed call.
	old := fetch.NewBufferedResponse(http.StatusOK, nil, []byte("old root"))
	require.NoError(t, c.Put(ctx, reqs[0], old))

	err = c.AddAll(ctx, &network{}, reqs)
	require.ErrorContains(t, err, "disk full")

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{reqs[0].Key()}, keys)

	resp, ok, err := c.Match(ctx, reqs[0])
	require.NoError(t, err)
	require.True(t, ok)
	data, err := resp.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "old root", string(data))
}

func TestCache_AddBadStatus(t *testing.T) {
	ctx := context.Background()
	c, err := newStorage(t).Open(ctx, "brickify-cache-v1")
	require.NoError(t, err)

	err = c.Add(ctx, &network{statuses: map[string]int{"/gone": http.StatusGone}}, mustRequest(t, "/gone"))

	var bse *BadStatusError
	require.ErrorAs(t, err, &bse)
	assert.Equal(t, http.StatusGone, bse.Status)
	assert.Equal(t, "GET "+origin+"/gone", bse.Key)
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c, err := newStorage(t).Open(ctx, "brickify-cache-v1")
	require.NoError(t, err)

	req := mustRequest(t, "/index.html")
	require.NoError(t, c.Add(ctx, &network{}, req))

	ok, err := c.Delete(ctx, req)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Delete(ctx, req)
	require.NoError(t, err)
	assert.False(t, ok)
}
