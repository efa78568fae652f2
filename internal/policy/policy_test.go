// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/brickify/internal/backend/memory"
	"github.com/staranto/brickify/internal/cache"
	"github.com/staranto/brickify/internal/fetch"
	"github.com/staranto/brickify/internal/worker"
)

var origin, _ = url.Parse("http://localhost:5000")

// origin network: answers "<status> <path>" bodies, can be switched offline
// and counts calls per path.
type network struct {
	mu       sync.Mutex
	offline  bool
	statuses map[string]int
	broken   map[string]bool
	calls    map[string]int
}

func newNetwork() *network {
	return &network{statuses: map[string]int{}, broken: map[string]bool{}, calls: map[string]int{}}
}

func (n *network) Fetch(_ context.Context, req *fetch.Request) (*fetch.Response, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[req.Path()]++
	if n.offline {
		return nil, errors.New("dial tcp: connection refused")
	}
	status := http.StatusOK
	if s, ok := n.statuses[req.Path()]; ok {
		status = s
	}
	header := http.Header{"Content-Type": {"application/octet-stream"}, "X-Origin": {"live"}}
	if n.broken[req.Path()] {
		body := io.MultiReader(strings.NewReader("li"), iotest.ErrReader(errors.New("connection reset")))
		return fetch.NewResponse(status, header, io.NopCloser(body)), nil
	}
	return fetch.NewBufferedResponse(status, header, []byte("live "+req.Path())), nil
}

func (n *network) setOffline(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = v
}

func (n *network) count(path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[path]
}

type fixture struct {
	policy  *Policy
	rt      *worker.Runtime
	net     *network
	storage *cache.Storage
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		policy:  New(origin, opts...),
		net:     newNetwork(),
		storage: cache.NewStorage(memory.New()),
	}
	f.rt = worker.New(worker.Scope{Caches: f.storage, Network: f.net})
	f.policy.Register(f.rt)
	return f
}

func (f *fixture) install(t *testing.T) {
	t.Helper()
	require.NoError(t, f.rt.Install(context.Background()))
	require.Equal(t, worker.Activated, f.rt.State())
}

func (f *fixture) store(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := f.storage.Open(context.Background(), f.policy.CacheName)
	require.NoError(t, err)
	return c
}

// seed stores a recognisable entry for path directly.
func (f *fixture) seed(t *testing.T, path string) {
	t.Helper()
	resp := fetch.NewBufferedResponse(http.StatusOK, http.Header{"X-Origin": {"cached"}}, []byte("cached "+path))
	require.NoError(t, f.store(t).Put(context.Background(), request(t, path), resp))
}

func request(t *testing.T, path string) *fetch.Request {
	t.Helper()
	req, err := fetch.Resolve(origin, path)
	require.NoError(t, err)
	return req
}

func read(t *testing.T, resp *fetch.Response) string {
	t.Helper()
	data, err := resp.Bytes()
	require.NoError(t, err)
	return string(data)
}

func TestNew_Defaults(t *testing.T) {
	p := New(origin)
	assert.Equal(t, "brickify-cache-v1", p.CacheName)
	assert.Equal(t, []string{"/", "/static/icon-192.png", "/static/icon-512.png"}, p.Assets)
	assert.Equal(t, []string{"/music/", "/art/"}, p.MediaPrefixes)

	p = New(origin, WithCacheName(""), WithAssets(), WithMediaPrefixes())
	assert.Equal(t, DefaultCacheName, p.CacheName)
	assert.Equal(t, DefaultAssets, p.Assets)

	p = New(origin, WithCacheName("brickify-cache-v2"), WithAssets("/index.html"), WithMediaPrefixes("/video/"))
	assert.Equal(t, "brickify-cache-v2", p.CacheName)
	assert.Equal(t, []string{"/index.html"}, p.Assets)
	assert.Equal(t, []string{"/video/"}, p.MediaPrefixes)
}

func TestClassify(t *testing.T) {
	p := New(origin)
	tests := []struct {
		path string
		want Strategy
	}{
		{"/music/rock/song.mp3", NetworkFirst},
		{"/art/cover.png", NetworkFirst},
		{"/music/", NetworkFirst},
		{"/music", CacheFirst},
		{"/Music/rock/song.mp3", CacheFirst},
		{"/static/music/x.mp3", CacheFirst},
		{"/", CacheFirst},
		{"/api/playlists", CacheFirst},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Classify(tt.path))
		})
	}
	assert.Equal(t, "network-first", NetworkFirst.String())
	assert.Equal(t, "cache-first", CacheFirst.String())
}

func TestInstall_StoresEveryAsset(t *testing.T) {
	f := newFixture(t)
	f.install(t)

	keys, err := f.store(t).Keys(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"GET http://localhost:5000/",
		"GET http://localhost:5000/static/icon-192.png",
		"GET http://localhost:5000/static/icon-512.png",
	}, keys)
}

func TestInstall_FailureIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.net.statuses["/static/icon-512.png"] = http.StatusNotFound

	err := f.rt.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), DefaultCacheName)

	var bse *cache.BadStatusError
	assert.ErrorAs(t, err, &bse)
	assert.Equal(t, worker.Redundant, f.rt.State())

	keys, err := f.store(t).Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)

	// A redundant worker is transparent.
	f.seed(t, "/index.html")
	resp, err := f.rt.Fetch(context.Background(), request(t, "/index.html"))
	require.NoError(t, err)
	assert.Equal(t, "live /index.html", read(t, resp))
}

func TestFetch_MediaNetworkOK(t *testing.T) {
	for _, path := range []string{"/music/rock/song.mp3", "/art/rock/cover.png"} {
		t.Run(path, func(t *testing.T) {
			f := newFixture(t)
			f.install(t)
			f.net.statuses[path] = http.StatusNotFound

			resp, err := f.rt.Fetch(context.Background(), request(t, path))
			require.NoError(t, err)
			assert.Equal(t, http.StatusNotFound, resp.Status)
			assert.Equal(t, "live", resp.Header.Get("X-Origin"))
			assert.Equal(t, "live "+path, read(t, resp))

			f.rt.Wait()
			cached, ok, err := f.store(t).Match(context.Background(), request(t, path))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, http.StatusNotFound, cached.Status)
			assert.Equal(t, "live", cached.Header.Get("X-Origin"))
			assert.Equal(t, "live "+path, read(t, cached))
		})
	}
}

func TestFetch_MediaPartialNotStored(t *testing.T) {
	tests := []struct {
		name   string
		status int
		rng    string
	}{
		{name: "206 reply", status: http.StatusPartialContent},
		{name: "range request", status: http.StatusOK, rng: "bytes=0-9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.install(t)
			f.seed(t, "/music/rock/whole.mp3")
			f.net.statuses["/music/rock/song.mp3"] = tt.status
			f.net.statuses["/music/rock/whole.mp3"] = tt.status

			for _, path := range []string{"/music/rock/song.mp3", "/music/rock/whole.mp3"} {
				req := request(t, path)
				if tt.rng != "" {
					req.Header.Set("Range", tt.rng)
				}
				resp, err := f.rt.Fetch(context.Background(), req)
				require.NoError(t, err)
				assert.Equal(t, tt.status, resp.Status)
				assert.Equal(t, "live "+path, read(t, resp))
			}
			f.rt.Wait()

			_, ok, err := f.store(t).Match(context.Background(), request(t, "/music/rock/song.mp3"))
			require.NoError(t, err)
			assert.False(t, ok)

			// An existing full entry is left as it was.
			f.net.setOffline(true)
			resp, err := f.rt.Fetch(context.Background(), request(t, "/music/rock/whole.mp3"))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.Status)
			assert.Equal(t, "cached /music/rock/whole.mp3", read(t, resp))
		})
	}
}

func TestFetch_MediaBrokenBodyFallsBackToCache(t *testing.T) {
	f := newFixture(t)
	f.install(t)
	f.seed(t, "/music/a.mp3")
	f.net.broken["/music/a.mp3"] = true
	f.net.broken["/music/b.mp3"] = true

	resp, err := f.rt.Fetch(context.Background(), request(t, "/music/a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "cached /music/a.mp3", read(t, resp))

	_, err = f.rt.Fetch(context.Background(), request(t, "/music/b.mp3"))
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestFetch_MediaNetworkOKRefreshesEntry(t *testing.T) {
	f := newFixture(t)
	f.install(t)
	f.seed(t, "/music/a.mp3")

	resp, err := f.rt.Fetch(context.Background(), request(t, "/music/a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "live /music/a.mp3", read(t, resp))

	f.rt.Wait()
	cached, ok, err := f.store(t).Match(context.Background(), request(t, "/music/a.mp3"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "live /music/a.mp3", read(t, cached))
}

func TestFetch_MediaNetworkFailCacheHit(t *testing.T) {
	f := newFixture(t)
	f.install(t)
	f.seed(t, "/art/cover.png")
	f.net.setOffline(true)

	resp, err := f.rt.Fetch(context.Background(), request(t, "/art/cover.png"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "cached", resp.Header.Get("X-Origin"))
	assert.Equal(t, "cached /art/cover.png", read(t, resp))
	assert.Equal(t, 1, f.net.count("/art/cover.png"))
}

func TestFetch_MediaNetworkFailCacheMiss(t *testing.T) {
	f := newFixture(t)
	f.install(t)
	f.net.setOffline(true)

	resp, err := f.rt.Fetch(context.Background(), request(t, "/music/unknown.mp3"))
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestFetch_DefaultCacheHit(t *testing.T) {
	f := newFixture(t)
	f.install(t)
	f.net.setOffline(true)

	resp, err := f.rt.Fetch(context.Background(), request(t, "/static/icon-192.png"))
	require.NoError(t, err)
	assert.Equal(t, "live /static/icon-192.png", read(t, resp))
	// Only the install fetch reached the network.
	assert.Equal(t, 1, f.net.count("/static/icon-192.png"))

	f.seed(t, "/api/playlists")
	resp, err = f.rt.Fetch(context.Background(), request(t, "/api/playlists"))
	require.NoError(t, err)
	assert.Equal(t, "cached /api/playlists", read(t, resp))
	assert.Zero(t, f.net.count("/api/playlists"))
}

func TestFetch_DefaultCacheMiss(t *testing.T) {
	f := newFixture(t)
	f.install(t)
	f.net.statuses["/api/playlists"] = http.StatusInternalServerError

	resp, err := f.rt.Fetch(context.Background(), request(t, "/api/playlists"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, "live /api/playlists", read(t, resp))
	assert.Equal(t, 1, f.net.count("/api/playlists"))

	f.rt.Wait()
	_, ok, err := f.store(t).Match(context.Background(), request(t, "/api/playlists"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetch_DefaultNetworkFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.install(t)
	f.net.setOffline(true)

	_, err := f.rt.Fetch(context.Background(), request(t, "/api/playlists"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResponse)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFetch_CustomCacheNameIsolated(t *testing.T) {
	f := newFixture(t, WithCacheName("brickify-cache-v2"))
	_, err := f.storage.Open(context.Background(), DefaultCacheName)
	require.NoError(t, err)
	f.install(t)

	old, err := f.storage.Open(context.Background(), DefaultCacheName)
	require.NoError(t, err)
	keys, err := old.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)

	names, err := f.storage.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"brickify-cache-v1", "brickify-cache-v2"}, names)
}
