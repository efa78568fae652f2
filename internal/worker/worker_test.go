// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/brickify/internal/backend/memory"
	"github.com/staranto/brickify/internal/cache"
	"github.com/staranto/brickify/internal/fetch"
)

func newRuntime(t *testing.T, calls *atomic.Int32) *Runtime {
	t.Helper()
	network := fetch.FetcherFunc(func(_ context.Context, req *fetch.Request) (*fetch.Response, error) {
		calls.Add(1)
		return fetch.NewBufferedResponse(http.StatusOK, nil, []byte("network "+req.Path())), nil
	})
	return New(Scope{Caches: cache.NewStorage(memory.New()), Network: network})
}

func mustRequest(t *testing.T, path string) *fetch.Request {
	t.Helper()
	req, err := fetch.NewRequest("", "http://localhost:5000"+path)
	require.NoError(t, err)
	return req
}

func body(t *testing.T, resp *fetch.Response) string {
	t.Helper()
	data, err := resp.Bytes()
	require.NoError(t, err)
	return string(data)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "parsed", Parsed.String())
	assert.Equal(t, "activated", Activated.String())
	assert.Equal(t, "redundant", Redundant.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestInstall_Activates(t *testing.T) {
	var calls atomic.Int32
	rt := newRuntime(t, &calls)
	assert.Equal(t, Parsed, rt.State())

	var order []int
	rt.OnInstall(func(_ context.Context, scope Scope) error {
		assert.NotNil(t, scope.Caches)
		order = append(order, 1)
		return nil
	})
	rt.OnInstall(func(context.Context, Scope) error {
		order = append(order, 2)
		return nil
	})

	require.NoError(t, rt.Install(context.Background()))
	assert.Equal(t, Activated, rt.State())
	assert.Equal(t, []int{1, 2}, order)

	assert.Error(t, rt.Install(context.Background()))
}

func TestInstall_FailureMakesRedundant(t *testing.T) {
	var calls atomic.Int32
	rt := newRuntime(t, &calls)

	boom := errors.New("boom")
	rt.OnInstall(func(context.Context, Scope) error { return boom })
	var handled bool
	rt.OnFetch(func(context.Context, *FetchEvent) (*fetch.Response, error) {
		handled = true
		return fetch.NewBufferedResponse(http.StatusOK, nil, nil), nil
	})

	err := rt.Install(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Redundant, rt.State())

	resp, err := rt.Fetch(context.Background(), mustRequest(t, "/"))
	require.NoError(t, err)
	assert.Equal(t, "network /", body(t, resp))
	assert.False(t, handled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_BeforeInstallPassesThrough(t *testing.T) {
	var calls atomic.Int32
	rt := newRuntime(t, &calls)
	rt.OnFetch(func(context.Context, *FetchEvent) (*fetch.Response, error) {
		t.Fatal("handler must not run before activation")
		return nil, nil
	})

	resp, err := rt.Fetch(context.Background(), mustRequest(t, "/art/a.png"))
	require.NoError(t, err)
	assert.Equal(t, "network /art/a.png", body(t, resp))
}

func TestFetch_HandlerOrder(t *testing.T) {
	var calls atomic.Int32
	rt := newRuntime(t, &calls)
	rt.OnFetch(func(_ context.Context, ev *FetchEvent) (*fetch.Response, error) {
		if ev.Request.Path() == "/declined" {
			return nil, nil
		}
		return fetch.NewBufferedResponse(http.StatusOK, nil, []byte("first")), nil
	})
	rt.OnFetch(func(context.Context, *FetchEvent) (*fetch.Response, error) {
		return nil, nil
	})
	require.NoError(t, rt.Install(context.Background()))

	resp, err := rt.Fetch(context.Background(), mustRequest(t, "/index.html"))
	require.NoError(t, err)
	assert.Equal(t, "first", body(t, resp))
	assert.Equal(t, int32(0), calls.Load())

	resp, err = rt.Fetch(context.Background(), mustRequest(t, "/declined"))
	require.NoError(t, err)
	assert.Equal(t, "network /declined", body(t, resp))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_HandlerError(t *testing.T) {
	var calls atomic.Int32
	rt := newRuntime(t, &calls)
	boom := errors.New("offline")
	rt.OnFetch(func(context.Context, *FetchEvent) (*fetch.Response, error) {
		return nil, boom
	})
	require.NoError(t, rt.Install(context.Background()))

	_, err := rt.Fetch(context.Background(), mustRequest(t, "/"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWaitUntil(t *testing.T) {
	var calls atomic.Int32
	rt := newRuntime(t, &calls)

	release := make(chan struct{})
	var done atomic.Bool
	rt.OnFetch(func(ctx context.Context, ev *FetchEvent) (*fetch.Response, error) {
		ev.WaitUntil(func(context.Context) error {
			<-release
			done.Store(true)
			return errors.New("logged, not returned")
		})
		return fetch.NewBufferedResponse(http.StatusOK, nil, nil), nil
	})
	require.NoError(t, rt.Install(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := rt.Fetch(ctx, mustRequest(t, "/music/a.mp3"))
	require.NoError(t, err)
	cancel()
	assert.False(t, done.Load())

	close(release)
	rt.Wait()
	assert.True(t, done.Load())
}

func TestActivate(t *testing.T) {
	var calls atomic.Int32
	rt := newRuntime(t, &calls)
	rt.OnInstall(func(context.Context, Scope) error {
		t.Fatal("install must not run")
		return nil
	})
	rt.OnFetch(func(context.Context, *FetchEvent) (*fetch.Response, error) {
		return fetch.NewBufferedResponse(http.StatusOK, nil, []byte("handled")), nil
	})

	require.NoError(t, rt.Activate())
	assert.Equal(t, Activated, rt.State())
	assert.Error(t, rt.Activate())
	assert.Error(t, rt.Install(context.Background()))

	resp, err := rt.Fetch(context.Background(), mustRequest(t, "/"))
	require.NoError(t, err)
	assert.Equal(t, "handled", body(t, resp))
	assert.Zero(t, calls.Load())
}
