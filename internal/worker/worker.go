// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/apex/log"

	"github.com/staranto/brickify/internal/cache"
	"github.com/staranto/brickify/internal/fetch"
)

// State is a worker lifecycle state.
type State int

const (
	Parsed State = iota
	Installing
	Installed
	Activated
	Redundant
)

func (s State) String() string {
	switch s {
	case Parsed:
		return "parsed"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Activated:
		return "activated"
	case Redundant:
		return "redundant"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Scope is what handlers may touch.
type Scope struct {
	Caches  *cache.Storage
	Network fetch.Fetcher
}

// InstallFunc prepares the worker. A returned error aborts installation.
type InstallFunc func(ctx context.Context, scope Scope) error

// FetchFunc answers an intercepted request. Returning (nil, nil) declines the
// request so the next handler, or the network, sees it.
type FetchFunc func(ctx context.Context, ev *FetchEvent) (*fetch.Response, error)

// FetchEvent is one intercepted request.
type FetchEvent struct {
	Request *fetch.Request
	Scope   Scope

	rt *Runtime
}

// WaitUntil runs task in the background and keeps the runtime alive until it
// finishes. Task errors are logged.
func (ev *FetchEvent) WaitUntil(task func(ctx context.Context) error) {
	ev.rt.track(ev.Request.Key(), task)
}

// Runtime drives one worker through its lifecycle.
type Runtime struct {
	scope Scope

	mu      sync.RWMutex
	state   State
	install []InstallFunc
	fetch   []FetchFunc

	pending sync.WaitGroup
}

// New returns a Runtime in the Parsed state.
func New(scope Scope) *Runtime {
	return &Runtime{scope: scope, state: Parsed}
}

// Scope returns the capabilities handed to handlers.
func (rt *Runtime) Scope() Scope {
	return rt.scope
}

// OnInstall registers an install handler.
func (rt *Runtime) OnInstall(fn InstallFunc) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.install = append(rt.install, fn)
}

// OnFetch registers a fetch handler. Handlers are tried in registration order.
func (rt *Runtime) OnFetch(fn FetchFunc) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.fetch = append(rt.fetch, fn)
}

// State returns the current lifecycle state.
func (rt *Runtime) State() State {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.state
}

func (rt *Runtime) setState(s State) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	log.Debugf("worker state %s -> %s", rt.state, s)
	rt.state = s
}

// Install runs every install handler in order. On success the worker is
// activated; on the first failure it becomes redundant and the error is
// returned. Install may only run once.
func (rt *Runtime) Install(ctx context.Context) error {
	rt.mu.Lock()
	if rt.state != Parsed {
		state := rt.state
		rt.mu.Unlock()
		return fmt.Errorf("worker already %s", state)
	}
	rt.state = Installing
	handlers := append([]InstallFunc(nil), rt.install...)
	rt.mu.Unlock()

	for _, fn := range handlers {
		if err := fn(ctx, rt.scope); err != nil {
			rt.setState(Redundant)
			log.WithError(err).Error("worker install failed")
			return fmt.Errorf("install: %w", err)
		}
	}

	rt.setState(Installed)
	rt.setState(Activated)
	return nil
}

// Activate marks a worker installed by an earlier process as active without
// running the install handlers again.
func (rt *Runtime) Activate() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.state != Parsed {
		return fmt.Errorf("worker already %s", rt.state)
	}
	log.Debugf("worker state %s -> %s", rt.state, Activated)
	rt.state = Activated
	return nil
}

// Fetch dispatches req to the fetch handlers. An inactive worker, or one
// whose handlers all decline, forwards req to the network unchanged.
func (rt *Runtime) Fetch(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	rt.mu.RLock()
	active := rt.state == Activated
	handlers := rt.fetch
	rt.mu.RUnlock()

	if active {
		ev := &FetchEvent{Request: req, Scope: rt.scope, rt: rt}
		for _, fn := range handlers {
			resp, err := fn(ctx, ev)
			if err != nil {
				return nil, err
			}
			if resp != nil {
				return resp, nil
			}
		}
	}
	return rt.scope.Network.Fetch(ctx, req)
}

// Wait blocks until every WaitUntil task has finished.
func (rt *Runtime) Wait() {
	rt.pending.Wait()
}

func (rt *Runtime) track(key string, task func(ctx context.Context) error) {
	rt.pending.Add(1)
	go func() {
		defer rt.pending.Done()
		// Background work outlives the request that started it.
		if err := task(context.Background()); err != nil {
			log.WithError(err).Warnf("background task for %s failed", key)
		}
	}()
}
