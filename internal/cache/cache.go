// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/brickify/internal/fetch"
	"github.com/staranto/brickify/internal/store"
)

// BadStatusError is returned by Add and AddAll when the network answered with
// a non-2xx status.
type BadStatusError struct {
	Key    string
	Status int
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Key, e.Status)
}

// Cache is one named store.
type Cache struct {
	name    string
	backend store.Backend
	now     func() time.Time
}

// Name returns the store name, which doubles as its version tag.
func (c *Cache) Name() string {
	return c.name
}

// Match returns a fresh response for the stored entry under req, if any.
func (c *Cache) Match(ctx context.Context, req *fetch.Request) (*fetch.Response, bool, error) {
	e, ok, err := c.backend.Get(ctx, c.name, req.Key())
	if err != nil {
		return nil, false, fmt.Errorf("failed to match %s in %s: %w", req.Key(), c.name, err)
	}
	if !ok {
		return nil, false, nil
	}
	resp := fetch.NewBufferedResponse(e.Status, e.Header, e.Body)
	resp.URL = e.URL
	return resp, true, nil
}

// Put stores resp under req. It consumes resp's body; clone first if the
// response is still needed.
func (c *Cache) Put(ctx context.Context, req *fetch.Request, resp *fetch.Response) error {
	body, err := resp.Bytes()
	if err != nil {
		return err
	}
	return c.put(ctx, c.entry(req, resp.Status, resp.Header, body))
}

// Add fetches req and stores the response. Non-2xx responses are rejected.
func (c *Cache) Add(ctx context.Context, network fetch.Fetcher, req *fetch.Request) error {
	return c.AddAll(ctx, network, []*fetch.Request{req})
}

// AddAll fetches every request concurrently and stores the responses only if
// all of them succeeded with a 2xx status. On any failure nothing from this
// call is written.
func (c *Cache) AddAll(ctx context.Context, network fetch.Fetcher, reqs []*fetch.Request) error {
	entries := make([]store.Entry, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := network.Fetch(gctx, req)
			if err != nil {
				return err
			}
			body, err := resp.Bytes()
			if err != nil {
				return err
			}
			if !resp.OK() {
				return &BadStatusError{Key: req.Key(), Status: resp.Status}
			}
			entries[i] = c.entry(req, resp.Status, resp.Header, body)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to add all to %s: %w", c.name, err)
	}

	var undo []prior
	for _, e := range entries {
		prev, had, err := c.backend.Get(ctx, c.name, e.Key)
		if err == nil {
			err = c.put(ctx, e)
		}
		if err != nil {
			c.rollback(ctx, undo)
			return fmt.Errorf("failed to add all to %s: %w", c.name, err)
		}
		undo = append(undo, prior{key: e.Key, entry: prev, existed: had})
	}
	log.Debugf("added %d entries to %s", len(entries), c.name)
	return nil
}

// Delete removes the entry for req and reports whether it existed.
func (c *Cache) Delete(ctx context.Context, req *fetch.Request) (bool, error) {
	ok, err := c.backend.Delete(ctx, c.name, req.Key())
	if err != nil {
		return false, fmt.Errorf("failed to delete %s from %s: %w", req.Key(), c.name, err)
	}
	return ok, nil
}

// Keys lists the request identities held by the cache.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.backend.Keys(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys of %s: %w", c.name, err)
	}
	return keys, nil
}

// Entries loads every stored entry in key order.
func (c *Cache) Entries(ctx context.Context) ([]store.Entry, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]store.Entry, 0, len(keys))
	for _, k := range keys {
		e, ok, err := c.backend.Get(ctx, c.name, k)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s from %s: %w", k, c.name, err)
		}
		// Deleted between Keys and Get.
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c *Cache) entry(req *fetch.Request, status int, header http.Header, body []byte) store.Entry {
	return store.Entry{
		Key:      req.Key(),
		Method:   req.Method,
		URL:      req.URL.String(),
		Status:   status,
		Header:   header.Clone(),
		Body:     body,
		StoredAt: c.now().UTC(),
	}
}

func (c *Cache) put(ctx context.Context, e store.Entry) error {
	if err := c.backend.Put(ctx, c.name, e); err != nil {
		return fmt.Errorf("failed to put %s in %s: %w", e.Key, c.name, err)
	}
	return nil
}

// prior is what a key held before AddAll overwrote it.
type prior struct {
	key     string
	entry   store.Entry
	existed bool
}

// rollback restores the keys AddAll already wrote, newest first.
func (c *Cache) rollback(ctx context.Context, undo []prior) {
	for i := len(undo) - 1; i >= 0; i-- {
		p := undo[i]
		var err error
		if p.existed {
			err = c.backend.Put(ctx, c.name, p.entry)
		} else {
			_, err = c.backend.Delete(ctx, c.name, p.key)
		}
		if err != nil {
			log.WithError(err).Errorf("failed to roll back %s in %s", p.key, c.name)
		}
	}
}
