// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/brickify/internal/cache"
	"github.com/staranto/brickify/internal/fetch"
	"github.com/staranto/brickify/internal/worker"
)

// DefaultCacheName is the current cache version. Bump it to start from an
// empty store; `brickify prune` removes the old ones.
const DefaultCacheName = "brickify-cache-v1"

// DefaultAssets is the manifest pre-cached at install.
var DefaultAssets = []string{"/", "/static/icon-192.png", "/static/icon-512.png"}

// DefaultMediaPrefixes are the path prefixes served network first.
var DefaultMediaPrefixes = []string{"/music/", "/art/"}

// ErrNoResponse is returned for a media request when the network failed and
// the store has nothing for it either.
var ErrNoResponse = errors.New("no response from network or cache")

// Strategy is how a request is answered.
type Strategy int

const (
	CacheFirst Strategy = iota
	NetworkFirst
)

func (s Strategy) String() string {
	if s == NetworkFirst {
		return "network-first"
	}
	return "cache-first"
}

// Policy holds the caching configuration.
type Policy struct {
	// Origin resolves asset paths at install.
	Origin        *url.URL
	CacheName     string
	Assets        []string
	MediaPrefixes []string
}

// Option customizes a Policy.
type Option func(*Policy)

// WithCacheName overrides DefaultCacheName. Empty is ignored.
func WithCacheName(name string) Option {
	return func(p *Policy) {
		if name != "" {
			p.CacheName = name
		}
	}
}

// WithAssets overrides DefaultAssets. An empty list is ignored.
func WithAssets(paths ...string) Option {
	return func(p *Policy) {
		if len(paths) > 0 {
			p.Assets = paths
		}
	}
}

// WithMediaPrefixes overrides DefaultMediaPrefixes. An empty list is ignored.
func WithMediaPrefixes(prefixes ...string) Option {
	return func(p *Policy) {
		if len(prefixes) > 0 {
			p.MediaPrefixes = prefixes
		}
	}
}

// New returns the default policy for origin with opts applied.
func New(origin *url.URL, opts ...Option) *Policy {
	p := &Policy{
		Origin:        origin,
		CacheName:     DefaultCacheName,
		Assets:        append([]string(nil), DefaultAssets...),
		MediaPrefixes: append([]string(nil), DefaultMediaPrefixes...),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register wires the policy's handlers into rt.
func (p *Policy) Register(rt *worker.Runtime) {
	rt.OnInstall(p.Install)
	rt.OnFetch(p.Fetch)
}

// Classify picks the strategy for a request path. Matching is a plain,
// case-sensitive prefix test.
func (p *Policy) Classify(path string) Strategy {
	for _, prefix := range p.MediaPrefixes {
		if strings.HasPrefix(path, prefix) {
			return NetworkFirst
		}
	}
	return CacheFirst
}

// Requests resolves the asset manifest against the origin.
func (p *Policy) Requests() ([]*fetch.Request, error) {
	reqs := make([]*fetch.Request, 0, len(p.Assets))
	for _, path := range p.Assets {
		req, err := fetch.Resolve(p.Origin, path)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Install opens the cache store and adds every asset to it. Either all
// assets are stored or none are.
func (p *Policy) Install(ctx context.Context, scope worker.Scope) error {
	reqs, err := p.Requests()
	if err != nil {
		return err
	}
	c, err := p.open(ctx, scope.Caches)
	if err != nil {
		return err
	}
	if err := c.AddAll(ctx, scope.Network, reqs); err != nil {
		return fmt.Errorf("%s: %w", p.CacheName, err)
	}
	log.Debugf("installed %d assets into %s", len(reqs), p.CacheName)
	return nil
}

// Fetch answers every request; it never declines.
func (p *Policy) Fetch(ctx context.Context, ev *worker.FetchEvent) (*fetch.Response, error) {
	if p.Classify(ev.Request.Path()) == NetworkFirst {
		return p.networkFirst(ctx, ev)
	}
	return p.cacheFirst(ctx, ev)
}

func (p *Policy) networkFirst(ctx context.Context, ev *worker.FetchEvent) (*fetch.Response, error) {
	req := ev.Request
	resp, netErr := ev.Scope.Network.Fetch(ctx, req)
	if netErr == nil {
		if partial(req, resp) {
			log.Debugf("not caching partial response for %s", req.Key())
			return resp, nil
		}
		// A body that breaks while buffering counts as a network failure.
		clone, err := resp.Clone()
		if err == nil {
			ev.WaitUntil(func(ctx context.Context) error {
				c, err := p.open(ctx, ev.Scope.Caches)
				if err != nil {
					return err
				}
				return c.Put(ctx, req, clone)
			})
			return resp, nil
		}
		netErr = err
	}

	log.WithError(netErr).Debugf("network failed for %s, trying %s", req.Key(), p.CacheName)
	cached, ok, err := p.match(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, netErr)
	}
	return cached, nil
}

// partial reports whether resp answers only part of the resource.
func partial(req *fetch.Request, resp *fetch.Response) bool {
	return resp.Status == http.StatusPartialContent || req.Header.Get("Range") != ""
}

func (p *Policy) cacheFirst(ctx context.Context, ev *worker.FetchEvent) (*fetch.Response, error) {
	cached, ok, err := p.match(ctx, ev)
	if err != nil {
		log.WithError(err).Warnf("cache lookup failed for %s", ev.Request.Key())
	}
	if ok {
		return cached, nil
	}
	return ev.Scope.Network.Fetch(ctx, ev.Request)
}

func (p *Policy) match(ctx context.Context, ev *worker.FetchEvent) (*fetch.Response, bool, error) {
	c, err := p.open(ctx, ev.Scope.Caches)
	if err != nil {
		return nil, false, err
	}
	return c.Match(ctx, ev.Request)
}

func (p *Policy) open(ctx context.Context, caches *cache.Storage) (*cache.Cache, error) {
	return caches.Open(ctx, p.CacheName)
}
