// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/apex/log"
	"golang.org/x/oauth2"
)

// Fetcher performs a network request. An error means the network failed; an
// HTTP error status is still a successful fetch.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Config holds the transport settings for Client.
type Config struct {
	// Timeout bounds the whole exchange, including reading the body. Zero
	// means no client-side timeout.
	Timeout         time.Duration
	DialTimeout     time.Duration
	KeepAlive       time.Duration
	TLSHandshake    time.Duration
	IdleConnTimeout time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int

	UserAgent string
	// Token, when set, is sent as a bearer token on every request.
	Token string
}

// DefaultConfig returns transport defaults suitable for a local origin.
func DefaultConfig() Config {
	return Config{
		DialTimeout:         5 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshake:        5 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		UserAgent:           "brickify",
	}
}

// Client is the network Fetcher backed by net/http.
type Client struct {
	http *http.Client
}

// userAgentRoundTripper sets the User-Agent header on a copy of each request.
type userAgentRoundTripper struct {
	wrapped   http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.userAgent)
	return rt.wrapped.RoundTrip(clone)
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	var tr http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshake,
	}

	if cfg.UserAgent != "" {
		tr = &userAgentRoundTripper{wrapped: tr, userAgent: cfg.UserAgent}
	}

	if cfg.Token != "" {
		tr = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
			Base:   tr,
		}
	}

	return &Client{
		http: &http.Client{
			Transport: tr,
			Timeout:   cfg.Timeout,
		},
	}
}

// NewClientWith wraps an existing http.Client. Used by tests and by callers
// that already own a tuned client.
func NewClientWith(c *http.Client) *Client {
	return &Client{http: c}
}

// Fetch implements Fetcher. The returned body streams from the network and
// must be consumed or closed by the caller.
func (c *Client) Fetch(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vv := range req.Header {
		for _, v := range vv {
			hreq.Header.Add(k, v)
		}
	}

	start := time.Now()
	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request %s: %w", req.Key(), err)
	}
	log.Debugf("network %s -> %d in %s", req.Key(), hresp.StatusCode, time.Since(start))

	resp := NewResponse(hresp.StatusCode, hresp.Header.Clone(), hresp.Body)
	resp.URL = hresp.Request.URL.String()
	return resp, nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}
