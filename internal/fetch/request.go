// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is an outgoing request as seen by the worker. The cache keys on
// method and URL only; Body is forwarded to the network and never stored.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// NewRequest parses rawURL and returns a Request. An empty method means GET.
func NewRequest(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse request url %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("request url %q is not absolute", rawURL)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method: strings.ToUpper(method),
		URL:    u,
		Header: http.Header{},
	}, nil
}

// Resolve builds a GET request for path relative to origin. It is how
// manifest paths such as "/static/icon-192.png" become requests.
func Resolve(origin *url.URL, path string) (*Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse path %q: %w", path, err)
	}
	return &Request{
		Method: http.MethodGet,
		URL:    origin.ResolveReference(ref),
		Header: http.Header{},
	}, nil
}

// FromHTTP converts an inbound proxy request into a Request aimed at origin.
// Only the path and query of r are kept.
func FromHTTP(r *http.Request, origin *url.URL) *Request {
	u := *origin
	u.Path = r.URL.Path
	u.RawPath = r.URL.RawPath
	u.RawQuery = r.URL.RawQuery
	u.Fragment = ""

	return &Request{
		Method: r.Method,
		URL:    &u,
		Header: r.Header.Clone(),
	}
}

// Path returns the URL path, "/" when empty.
func (r *Request) Path() string {
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// Key is the request identity used by cache stores: method and URL without
// fragment.
func (r *Request) Key() string {
	u := *r.URL
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return r.Method + " " + u.String()
}

func (r *Request) String() string {
	return r.Key()
}
