// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/apex/log"

	"github.com/staranto/brickify/internal/fetch"
	"github.com/staranto/brickify/internal/policy"
	"github.com/staranto/brickify/internal/worker"
)

// maxRequestBody caps uploads forwarded through the proxy.
const maxRequestBody = 64 << 20

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyHandler serves inbound HTTP requests through a worker runtime, the way
// a browser page would see its requests intercepted.
type ProxyHandler struct {
	Runtime *worker.Runtime
	Origin  *url.URL
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	req := fetch.FromHTTP(r, h.Origin)
	req.Body = body
	for _, hh := range hopHeaders {
		req.Header.Del(hh)
	}

	ll := log.WithFields(log.Fields{"method": req.Method, "path": req.Path()})

	resp, err := h.Runtime.Fetch(r.Context(), req)
	if errors.Is(err, policy.ErrNoResponse) {
		// Offline with nothing cached: a network error, no body.
		ll.WithError(err).Warn("no response")
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	if err != nil {
		ll.WithError(err).Error("fetch failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	for _, hh := range hopHeaders {
		resp.Header.Del(hh)
	}
	n, err := resp.Serve(w)
	if err != nil {
		ll.WithError(err).Warn("failed to write response")
		return
	}
	ll.WithFields(log.Fields{"status": resp.Status, "bytes": n}).Debug("served")
}
