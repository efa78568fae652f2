// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package manifest builds the asset manifest pre-cached at install. Paths
// come from configuration and, optionally, from the icons listed in the
// origin's PWA web manifest.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"github.com/staranto/brickify/internal/fetch"
)

// WebManifestPath is where the origin serves its web manifest.
const WebManifestPath = "/manifest.json"

// ErrInvalidWebManifest is returned when the web manifest is not JSON.
var ErrInvalidWebManifest = errors.New("web manifest is not valid JSON")

// Merge concatenates lists, dropping blanks and repeats. First occurrence
// wins, so order is preserved.
func Merge(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, p := range list {
			p = strings.TrimSpace(p)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Icons returns the icons[].src values of a web manifest, as written.
func Icons(data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidWebManifest
	}
	var srcs []string
	gjson.GetBytes(data, "icons.#.src").ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			srcs = append(srcs, v.String())
		}
		return true
	})
	return srcs, nil
}

// WebManifest fetches the web manifest at path from origin and returns the
// manifest path followed by its same-origin icon paths. Icon sources are
// resolved against the manifest URL.
func WebManifest(ctx context.Context, network fetch.Fetcher, origin *url.URL, path string) ([]string, error) {
	if path == "" {
		path = WebManifestPath
	}
	req, err := fetch.Resolve(origin, path)
	if err != nil {
		return nil, err
	}
	resp, err := network.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch web manifest: %w", err)
	}
	data, err := resp.Bytes()
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("failed to fetch web manifest %s: status %d", req.URL, resp.Status)
	}

	srcs, err := Icons(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.URL, err)
	}

	paths := []string{req.URL.RequestURI()}
	for _, src := range srcs {
		ref, err := url.Parse(src)
		if err != nil {
			log.WithError(err).Warnf("skipping icon %q", src)
			continue
		}
		u := req.URL.ResolveReference(ref)
		if u.Scheme != origin.Scheme || u.Host != origin.Host {
			log.Debugf("skipping cross-origin icon %s", u)
			continue
		}
		paths = append(paths, u.RequestURI())
	}
	return paths, nil
}
