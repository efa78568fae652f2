// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"slices"

	"github.com/apex/log"
	"github.com/hashicorp/jsonapi"
	"github.com/urfave/cli/v3"

	"github.com/staranto/brickify/internal/attrs"
	"github.com/staranto/brickify/internal/backend"
	"github.com/staranto/brickify/internal/cache"
	"github.com/staranto/brickify/internal/config"
	"github.com/staranto/brickify/internal/fetch"
	"github.com/staranto/brickify/internal/manifest"
	"github.com/staranto/brickify/internal/meta"
	"github.com/staranto/brickify/internal/output"
	"github.com/staranto/brickify/internal/policy"
	"github.com/staranto/brickify/internal/store"
	"github.com/staranto/brickify/internal/worker"
)

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// DumpSchemaIfRequested prints the attrs of t when --schema is set, and
// returns true if it handled the request.
func DumpSchemaIfRequested(cmd *cli.Command, w io.Writer, t reflect.Type) (bool, error) {
	if !cmd.Bool("schema") {
		return false, nil
	}
	return true, output.DumpSchema(w, t)
}

// BuildAttrs constructs an AttrList with defaults and optional extras from
// --attrs, then applies the global transform spec.
func BuildAttrs(cmd *cli.Command, defaults ...string) (attrs.AttrList, error) {
	var al attrs.AttrList
	for _, d := range defaults {
		if err := al.Set(d); err != nil {
			return nil, err
		}
	}
	if extras := cmd.String("attrs"); extras != "" {
		if err := al.Set(extras); err != nil {
			return nil, fmt.Errorf("--attrs: %w", err)
		}
	}
	al.SetGlobalTransformSpec()
	return al, nil
}

// EmitJSONAPISlice marshals a slice as JSONAPI and passes it to the common
// output routine.
func EmitJSONAPISlice(results any, al attrs.AttrList, cmd *cli.Command, w io.Writer) error {
	var raw bytes.Buffer
	if err := jsonapi.MarshalPayload(&raw, results); err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return output.SliceDiceSpit(raw, al, outputOptions(cmd), "data", w)
}

// OpenBackend opens the backend selected by the store flags.
func OpenBackend(ctx context.Context, cmd *cli.Command) (store.Backend, error) {
	dir := cmd.String("cache-dir")
	if dir == "" {
		dir = GetMeta(cmd).Env.CacheDir
	}
	return backend.NewBackend(ctx, backend.Options{
		Type:     cmd.String("backend"),
		Dir:      dir,
		DB:       cmd.String("db"),
		Bucket:   cmd.String("bucket"),
		Prefix:   cmd.String("prefix"),
		Region:   cmd.String("region"),
		Profile:  cmd.String("profile"),
		Endpoint: cmd.String("endpoint"),
	})
}

// Session is one worker lifecycle: a backend, a network client and a runtime
// with the policy registered.
type Session struct {
	Runtime *worker.Runtime
	Policy  *policy.Policy
	Backend store.Backend
	Client  *fetch.Client
}

// Close drains background cache writes and releases the backend.
func (s *Session) Close() error {
	s.Runtime.Wait()
	s.Client.CloseIdleConnections()
	return s.Backend.Close()
}

// NewSession builds the worker for cmd. When caching is disabled through
// BRICKIFY_CACHE the policy is not registered and every request passes
// straight through to the network.
func NewSession(ctx context.Context, cmd *cli.Command) (*Session, error) {
	origin, err := url.Parse(cmd.String("origin"))
	if err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}

	fc := fetch.DefaultConfig()
	fc.Timeout = cmd.Duration("timeout")
	fc.Token = cmd.String("token")
	client := fetch.NewClient(fc)

	assets, err := resolveAssets(ctx, cmd, client, origin)
	if err != nil {
		return nil, err
	}

	be, err := OpenBackend(ctx, cmd)
	if err != nil {
		return nil, err
	}

	p := policy.New(origin,
		policy.WithCacheName(cmd.String("cache-name")),
		policy.WithAssets(assets...),
		policy.WithMediaPrefixes(stringsFromFlagOrConfig(cmd, "media-prefix", "media-prefixes")...),
	)

	rt := worker.New(worker.Scope{Caches: cache.NewStorage(be), Network: client})
	if GetMeta(cmd).Env.CacheEnabled {
		p.Register(rt)
	} else {
		log.Warn("caching disabled by BRICKIFY_CACHE")
	}

	return &Session{Runtime: rt, Policy: p, Backend: be, Client: client}, nil
}

// Start installs the worker, or with --no-install activates the one a
// previous run installed. An install failure leaves the session usable: the
// worker is redundant and passes requests through.
func (s *Session) Start(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("install") {
		return s.Runtime.Activate()
	}
	if err := s.Runtime.Install(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.WithError(err).Warnf("worker is %s; requests go straight to %s", s.Runtime.State(), s.Policy.Origin)
	}
	return nil
}

// installs reports whether Start will run install. Commands without an
// --install flag always install.
func installs(cmd *cli.Command) bool {
	for _, f := range cmd.Flags {
		if slices.Contains(f.Names(), "install") {
			return cmd.Bool("install")
		}
	}
	return true
}

// resolveAssets merges --asset (or the config assets list, or the default
// manifest) with the web manifest icons when --web-manifest is set and the
// command is going to install.
func resolveAssets(ctx context.Context, cmd *cli.Command, network fetch.Fetcher, origin *url.URL) ([]string, error) {
	assets := stringsFromFlagOrConfig(cmd, "asset", "assets")
	if len(assets) == 0 {
		assets = policy.DefaultAssets
	}

	path := cmd.String("web-manifest")
	if path == "" || !installs(cmd) {
		return manifest.Merge(assets), nil
	}
	icons, err := manifest.WebManifest(ctx, network, origin, path)
	if err != nil {
		return nil, err
	}
	return manifest.Merge(assets, icons), nil
}

// stringsFromFlagOrConfig returns the repeatable flag's values, falling back
// to the config list under key (namespaced by the command, then global).
func stringsFromFlagOrConfig(cmd *cli.Command, flag, key string) []string {
	if v := cmd.StringSlice(flag); len(v) > 0 {
		return v
	}
	v, _ := config.GetStringSlice(key)
	return v
}
