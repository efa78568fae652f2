// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/brickify/internal/cache"
	"github.com/staranto/brickify/internal/meta"
	"github.com/staranto/brickify/internal/policy"
	"github.com/staranto/brickify/internal/store"
)

type storeRow struct {
	ID      string `jsonapi:"primary,cache-stores"`
	Name    string `jsonapi:"attr,name"`
	Entries int    `jsonapi:"attr,entries"`
	Size    int64  `jsonapi:"attr,size"`
	Current bool   `jsonapi:"attr,current"`
}

type entryRow struct {
	ID          string    `jsonapi:"primary,cache-entries"`
	Method      string    `jsonapi:"attr,method"`
	URL         string    `jsonapi:"attr,url"`
	Path        string    `jsonapi:"attr,path"`
	Status      int       `jsonapi:"attr,status"`
	ContentType string    `jsonapi:"attr,content-type"`
	Size        int64     `jsonapi:"attr,size"`
	Strategy    string    `jsonapi:"attr,strategy"`
	StoredAt    time.Time `jsonapi:"attr,stored-at,iso8601"`
}

// LsCommandAction lists the cache stores or, given a store name, the
// entries in that store.
func LsCommandAction(ctx context.Context, cmd *cli.Command) error {
	log.Debugf("Executing action for %v", GetMeta(cmd).Args[1:])

	name, err := oneArg(cmd)
	if err != nil {
		return err
	}

	w := stdout(cmd)
	rowType := reflect.TypeOf(storeRow{})
	if name != "" {
		rowType = reflect.TypeOf(entryRow{})
	}
	if done, err := DumpSchemaIfRequested(cmd, w, rowType); done {
		return err
	}

	be, err := OpenBackend(ctx, cmd)
	if err != nil {
		return err
	}
	defer be.Close()
	storage := cache.NewStorage(be)

	if name == "" {
		rows, err := storeRows(ctx, storage, cmd.String("cache-name"))
		if err != nil {
			return err
		}
		al, err := BuildAttrs(cmd, "name,entries,size::b,current")
		if err != nil {
			return err
		}
		return EmitJSONAPISlice(rows, al, cmd, w)
	}

	ok, err := storage.Has(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cache store %s: %w", name, store.ErrNoStore)
	}
	c, err := storage.Open(ctx, name)
	if err != nil {
		return err
	}
	entries, err := c.Entries(ctx)
	if err != nil {
		return err
	}

	p := policy.New(nil, policy.WithMediaPrefixes(stringsFromFlagOrConfig(cmd, "media-prefix", "media-prefixes")...))
	rows := make([]*entryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, newEntryRow(e, p))
	}

	al, err := BuildAttrs(cmd, "status,strategy,size::b,stored-at::r,url")
	if err != nil {
		return err
	}
	return EmitJSONAPISlice(rows, al, cmd, w)
}

func storeRows(ctx context.Context, storage *cache.Storage, current string) ([]*storeRow, error) {
	names, err := storage.Names(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]*storeRow, 0, len(names))
	for _, name := range names {
		c, err := storage.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		entries, err := c.Entries(ctx)
		if err != nil {
			return nil, err
		}
		row := &storeRow{ID: name, Name: name, Entries: len(entries), Current: name == current}
		for _, e := range entries {
			row.Size += int64(len(e.Body))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newEntryRow(e store.Entry, p *policy.Policy) *entryRow {
	row := &entryRow{
		ID:       store.EncodeKey(e.Key),
		Method:   e.Method,
		URL:      e.URL,
		Status:   e.Status,
		Size:     int64(len(e.Body)),
		StoredAt: e.StoredAt,
	}
	if e.Header != nil {
		row.ContentType = e.Header.Get("Content-Type")
	}
	if req, err := requestFor(nil, e.Method, e.URL); err == nil {
		row.Path = req.Path()
		row.Strategy = p.Classify(row.Path).String()
	}
	return row
}

// LsCommandBuilder constructs the cli.Command for "ls".
func LsCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "ls",
		Usage:     "list cache stores or the entries of one store",
		UsageText: `brickify ls [options] [STORE]`,
		Flags: flagsOf(
			NewStoreFlags("ls"),
			NewOutputFlags("ls"),
			[]cli.Flag{
				newSchemaFlag(),
				&cli.StringSliceFlag{
					Name:    "media-prefix",
					Usage:   "path prefix served network first (repeatable)",
					Sources: cli.EnvVars("BRICKIFY_MEDIA_PREFIXES"),
				},
			},
		),
		Action: LsCommandAction,
		Meta:   meta,
	}).Build()
}
