// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/brickify/internal/cache"
	"github.com/staranto/brickify/internal/meta"
)

// PruneCommandAction deletes every cache store except the current one. This
// is the cleanup step after bumping --cache-name.
func PruneCommandAction(ctx context.Context, cmd *cli.Command) error {
	be, err := OpenBackend(ctx, cmd)
	if err != nil {
		return err
	}
	defer be.Close()

	storage := cache.NewStorage(be)
	names, err := storage.Names(ctx)
	if err != nil {
		return err
	}

	current := cmd.String("cache-name")
	dry := cmd.Bool("dry-run")
	w := stdout(cmd)

	for _, name := range names {
		if name == current {
			continue
		}
		if dry {
			fmt.Fprintf(w, "would delete %s\n", name)
			continue
		}
		if _, err := storage.Delete(ctx, name); err != nil {
			return err
		}
		log.Debugf("pruned %s", name)
		fmt.Fprintf(w, "deleted %s\n", name)
	}
	return nil
}

// PruneCommandBuilder constructs the cli.Command for "prune".
func PruneCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "prune",
		Usage:     "delete cache stores other than the current cache name",
		UsageText: `brickify prune [options]`,
		Flags:     flagsOf(NewStoreFlags("prune"), []cli.Flag{newDryRunFlag()}),
		Action:    PruneCommandAction,
		Meta:      meta,
	}).Build()
}
