// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/brickify/internal/meta"
)

// InstallCommandAction pre-caches the asset manifest and reports the
// resulting worker state. Unlike fetch and serve, an install failure is an
// error here.
func InstallCommandAction(ctx context.Context, cmd *cli.Command) error {
	log.Debugf("Executing action for %v", GetMeta(cmd).Args[1:])

	s, err := NewSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Warn("failed to close session")
		}
	}()

	w := stdout(cmd)
	if cmd.Bool("dry-run") {
		for _, a := range s.Policy.Assets {
			fmt.Fprintln(w, a)
		}
		return nil
	}

	if err := s.Runtime.Install(ctx); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d assets, worker %s\n", s.Policy.CacheName, len(s.Policy.Assets), s.Runtime.State())
	for _, a := range s.Policy.Assets {
		fmt.Fprintf(w, "  %s\n", a)
	}
	return nil
}

// InstallCommandBuilder constructs the cli.Command for "install".
func InstallCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "install",
		Usage:     "pre-cache the asset manifest",
		UsageText: `brickify install [options]`,
		Flags: flagsOf(
			NewOriginFlags("install"),
			NewStoreFlags("install"),
			[]cli.Flag{newDryRunFlag()},
		),
		Action: InstallCommandAction,
		Meta:   meta,
	}).Build()
}
