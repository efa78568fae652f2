// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/brickify/internal/meta"
)

const shutdownTimeout = 10 * time.Second

// ServeCommandAction runs the worker behind a local HTTP listener until
// interrupted, then drains in-flight requests and pending cache writes.
func ServeCommandAction(ctx context.Context, cmd *cli.Command) error {
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

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx, cmd); err != nil {
		return err
	}

	addr := cmd.String("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           &ProxyHandler{Runtime: s.Runtime, Origin: s.Policy.Origin},
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	fmt.Fprintf(stdout(cmd), "serving %s on http://%s (worker %s)\n", s.Policy.Origin, addr, s.Runtime.State())
	return g.Wait()
}

// ServeCommandBuilder constructs the cli.Command for "serve".
func ServeCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "serve",
		Usage:     "run the caching worker as a local proxy",
		UsageText: `brickify serve [options]`,
		Flags: flagsOf(
			NewOriginFlags("serve"),
			NewStoreFlags("serve"),
			[]cli.Flag{
				newInstallFlag(),
				&cli.StringFlag{
					Name:    "addr",
					Usage:   "listen address",
					Sources: sourceChain("serve", "addr", "BRICKIFY_ADDR"),
					Value:   "127.0.0.1:8080",
				},
			},
		),
		Action: ServeCommandAction,
		Meta:   meta,
	}).Build()
}
