// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/staranto/brickify/internal/fetch"
	"github.com/staranto/brickify/internal/meta"
)

// FetchCommandAction routes each argument through the worker and reports
// the status, size and strategy of the response. With --body the response
// bodies are written to stdout instead.
func FetchCommandAction(ctx context.Context, cmd *cli.Command) error {
	log.Debugf("Executing action for %v", GetMeta(cmd).Args[1:])

	if cmd.Args().Len() == 0 {
		return errors.New("at least one path or url is required")
	}

	s, err := NewSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Warn("failed to close session")
		}
	}()

	if err := s.Start(ctx, cmd); err != nil {
		return err
	}

	w := stdout(cmd)
	showBody := cmd.Bool("body")

	var errs []error
	for _, arg := range cmd.Args().Slice() {
		req, err := requestFor(s.Policy.Origin, cmd.String("method"), arg)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		resp, err := s.Runtime.Fetch(ctx, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req, err))
			if !showBody {
				fmt.Fprintf(w, "ERR  %s  %v\n", req, err)
			}
			continue
		}

		data, err := resp.Bytes()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req, err))
			continue
		}

		if showBody {
			if _, err := w.Write(data); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "%d  %s  %s  %s\n",
			resp.Status,
			humanize.Bytes(uint64(len(data))),
			s.Policy.Classify(req.Path()),
			req)
	}

	return errors.Join(errs...)
}

// requestFor turns an argument into a request. Absolute URLs are used as is,
// anything else is a path resolved against origin.
func requestFor(origin *url.URL, method, arg string) (*fetch.Request, error) {
	if strings.Contains(arg, "://") {
		return fetch.NewRequest(method, arg)
	}
	req, err := fetch.Resolve(origin, arg)
	if err != nil {
		return nil, err
	}
	if method != "" {
		req.Method = strings.ToUpper(method)
	}
	return req, nil
}

// FetchCommandBuilder constructs the cli.Command for "fetch".
func FetchCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "fetch",
		Usage:     "fetch paths through the caching worker",
		UsageText: `brickify fetch [options] PATH|URL...`,
		Flags: flagsOf(
			NewOriginFlags("fetch"),
			NewStoreFlags("fetch"),
			[]cli.Flag{
				newInstallFlag(),
				&cli.StringFlag{
					Name:    "method",
					Aliases: []string{"X"},
					Usage:   "request method",
					Value:   "GET",
				},
				&cli.BoolFlag{
					Name:        "body",
					Usage:       "write response bodies to stdout",
					HideDefault: true,
				},
			},
		),
		Action: FetchCommandAction,
		Meta:   meta,
	}).Build()
}
