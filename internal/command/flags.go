// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/brickify/internal/backend"
	"github.com/staranto/brickify/internal/config"
	"github.com/staranto/brickify/internal/output"
	"github.com/staranto/brickify/internal/policy"
)

func init() {
	cfg, _ = config.Load("")
}

var cfg config.Type

func newSchemaFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "schema",
		Usage:       "list the attributes available to --attrs",
		HideDefault: true,
	}
}

func newDryRunFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "dry-run",
		Aliases:     []string{"n"},
		Usage:       "report what would be done without doing it",
		HideDefault: true,
	}
}

func newInstallFlag() *cli.BoolWithInverseFlag {
	return &cli.BoolWithInverseFlag{
		Name:  "install",
		Usage: "run install before handling requests; --no-install reuses the installed cache",
		Value: true,
	}
}

// yamlSources chains the namespaced and global config file keys for name.
func yamlSources(ns, name string) []cli.ValueSource {
	return []cli.ValueSource{
		yaml.YAML(ns+"."+name, altsrc.StringSourcer(cfg.Source)),
		yaml.YAML(name, altsrc.StringSourcer(cfg.Source)),
	}
}

// sourceChain is env vars, then the config file.
func sourceChain(ns, name string, envs ...string) cli.ValueSourceChain {
	var chain []cli.ValueSource
	for _, e := range envs {
		chain = append(chain, cli.EnvVar(e))
	}
	chain = append(chain, yamlSources(ns, name)...)
	return cli.NewValueSourceChain(chain...)
}

// NewStoreFlags are the flags selecting the cache backend and store.
func NewStoreFlags(ns string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "cache-name",
			Usage:   "cache store name; change it to start a new cache version",
			Sources: sourceChain(ns, "cache-name", "BRICKIFY_CACHE_NAME"),
			Value:   policy.DefaultCacheName,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, StoreNameValidator)
			},
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "cache backend (disk, memory, sqlite, s3)",
			Sources: sourceChain(ns, "backend", "BRICKIFY_BACKEND"),
			Value:   backend.TypeDisk,
			Validator: func(value string) error {
				return FlagValidators(value, BackendValidator)
			},
		},
		&cli.StringFlag{
			Name:    "cache-dir",
			Usage:   "disk backend directory (default: user cache dir)",
			Sources: sourceChain(ns, "cache-dir", "BRICKIFY_CACHE_DIR"),
		},
		&cli.StringFlag{
			Name:    "db",
			Usage:   "sqlite backend database file (default: <cache-dir>/brickify.db)",
			Sources: sourceChain(ns, "db", "BRICKIFY_DB"),
		},
		&cli.StringFlag{
			Name:    "bucket",
			Usage:   "s3 backend bucket",
			Sources: sourceChain(ns, "s3.bucket", "BRICKIFY_S3_BUCKET"),
		},
		&cli.StringFlag{
			Name:    "prefix",
			Usage:   "s3 backend key prefix",
			Sources: sourceChain(ns, "s3.prefix", "BRICKIFY_S3_PREFIX"),
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "s3 backend region",
			Sources: sourceChain(ns, "s3.region"),
		},
		&cli.StringFlag{
			Name:    "profile",
			Usage:   "s3 backend shared config profile",
			Sources: sourceChain(ns, "s3.profile"),
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "s3 compatible endpoint URL, e.g. a local MinIO",
			Sources: sourceChain(ns, "s3.endpoint", "BRICKIFY_S3_ENDPOINT"),
		},
	}
}

// NewOriginFlags are the flags describing the origin and the asset manifest.
func NewOriginFlags(ns string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "origin",
			Usage:   "origin base URL",
			Sources: sourceChain(ns, "origin", "BRICKIFY_ORIGIN"),
			Value:   "http://localhost:5000",
			Validator: func(value string) error {
				return FlagValidators(value, OriginValidator)
			},
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "bearer token sent to the origin",
			Sources: sourceChain(ns, "token", "BRICKIFY_TOKEN"),
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "network request timeout, 0 for none",
			Sources: sourceChain(ns, "timeout"),
		},
		&cli.StringSliceFlag{
			Name:    "asset",
			Usage:   "asset path to pre-cache at install (repeatable; config key assets)",
			Sources: cli.EnvVars("BRICKIFY_ASSETS"),
		},
		&cli.StringSliceFlag{
			Name:    "media-prefix",
			Usage:   "path prefix served network first (repeatable; config key media-prefixes)",
			Sources: cli.EnvVars("BRICKIFY_MEDIA_PREFIXES"),
		},
		&cli.StringFlag{
			Name:    "web-manifest",
			Usage:   "also pre-cache the icons of the web manifest at this path, e.g. /manifest.json",
			Sources: sourceChain(ns, "web-manifest"),
		},
	}
}

// NewOutputFlags are the presentation flags of listing commands.
func NewOutputFlags(ns string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "attrs",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of attributes to include in results",
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(yamlSources(ns, "color")...),
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format (text, json, yaml, raw)",
			Sources: cli.NewValueSourceChain(yamlSources(ns, "output")...),
			Value:   "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"sort", altsrc.StringSourcer(cfg.Source)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(yamlSources(ns, "titles")...),
			Value:   false,
		},
	}
}

// outputOptions collects the NewOutputFlags values.
func outputOptions(cmd *cli.Command) output.Options {
	return output.Options{
		Format: cmd.String("output"),
		Filter: cmd.String("filter"),
		Sort:   cmd.String("sort"),
		Titles: cmd.Bool("titles"),
		Color:  cmd.Bool("color"),
	}
}
