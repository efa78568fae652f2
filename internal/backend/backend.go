// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"

	"github.com/staranto/brickify/internal/aws"
	"github.com/staranto/brickify/internal/backend/disk"
	"github.com/staranto/brickify/internal/backend/memory"
	"github.com/staranto/brickify/internal/backend/s3"
	"github.com/staranto/brickify/internal/backend/sqlite"
	"github.com/staranto/brickify/internal/store"
)

// Backend type names accepted by NewBackend.
const (
	TypeMemory = "memory"
	TypeDisk   = "disk"
	TypeSQLite = "sqlite"
	TypeS3     = "s3"
)

// Types lists the accepted backend type names.
var Types = []string{TypeDisk, TypeMemory, TypeSQLite, TypeS3}

var errUnresolvedDir = errors.New("cannot resolve a cache directory; set BRICKIFY_CACHE_DIR")

// Options selects and configures a backend. Fields that do not apply to Type
// are ignored.
type Options struct {
	Type string
	// Dir is the disk backend base directory, and the default home of the
	// SQLite database. Empty means the user cache dir.
	Dir string
	// DB is the SQLite database path.
	DB string

	Bucket   string
	Prefix   string
	Region   string
	Profile  string
	Endpoint string

	// S3 replaces the client built from the AWS config chain. Tests use it.
	S3 s3.API
}

// NewBackend opens the backend named by opts.Type. An empty type means disk.
func NewBackend(ctx context.Context, opts Options) (store.Backend, error) {
	typ := opts.Type
	if typ == "" {
		typ = TypeDisk
	}
	log.Debugf("NewBackend: type: %s", typ)

	switch typ {
	case TypeMemory:
		return memory.New(), nil
	case TypeDisk:
		dir, ok := disk.Dir(opts.Dir)
		if !ok {
			return nil, errUnresolvedDir
		}
		return disk.New(dir)
	case TypeSQLite:
		path := opts.DB
		if path == "" {
			dir, ok := disk.Dir(opts.Dir)
			if !ok {
				return nil, errUnresolvedDir
			}
			if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
			path = filepath.Join(dir, "brickify.db")
		}
		return sqlite.Open(ctx, path)
	case TypeS3:
		client := opts.S3
		if client == nil {
			cfg, err := aws.LoadAWSConfig(ctx,
				aws.WithProfile(opts.Profile),
				aws.WithRegion(opts.Region),
			)
			if err != nil {
				return nil, err
			}
			client = aws.NewS3(cfg, aws.WithS3Endpoint(opts.Endpoint))
		}
		return s3.New(client, opts.Bucket, opts.Prefix)
	}

	return nil, fmt.Errorf("unknown backend type %q (want one of %v)", typ, Types)
}
