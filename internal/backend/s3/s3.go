// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package s3 is a store.Backend kept in an S3 bucket. Each store is a key
// prefix holding a marker object and one JSON object per entry:
//
//	<prefix><store>/.store
//	<prefix><store>/entries/<md5(key)>.json
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/staranto/brickify/internal/store"
)

const (
	markerName    = ".store"
	entriesPrefix = "entries/"
	entrySuffix   = ".json"
)

// API is the subset of the S3 client the backend needs.
type API interface {
	GetObject(ctx context.Context, params *s3v2.GetObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3v2.PutObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3v2.HeadObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3v2.DeleteObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3v2.ListObjectsV2Input, optFns ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error)
}

// Backend stores cache entries as S3 objects.
type Backend struct {
	client API
	bucket string
	prefix string
}

// New returns a Backend writing to bucket under prefix. A non-empty prefix
// gets a trailing slash if it lacks one.
func New(client API, bucket, prefix string) (*Backend, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Backend{client: client, bucket: bucket, prefix: prefix}, nil
}

func (b *Backend) storePrefix(name string) string {
	return b.prefix + name + "/"
}

func (b *Backend) markerKey(name string) string {
	return b.storePrefix(name) + markerName
}

func (b *Backend) entryKey(name, key string) string {
	return b.storePrefix(name) + entriesPrefix + store.EncodeKey(key) + entrySuffix
}

func (b *Backend) Create(ctx context.Context, name string) error {
	if !store.ValidName(name) {
		return store.ErrInvalidName
	}
	ok, err := b.head(ctx, b.markerKey(name))
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	_, err = b.client.PutObject(ctx, &s3v2.PutObjectInput{
		Bucket: awsv2.String(b.bucket),
		Key:    awsv2.String(b.markerKey(name)),
		Body:   bytes.NewReader([]byte(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to create cache store %s: %w", name, err)
	}
	return nil
}

func (b *Backend) Stores(ctx context.Context) ([]string, error) {
	objects, err := b.list(ctx, b.prefix)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, key := range objects {
		rest := strings.TrimPrefix(key, b.prefix)
		if name, ok := strings.CutSuffix(rest, "/"+markerName); ok && !strings.Contains(name, "/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (b *Backend) Drop(ctx context.Context, name string) (bool, error) {
	if !store.ValidName(name) {
		return false, nil
	}
	ok, err := b.head(ctx, b.markerKey(name))
	if err != nil || !ok {
		return false, err
	}

	objects, err := b.list(ctx, b.storePrefix(name))
	if err != nil {
		return true, err
	}
	// Remove the marker last so a partial drop still shows up as a store.
	for _, key := range objects {
		if key == b.markerKey(name) {
			continue
		}
		if err := b.remove(ctx, key); err != nil {
			return true, err
		}
	}
	if err := b.remove(ctx, b.markerKey(name)); err != nil {
		return true, err
	}
	log.Debugf("removed cache store s3://%s/%s", b.bucket, b.storePrefix(name))
	return true, nil
}

func (b *Backend) Get(ctx context.Context, name, key string) (store.Entry, bool, error) {
	if err := b.requireStore(ctx, name); err != nil {
		return store.Entry{}, false, err
	}
	e, err := b.read(ctx, b.entryKey(name, key))
	if isNotFound(err) {
		return store.Entry{}, false, nil
	}
	if err != nil {
		return store.Entry{}, false, err
	}
	return e, true, nil
}

func (b *Backend) Put(ctx context.Context, name string, entry store.Entry) error {
	if err := b.requireStore(ctx, name); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	_, err = b.client.PutObject(ctx, &s3v2.PutObjectInput{
		Bucket:      awsv2.String(b.bucket),
		Key:         awsv2.String(b.entryKey(name, entry.Key)),
		Body:        bytes.NewReader(data),
		ContentType: awsv2.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, name, key string) (bool, error) {
	if err := b.requireStore(ctx, name); err != nil {
		return false, err
	}
	objKey := b.entryKey(name, key)
	ok, err := b.head(ctx, objKey)
	if err != nil || !ok {
		return false, err
	}
	if err := b.remove(ctx, objKey); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) Keys(ctx context.Context, name string) ([]string, error) {
	if err := b.requireStore(ctx, name); err != nil {
		return nil, err
	}
	objects, err := b.list(ctx, b.storePrefix(name)+entriesPrefix)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, objKey := range objects {
		if !strings.HasSuffix(objKey, entrySuffix) {
			continue
		}
		e, err := b.read(ctx, objKey)
		if err != nil {
			log.WithError(err).Warnf("skipping cache object %s", objKey)
			continue
		}
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Backend) Close() error {
	return nil
}

func (b *Backend) requireStore(ctx context.Context, name string) error {
	if !store.ValidName(name) {
		return store.ErrNoStore
	}
	ok, err := b.head(ctx, b.markerKey(name))
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNoStore
	}
	return nil
}

func (b *Backend) head(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3v2.HeadObjectInput{
		Bucket: awsv2.String(b.bucket),
		Key:    awsv2.String(key),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to head s3 object %s: %w", key, err)
	}
	return true, nil
}

func (b *Backend) read(ctx context.Context, key string) (store.Entry, error) {
	out, err := b.client.GetObject(ctx, &s3v2.GetObjectInput{
		Bucket: awsv2.String(b.bucket),
		Key:    awsv2.String(key),
	})
	if err != nil {
		return store.Entry{}, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return store.Entry{}, fmt.Errorf("failed to read s3 object body: %w", err)
	}
	var e store.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return store.Entry{}, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return e, nil
}

func (b *Backend) remove(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3v2.DeleteObjectInput{
		Bucket: awsv2.String(b.bucket),
		Key:    awsv2.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3 object %s: %w", key, err)
	}
	return nil
}

func (b *Backend) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3v2.NewListObjectsV2Paginator(b.client, &s3v2.ListObjectsV2Input{
		Bucket: awsv2.String(b.bucket),
		Prefix: awsv2.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, awsv2.ToString(obj.Key))
		}
	}
	return keys, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

var _ store.Backend = (*Backend)(nil)
