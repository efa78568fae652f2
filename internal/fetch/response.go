// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrBodyUsed is returned when a response body is read or cloned after it has
// already been handed out.
var ErrBodyUsed = errors.New("response body already used")

// Response is a status, headers and a body that may be consumed at most once.
// Any code path that both returns a response to its caller and stores it must
// Clone it first.
type Response struct {
	Status int
	Header http.Header
	// URL is the final URL the response was produced for, if known.
	URL string

	mu   sync.Mutex
	body io.ReadCloser
	used bool
}

// NewResponse wraps a streaming body. A nil body is treated as empty.
func NewResponse(status int, header http.Header, body io.ReadCloser) *Response {
	if header == nil {
		header = http.Header{}
	}
	if body == nil {
		body = http.NoBody
	}
	return &Response{Status: status, Header: header, body: body}
}

// NewBufferedResponse returns a response whose body is already in memory.
func NewBufferedResponse(status int, header http.Header, body []byte) *Response {
	return NewResponse(status, header, io.NopCloser(bytes.NewReader(body)))
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// BodyUsed reports whether the body has been taken.
func (r *Response) BodyUsed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used
}

// Body hands out the body stream. The caller owns it and must close it.
func (r *Response) Body() (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used {
		return nil, ErrBodyUsed
	}
	r.used = true
	return r.body, nil
}

// Bytes consumes the body and returns its contents.
func (r *Response) Bytes() ([]byte, error) {
	body, err := r.Body()
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// Clone duplicates the response. The original body is drained into memory so
// both the receiver and the clone can be consumed independently afterwards.
func (r *Response) Clone() (*Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used {
		return nil, ErrBodyUsed
	}

	data, err := io.ReadAll(r.body)
	_ = r.body.Close()
	if err != nil {
		// Keep the receiver readable: what arrived, then the same error.
		r.body = io.NopCloser(io.MultiReader(bytes.NewReader(data), &errReader{err: err}))
		return nil, fmt.Errorf("failed to buffer response body: %w", err)
	}
	r.body = io.NopCloser(bytes.NewReader(data))

	clone := NewBufferedResponse(r.Status, r.Header.Clone(), data)
	clone.URL = r.URL
	return clone, nil
}

// Serve copies status, headers and body to w, consuming the body.
func (r *Response) Serve(w http.ResponseWriter) (int64, error) {
	body, err := r.Body()
	if err != nil {
		return 0, err
	}
	defer body.Close()

	for k, vv := range r.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(r.Status)
	return io.Copy(w, body)
}

type errReader struct {
	err error
}

func (e *errReader) Read([]byte) (int, error) {
	return 0, e.err
}
