// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/brickify/internal/config"
)

func withConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("BRICKIFY_CFG", path)
	_, err := config.Load()
	require.NoError(t, err)
	t.Cleanup(func() { config.Config = config.Type{} })
}

func TestMangleArguments(t *testing.T) {
	withConfig(t, `
serve:
  defaults:
    - --addr 127.0.0.1:9000
  offline:
    - --no-install
    - --backend sqlite
`)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "defaults inserted after command",
			args: []string{"brickify", "serve", "--origin", "http://pi:5000"},
			want: []string{"brickify", "serve", "--addr", "127.0.0.1:9000", "--origin", "http://pi:5000"},
		},
		{
			name: "named set replaces defaults in place",
			args: []string{"brickify", "serve", "--origin", "http://pi:5000", "@offline"},
			want: []string{"brickify", "serve", "--origin", "http://pi:5000", "--no-install", "--backend", "sqlite"},
		},
		{
			name: "unknown set expands to nothing",
			args: []string{"brickify", "serve", "@nope"},
			want: []string{"brickify", "serve"},
		},
		{
			name: "command without sets",
			args: []string{"brickify", "ls", "-o", "json"},
			want: []string{"brickify", "ls", "-o", "json"},
		},
		{
			name: "help wins",
			args: []string{"brickify", "serve", "@offline", "-h"},
			want: []string{"brickify", "serve", "--help"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mangleArguments(tt.args))
		})
	}
}
