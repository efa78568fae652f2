// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestConfig sets BRICKIFY_CFG to point to a test config file.
// Returns cleanup function that should be deferred.
func setupTestConfig(t *testing.T, testdataFile string) (cleanup func()) {
	t.Helper()

	absPath, err := filepath.Abs(filepath.Join("testdata", testdataFile))
	require.NoError(t, err, "failed to get absolute path for test config")

	t.Setenv("BRICKIFY_CFG", absPath)

	// Reset the global Config to force reload
	Config = Type{}

	return func() {
		Config = Type{}
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		testFile  string
		checkFunc func(*testing.T, Type)
	}{
		{
			name:     "simple string values",
			testFile: "simple.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source)
				assert.Equal(t, "http://localhost:5000", cfg.Data["origin"])
				assert.Equal(t, "disk", cfg.Data["backend"])
			},
		},
		{
			name:     "nested structure",
			testFile: "nested.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				serve, ok := cfg.Data["serve"].(map[string]interface{})
				assert.True(t, ok, "serve should be a map")
				assert.Equal(t, "127.0.0.1:8080", serve["addr"])
			},
		},
		{
			name:     "mixed types",
			testFile: "mixed-types.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.Equal(t, 1, cfg.Data["version"])
				assert.Equal(t, true, cfg.Data["enabled"])
				assert.Equal(t, 30.5, cfg.Data["timeout"])
			},
		},
		{
			name:     "empty file",
			testFile: "empty.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source, "should have a source path")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			cfg, err := Load()
			require.NoError(t, err)
			tt.checkFunc(t, cfg)
		})
	}
}

func TestLoad_Namespace(t *testing.T) {
	cleanup := setupTestConfig(t, "nested.yaml")
	defer cleanup()

	cfg, err := Load("serve")
	require.NoError(t, err)
	assert.Equal(t, "serve", cfg.Namespace)

	origin, err := GetString("origin")
	require.NoError(t, err)
	assert.Equal(t, "http://brickify.lan:5000", origin)

	// Falls back to the top level.
	be, err := GetString("backend")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", be)
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("BRICKIFY_CFG", "/nonexistent/path/brickify.yaml")
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_BRICKIFY_CFG_IsDirectory(t *testing.T) {
	t.Setenv("BRICKIFY_CFG", "testdata")
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "points to a directory")
}

func TestLoad_StandardLocations(t *testing.T) {
	dir := t.TempDir()
	abs, err := filepath.Abs(filepath.Join("testdata", "simple.yaml"))
	require.NoError(t, err)
	data, err := os.ReadFile(abs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), data, 0o600))

	t.Setenv("BRICKIFY_CFG", "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	Config = Type{}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), cfg.Source)
}

func TestGetString(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []string
		want         string
		wantErr      bool
	}{
		{name: "simple string value", testFile: "simple.yaml", key: "origin", want: "http://localhost:5000"},
		{name: "nested string value", testFile: "nested.yaml", key: "s3.region", want: "us-west-2"},
		{name: "missing key with default", testFile: "simple.yaml", key: "missing", defaultValue: []string{"default-value"}, want: "default-value"},
		{name: "missing key without default", testFile: "simple.yaml", key: "missing", wantErr: true},
		{name: "non-string value", testFile: "mixed-types.yaml", key: "version", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			_, _ = Load()

			got, err := GetString(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []int
		want         int
		wantErr      bool
	}{
		{name: "int value", testFile: "mixed-types.yaml", key: "version", want: 1},
		{name: "float value converted to int", testFile: "mixed-types.yaml", key: "timeout", want: 30},
		{name: "nested int value", testFile: "nested.yaml", key: "s3.max_retries", want: 5},
		{name: "missing key with default", testFile: "simple.yaml", key: "missing", defaultValue: []int{60}, want: 60},
		{name: "missing key without default", testFile: "simple.yaml", key: "missing", wantErr: true},
		{name: "non-int value", testFile: "simple.yaml", key: "origin", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			_, _ = Load()

			got, err := GetInt(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetStringSlice(t *testing.T) {
	cleanup := setupTestConfig(t, "mixed-types.yaml")
	defer cleanup()
	_, _ = Load()

	assets, err := GetStringSlice("assets")
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/static/icon-192.png", "/static/icon-512.png"}, assets)

	single, err := GetStringSlice("media-prefix")
	require.NoError(t, err)
	assert.Equal(t, []string{"/music/"}, single)

	_, err = GetStringSlice("bad-list")
	assert.Error(t, err)

	_, err = GetStringSlice("version")
	assert.Error(t, err)

	def, err := GetStringSlice("missing", []string{"/art/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/art/"}, def)
}

func TestConfig_GetNestedSets(t *testing.T) {
	cleanup := setupTestConfig(t, "sets.yaml")
	defer cleanup()
	_, _ = Load()

	args, err := GetStringSlice("fetch.lan")
	require.NoError(t, err)
	assert.Equal(t, []string{"--origin http://brickify.lan:5000", "--backend sqlite"}, args)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("BRICKIFY_LOG", "debug")
	t.Setenv("BRICKIFY_CACHE", "false")
	t.Setenv("BRICKIFY_CACHE_DIR", "/tmp/brickify")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "debug", env.LogLevel)
	assert.False(t, env.CacheEnabled)
	assert.Equal(t, "/tmp/brickify", env.CacheDir)
}

func TestLoadEnv_Defaults(t *testing.T) {
	t.Setenv("BRICKIFY_LOG", "")
	t.Setenv("BRICKIFY_CACHE", "")
	_ = os.Unsetenv("BRICKIFY_LOG")
	_ = os.Unsetenv("BRICKIFY_CACHE")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "ERROR", env.LogLevel)
	assert.True(t, env.CacheEnabled)
}

func TestLoadEnv_BadBool(t *testing.T) {
	t.Setenv("BRICKIFY_CACHE", "maybe")

	_, err := LoadEnv()
	assert.Error(t, err)
}
