// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env is the process environment brickify reacts to.
type Env struct {
	// ConfigFile overrides the config file search.
	ConfigFile string `env:"BRICKIFY_CFG"`
	// LogLevel is an apex/log level name.
	LogLevel string `env:"BRICKIFY_LOG" envDefault:"ERROR"`
	// CacheEnabled false leaves the worker without handlers, so every request
	// goes straight to the network.
	CacheEnabled bool `env:"BRICKIFY_CACHE" envDefault:"true"`
	// CacheDir overrides the disk backend base directory.
	CacheDir string `env:"BRICKIFY_CACHE_DIR"`
}

// LoadEnv parses Env from the environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
