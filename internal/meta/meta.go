// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package meta

import (
	"github.com/staranto/brickify/internal/config"
)

// Meta are the meta-options that are available on all commands.
type Meta struct {
	Args   []string
	Config config.Type
	Env    config.Env
}
