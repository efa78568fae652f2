// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package command defines the CLI command set for brickify. It wires flags,
// validators, actions, and shell completion for subcommands, and builds the
// worker session (backend, network client, runtime and policy) they share.
package command
