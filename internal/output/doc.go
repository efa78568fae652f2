// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package output filters, sorts and renders JSON:API listings as text
// tables, JSON or YAML.
package output
