// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package fetch holds the request and response values that flow through the
// offline worker, plus the network client that talks to the origin.
package fetch
