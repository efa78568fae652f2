// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package worker is a small offline-worker runtime. Handlers register for the
// install and fetch events; the runtime walks the lifecycle, dispatches fetches
// to the first handler that responds and tracks background work started with
// FetchEvent.WaitUntil.
package worker
