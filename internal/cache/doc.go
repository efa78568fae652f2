// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package cache is the named cache-storage API the offline worker programs
// against. Storage opens stores by name; a Cache matches, puts and pre-fetches
// responses keyed by request identity. Persistence is delegated to a
// store.Backend.
package cache
