// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package policy is the brickify offline caching policy. Install pre-caches
// the asset manifest into a versioned store. Fetch sends media paths network
// first, refreshing the store in the background, and serves everything else
// cache first.
package policy
