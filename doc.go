// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// brickify is the offline caching worker for the Brickify music player. It
// pre-caches the app shell, serves media network first with a cached
// fallback, and runs either one request at a time (fetch) or as a local
// proxy in front of the origin (serve).
package main
