// Copyright (c) 2025 Steve Taranto staranto@gmail.com.
// SPDX-License-Identifier: Apache-2.0

// Package backend opens one of the cache store backends (memory, disk,
// sqlite, s3) by name.
package backend
