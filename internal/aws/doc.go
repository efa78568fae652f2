// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package aws holds the AWS SDK helpers used by the S3 cache backend.
package aws
