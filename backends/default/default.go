// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package _default includes the default storage engines: in-core, disk and distributed.
//
// To use it simply include:
//
//	import _ "github.com/gomlx/tensorexpr/backends/default"
package _default

import (
	_ "github.com/gomlx/tensorexpr/backends/disk"
	_ "github.com/gomlx/tensorexpr/backends/distributed"
	_ "github.com/gomlx/tensorexpr/backends/incore"
)
