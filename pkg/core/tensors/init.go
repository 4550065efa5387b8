// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"sync"

	"github.com/gomlx/tensorexpr/backends"
	"k8s.io/klog/v2"
)

var (
	initMu          sync.Mutex
	initialized     bool
	previousDefault string
)

// Initialize sets the default backend configuration, used by tensors built with backends.KindAgnostic, and
// the parallelism of the kernels (option "parallelism", see backends.ConfigKeys).
//
// An empty config keeps the current default (TENSOREXPR_BACKEND or backends.DefaultConfig).
// It's idempotent: calling it again replaces the configuration, but only the first call is logged.
func Initialize(config string) error {
	var parsed backends.Config
	var err error
	if config == "" {
		parsed, err = backends.CurrentConfig()
	} else {
		parsed, err = backends.ParseConfig(config)
	}
	if err != nil {
		return err
	}
	parallelism, err := parsed.Int("parallelism", backends.Workers().MaxParallelism())
	if err != nil {
		return err
	}

	initMu.Lock()
	defer initMu.Unlock()
	if !initialized {
		previousDefault = backends.DefaultConfig
		klog.V(1).Infof("tensorexpr initialized: backend %s, parallelism %d", parsed.Kind, parallelism)
	}
	if config != "" {
		backends.DefaultConfig = config
	}
	backends.SetParallelism(parallelism)
	initialized = true
	return nil
}

// Finalize restores the default backend configuration to what it was before Initialize. It's a no-op if
// Initialize wasn't called.
func Finalize() {
	initMu.Lock()
	defer initMu.Unlock()
	if !initialized {
		return
	}
	backends.DefaultConfig = previousDefault
	initialized = false
	klog.V(1).Info("tensorexpr finalized")
}
