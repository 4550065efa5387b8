// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/tensorexpr/pkg/core/errs"
)

// TENSOREXPR_BACKEND is the environment variable with the default backend configuration to use.
//
// The format of the configuration is "<kind>[:key=value,...]". E.g.: "disk:dir=/scratch",
// "distributed:ranks=4,parallelism=8" or simply "core".
//
//revive:disable-next-line
const TENSOREXPR_BACKEND = "TENSOREXPR_BACKEND"

// DefaultConfig is the configuration used if TENSOREXPR_BACKEND is not set.
//
// If both are empty, KindAgnostic resolves to KindCore with no options.
var DefaultConfig string

// ConfigKeys are the option keys accepted in a configuration string.
var ConfigKeys = []string{"dir", "ranks", "parallelism"}

// Config is a parsed backend configuration.
type Config struct {
	// Kind used for KindAgnostic tensors. It is never KindAgnostic itself.
	Kind Kind

	// Options given after the kind, e.g. "dir" for the disk backend.
	Options map[string]string
}

// ParseConfig parses a "<kind>[:key=value,...]" configuration.
//
// It returns ErrUnsupportedOperation for unknown kinds or keys.
func ParseConfig(config string) (Config, error) {
	c := Config{Kind: KindCore, Options: make(map[string]string)}
	config = strings.TrimSpace(config)
	if config == "" {
		return c, nil
	}
	kindName, options, _ := strings.Cut(config, ":")
	kind, err := KindString(strings.TrimSpace(kindName))
	if err != nil || kind == KindAgnostic {
		return c, errs.Errorf(errs.ErrUnsupportedOperation, "unknown backend kind %q in configuration %q, valid kinds are %q",
			kindName, config, KindStrings()[1:])
	}
	c.Kind = kind
	if strings.TrimSpace(options) == "" {
		return c, nil
	}
	for _, option := range strings.Split(options, ",") {
		key, value, found := strings.Cut(option, "=")
		key = strings.TrimSpace(key)
		if !found || !slices.Contains(ConfigKeys, key) {
			return c, errs.Errorf(errs.ErrUnsupportedOperation, "invalid option %q in backend configuration %q, valid keys are %q",
				option, config, ConfigKeys)
		}
		c.Options[key] = strings.TrimSpace(value)
	}
	return c, nil
}

// CurrentConfig returns the configuration from TENSOREXPR_BACKEND if set, or from DefaultConfig otherwise.
func CurrentConfig() (Config, error) {
	if config, found := os.LookupEnv(TENSOREXPR_BACKEND); found {
		return ParseConfig(config)
	}
	return ParseConfig(DefaultConfig)
}

// String returns the value of an option, or defaultValue if it is not set.
func (c Config) String(key, defaultValue string) string {
	if value, found := c.Options[key]; found && value != "" {
		return value
	}
	return defaultValue
}

// Int returns the value of an integer option, or defaultValue if it is not set.
func (c Config) Int(key string, defaultValue int) (int, error) {
	value, found := c.Options[key]
	if !found || value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errs.Errorf(errs.ErrUnsupportedOperation, "backend option %s=%q is not an integer", key, value)
	}
	return n, nil
}
