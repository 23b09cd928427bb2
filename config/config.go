// Package config handles cinder.toml runtime configuration. It is the
// external loader: it parses files once and hands plain values to the jit
// package, which never touches the filesystem for configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
)

// Config holds the control-plane settings consumed by jit.NewController.
type Config struct {
	// Enabled is the master switch. When false, registration is a no-op
	// apart from re-attaching previously compiled code.
	Enabled bool `toml:"enabled"`

	// BatchCompileWorkers is the worker-thread count for batch drains.
	// 0 means drains run serially on the calling thread.
	BatchCompileWorkers int `toml:"batch-compile-workers"`

	// CompileAllStaticFunctions makes statically-compiled code eligible
	// unconditionally, bypassing the inclusion list.
	CompileAllStaticFunctions bool `toml:"compile-all-static-functions"`

	// AllowListWildcards selects the wildcard-capable inclusion list when
	// ListFile is loaded.
	AllowListWildcards bool `toml:"allow-list-wildcards"`

	// MultithreadedCompileTest retains every registered unit so the whole
	// set can be recompiled through the batch path on demand.
	MultithreadedCompileTest bool `toml:"multithreaded-compile-test"`

	// ListFile is an optional inclusion-list file, one entry per line.
	ListFile string `toml:"list-file"`

	// DumpStats logs aggregate runtime stats when the controller is
	// finalized.
	DumpStats bool `toml:"dump-stats"`

	// LogLevel sets the minimum level for control-plane logging. Empty
	// means the embedding host's logger default.
	LogLevel string `toml:"log-level"`
}

// Default returns the configuration used when no cinder.toml is present.
func Default() Config {
	return Config{Enabled: true}
}

// Load parses cinder.toml from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "cinder.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate rejects settings the control plane cannot run with.
func (c *Config) Validate() error {
	if c.BatchCompileWorkers < 0 {
		return fmt.Errorf("batch-compile-workers must be >= 0, got %d", c.BatchCompileWorkers)
	}
	if c.LogLevel != "" {
		if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
			return fmt.Errorf("bad log-level %q: %w", c.LogLevel, err)
		}
	}
	return nil
}

// Logger builds a production zap logger at the configured level. The zero
// LogLevel means info.
func (c *Config) Logger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if c.LogLevel != "" {
		lvl, err := zap.ParseAtomicLevel(c.LogLevel)
		if err != nil {
			return nil, err
		}
		zcfg.Level = lvl
	}
	return zcfg.Build()
}
