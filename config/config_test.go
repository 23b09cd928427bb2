package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cinder.toml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.Enabled {
		t.Error("default config should be enabled")
	}
	if cfg.BatchCompileWorkers != 0 {
		t.Error("default drains are serial")
	}
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `
enabled = true
batch-compile-workers = 8
compile-all-static-functions = true
allow-list-wildcards = true
list-file = "jitlist.txt"
dump-stats = true
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BatchCompileWorkers != 8 {
		t.Errorf("workers = %d, want 8", cfg.BatchCompileWorkers)
	}
	if !cfg.CompileAllStaticFunctions || !cfg.AllowListWildcards || !cfg.DumpStats {
		t.Error("boolean settings not parsed")
	}
	if cfg.ListFile != "jitlist.txt" {
		t.Errorf("list-file = %q", cfg.ListFile)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	dir := writeConfig(t, "batch-compile-workers = 2\n")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Enabled {
		t.Error("unset keys should keep their defaults")
	}
	if cfg.BatchCompileWorkers != 2 {
		t.Errorf("workers = %d, want 2", cfg.BatchCompileWorkers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("missing cinder.toml should error")
	}
}

func TestLoadParseError(t *testing.T) {
	dir := writeConfig(t, "enabled = maybe\n")
	if _, err := Load(dir); err == nil {
		t.Error("malformed toml should error")
	}
}

func TestLoadRejectsNegativeWorkers(t *testing.T) {
	dir := writeConfig(t, "batch-compile-workers = -1\n")
	if _, err := Load(dir); err == nil {
		t.Error("negative worker count should be rejected")
	}
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	dir := writeConfig(t, `log-level = "shouty"` + "\n")
	if _, err := Load(dir); err == nil {
		t.Error("unknown log level should be rejected")
	}
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	logger, err := cfg.Logger()
	if err != nil {
		t.Fatal(err)
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Error("debug level should be enabled")
	}
}
