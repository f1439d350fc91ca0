package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Paths.TranscriptDir = filepath.Join(base, "transcripts")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "scribe.sock")
	cfgVal.Paths.APIBind = ""
	cfgVal.Tools.TranscriberScript = filepath.Join(base, "state", "transcribe.py")
	cfgVal.Download.MinFreeSpaceGiB = 0
	cfgVal.Metadata.CacheEnabled = false
	cfgVal.Metadata.CachePath = filepath.Join(base, "state", "metadata.db")
	cfgVal.Workflow.FlushIntervalSeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIBind enables the HTTP API on an ephemeral localhost port.
func WithAPIBind() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIBind = "127.0.0.1:0"
	}
}

// WithMetadataCache enables the probe cache backed by a temp database.
func WithMetadataCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metadata.CacheEnabled = true
	}
}

// WithStubbedTools writes stub executables that exit successfully and points
// the tool configuration at them. Tests that need scripted output should
// overwrite the stubs with WriteScript.
func WithStubbedTools() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range []string{"yt-dlp", "uv"} {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.cfg.Tools.YtDlpBinary = filepath.Join(binDir, "yt-dlp")
		b.cfg.Tools.UvBinary = filepath.Join(binDir, "uv")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
