package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"scribe/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "scribe")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.DownloadDir != filepath.Join(tempHome, "Downloads", "scribe") {
		t.Fatalf("unexpected download dir: %q", cfg.Paths.DownloadDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7486" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.TasksFile() != filepath.Join(wantState, "tasks.json") {
		t.Fatalf("unexpected tasks file: %q", cfg.TasksFile())
	}
	if cfg.TaskLogDir() != filepath.Join(cfg.Paths.LogDir, "tasks") {
		t.Fatalf("unexpected task log dir: %q", cfg.TaskLogDir())
	}
	if cfg.Tools.YtDlpBinary != "yt-dlp" {
		t.Fatalf("unexpected yt-dlp binary: %q", cfg.Tools.YtDlpBinary)
	}
	if cfg.Download.Format == "" {
		t.Fatal("expected default download format")
	}
	if got := cfg.Download.SubtitleLanguages; len(got) != 1 || got[0] != "en" {
		t.Fatalf("unexpected subtitle languages: %v", got)
	}
	if cfg.Transcription.Model != "mlx-community/whisper-large-v3-turbo" {
		t.Fatalf("unexpected whisper model: %q", cfg.Transcription.Model)
	}
	if !cfg.Metadata.CacheEnabled {
		t.Fatal("expected metadata cache enabled by default")
	}
	if cfg.Workflow.FlushIntervalSeconds != 1 {
		t.Fatalf("unexpected flush interval: %d", cfg.Workflow.FlushIntervalSeconds)
	}
}

func TestLoadReadsFileAndNormalizes(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "scribe.toml")
	content := strings.Join([]string{
		"[paths]",
		`download_dir = "~/media"`,
		"[download]",
		`subtitle_format = "VTT"`,
		`subtitle_languages = ["EN", " de ", ""]`,
		"[logging]",
		`level = "DEBUG"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected file at %q to be used, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.DownloadDir != filepath.Join(tempHome, "media") {
		t.Fatalf("expected tilde expansion, got %q", cfg.Paths.DownloadDir)
	}
	if cfg.Download.SubtitleFormat != "vtt" {
		t.Fatalf("expected lowercased subtitle format, got %q", cfg.Download.SubtitleFormat)
	}
	want := []string{"en", "de"}
	if len(cfg.Download.SubtitleLanguages) != len(want) {
		t.Fatalf("unexpected subtitle languages: %v", cfg.Download.SubtitleLanguages)
	}
	for i, lang := range want {
		if cfg.Download.SubtitleLanguages[i] != lang {
			t.Fatalf("unexpected subtitle languages: %v", cfg.Download.SubtitleLanguages)
		}
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cases := []struct {
		name    string
		content string
	}{
		{"bad subtitle format", "[download]\nsubtitle_format = \"mkv\"\n"},
		{"bad log level", "[logging]\nlevel = \"verbose\"\n"},
		{"bad log format", "[logging]\nformat = \"xml\"\n"},
		{"bad output format", "[transcription]\noutput_format = \"pdf\"\n"},
		{"bad api bind", "[paths]\napi_bind = \"localhost\"\n"},
	}
	for _, tc := range cases {
		path := filepath.Join(t.TempDir(), "scribe.toml")
		if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
			t.Fatalf("%s: write config: %v", tc.name, err)
		}
		if _, _, _, err := config.Load(path); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	override := filepath.Join(tempHome, "elsewhere")
	t.Setenv("SCRIBE_DOWNLOAD_DIR", override)
	t.Setenv("SCRIBE_LOG_LEVEL", "warn")

	path := filepath.Join(tempHome, "scribe.toml")
	content := "[paths]\ndownload_dir = \"~/from-file\"\n[logging]\nlevel = \"info\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DownloadDir != override {
		t.Fatalf("expected env override %q, got %q", override, cfg.Paths.DownloadDir)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env log level warn, got %q", cfg.Logging.Level)
	}
}

func TestEnsureDirectoriesCreatesTree(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.DownloadDir, cfg.Paths.TranscriptDir, cfg.Paths.LogDir, cfg.TaskLogDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %q: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%q is not a directory", dir)
		}
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config must parse: %v", err)
	}
	if cfg.Tools.YtDlpBinary != "yt-dlp" {
		t.Fatalf("sample should carry defaults, got %q", cfg.Tools.YtDlpBinary)
	}
}
