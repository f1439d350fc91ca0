package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, socket, and bind address configuration.
type Paths struct {
	StateDir      string `toml:"state_dir"`
	DownloadDir   string `toml:"download_dir"`
	TranscriptDir string `toml:"transcript_dir"`
	LogDir        string `toml:"log_dir"`
	SocketPath    string `toml:"socket_path"`
	APIBind       string `toml:"api_bind"`
}

// Tools contains the external executables scribe drives.
type Tools struct {
	YtDlpBinary       string `toml:"ytdlp_binary"`
	UvBinary          string `toml:"uv_binary"`
	TranscriberScript string `toml:"transcriber_script"`
}

// Download contains configuration for yt-dlp download and subtitle tasks.
type Download struct {
	Format             string   `toml:"format"`
	SubtitleLanguages  []string `toml:"subtitle_languages"`
	SubtitleFormat     string   `toml:"subtitle_format"`
	RateLimit          string   `toml:"rate_limit"`
	MinFreeSpaceGiB    int      `toml:"min_free_space_gib"`
	RestrictFilenames  bool     `toml:"restrict_filenames"`
	EmbedMetadata      bool     `toml:"embed_metadata"`
	ConcurrentFragment int      `toml:"concurrent_fragments"`
}

// Transcription contains configuration for whisper transcription tasks.
type Transcription struct {
	Model        string `toml:"model"`
	Language     string `toml:"language"`
	OutputFormat string `toml:"output_format"`
}

// Metadata contains configuration for the URL metadata probe cache.
type Metadata struct {
	CacheEnabled        bool   `toml:"cache_enabled"`
	CachePath           string `toml:"cache_path"`
	ProbeTimeoutSeconds int    `toml:"probe_timeout_seconds"`
}

// Workflow contains daemon timing configuration.
type Workflow struct {
	FlushIntervalSeconds int `toml:"flush_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: state/output/log directories, IPC socket, API bind address
//   - Tools: external executables (yt-dlp, uv) and the transcriber script
//   - Download: yt-dlp format selection and subtitle options
//   - Transcription: whisper model and output options
//   - Metadata: URL probe cache settings
//   - Workflow: progress flush interval
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Download      Download      `toml:"download"`
	Transcription Transcription `toml:"transcription"`
	Metadata      Metadata      `toml:"metadata"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file in
// the working directory is honored for environment overrides before the TOML
// file is read. The returned config has all path fields expanded and
// normalized.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.DownloadDir, c.Paths.TranscriptDir, c.Paths.LogDir, c.TaskLogDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Metadata.CacheEnabled && strings.TrimSpace(c.Metadata.CachePath) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Metadata.CachePath), 0o755); err != nil {
			return fmt.Errorf("create metadata cache directory: %w", err)
		}
	}
	return nil
}

// TasksFile returns the path of the durable task store document.
func (c *Config) TasksFile() string {
	return filepath.Join(c.Paths.StateDir, "tasks.json")
}

// LockFile returns the path of the daemon instance lock.
func (c *Config) LockFile() string {
	return filepath.Join(c.Paths.StateDir, "scribed.lock")
}

// TaskLogDir returns the directory holding per-task log files.
func (c *Config) TaskLogDir() string {
	return filepath.Join(c.Paths.LogDir, "tasks")
}

// LogDirectory implements logging.LoggerConfig.
func (c *Config) LogDirectory() string { return c.Paths.LogDir }

// LogLevelName implements logging.LoggerConfig.
func (c *Config) LogLevelName() string { return c.Logging.Level }

// LogFormatName implements logging.LoggerConfig.
func (c *Config) LogFormatName() string { return c.Logging.Format }

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
