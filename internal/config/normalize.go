package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeTranscription()
	if err := c.normalizeMetadata(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(firstNonEmpty(c.Paths.StateDir, defaultStateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.DownloadDir, err = expandPath(firstNonEmpty(envOr("SCRIBE_DOWNLOAD_DIR", c.Paths.DownloadDir), defaultDownloadDir)); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.TranscriptDir, err = expandPath(firstNonEmpty(c.Paths.TranscriptDir, defaultTranscriptDir)); err != nil {
		return fmt.Errorf("paths.transcript_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(firstNonEmpty(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.SocketPath, err = expandPath(firstNonEmpty(envOr("SCRIBE_SOCKET", c.Paths.SocketPath), defaultSocketPath)); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(firstNonEmpty(envOr("SCRIBE_API_BIND", c.Paths.APIBind), defaultAPIBind))
	return nil
}

func (c *Config) normalizeTools() error {
	c.Tools.YtDlpBinary = strings.TrimSpace(firstNonEmpty(c.Tools.YtDlpBinary, defaultYtDlpBinary))
	c.Tools.UvBinary = strings.TrimSpace(firstNonEmpty(c.Tools.UvBinary, defaultUvBinary))
	script := firstNonEmpty(envOr("SCRIBE_TRANSCRIBER_SCRIPT", c.Tools.TranscriberScript), defaultTranscriberScript)
	expanded, err := expandPath(script)
	if err != nil {
		return fmt.Errorf("tools.transcriber_script: %w", err)
	}
	c.Tools.TranscriberScript = expanded
	return nil
}

func (c *Config) normalizeDownload() {
	c.Download.Format = strings.TrimSpace(firstNonEmpty(c.Download.Format, defaultDownloadFormat))
	c.Download.SubtitleFormat = strings.ToLower(strings.TrimSpace(firstNonEmpty(c.Download.SubtitleFormat, defaultSubtitleFormat)))
	if len(c.Download.SubtitleLanguages) == 0 {
		c.Download.SubtitleLanguages = []string{"en"}
	}
	languages := make([]string, 0, len(c.Download.SubtitleLanguages))
	for _, lang := range c.Download.SubtitleLanguages {
		if trimmed := strings.ToLower(strings.TrimSpace(lang)); trimmed != "" {
			languages = append(languages, trimmed)
		}
	}
	c.Download.SubtitleLanguages = languages
	c.Download.RateLimit = strings.TrimSpace(c.Download.RateLimit)
	if c.Download.MinFreeSpaceGiB < 0 {
		c.Download.MinFreeSpaceGiB = 0
	}
	if c.Download.ConcurrentFragment <= 0 {
		c.Download.ConcurrentFragment = defaultConcurrentFragment
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(firstNonEmpty(envOr("SCRIBE_WHISPER_MODEL", c.Transcription.Model), defaultWhisperModel))
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	c.Transcription.OutputFormat = strings.ToLower(strings.TrimSpace(firstNonEmpty(c.Transcription.OutputFormat, defaultTranscriptFormat)))
}

func (c *Config) normalizeMetadata() error {
	path := firstNonEmpty(c.Metadata.CachePath, defaultMetadataCachePath)
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("metadata.cache_path: %w", err)
	}
	c.Metadata.CachePath = expanded
	if c.Metadata.ProbeTimeoutSeconds <= 0 {
		c.Metadata.ProbeTimeoutSeconds = defaultProbeTimeout
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.FlushIntervalSeconds <= 0 {
		c.Workflow.FlushIntervalSeconds = defaultFlushInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(firstNonEmpty(envOr("SCRIBE_LOG_FORMAT", c.Logging.Format), defaultLogFormat)))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(firstNonEmpty(envOr("SCRIBE_LOG_LEVEL", c.Logging.Level), defaultLogLevel)))
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// envOr prefers the environment value when set, matching the .env override
// chain: defaults, then file, then environment.
func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
