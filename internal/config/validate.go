package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		return errors.New("paths.socket_path must be set")
	}
	bind := strings.TrimSpace(c.Paths.APIBind)
	if bind != "" && !strings.Contains(bind, ":") {
		return fmt.Errorf("paths.api_bind %q must be host:port", bind)
	}
	return nil
}

func (c *Config) validateTools() error {
	if strings.TrimSpace(c.Tools.YtDlpBinary) == "" {
		return errors.New("tools.ytdlp_binary must be set")
	}
	if strings.TrimSpace(c.Tools.UvBinary) == "" {
		return errors.New("tools.uv_binary must be set")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if strings.TrimSpace(c.Download.Format) == "" {
		return errors.New("download.format must be set")
	}
	switch c.Download.SubtitleFormat {
	case "srt", "vtt", "ass", "best":
	default:
		return fmt.Errorf("download.subtitle_format %q is not one of srt, vtt, ass, best", c.Download.SubtitleFormat)
	}
	if len(c.Download.SubtitleLanguages) == 0 {
		return errors.New("download.subtitle_languages must contain at least one language")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if strings.TrimSpace(c.Transcription.Model) == "" {
		return errors.New("transcription.model must be set")
	}
	switch c.Transcription.OutputFormat {
	case "txt", "srt", "json":
	default:
		return fmt.Errorf("transcription.output_format %q is not one of txt, srt, json", c.Transcription.OutputFormat)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json, auto", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
