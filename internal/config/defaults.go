package config

const (
	defaultStateDir           = "~/.local/share/scribe"
	defaultDownloadDir        = "~/Downloads/scribe"
	defaultTranscriptDir      = "~/Documents/transcripts"
	defaultLogDir             = "~/.local/share/scribe/logs"
	defaultSocketPath         = "~/.local/share/scribe/scribed.sock"
	defaultAPIBind            = "127.0.0.1:7486"
	defaultYtDlpBinary        = "yt-dlp"
	defaultUvBinary           = "uv"
	defaultTranscriberScript  = "~/.local/share/scribe/transcribe.py"
	defaultDownloadFormat     = "bestvideo*+bestaudio/best"
	defaultSubtitleFormat     = "srt"
	defaultMinFreeSpaceGiB    = 5
	defaultWhisperModel       = "mlx-community/whisper-large-v3-turbo"
	defaultTranscriptFormat   = "txt"
	defaultMetadataCachePath  = "~/.cache/scribe/metadata.db"
	defaultProbeTimeout       = 30
	defaultFlushInterval      = 1
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 60
	defaultConcurrentFragment = 1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:      defaultStateDir,
			DownloadDir:   defaultDownloadDir,
			TranscriptDir: defaultTranscriptDir,
			LogDir:        defaultLogDir,
			SocketPath:    defaultSocketPath,
			APIBind:       defaultAPIBind,
		},
		Tools: Tools{
			YtDlpBinary:       defaultYtDlpBinary,
			UvBinary:          defaultUvBinary,
			TranscriberScript: defaultTranscriberScript,
		},
		Download: Download{
			Format:             defaultDownloadFormat,
			SubtitleLanguages:  []string{"en"},
			SubtitleFormat:     defaultSubtitleFormat,
			MinFreeSpaceGiB:    defaultMinFreeSpaceGiB,
			RestrictFilenames:  true,
			EmbedMetadata:      true,
			ConcurrentFragment: defaultConcurrentFragment,
		},
		Transcription: Transcription{
			Model:        defaultWhisperModel,
			OutputFormat: defaultTranscriptFormat,
		},
		Metadata: Metadata{
			CacheEnabled:        true,
			CachePath:           defaultMetadataCachePath,
			ProbeTimeoutSeconds: defaultProbeTimeout,
		},
		Workflow: Workflow{
			FlushIntervalSeconds: defaultFlushInterval,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
