package ytdlp

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Binary is the executable name used when the configuration does not name one.
const Binary = "yt-dlp"

// outputTemplate places results inside the target directory named after the
// video title.
const outputTemplate = "%(title)s.%(ext)s"

// Options carries the tuning knobs for a media download.
type Options struct {
	Format              string
	RateLimit           string
	RestrictFilenames   bool
	EmbedMetadata       bool
	ConcurrentFragments int
}

// SubtitleOptions carries the knobs for a subtitle-only fetch.
type SubtitleOptions struct {
	Languages         []string
	Format            string
	RestrictFilenames bool
}

// DownloadArgs builds the argument vector for a media download. --newline
// keeps progress output line-oriented so it can be parsed incrementally
// instead of arriving as carriage-return redraws.
func DownloadArgs(source, outputDir string, opts Options) []string {
	args := []string{"--newline", "--no-playlist"}
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	if opts.RateLimit != "" {
		args = append(args, "--limit-rate", opts.RateLimit)
	}
	if opts.RestrictFilenames {
		args = append(args, "--restrict-filenames")
	}
	if opts.EmbedMetadata {
		args = append(args, "--embed-metadata")
	}
	if opts.ConcurrentFragments > 1 {
		args = append(args, "--concurrent-fragments", strconv.Itoa(opts.ConcurrentFragments))
	}
	args = append(args, "-o", filepath.Join(outputDir, outputTemplate))
	return append(args, source)
}

// SubtitleArgs builds the argument vector for fetching subtitles without the
// media itself. Automatic captions are requested as a fallback for videos
// without uploader-provided tracks.
func SubtitleArgs(source, outputDir string, opts SubtitleOptions) []string {
	args := []string{"--newline", "--no-playlist", "--skip-download", "--write-subs", "--write-auto-subs"}
	if len(opts.Languages) > 0 {
		args = append(args, "--sub-langs", strings.Join(opts.Languages, ","))
	}
	if opts.Format != "" && opts.Format != "best" {
		args = append(args, "--convert-subs", opts.Format)
	}
	if opts.RestrictFilenames {
		args = append(args, "--restrict-filenames")
	}
	args = append(args, "-o", filepath.Join(outputDir, outputTemplate))
	return append(args, source)
}
