package ytdlp_test

import (
	"reflect"
	"strings"
	"testing"

	"scribe/internal/services/ytdlp"
)

func TestDownloadArgsFull(t *testing.T) {
	args := ytdlp.DownloadArgs("https://example.com/v", "/downloads", ytdlp.Options{
		Format:              "bv*+ba/b",
		RateLimit:           "4M",
		RestrictFilenames:   true,
		EmbedMetadata:       true,
		ConcurrentFragments: 4,
	})
	want := []string{
		"--newline", "--no-playlist",
		"-f", "bv*+ba/b",
		"--limit-rate", "4M",
		"--restrict-filenames",
		"--embed-metadata",
		"--concurrent-fragments", "4",
		"-o", "/downloads/%(title)s.%(ext)s",
		"https://example.com/v",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %v\nwant %v", args, want)
	}
}

func TestDownloadArgsMinimal(t *testing.T) {
	args := ytdlp.DownloadArgs("https://example.com/v", "/downloads", ytdlp.Options{})
	want := []string{"--newline", "--no-playlist", "-o", "/downloads/%(title)s.%(ext)s", "https://example.com/v"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %v\nwant %v", args, want)
	}
}

func TestSubtitleArgs(t *testing.T) {
	args := ytdlp.SubtitleArgs("https://example.com/v", "/downloads", ytdlp.SubtitleOptions{
		Languages:         []string{"en", "zh"},
		Format:            "srt",
		RestrictFilenames: true,
	})
	joined := strings.Join(args, " ")
	for _, fragment := range []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs en,zh",
		"--convert-subs srt",
		"--restrict-filenames",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("args missing %q: %v", fragment, args)
		}
	}
	if args[len(args)-1] != "https://example.com/v" {
		t.Fatalf("source must come last: %v", args)
	}
}

func TestSubtitleArgsBestFormatSkipsConversion(t *testing.T) {
	args := ytdlp.SubtitleArgs("https://example.com/v", "/downloads", ytdlp.SubtitleOptions{Format: "best"})
	if strings.Contains(strings.Join(args, " "), "--convert-subs") {
		t.Fatalf("best format should not request conversion: %v", args)
	}
}
