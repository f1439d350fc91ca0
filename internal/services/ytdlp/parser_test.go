package ytdlp_test

import (
	"testing"

	"scribe/internal/services/ytdlp"
	"scribe/internal/task"
)

func TestParseLineProgress(t *testing.T) {
	patch := ytdlp.ParseLine("[download]  42.5% of 118.06MiB at 2.11MiB/s ETA 00:31")
	if patch == nil {
		t.Fatal("expected a patch for a progress line")
	}
	if patch.Status == nil || *patch.Status != task.StatusDownloading {
		t.Fatalf("status = %v, want downloading", patch.Status)
	}
	if patch.Percentage == nil || *patch.Percentage != 42.5 {
		t.Fatalf("percentage = %v, want 42.5", patch.Percentage)
	}
	if patch.Rate == nil || *patch.Rate != "2.11MiB/s" {
		t.Fatalf("rate = %v, want 2.11MiB/s", patch.Rate)
	}
	if patch.ETA == nil || *patch.ETA != "00:31" {
		t.Fatalf("eta = %v, want 00:31", patch.ETA)
	}
	if patch.Terminal() {
		t.Fatal("progress patch must not be terminal")
	}
}

func TestParseLinePercentBounds(t *testing.T) {
	tests := []struct {
		line string
		want float64
	}{
		{"[download]  33.333% of 10.00MiB", 33.3},
		{"[download]  105.3% of 10.00MiB", 100},
		{"[download]  0.0% of 10.00MiB", 0},
		{"[download] 100% of 10.00MiB in 00:05", 100},
	}
	for _, tc := range tests {
		patch := ytdlp.ParseLine(tc.line)
		if patch == nil || patch.Percentage == nil {
			t.Fatalf("line %q: expected percentage patch", tc.line)
		}
		if *patch.Percentage != tc.want {
			t.Fatalf("line %q: percentage = %v, want %v", tc.line, *patch.Percentage, tc.want)
		}
	}
}

func TestParseLineRateAndETAIndependent(t *testing.T) {
	patch := ytdlp.ParseLine("[download] Resuming at 1.95MiB/s")
	if patch == nil || patch.Rate == nil || *patch.Rate != "1.95MiB/s" {
		t.Fatalf("expected rate-only patch, got %+v", patch)
	}
	if patch.Percentage != nil || patch.ETA != nil {
		t.Fatalf("rate-only line should not set percentage or eta: %+v", patch)
	}

	patch = ytdlp.ParseLine("[download]  7.1% of 4.00MiB at Unknown B/s ETA Unknown")
	if patch == nil || patch.Rate == nil || *patch.Rate != "Unknown B/s" {
		t.Fatalf("expected Unknown B/s rate, got %+v", patch)
	}
	if patch.ETA == nil || *patch.ETA != "Unknown" {
		t.Fatalf("expected Unknown eta, got %+v", patch)
	}
}

func TestParseLineDestination(t *testing.T) {
	patch := ytdlp.ParseLine("[download] Destination: /downloads/Some_Video.webm")
	if patch == nil {
		t.Fatal("expected a patch for a destination line")
	}
	if patch.OutputPath == nil || *patch.OutputPath != "/downloads/Some_Video.webm" {
		t.Fatalf("output path = %v", patch.OutputPath)
	}
	if patch.Filename == nil || *patch.Filename != "Some_Video.webm" {
		t.Fatalf("filename = %v", patch.Filename)
	}
	if patch.Status != nil {
		t.Fatal("destination line should not change status")
	}
}

func TestParseLineMerger(t *testing.T) {
	patch := ytdlp.ParseLine(`[Merger] Merging formats into "/downloads/Some_Video.mkv"`)
	if patch == nil || patch.OutputPath == nil || *patch.OutputPath != "/downloads/Some_Video.mkv" {
		t.Fatalf("expected merged output path, got %+v", patch)
	}
	if patch.Filename == nil || *patch.Filename != "Some_Video.mkv" {
		t.Fatalf("filename = %v", patch.Filename)
	}
}

func TestParseLineSubtitleOutput(t *testing.T) {
	for _, line := range []string{
		"[info] Writing video subtitles to: /downloads/Some_Video.en.srt",
		"[info] Writing video automatic subtitles to: /downloads/Some_Video.en.srt",
	} {
		patch := ytdlp.ParseLine(line)
		if patch == nil || patch.OutputPath == nil || *patch.OutputPath != "/downloads/Some_Video.en.srt" {
			t.Fatalf("line %q: expected subtitle path, got %+v", line, patch)
		}
	}
}

func TestParseLineAlreadyDownloaded(t *testing.T) {
	patch := ytdlp.ParseLine("[download] /downloads/Some_Video.webm has already been downloaded")
	if patch == nil {
		t.Fatal("expected a patch for the already-downloaded sentinel")
	}
	if patch.Status == nil || *patch.Status != task.StatusCompleted {
		t.Fatalf("status = %v, want completed", patch.Status)
	}
	if patch.Percentage == nil || *patch.Percentage != 100 {
		t.Fatalf("percentage = %v, want 100", patch.Percentage)
	}
	if patch.OutputPath == nil || *patch.OutputPath != "/downloads/Some_Video.webm" {
		t.Fatalf("output path = %v", patch.OutputPath)
	}
}

func TestParseLineError(t *testing.T) {
	patch := ytdlp.ParseLine("ERROR: [youtube] dQw4w9WgXcQ: Video unavailable")
	if patch == nil {
		t.Fatal("expected a patch for an error line")
	}
	if patch.Status == nil || *patch.Status != task.StatusFailed {
		t.Fatalf("status = %v, want failed", patch.Status)
	}
	if patch.Error == nil || *patch.Error != "[youtube] dQw4w9WgXcQ: Video unavailable" {
		t.Fatalf("error = %v", patch.Error)
	}

	patch = ytdlp.ParseLine("ERROR:")
	if patch == nil || patch.Error == nil || *patch.Error == "" {
		t.Fatalf("bare error prefix should still fail with a message, got %+v", patch)
	}
}

func TestParseLineIgnoresChatter(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"[youtube] dQw4w9WgXcQ: Downloading webpage",
		"[info] dQw4w9WgXcQ: Downloading 1 format(s): 137+140",
		"WARNING: unable to obtain file audio codec with ffprobe",
		"Deleting original file /downloads/Some_Video.f137.mp4 (pass -k to keep)",
	}
	for _, line := range lines {
		if patch := ytdlp.ParseLine(line); patch != nil {
			t.Fatalf("line %q: expected nil patch, got %+v", line, patch)
		}
	}
}
