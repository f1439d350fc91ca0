package ytdlp

import (
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"scribe/internal/task"
)

// yt-dlp keeps its output line-oriented when run with --newline. The shapes
// the daemon acts on:
//
//	[download] Destination: /downloads/Some_Video.webm
//	[download]  42.5% of 118.06MiB at 2.11MiB/s ETA 00:31
//	[download] /downloads/Some_Video.webm has already been downloaded
//	[Merger] Merging formats into "/downloads/Some_Video.mkv"
//	[info] Writing video subtitles to: /downloads/Some_Video.en.srt
//	ERROR: [youtube] abc123: Video unavailable
var (
	destinationRe = regexp.MustCompile(`^\[download\] Destination: (.+)$`)
	alreadyRe     = regexp.MustCompile(`^\[download\] (.+) has already been downloaded`)
	percentRe     = regexp.MustCompile(`^\[download\]\s+([0-9.]+)%`)
	rateRe        = regexp.MustCompile(`\bat\s+(Unknown B/s|~?[0-9.]+\S*B/s)`)
	etaRe         = regexp.MustCompile(`\bETA\s+(\S+)`)
	mergerRe      = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"`)
	subtitleRe    = regexp.MustCompile(`^\[info\] Writing video (?:automatic )?subtitles to: (.+)$`)
)

const errorPrefix = "ERROR:"

// ParseLine turns one line of yt-dlp output into a record patch. Lines that
// carry nothing actionable yield nil; the caller still writes every raw line
// to the task log.
func ParseLine(line string) *task.Patch {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, errorPrefix) {
		message := strings.TrimSpace(strings.TrimPrefix(line, errorPrefix))
		if message == "" {
			message = "yt-dlp reported an error"
		}
		patch := task.FailurePatch(message)
		return &patch
	}

	if m := destinationRe.FindStringSubmatch(line); m != nil {
		return destinationPatch(m[1], nil)
	}
	if m := mergerRe.FindStringSubmatch(line); m != nil {
		return destinationPatch(m[1], nil)
	}
	if m := subtitleRe.FindStringSubmatch(line); m != nil {
		return destinationPatch(m[1], nil)
	}
	if m := alreadyRe.FindStringSubmatch(line); m != nil {
		patch := task.CompletionPatch()
		return destinationPatch(m[1], &patch)
	}

	var patch task.Patch
	if m := percentRe.FindStringSubmatch(line); m != nil {
		if value, err := strconv.ParseFloat(m[1], 64); err == nil {
			percent := clampPercent(value)
			status := task.StatusDownloading
			patch.Status = &status
			patch.Percentage = &percent
		}
	}
	if m := rateRe.FindStringSubmatch(line); m != nil {
		rate := m[1]
		patch.Rate = &rate
	}
	if m := etaRe.FindStringSubmatch(line); m != nil {
		eta := m[1]
		patch.ETA = &eta
	}
	if patch.IsZero() {
		return nil
	}
	return &patch
}

// destinationPatch records the announced output path and its base name,
// overlaying onto base when the announcement doubles as a terminal signal.
func destinationPatch(raw string, base *task.Patch) *task.Patch {
	path := strings.TrimSpace(raw)
	if path == "" {
		return base
	}
	patch := task.Patch{}
	if base != nil {
		patch = *base
	}
	name := filepath.Base(path)
	patch.OutputPath = &path
	patch.Filename = &name
	return &patch
}

// clampPercent bounds a raw percentage to [0, 100] and rounds to one decimal
// place, matching the precision yt-dlp itself prints.
func clampPercent(value float64) float64 {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	return math.Round(value*10) / 10
}
