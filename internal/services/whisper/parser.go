package whisper

import (
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/task"
)

// event is one JSON progress line emitted by the transcriber on stderr.
// progress runs 0..1; completed and error are the only terminal sentinels.
type event struct {
	Status         string   `json:"status"`
	Progress       *float64 `json:"progress"`
	Error          string   `json:"error"`
	Language       string   `json:"language"`
	TranscriptPath string   `json:"transcript_path"`
	SegmentsPath   string   `json:"segments_path"`
	ElapsedSeconds *float64 `json:"elapsed_seconds"`
}

// ParseLine turns one line of transcriber output into a record patch. Lines
// that do not parse as JSON are diagnostics, not errors: they yield nil and
// the caller logs them as-is.
func ParseLine(line string) *task.Patch {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var payload event
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil
	}

	switch payload.Status {
	case "completed":
		return completionPatch(payload)
	case "error":
		message := strings.TrimSpace(payload.Error)
		if message == "" {
			message = "transcription failed"
		}
		patch := task.FailurePatch(message)
		return &patch
	}

	var patch task.Patch
	// Only the protocol's own sentinels above may end the task.
	if status, ok := task.ParseStatus(payload.Status); ok && !status.IsTerminal() {
		patch.Status = &status
	}
	if payload.Progress != nil {
		percent := rescaleProgress(*payload.Progress)
		patch.Percentage = &percent
	}
	if payload.ElapsedSeconds != nil {
		patch.ElapsedSeconds = payload.ElapsedSeconds
	}
	if patch.IsZero() {
		return nil
	}
	return &patch
}

func completionPatch(payload event) *task.Patch {
	patch := task.CompletionPatch()
	now := time.Now().UTC()
	patch.FinishedAt = &now
	if payload.TranscriptPath != "" {
		name := filepath.Base(payload.TranscriptPath)
		patch.OutputPath = &payload.TranscriptPath
		patch.Filename = &name
	}
	if payload.SegmentsPath != "" {
		patch.SegmentsPath = &payload.SegmentsPath
	}
	if payload.Language != "" {
		patch.DetectedLanguage = &payload.Language
	}
	if payload.ElapsedSeconds != nil {
		patch.ElapsedSeconds = payload.ElapsedSeconds
	}
	return &patch
}

// rescaleProgress maps the transcriber's 0..1 progress onto a 0-100
// percentage rounded to one decimal place.
func rescaleProgress(value float64) float64 {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return math.Round(value*1000) / 10
}
