package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"scribe/internal/ipc"
)

func buildTaskStatusRows(counts map[string]int) [][]string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", counts[key])})
	}
	return rows
}

func buildTaskListRows(records []ipc.TaskRecord) [][]string {
	if len(records) == 0 {
		return nil
	}
	sorted := make([]ipc.TaskRecord, len(records))
	copy(sorted, records)

	sort.Slice(sorted, func(i, j int) bool {
		ti := sorted[i].CreatedAt
		tj := sorted[j].CreatedAt
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, rec := range sorted {
		rows = append(rows, []string{
			rec.ID,
			formatStatusLabel(string(rec.Kind)),
			taskDisplayTitle(rec),
			formatStatusLabel(string(rec.Status)),
			formatPercent(rec.Percentage),
			formatDisplayTime(rec.CreatedAt),
		})
	}
	return rows
}

// taskDisplayTitle prefers the probed title and falls back to the last source
// path segment, which reads better than a full URL in a narrow column.
func taskDisplayTitle(rec ipc.TaskRecord) string {
	if title := strings.TrimSpace(rec.Title); title != "" {
		return title
	}
	source := strings.TrimSpace(rec.Source)
	if source == "" {
		return "Unknown"
	}
	if base := strings.Trim(filepath.Base(source), "/"); base != "" && base != "." {
		return base
	}
	return source
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%.0f%%", value)
}

func formatDisplayTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format("2006-01-02 15:04")
}

// buildTaskDetailLines renders one record as aligned label/value pairs for
// `scribe show`. Empty fields are skipped so terminal records stay compact.
func buildTaskDetailLines(rec ipc.TaskRecord) []string {
	type field struct {
		label string
		value string
	}
	fields := []field{
		{"ID", rec.ID},
		{"Kind", formatStatusLabel(string(rec.Kind))},
		{"Title", strings.TrimSpace(rec.Title)},
		{"Status", formatStatusLabel(string(rec.Status))},
		{"Progress", formatPercent(rec.Percentage)},
		{"Source", strings.TrimSpace(rec.Source)},
		{"Output", strings.TrimSpace(rec.OutputPath)},
		{"Filename", strings.TrimSpace(rec.Filename)},
		{"Segments", strings.TrimSpace(rec.SegmentsPath)},
		{"Language", strings.TrimSpace(rec.DetectedLanguage)},
		{"Rate", strings.TrimSpace(rec.Rate)},
		{"ETA", strings.TrimSpace(rec.ETA)},
		{"Elapsed", formatElapsed(rec.ElapsedSeconds)},
		{"Error", strings.TrimSpace(rec.Error)},
		{"Log", strings.TrimSpace(rec.LogPath)},
		{"Created", formatAge(rec.CreatedAt)},
		{"Updated", formatAge(rec.UpdatedAt)},
	}
	if rec.ExitCode != nil {
		fields = append(fields, field{"Exit code", fmt.Sprintf("%d", *rec.ExitCode)})
	}
	if rec.FinishedAt != nil {
		fields = append(fields, field{"Finished", formatAge(*rec.FinishedAt)})
	}

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%-10s %s", f.label+":", f.value))
	}
	return lines
}

// formatAge renders a relative timestamp ("3 minutes ago") for detail views.
func formatAge(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return humanize.Time(value)
}

func formatElapsed(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}
