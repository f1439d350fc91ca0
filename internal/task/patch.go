package task

import "time"

// Patch describes a partial update to a Record. Nil fields are left
// untouched; set fields overwrite the record's values. Using a struct instead
// of a loose map keeps the set of mutable fields compile-checked.
type Patch struct {
	Status           *Status
	Percentage       *float64
	OutputPath       *string
	Filename         *string
	SegmentsPath     *string
	DetectedLanguage *string
	Title            *string
	Rate             *string
	ETA              *string
	Error            *string
	ExitCode         *int
	ElapsedSeconds   *float64
	PID              *int
	LogPath          *string
	FinishedAt       *time.Time
}

// IsZero reports whether the patch carries no field updates.
func (p Patch) IsZero() bool {
	return p == Patch{}
}

// Terminal reports whether applying the patch would move a record into a
// terminal status.
func (p Patch) Terminal() bool {
	return p.Status != nil && p.Status.IsTerminal()
}

// Merge overlays next onto p: fields set in next win, fields unset in next
// keep p's values.
func (p *Patch) Merge(next Patch) {
	if next.Status != nil {
		p.Status = next.Status
	}
	if next.Percentage != nil {
		p.Percentage = next.Percentage
	}
	if next.OutputPath != nil {
		p.OutputPath = next.OutputPath
	}
	if next.Filename != nil {
		p.Filename = next.Filename
	}
	if next.SegmentsPath != nil {
		p.SegmentsPath = next.SegmentsPath
	}
	if next.DetectedLanguage != nil {
		p.DetectedLanguage = next.DetectedLanguage
	}
	if next.Title != nil {
		p.Title = next.Title
	}
	if next.Rate != nil {
		p.Rate = next.Rate
	}
	if next.ETA != nil {
		p.ETA = next.ETA
	}
	if next.Error != nil {
		p.Error = next.Error
	}
	if next.ExitCode != nil {
		p.ExitCode = next.ExitCode
	}
	if next.ElapsedSeconds != nil {
		p.ElapsedSeconds = next.ElapsedSeconds
	}
	if next.PID != nil {
		p.PID = next.PID
	}
	if next.LogPath != nil {
		p.LogPath = next.LogPath
	}
	if next.FinishedAt != nil {
		p.FinishedAt = next.FinishedAt
	}
}

// apply writes the patch onto rec. Timestamp stamping is the store's job.
func (p Patch) apply(rec *Record) {
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.Percentage != nil {
		rec.Percentage = *p.Percentage
	}
	if p.OutputPath != nil {
		rec.OutputPath = *p.OutputPath
	}
	if p.Filename != nil {
		rec.Filename = *p.Filename
	}
	if p.SegmentsPath != nil {
		rec.SegmentsPath = *p.SegmentsPath
	}
	if p.DetectedLanguage != nil {
		rec.DetectedLanguage = *p.DetectedLanguage
	}
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Rate != nil {
		rec.Rate = *p.Rate
	}
	if p.ETA != nil {
		rec.ETA = *p.ETA
	}
	if p.Error != nil {
		rec.Error = *p.Error
	}
	if p.ExitCode != nil {
		v := *p.ExitCode
		rec.ExitCode = &v
	}
	if p.ElapsedSeconds != nil {
		rec.ElapsedSeconds = *p.ElapsedSeconds
	}
	if p.PID != nil {
		rec.PID = *p.PID
	}
	if p.LogPath != nil {
		rec.LogPath = *p.LogPath
	}
	if p.FinishedAt != nil {
		v := *p.FinishedAt
		rec.FinishedAt = &v
	}
}

// StatusPatch builds a patch that only moves the status.
func StatusPatch(status Status) Patch {
	return Patch{Status: &status}
}

// ProgressPatch builds an in-progress patch with status and percentage.
func ProgressPatch(status Status, percent float64) Patch {
	return Patch{Status: &status, Percentage: &percent}
}

// CompletionPatch builds the canonical terminal success patch.
func CompletionPatch() Patch {
	status := StatusCompleted
	percent := 100.0
	return Patch{Status: &status, Percentage: &percent}
}

// FailurePatch builds the canonical terminal failure patch.
func FailurePatch(message string) Patch {
	status := StatusFailed
	return Patch{Status: &status, Error: &message}
}
