package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of background work a task performs.
type Kind string

const (
	KindDownload      Kind = "download"
	KindSubtitle      Kind = "subtitle"
	KindTranscription Kind = "transcription"
)

var allKinds = []Kind{KindDownload, KindSubtitle, KindTranscription}

// AllKinds returns the ordered list of known task kinds.
func AllKinds() []Kind {
	cp := make([]Kind, len(allKinds))
	copy(cp, allKinds)
	return cp
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range allKinds {
		if kind == normalized {
			return kind, true
		}
	}
	return "", false
}

// Status represents the lifecycle of a task record.
type Status string

const (
	StatusStarting     Status = "starting"
	StatusRunning      Status = "running"
	StatusDownloading  Status = "downloading"
	StatusLoadingModel Status = "loading_model"
	StatusTranscribing Status = "transcribing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusStarting,
	StatusRunning,
	StatusDownloading,
	StatusLoadingModel,
	StatusTranscribing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the task lifecycle. A record in a
// terminal status never changes status again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InterruptedReason is the error message set when non-terminal records are
// failed during daemon startup recovery.
const InterruptedReason = "interrupted by daemon restart"

// Record is the durable description of one background task. Records are
// append-only at the collection level: they are created once, mutated through
// patches while the task runs, and never deleted.
type Record struct {
	ID               string     `json:"id"`
	Kind             Kind       `json:"kind"`
	Status           Status     `json:"status"`
	Percentage       float64    `json:"percentage"`
	Source           string     `json:"source"`
	OutputDir        string     `json:"output_dir,omitempty"`
	OutputPath       string     `json:"output_path,omitempty"`
	Filename         string     `json:"filename,omitempty"`
	SegmentsPath     string     `json:"segments_path,omitempty"`
	DetectedLanguage string     `json:"detected_language,omitempty"`
	Title            string     `json:"title,omitempty"`
	Rate             string     `json:"rate,omitempty"`
	ETA              string     `json:"eta,omitempty"`
	Error            string     `json:"error,omitempty"`
	ExitCode         *int       `json:"exit_code,omitempty"`
	ElapsedSeconds   float64    `json:"elapsed_seconds,omitempty"`
	PID              int        `json:"pid,omitempty"`
	LogPath          string     `json:"log_path,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// NewID allocates a unique opaque task identifier.
func NewID() string {
	return uuid.NewString()
}

// NewRecord builds a starting-state record for a freshly accepted task.
func NewRecord(kind Kind, source string) Record {
	now := time.Now().UTC()
	return Record{
		ID:        NewID(),
		Kind:      kind,
		Status:    StatusStarting,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether the record has reached a terminal status.
func (r Record) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// Clone returns a deep copy so callers can hand records across goroutines
// without sharing pointer fields.
func (r Record) Clone() Record {
	cp := r
	if r.ExitCode != nil {
		v := *r.ExitCode
		cp.ExitCode = &v
	}
	if r.FinishedAt != nil {
		v := *r.FinishedAt
		cp.FinishedAt = &v
	}
	return cp
}
