package ipc

import (
	"scribe/internal/daemon"
	"scribe/internal/services/ytdlp"
	"scribe/internal/task"
)

// StartRequest starts the daemon engine if it is stopped.
type StartRequest struct{}

// StartResponse indicates whether the engine was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon engine. The process keeps serving IPC.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries the daemon status snapshot. The daemon type is
// already wire-shaped, so IPC ships it unchanged.
type StatusResponse = daemon.Status

// TaskRecord mirrors the stored task document for IPC callers.
type TaskRecord = task.Record

// Metadata mirrors probe results for IPC callers.
type Metadata = ytdlp.Metadata

// TaskStartRequest launches a new background task.
type TaskStartRequest struct {
	Kind      string `json:"kind"`
	Source    string `json:"source"`
	OutputDir string `json:"output_dir,omitempty"`
	Language  string `json:"language,omitempty"`
}

// TaskStartResponse identifies the accepted task.
type TaskStartResponse struct {
	TaskID  string `json:"task_id"`
	Title   string `json:"title,omitempty"`
	LogPath string `json:"log_path,omitempty"`
}

// TaskListRequest filters task listing by status names.
type TaskListRequest struct {
	Statuses []string `json:"statuses"`
}

// TaskListResponse contains task records.
type TaskListResponse struct {
	Tasks []TaskRecord `json:"tasks"`
}

// TaskDescribeRequest fetches a single task by id.
type TaskDescribeRequest struct {
	ID string `json:"id"`
}

// TaskDescribeResponse contains a single task record.
type TaskDescribeResponse struct {
	Task TaskRecord `json:"task"`
}

// LogTailRequest fetches per-task log lines based on offset and follow
// semantics.
type LogTailRequest struct {
	TaskID     string `json:"task_id"`
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// ProbeRequest fetches metadata for a source URL without starting a task.
type ProbeRequest struct {
	Source string `json:"source"`
}

// ProbeResponse carries probe metadata.
type ProbeResponse struct {
	Metadata Metadata `json:"metadata"`
}
