package domain

import "time"

// JobState tracks the lifecycle of a single download job.
type JobState string

const (
	JobStateIdle       JobState = "idle"
	JobStateRunning    JobState = "running"
	JobStateCancelling JobState = "cancelling"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

// IsActive reports whether the state still owns the engine call.
func (s JobState) IsActive() bool {
	return s == JobStateRunning || s == JobStateCancelling
}

// IsTerminal reports whether no further transitions are possible.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// DefaultContainer is the single output container produced by every job.
const DefaultContainer = "mp4"

// JobDescriptor is the immutable request for one download.
type JobDescriptor struct {
	URL        string `json:"url"`
	Directory  string `json:"directory"`
	Container  string `json:"container"`
	FFmpegPath string `json:"ffmpegPath"`
	YTDLPPath  string `json:"ytdlpPath,omitempty"`
}

// ProgressRecord is the latest normalized progress for a job.
// Percentage is nil whenever the total size is unknown or zero.
type ProgressRecord struct {
	JobID           string   `json:"jobId"`
	Status          string   `json:"status"`
	DownloadedBytes int64    `json:"downloadedBytes"`
	TotalBytes      int64    `json:"totalBytes,omitempty"`
	Percentage      *float64 `json:"percentage,omitempty"`
	Phrase          string   `json:"phrase"`
	Filename        string   `json:"filename,omitempty"`
	Title           string   `json:"title,omitempty"`
}

// HasPercentage reports whether a percentage could be derived.
func (p ProgressRecord) HasPercentage() bool {
	return p.Percentage != nil
}

// Settings contains user preferences persisted between launches.
type Settings struct {
	LastDirectory string `json:"last_directory"`
	FFmpegPath    string `json:"ffmpeg_path,omitempty"`
	YTDLPPath     string `json:"ytdlp_path,omitempty"`
	Container     string `json:"container,omitempty"`
}

// Job is a snapshot of the current job identity and lifecycle state.
type Job struct {
	ID         string        `json:"id"`
	State      JobState      `json:"state"`
	Descriptor JobDescriptor `json:"descriptor"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"startedAt,omitempty"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
}
