// Package jobs tracks podcast generation requests and their lifecycle state.
package jobs

import "time"

// Status is the lifecycle state of a job.
type Status string

// Job states in pipeline order. Completed and failed are terminal.
const (
	StatusPending          Status = "pending"
	StatusExtractingText   Status = "extracting_text"
	StatusGeneratingScript Status = "generating_script"
	StatusGeneratingAudio  Status = "generating_audio"
	StatusUploadingAudio   Status = "uploading_audio"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// ProgressComplete is the only progress value a completed job may report.
const ProgressComplete = 100

// statusRank orders states so transitions can be checked for monotonicity.
// Failed shares the highest rank with completed: it is reachable from any
// running state but from neither terminal state.
var statusRank = map[Status]int{
	StatusPending:          0,
	StatusExtractingText:   1,
	StatusGeneratingScript: 2,
	StatusGeneratingAudio:  3,
	StatusUploadingAudio:   4,
	StatusCompleted:        5,
	StatusFailed:           5,
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid reports whether s is a known state.
func (s Status) IsValid() bool {
	_, ok := statusRank[s]

	return ok
}

// Job is a snapshot of one tracked podcast-generation request.
type Job struct {
	ID        string    `json:"job_id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	ResultURL string    `json:"audio_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
