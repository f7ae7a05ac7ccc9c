package journal

import (
	"strings"
	"time"
)

// State represents the lifecycle of a locally journaled job.
type State string

const (
	StateClaimed   State = "claimed"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateRejected  State = "rejected"
)

// WorkerStopReason is the error recorded for jobs interrupted by a worker restart.
const WorkerStopReason = "Worker stopped before the job finished"

var allStates = []State{
	StateClaimed,
	StateRunning,
	StateCompleted,
	StateFailed,
	StateRejected,
}

// Job is a workspace the worker claimed from the account service.
type Job struct {
	ID              int64     `json:"id"`
	CorrelationID   string    `json:"correlation_id"`
	Workspace       string    `json:"workspace"`
	Operation       string    `json:"operation"`
	Region          string    `json:"region"`
	State           State     `json:"state"`
	Endpoint        string    `json:"endpoint"`
	ProgressPercent float64   `json:"progress_percent"`
	ProgressMessage string    `json:"progress_message"`
	ErrorMessage    string    `json:"error_message"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Report is one lifecycle event the worker sent for a job.
type Report struct {
	ID        int64   `json:"id"`
	JobID     int64   `json:"job_id"`
	Workspace string  `json:"workspace"`
	Event     string  `json:"event"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message"`
	// Error holds the delivery failure, empty when the report was sent.
	Error  string    `json:"error"`
	SentAt time.Time `json:"sent_at"`
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	return append([]State(nil), allStates...)
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	for _, state := range allStates {
		if state == normalized {
			return state, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are expected.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateRejected:
		return true
	default:
		return false
	}
}

// SetProgress updates the progress fields together.
func (j *Job) SetProgress(percent float64, message string) {
	j.ProgressPercent = percent
	j.ProgressMessage = message
}
