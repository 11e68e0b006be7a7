package model

import (
	"fmt"
	"time"
)

type RetrainState string

const (
	RetrainIdle       RetrainState = "idle"
	RetrainConnecting RetrainState = "connecting"
	RetrainStreaming  RetrainState = "streaming"
	RetrainCompleted  RetrainState = "completed"
	RetrainFailed     RetrainState = "failed"
)

var retrainTransitions = map[RetrainState][]RetrainState{
	RetrainIdle:       {RetrainConnecting},
	RetrainConnecting: {RetrainStreaming, RetrainFailed},
	RetrainStreaming:  {RetrainCompleted, RetrainFailed},
}

// Terminal reports whether no further transition is possible.
func (s RetrainState) Terminal() bool {
	return s == RetrainCompleted || s == RetrainFailed
}

// RetrainRun is the lifecycle record of one relayed retraining job. Log output
// is never kept, only the counters.
type RetrainRun struct {
	ID             uint         `gorm:"primaryKey" json:"-"`
	RunID          string       `gorm:"size:36;not null;uniqueIndex" json:"run_id"`
	State          RetrainState `gorm:"size:16;not null;index" json:"state"`
	UpstreamStatus int          `json:"upstream_status,omitempty"`
	BytesRelayed   int64        `json:"bytes_relayed"`
	Failure        string       `gorm:"size:512" json:"failure,omitempty"`
	StartedAt      time.Time    `gorm:"not null;index" json:"started_at"`
	FinishedAt     *time.Time   `json:"finished_at,omitempty"`
	UpdatedAt      time.Time    `json:"-"`
}

func NewRetrainRun(runID string, now time.Time) *RetrainRun {
	return &RetrainRun{
		RunID:     runID,
		State:     RetrainIdle,
		StartedAt: now,
	}
}

// Advance moves the run to the next state, stamping FinishedAt on terminal
// states. Illegal transitions leave the run untouched.
func (r *RetrainRun) Advance(to RetrainState, now time.Time) error {
	for _, allowed := range retrainTransitions[r.State] {
		if allowed == to {
			r.State = to
			if to.Terminal() {
				finished := now
				r.FinishedAt = &finished
			}
			return nil
		}
	}
	return fmt.Errorf("illegal retrain transition %s -> %s", r.State, to)
}

// Duration is zero until the run has finished.
func (r *RetrainRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
