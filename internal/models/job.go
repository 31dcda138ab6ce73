package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusTimedOut  JobStatus = "timed_out"
)

// TerminalStatuses are absorbing: a job that reaches one never transitions again.
var TerminalStatuses = []JobStatus{StatusCompleted, StatusFailed, StatusTimedOut}

func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

// JobRecord is one unit of work and its lifecycle state. The payload is
// opaque to the dispatcher; the external processor that picks the job up is
// the only party that interprets it.
type JobRecord struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Payload     datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Status      JobStatus      `gorm:"type:varchar(20);not null;index" json:"status"`
	LaneIndex   int            `gorm:"not null" json:"lane_index"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `gorm:"index" json:"completed_at,omitempty"`
	TimeoutMs   int64          `gorm:"not null" json:"timeout_ms"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
}

func (JobRecord) TableName() string { return "jobs" }

// Timeout returns the effective timeout resolved at submission.
func (j *JobRecord) Timeout() time.Duration {
	return time.Duration(j.TimeoutMs) * time.Millisecond
}

// Clone returns a copy safe to hand outside the owning lane's lock.
func (j *JobRecord) Clone() *JobRecord {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Payload != nil {
		c.Payload = make(datatypes.JSON, len(j.Payload))
		copy(c.Payload, j.Payload)
	}
	return &c
}
