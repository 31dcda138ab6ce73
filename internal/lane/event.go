package lane

import (
	"time"

	"github.com/joshu-sajeev/lanedispatch/internal/models"
)

type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventTimedOut  EventType = "timed_out"

	EventLaneAdded          EventType = "lane_added"
	EventLaneRemoved        EventType = "lane_removed"
	EventConcurrencyUpdated EventType = "concurrency_updated"
	EventAllPaused          EventType = "all_paused"
	EventAllResumed         EventType = "all_resumed"
	EventAllShutdown        EventType = "all_shutdown"
)

// Event is one entry in the unified lifecycle stream. Job is a snapshot
// taken at emission time and is nil for lane-topology events.
type Event struct {
	Type      EventType         `json:"type"`
	LaneIndex int               `json:"lane_index"`
	Job       *models.JobRecord `json:"job,omitempty"`
	At        time.Time         `json:"at"`
}

func (e Event) jobEvent() bool { return e.Job != nil }
