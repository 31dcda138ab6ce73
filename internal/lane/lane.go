package lane

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/lanedispatch/internal/models"
	"gorm.io/datatypes"
)

var (
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	ErrLaneClosed         = errors.New("lane is shut down")
)

const eventBuffer = 128

// Stats is a point-in-time snapshot of one lane.
type Stats struct {
	LaneIndex   int  `json:"lane_index"`
	Pending     int  `json:"pending"`
	Running     int  `json:"running"`
	Concurrency int  `json:"concurrency"`
	Active      bool `json:"active"`
	Paused      bool `json:"paused"`
}

type runningJob struct {
	rec   *models.JobRecord
	timer *time.Timer
}

// Lane is a single concurrency-bounded FIFO queue. Admission is
// event-driven: it runs on submit, finalize and resume, never on a clock.
// Jobs are promoted to running strictly in arrival order and finalized by
// an external complete/fail signal or by their timeout timer, whichever
// fires first.
type Lane struct {
	index          int
	defaultTimeout time.Duration

	mu          sync.Mutex
	concurrency int
	pending     []*models.JobRecord
	running     map[string]*runningJob
	paused      bool
	closed      bool
	drained     chan struct{}
	events      chan Event
}

func New(index, concurrency int, defaultTimeout time.Duration) (*Lane, error) {
	if concurrency <= 0 {
		return nil, ErrInvalidConcurrency
	}

	return &Lane{
		index:          index,
		defaultTimeout: defaultTimeout,
		concurrency:    concurrency,
		running:        make(map[string]*runningJob),
		drained:        make(chan struct{}),
		events:         make(chan Event, eventBuffer),
	}, nil
}

func (l *Lane) Index() int { return l.index }

// Events is the lane's lifecycle stream. It is consumed centrally (by the
// manager); the channel is closed by Close once the lane is drained.
func (l *Lane) Events() <-chan Event { return l.events }

// Drained is closed once the lane is shut down and holds no jobs.
func (l *Lane) Drained() <-chan struct{} { return l.drained }

// Submit enqueues a new pending job at the tail of the FIFO and returns its
// id immediately. A non-positive timeout resolves to the lane default.
func (l *Lane) Submit(payload datatypes.JSON, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = l.defaultTimeout
	}

	rec := &models.JobRecord{
		ID:        uuid.NewString(),
		Payload:   payload,
		Status:    models.StatusPending,
		LaneIndex: l.index,
		CreatedAt: time.Now().UTC(),
		TimeoutMs: timeout.Milliseconds(),
	}

	if err := l.Enqueue(rec); err != nil {
		return "", err
	}

	return rec.ID, nil
}

// Enqueue appends an existing record to the pending FIFO. Used by the
// manager for placement, recovery restores and shrink resubmission; the
// record keeps its id, payload, creation time and timeout.
func (l *Lane) Enqueue(rec *models.JobRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLaneClosed
	}

	rec.Status = models.StatusPending
	rec.LaneIndex = l.index
	l.pending = append(l.pending, rec)
	l.emitLocked(EventQueued, rec)
	l.admitLocked()

	return nil
}

// Complete finalizes a running job as completed. Reports whether this lane
// acted; an id not running here is a safe no-op.
func (l *Lane) Complete(id string) bool {
	return l.finalize(id, models.StatusCompleted, "")
}

// Fail finalizes a running job as failed, recording the error text.
func (l *Lane) Fail(id string, errMsg string) bool {
	return l.finalize(id, models.StatusFailed, errMsg)
}

func (l *Lane) finalize(id string, status models.JobStatus, errMsg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.running[id]
	if !ok {
		return false
	}

	entry.timer.Stop()
	l.finalizeLocked(entry.rec, status, errMsg)
	return true
}

func (l *Lane) finalizeLocked(rec *models.JobRecord, status models.JobStatus, errMsg string) {
	now := time.Now().UTC()
	rec.Status = status
	rec.CompletedAt = &now
	rec.Error = errMsg
	delete(l.running, rec.ID)

	var typ EventType
	switch status {
	case models.StatusCompleted:
		typ = EventCompleted
	case models.StatusFailed:
		typ = EventFailed
	default:
		typ = EventTimedOut
	}
	l.emitLocked(typ, rec)

	l.admitLocked()
	l.maybeDrainedLocked()
}

// expire is the timeout timer callback. Timed-out jobs are a distinct
// terminal state, not a failure: no error text is recorded.
func (l *Lane) expire(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.running[id]
	if !ok {
		return
	}

	l.finalizeLocked(entry.rec, models.StatusTimedOut, "")
}

// admitLocked promotes pending jobs while capacity allows. Caller holds l.mu.
func (l *Lane) admitLocked() {
	for !l.paused && !l.closed && len(l.running) < l.concurrency && len(l.pending) > 0 {
		rec := l.pending[0]
		l.pending = l.pending[1:]

		now := time.Now().UTC()
		rec.Status = models.StatusRunning
		rec.StartedAt = &now

		id := rec.ID
		l.running[id] = &runningJob{
			rec:   rec,
			timer: time.AfterFunc(rec.Timeout(), func() { l.expire(id) }),
		}

		l.emitLocked(EventStarted, rec)
	}
}

// Pause stops admission; running jobs are unaffected.
func (l *Lane) Pause() {
	l.mu.Lock()
	l.paused = true
	l.mu.Unlock()
}

// Resume re-enables admission and immediately promotes what capacity allows.
func (l *Lane) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.paused = false
	l.admitLocked()
}

// Shutdown permanently stops admission. Running jobs keep their timers and
// still accept complete/fail; pending jobs stay queued until drained.
func (l *Lane) Shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.maybeDrainedLocked()
}

// DrainPending removes and returns every pending job, oldest first.
func (l *Lane) DrainPending() []*models.JobRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	drained := l.pending
	l.pending = nil
	l.maybeDrainedLocked()
	return drained
}

// Close closes the event stream. Only call once the lane is drained.
func (l *Lane) Close() {
	close(l.events)
}

// SetConcurrency updates the cap in place. Raising it admits immediately;
// lowering it lets excess running jobs finish before admission resumes.
func (l *Lane) SetConcurrency(concurrency int) error {
	if concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.concurrency = concurrency
	l.admitLocked()
	return nil
}

// PendingSnapshot returns copies of the pending jobs in FIFO order.
func (l *Lane) PendingSnapshot() []*models.JobRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := make([]*models.JobRecord, len(l.pending))
	for i, rec := range l.pending {
		snap[i] = rec.Clone()
	}
	return snap
}

func (l *Lane) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		LaneIndex:   l.index,
		Pending:     len(l.pending),
		Running:     len(l.running),
		Concurrency: l.concurrency,
		Active:      !l.closed,
		Paused:      l.paused,
	}
}

// load is the placement metric: pending + running.
func (l *Lane) load() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) + len(l.running)
}

func (l *Lane) active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

func (l *Lane) emitLocked(typ EventType, rec *models.JobRecord) {
	l.events <- Event{
		Type:      typ,
		LaneIndex: l.index,
		Job:       rec.Clone(),
		At:        time.Now().UTC(),
	}
}

func (l *Lane) maybeDrainedLocked() {
	if !l.closed || len(l.running) > 0 || len(l.pending) > 0 {
		return
	}
	select {
	case <-l.drained:
	default:
		close(l.drained)
	}
}
