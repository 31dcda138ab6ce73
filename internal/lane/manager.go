package lane

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/lanedispatch/internal/models"
	"gorm.io/datatypes"
)

var (
	ErrInvalidLaneCount = errors.New("lane count must be positive")
	ErrShutdown         = errors.New("dispatcher is shut down")
)

const managerEventBuffer = 256

// Recorder receives every job lifecycle transition. The persistence adapter
// implements it; a nil Recorder disables durability.
type Recorder interface {
	RecordTransition(job *models.JobRecord, laneIndex int)
	FlushAll(ctx context.Context) error
}

// Manager owns an ordered set of lanes. It places submissions on the least
// loaded lane, routes completion signals through an id index instead of
// broadcasting, re-emits every lane event on one unified stream, and
// handles dynamic resize without abandoning in-flight jobs.
type Manager struct {
	defaultTimeout time.Duration
	recorder       Recorder

	mu          sync.Mutex
	lanes       []*Lane
	draining    map[*Lane]struct{}
	concurrency int
	closed      bool

	idxMu sync.Mutex
	index map[string]*Lane

	out chan Event
	wg  sync.WaitGroup
}

func NewManager(laneCount, concurrency int, defaultTimeout time.Duration, recorder Recorder) (*Manager, error) {
	if laneCount <= 0 {
		return nil, ErrInvalidLaneCount
	}
	if concurrency <= 0 {
		return nil, ErrInvalidConcurrency
	}

	m := &Manager{
		defaultTimeout: defaultTimeout,
		recorder:       recorder,
		draining:       make(map[*Lane]struct{}),
		concurrency:    concurrency,
		index:          make(map[string]*Lane),
		out:            make(chan Event, managerEventBuffer),
	}

	for i := 0; i < laneCount; i++ {
		if _, err := m.addLaneLocked(i); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Events is the unified lifecycle stream: every job event annotated with
// its lane index, plus lane topology events. Slow consumers lose events;
// persistence recording happens before forwarding and is never lossy.
func (m *Manager) Events() <-chan Event { return m.out }

// Submit places a new job on the least loaded lane (ties break toward the
// lowest index) and returns its id before any processing begins.
func (m *Manager) Submit(payload datatypes.JSON, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}

	rec := &models.JobRecord{
		ID:        uuid.NewString(),
		Payload:   payload,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
		TimeoutMs: timeout.Milliseconds(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrShutdown
	}

	if err := m.placeLocked(rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// placeLocked routes a record to the least loaded lane. Caller holds m.mu.
// The id index entry is set before the lane sees the record, so a terminal
// event can never race past the index write.
func (m *Manager) placeLocked(rec *models.JobRecord) error {
	target := m.leastLoadedLocked()
	if target == nil {
		return ErrShutdown
	}

	m.idxMu.Lock()
	m.index[rec.ID] = target
	m.idxMu.Unlock()

	if err := target.Enqueue(rec); err != nil {
		m.idxMu.Lock()
		delete(m.index, rec.ID)
		m.idxMu.Unlock()
		return err
	}
	return nil
}

func (m *Manager) leastLoadedLocked() *Lane {
	var target *Lane
	best := 0
	for _, l := range m.lanes {
		if !l.active() {
			continue
		}
		if load := l.load(); target == nil || load < best {
			target, best = l, load
		}
	}
	return target
}

// Complete finalizes a running job as completed. Unknown or already
// finalized ids are a no-op.
func (m *Manager) Complete(id string) bool {
	if l := m.owner(id); l != nil {
		return l.Complete(id)
	}
	return false
}

// Fail finalizes a running job as failed with the given error text.
func (m *Manager) Fail(id string, errMsg string) bool {
	if l := m.owner(id); l != nil {
		return l.Fail(id, errMsg)
	}
	return false
}

func (m *Manager) owner(id string) *Lane {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	return m.index[id]
}

// Resize changes the number of lanes. Growing appends fresh lanes with the
// current concurrency cap. Shrinking stops admission on the removed lanes,
// resubmits their pending jobs through normal placement (ids preserved) and
// lets their running jobs finish in the background before the lanes are
// torn down.
func (m *Manager) Resize(newCount int) error {
	if newCount <= 0 {
		return ErrInvalidLaneCount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrShutdown
	}

	current := len(m.lanes)
	switch {
	case newCount == current:
		return nil

	case newCount > current:
		for i := current; i < newCount; i++ {
			if _, err := m.addLaneLocked(i); err != nil {
				return err
			}
		}
		return nil

	default:
		removed := m.lanes[newCount:]
		m.lanes = m.lanes[:newCount]

		var orphans []*models.JobRecord
		for _, l := range removed {
			l.Shutdown()
			orphans = append(orphans, l.DrainPending()...)
			m.draining[l] = struct{}{}
			go m.reap(l)
		}

		for _, rec := range orphans {
			if err := m.placeLocked(rec); err != nil {
				log.Printf("[MANAGER] dropped job %s during resize: %v", rec.ID, err)
			}
		}
		return nil
	}
}

// addLaneLocked constructs a lane, starts its event consumer and announces
// it. Caller holds m.mu.
func (m *Manager) addLaneLocked(index int) (*Lane, error) {
	l, err := New(index, m.concurrency, m.defaultTimeout)
	if err != nil {
		return nil, err
	}

	m.lanes = append(m.lanes, l)
	m.wg.Add(1)
	go m.consume(l)

	m.publish(Event{Type: EventLaneAdded, LaneIndex: index, At: time.Now().UTC()})
	return l, nil
}

// consume drains one lane's event stream: record the transition, evict
// terminal ids from the index, forward annotated events downstream.
func (m *Manager) consume(l *Lane) {
	defer m.wg.Done()

	for ev := range l.Events() {
		if ev.jobEvent() {
			if m.recorder != nil {
				m.recorder.RecordTransition(ev.Job, ev.LaneIndex)
			}
			if ev.Job.Status.Terminal() {
				m.idxMu.Lock()
				if m.index[ev.Job.ID] == l {
					delete(m.index, ev.Job.ID)
				}
				m.idxMu.Unlock()
			}
		}
		m.publish(ev)
	}
}

// reap waits for a removed lane to finish its running jobs, then tears it
// down and announces the removal.
func (m *Manager) reap(l *Lane) {
	<-l.Drained()
	l.Close()

	m.mu.Lock()
	delete(m.draining, l)
	m.mu.Unlock()

	m.publish(Event{Type: EventLaneRemoved, LaneIndex: l.Index(), At: time.Now().UTC()})
}

// UpdateConcurrency applies a new per-lane cap to every lane in place. No
// jobs move and nothing is abandoned; lowering the cap simply pauses
// admission on over-cap lanes until running jobs drain below it.
func (m *Manager) UpdateConcurrency(concurrency int) error {
	if concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrShutdown
	}

	for _, l := range m.lanes {
		if err := l.SetConcurrency(concurrency); err != nil {
			return err
		}
	}
	m.concurrency = concurrency

	m.publish(Event{Type: EventConcurrencyUpdated, LaneIndex: -1, At: time.Now().UTC()})
	return nil
}

func (m *Manager) PauseAll() {
	m.mu.Lock()
	for _, l := range m.lanes {
		l.Pause()
	}
	m.mu.Unlock()

	m.publish(Event{Type: EventAllPaused, LaneIndex: -1, At: time.Now().UTC()})
}

func (m *Manager) ResumeAll() {
	m.mu.Lock()
	for _, l := range m.lanes {
		l.Resume()
	}
	m.mu.Unlock()

	m.publish(Event{Type: EventAllResumed, LaneIndex: -1, At: time.Now().UTC()})
}

// ShutdownAll permanently stops admission on every lane and flushes the
// recorder so no buffered transition is lost on exit.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, l := range m.lanes {
		l.Shutdown()
	}
	m.mu.Unlock()

	m.publish(Event{Type: EventAllShutdown, LaneIndex: -1, At: time.Now().UTC()})

	if m.recorder != nil {
		return m.recorder.FlushAll(ctx)
	}
	return nil
}

// Restore enqueues recovered jobs into their assigned lanes. The adapter has
// already forced them to pending and remapped out-of-range lane indexes.
func (m *Manager) Restore(byLane map[int][]*models.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrShutdown
	}

	for idx, recs := range byLane {
		if idx < 0 || idx >= len(m.lanes) {
			idx = 0
		}
		target := m.lanes[idx]

		for _, rec := range recs {
			m.idxMu.Lock()
			m.index[rec.ID] = target
			m.idxMu.Unlock()

			if err := target.Enqueue(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stats returns per-lane snapshots in lane-index order.
func (m *Manager) Stats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]Stats, len(m.lanes))
	for i, l := range m.lanes {
		stats[i] = l.Stats()
	}
	return stats
}

// LaneCount returns the number of active (non-draining) lanes.
func (m *Manager) LaneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lanes)
}

// publish forwards to observers without ever blocking the core.
func (m *Manager) publish(ev Event) {
	select {
	case m.out <- ev:
	default:
	}
}
