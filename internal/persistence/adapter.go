// Package persistence buffers job lifecycle transitions and batches them to
// durable storage. In-memory lane state stays authoritative: a failed write
// is logged and retried on the next cycle, never surfaced to the hot path.
package persistence

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/joshu-sajeev/lanedispatch/internal/models"
)

// Store is the durable-storage boundary. The gorm job store implements it;
// tests substitute a mock.
type Store interface {
	UpsertJob(ctx context.Context, job *models.JobRecord) error
	BatchUpsertJobs(ctx context.Context, jobs []*models.JobRecord) error
	FindJobsByStatus(ctx context.Context, statuses []models.JobStatus) ([]*models.JobRecord, error)
	DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Adapter coalesces transitions per job id (last writer wins) and flushes
// them in bounded batches on a fixed interval. Intermediate states may be
// superseded before they reach storage; no transition is ever dropped.
type Adapter struct {
	store     Store
	interval  time.Duration
	batchSize int

	mu     sync.Mutex
	buffer map[string]*models.JobRecord

	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started bool
}

func NewAdapter(store Store, interval time.Duration, batchSize int) *Adapter {
	return &Adapter{
		store:     store,
		interval:  interval,
		batchSize: batchSize,
		buffer:    make(map[string]*models.JobRecord),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the periodic flush loop.
func (a *Adapter) Start() {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	a.mu.Unlock()

	go a.loop()
}

func (a *Adapter) loop() {
	defer close(a.done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.Flush(context.Background()); err != nil {
				log.Printf("[FLUSH] batch write failed, will retry: %v", err)
			}
		case <-a.stop:
			return
		}
	}
}

// RecordTransition buffers the latest state of a job. Called on every
// lifecycle event; multiple transitions for one id collapse to the newest.
func (a *Adapter) RecordTransition(job *models.JobRecord, laneIndex int) {
	rec := job.Clone()
	rec.LaneIndex = laneIndex

	a.mu.Lock()
	a.buffer[rec.ID] = rec
	a.mu.Unlock()
}

// Flush writes at most batchSize buffered transitions as one batch upsert.
// The batch is taken out of the buffer first, so a transition recorded
// after selection lands in the next cycle instead of being lost. On error
// the batch is restored, except where a newer transition has since arrived.
func (a *Adapter) Flush(ctx context.Context) error {
	batch := a.takeBatch(a.batchSize)
	if len(batch) == 0 {
		return nil
	}

	if err := a.store.BatchUpsertJobs(ctx, batch); err != nil {
		a.restoreBatch(batch)
		return err
	}
	return nil
}

// FlushAll drains the entire buffer, batch by batch.
func (a *Adapter) FlushAll(ctx context.Context) error {
	for {
		batch := a.takeBatch(a.batchSize)
		if len(batch) == 0 {
			return nil
		}
		if err := a.store.BatchUpsertJobs(ctx, batch); err != nil {
			a.restoreBatch(batch)
			return err
		}
	}
}

func (a *Adapter) takeBatch(limit int) []*models.JobRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buffer) == 0 {
		return nil
	}

	batch := make([]*models.JobRecord, 0, min(limit, len(a.buffer)))
	for id, rec := range a.buffer {
		if len(batch) == limit {
			break
		}
		batch = append(batch, rec)
		delete(a.buffer, id)
	}
	return batch
}

func (a *Adapter) restoreBatch(batch []*models.JobRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, rec := range batch {
		if _, newer := a.buffer[rec.ID]; !newer {
			a.buffer[rec.ID] = rec
		}
	}
}

// Pending reports how many transitions are waiting for the next flush.
func (a *Adapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

// Recover loads every unfinished job for redistribution across laneCount
// lanes. Jobs persisted as running mean the previous process died mid-flight
// and nothing external holds a handle on them, so they are downgraded to
// pending and the downgrade is persisted before this returns. Lane indexes
// from a wider topology are remapped via modulo.
func (a *Adapter) Recover(ctx context.Context, laneCount int) (map[int][]*models.JobRecord, error) {
	jobs, err := a.store.FindJobsByStatus(ctx, []models.JobStatus{models.StatusPending, models.StatusRunning})
	if err != nil {
		return nil, err
	}

	var downgraded []*models.JobRecord
	byLane := make(map[int][]*models.JobRecord)

	for _, job := range jobs {
		if job.Status == models.StatusRunning {
			job.Status = models.StatusPending
			job.StartedAt = nil
			downgraded = append(downgraded, job)
		}
		if job.LaneIndex >= laneCount || job.LaneIndex < 0 {
			job.LaneIndex = ((job.LaneIndex % laneCount) + laneCount) % laneCount
		}
		byLane[job.LaneIndex] = append(byLane[job.LaneIndex], job)
	}

	if len(downgraded) > 0 {
		if err := a.store.BatchUpsertJobs(ctx, downgraded); err != nil {
			return nil, err
		}
	}

	return byLane, nil
}

// Cleanup deletes terminal jobs finalized before now-age and returns the
// number removed.
func (a *Adapter) Cleanup(ctx context.Context, age time.Duration) (int64, error) {
	return a.store.DeleteTerminalJobsBefore(ctx, time.Now().UTC().Add(-age))
}

// Shutdown stops the flush loop and forces one last full flush.
func (a *Adapter) Shutdown(ctx context.Context) error {
	a.once.Do(func() {
		close(a.stop)

		a.mu.Lock()
		started := a.started
		a.mu.Unlock()
		if started {
			<-a.done
		}
	})
	return a.FlushAll(ctx)
}
