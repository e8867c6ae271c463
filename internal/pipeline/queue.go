// Package pipeline implements the bounded submission queue, the serial
// processing worker, the record index polled by the status and results
// endpoints, and the reaper that evicts expired records.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fairyhunter13/image-checker/internal/adapter/observability"
	"github.com/fairyhunter13/image-checker/internal/domain"
)

// record tracks one submission through its lifecycle. startedAt and
// completedAt stay nil until the corresponding transition happens. All
// fields are guarded by Queue.mu.
type record struct {
	status      domain.ProcessingStatus
	result      *domain.ValidationResults
	submittedAt time.Time
	startedAt   *time.Time
	completedAt *time.Time
}

func newRecord(now time.Time) *record {
	return &record{status: domain.StatusAccepted, submittedAt: now}
}

func (r *record) start(now time.Time) {
	r.status = domain.StatusInProgress
	r.startedAt = &now
}

func (r *record) complete(res domain.ValidationResults, now time.Time) {
	r.status = domain.StatusCompleted
	r.result = &res
	r.completedAt = &now
}

func (r *record) fail(now time.Time) {
	r.status = domain.StatusFailed
	r.completedAt = &now
}

// Options configures a Queue.
type Options struct {
	// QueueSize bounds how many accepted jobs may wait for the worker.
	QueueSize int
	// ThrottlePermits is the semaphore capacity reported as
	// available_permits.
	ThrottlePermits int
	// ProcessingTimeout bounds one job and doubles as record retention.
	ProcessingTimeout time.Duration
	// ThrottleInterval is the post-job pacing delay.
	ThrottleInterval time.Duration
	// CleanupInterval is how often the reaper scans for expired records.
	CleanupInterval time.Duration
}

// Stats is a snapshot of the record index and throttle state.
type Stats struct {
	Total            int   `json:"total"`
	Accepted         int   `json:"accepted"`
	InProgress       int   `json:"in_progress"`
	Completed        int   `json:"completed"`
	Failed           int   `json:"failed"`
	AvailablePermits int64 `json:"available_permits"`
}

// Queue accepts validation jobs at ingress and drains them with a single
// worker goroutine, so jobs run strictly one at a time in submission order.
type Queue struct {
	processor domain.Processor
	opts      Options

	// items carries accepted jobs to the worker. Sends happen under mu so
	// Shutdown can close the channel without racing Submit.
	items chan domain.ProcessingRequest

	mu      sync.RWMutex
	records map[string]*record
	closed  bool

	sem     *semaphore.Weighted
	permits atomic.Int64

	quit       chan struct{}
	workerDone chan struct{}
	reaperDone chan struct{}
	stopOnce   sync.Once
}

// New builds the queue and starts its worker and reaper goroutines.
func New(processor domain.Processor, opts Options) *Queue {
	q := &Queue{
		processor:  processor,
		opts:       opts,
		items:      make(chan domain.ProcessingRequest, opts.QueueSize),
		records:    make(map[string]*record),
		sem:        semaphore.NewWeighted(int64(opts.ThrottlePermits)),
		quit:       make(chan struct{}),
		workerDone: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	q.permits.Store(int64(opts.ThrottlePermits))

	go q.worker()
	go q.reaper()
	slog.Info("processing queue started",
		slog.Int("queue_size", opts.QueueSize),
		slog.Int("throttle_permits", opts.ThrottlePermits))
	return q
}

// Submit registers the request and enqueues it. The record is inserted
// before the enqueue attempt and rolled back if the queue is full, so a
// rejected submission leaves no trace.
func (q *Queue) Submit(req domain.ProcessingRequest) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		observability.RejectSubmission("queue_closed")
		return domain.ErrQueueClosed
	}
	if _, ok := q.records[req.ProcessingID]; ok {
		q.mu.Unlock()
		observability.RejectSubmission("duplicate_id")
		return domain.ErrAlreadyExists
	}
	q.records[req.ProcessingID] = newRecord(time.Now())

	select {
	case q.items <- req:
		q.mu.Unlock()
		observability.SubmitJob()
		slog.Info("job submitted", slog.String("processing_id", req.ProcessingID))
		return nil
	default:
		delete(q.records, req.ProcessingID)
		q.mu.Unlock()
		observability.RejectSubmission("queue_full")
		return domain.ErrQueueFull
	}
}

// Status returns the lifecycle state of a submission, or StatusNotFound for
// unknown or already evicted IDs.
func (q *Queue) Status(processingID string) domain.ProcessingStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if rec, ok := q.records[processingID]; ok {
		return rec.status
	}
	return domain.StatusNotFound
}

// Result returns the stored outcome together with the current status. The
// result pointer is non-nil only for completed jobs.
func (q *Queue) Result(processingID string) (*domain.ValidationResults, domain.ProcessingStatus) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	rec, ok := q.records[processingID]
	if !ok {
		return nil, domain.StatusNotFound
	}
	return rec.result, rec.status
}

// Stats counts records by status and reports remaining throttle permits.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	s := Stats{Total: len(q.records), AvailablePermits: q.permits.Load()}
	for _, rec := range q.records {
		switch rec.status {
		case domain.StatusAccepted:
			s.Accepted++
		case domain.StatusInProgress:
			s.InProgress++
		case domain.StatusCompleted:
			s.Completed++
		case domain.StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Shutdown stops intake and closes the job channel; the worker drains every
// job accepted before the close, then exits. Shutdown waits for the worker
// and reaper until ctx expires. No accepted job is dropped or failed by the
// shutdown itself; ctx bounds only how long we wait for the drain.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.items)
		q.mu.Unlock()
		close(q.quit)
		slog.Info("processing queue shutting down")
	})

	for _, done := range []<-chan struct{}{q.workerDone, q.reaperDone} {
		select {
		case <-done:
		case <-ctx.Done():
			slog.Warn("shutdown grace elapsed before pipeline drained")
			return ctx.Err()
		}
	}
	slog.Info("processing queue stopped")
	return nil
}

// worker drains the job channel until it is closed, so jobs queued before
// shutdown are still processed on the way out.
func (q *Queue) worker() {
	defer close(q.workerDone)
	slog.Info("processing worker started")
	for req := range q.items {
		q.processOne(req)
	}
	slog.Info("processing worker stopped")
}

// processOne runs a single job: mark in progress, gate on the throttle
// semaphore, process under the job deadline, give the permit back as soon
// as the processor returns, store the outcome, then pace before the next
// job. The pacing sleep happens outside the permit.
func (q *Queue) processOne(req domain.ProcessingRequest) {
	now := time.Now()
	q.mu.Lock()
	if rec, ok := q.records[req.ProcessingID]; ok {
		rec.start(now)
	}
	q.mu.Unlock()
	observability.StartProcessingJob()

	if err := q.sem.Acquire(context.Background(), 1); err != nil {
		// Only a cancelled context can get here and we pass none; the job
		// is not failed over a throttle hiccup.
		slog.Warn("throttle acquire failed",
			slog.String("processing_id", req.ProcessingID),
			slog.Any("error", err))
		return
	}
	q.permits.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), q.opts.ProcessingTimeout)
	res, err := q.processor.Process(ctx, req)
	cancel()

	q.permits.Add(1)
	q.sem.Release(1)

	q.finish(req.ProcessingID, &res, err)

	select {
	case <-time.After(q.opts.ThrottleInterval):
	case <-q.quit:
	}
}

func (q *Queue) finish(processingID string, res *domain.ValidationResults, err error) {
	now := time.Now()
	q.mu.Lock()
	rec, ok := q.records[processingID]
	if ok {
		if err != nil {
			rec.fail(now)
		} else {
			rec.complete(*res, now)
		}
	}
	q.mu.Unlock()

	if err != nil {
		observability.FailJob()
		slog.Error("job failed",
			slog.String("processing_id", processingID),
			slog.Any("error", err))
		return
	}
	observability.CompleteJob()
	slog.Info("job completed",
		slog.String("processing_id", processingID),
		slog.String("resolution", string(res.Resolution)))
}

func (q *Queue) reaper() {
	defer close(q.reaperDone)
	ticker := time.NewTicker(q.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.quit:
			return
		case <-ticker.C:
			q.evictExpired(time.Now())
		}
	}
}

// evictExpired drops every record older than the retention window,
// regardless of status. A job still marked in_progress past the window has
// already exceeded its deadline.
func (q *Queue) evictExpired(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, rec := range q.records {
		if now.Sub(rec.submittedAt) > q.opts.ProcessingTimeout {
			delete(q.records, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("cleaned up expired records", slog.Int("count", removed))
	}
	return removed
}
