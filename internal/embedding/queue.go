package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"memoryd/internal/logging"
)

// Key identifies the artifact version a queued embedding job targets.
type Key struct {
	EntryType string
	EntryID   string
	VersionID string
}

// Job is the unit of work the queue processes: embed Text and hand the
// result to Store.
type Job struct {
	Key  Key
	Text string
}

// StoreFunc persists a computed embedding; supplied by internal/store so
// this package never imports it back (store depends on embedding, not the
// reverse).
type StoreFunc func(ctx context.Context, key Key, vector []float32, model string) error

// Queue is a bounded-concurrency worker pool with latest-wins dedup per Key:
// enqueuing the same key twice before either has started processing
// collapses to a single job carrying the most recent text, implementing the
// "map + FIFO" redesign of ambient embed-on-write calls.
type Queue struct {
	engine         Engine
	store          StoreFunc
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	workerCount    int

	mu      sync.Mutex
	pending map[Key]*Job
	order   []Key
	notify  chan struct{}

	failedMu sync.Mutex
	failed   map[Key]error

	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

// NewQueue constructs a Queue. Call Start to spawn its worker goroutines.
func NewQueue(engine Engine, store StoreFunc, concurrency, maxAttempts int, initialBackoff, maxBackoff time.Duration, capacity int) *Queue {
	if concurrency <= 0 {
		concurrency = 4
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	q := &Queue{
		engine:         engine,
		store:          store,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		pending:        make(map[Key]*Job, capacity),
		notify:         make(chan struct{}, capacity),
		failed:         make(map[Key]error),
		stopCh:         make(chan struct{}),
	}
	q.workerCount = concurrency
	return q
}

// Enqueue stages text for embedding under key. If key is already pending,
// its text is replaced (latest-wins) and no duplicate job is queued.
func (q *Queue) Enqueue(key Key, text string) {
	q.mu.Lock()
	if _, exists := q.pending[key]; !exists {
		q.order = append(q.order, key)
	}
	q.pending[key] = &Job{Key: key, Text: text}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Start spawns the worker pool. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Stop signals workers to exit and waits for them to drain their current job.
func (q *Queue) Stop() {
	q.once.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	log := logging.Get(logging.CategoryEmbedding)

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-q.notify:
		}

		for {
			job, ok := q.pop()
			if !ok {
				break
			}
			if err := q.process(ctx, job); err != nil {
				log.Warn("embedding job failed permanently for %s/%s: %v", job.Key.EntryType, job.Key.EntryID, err)
				q.failedMu.Lock()
				q.failed[job.Key] = err
				q.failedMu.Unlock()
			}
		}
	}
}

func (q *Queue) pop() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return nil, false
	}
	key := q.order[0]
	q.order = q.order[1:]
	job, ok := q.pending[key]
	delete(q.pending, key)
	return job, ok
}

func (q *Queue) process(ctx context.Context, job *Job) error {
	operation := func() ([]float32, error) {
		return EmbedForTask(ctx, q.engine, job.Text, TaskRetrievalDocument)
	}

	vector, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(q.maxAttempts)),
	)
	if err != nil {
		return fmt.Errorf("embedding: generate after retries: %w", err)
	}

	if err := q.store(ctx, job.Key, vector, q.engine.Name()); err != nil {
		return fmt.Errorf("embedding: store result: %w", err)
	}
	return nil
}

// GetFailedJobs returns the keys and errors of jobs that exhausted retries.
func (q *Queue) GetFailedJobs() map[Key]error {
	q.failedMu.Lock()
	defer q.failedMu.Unlock()
	out := make(map[Key]error, len(q.failed))
	for k, v := range q.failed {
		out[k] = v
	}
	return out
}

// RetryFailed re-enqueues a previously failed job's key with fresh text.
func (q *Queue) RetryFailed(key Key, text string) {
	q.failedMu.Lock()
	delete(q.failed, key)
	q.failedMu.Unlock()
	q.Enqueue(key, text)
}

// Depth reports the number of distinct keys currently pending, used by the
// observability counters for queue depth.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
