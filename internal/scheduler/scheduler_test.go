package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingJob struct {
	name  string
	count atomic.Int32
	fail  bool
}

func (j *countingJob) Name() string { return j.name }
func (j *countingJob) Run(ctx context.Context) error {
	j.count.Add(1)
	if j.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func TestSchedulerRunsJobOnInterval(t *testing.T) {
	s := New()
	job := &countingJob{name: "sweep"}
	s.AddJob(job, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop()

	time.Sleep(30 * time.Millisecond)

	if job.count.Load() < 2 {
		t.Fatalf("expected job to run at least twice in 30ms at a 5ms interval, ran %d times", job.count.Load())
	}
}

func TestSchedulerStopHaltsJobs(t *testing.T) {
	s := New()
	job := &countingJob{name: "sweep"}
	s.AddJob(job, 5*time.Millisecond)

	ctx := context.Background()
	s.Start(ctx)
	time.Sleep(15 * time.Millisecond)
	s.Stop()

	countAtStop := job.count.Load()
	time.Sleep(20 * time.Millisecond)

	if job.count.Load() != countAtStop {
		t.Fatalf("expected no further runs after Stop, count went from %d to %d", countAtStop, job.count.Load())
	}
}

func TestSchedulerContinuesAfterJobError(t *testing.T) {
	s := New()
	job := &countingJob{name: "failing", fail: true}
	s.AddJob(job, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	time.Sleep(25 * time.Millisecond)

	if job.count.Load() < 2 {
		t.Fatalf("expected repeated runs despite job errors, ran %d times", job.count.Load())
	}
}
