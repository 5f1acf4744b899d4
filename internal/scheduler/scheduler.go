// Package scheduler runs periodic background jobs: embedding queue
// draining, re-embed dimension checks, archival sweeps, librarian trigger
// checks.
package scheduler

import (
	"context"
	"time"

	"memoryd/internal/logging"
)

// Job is a named periodic task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduledJob struct {
	job      Job
	interval time.Duration
	ticker   *time.Ticker
	stop     chan struct{}
}

// Scheduler runs a fixed set of Jobs on independent tickers.
type Scheduler struct {
	jobs []scheduledJob
}

// New constructs an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// AddJob registers job to run every interval once Start is called.
func (s *Scheduler) AddJob(job Job, interval time.Duration) {
	s.jobs = append(s.jobs, scheduledJob{job: job, interval: interval, stop: make(chan struct{})})
}

// Start launches one goroutine per registered job.
func (s *Scheduler) Start(ctx context.Context) {
	log := logging.Get(logging.CategoryScheduler)

	for i := range s.jobs {
		sj := &s.jobs[i]
		sj.ticker = time.NewTicker(sj.interval)

		go func(sj *scheduledJob) {
			log.Info("starting scheduled job %s every %s", sj.job.Name(), sj.interval)

			for {
				select {
				case <-sj.ticker.C:
					log.Debug("running scheduled job %s", sj.job.Name())
					if err := sj.job.Run(ctx); err != nil {
						log.Error("scheduled job %s failed: %v", sj.job.Name(), err)
					}
				case <-sj.stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}(sj)
	}
}

// Stop halts every scheduled job's ticker and goroutine.
func (s *Scheduler) Stop() {
	log := logging.Get(logging.CategoryScheduler)
	for i := range s.jobs {
		if s.jobs[i].ticker != nil {
			s.jobs[i].ticker.Stop()
		}
		close(s.jobs[i].stop)
	}
	log.Info("scheduler stopped")
}
