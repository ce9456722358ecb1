package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pricepulse/logger"
)

// Job is one periodic background task. The running flag prevents a tick from
// overlapping a still-active previous run: overlapping batch refreshes would
// contend for the same strategy cooldown state and double the request rate
// against an already rate-limited target.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	running atomic.Bool
}

// Worker executes periodic jobs, one dedicated goroutine per job.
type Worker struct {
	jobs []*Job
	log  *logger.Logger
}

// NewWorker creates a worker over a set of jobs.
func NewWorker(jobs ...*Job) *Worker {
	return &Worker{
		jobs: jobs,
		log:  logger.ForComponent("worker"),
	}
}

// Start runs every job until the context is cancelled. Each job fires once
// immediately, then on its interval.
func (w *Worker) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range w.jobs {
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			w.runJob(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (w *Worker) runJob(ctx context.Context, job *Job) {
	w.log.Info().Str("job", job.Name).Dur("interval", job.Interval).Msg("Job scheduled")

	w.tick(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx, job)
		}
	}
}

// tick runs the job once, skipping when the previous run has not finished.
func (w *Worker) tick(ctx context.Context, job *Job) {
	if !job.running.CompareAndSwap(false, true) {
		w.log.Warn().Str("job", job.Name).Msg("Previous run still active, skipping tick")
		return
	}
	defer job.running.Store(false)

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		logger.LogError("worker", err, "job %s failed", job.Name)
		return
	}
	w.log.Debug().Str("job", job.Name).Dur("elapsed", time.Since(start)).Msg("Job completed")
}
