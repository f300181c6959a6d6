// Package dispatch drains a planned job list into the storage fleet
// under bounded concurrency: a worker pool of size P pops jobs from a
// shared FIFO queue, materializes each sub-array atomically at its
// destination, and reports a summary of successes and failures.
//
// The dispatcher never halts on a per-job failure: failed jobs are
// counted and logged, and the remaining queue continues draining. It
// is non-reentrant — one Dispatcher is good for exactly one Run call.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scigolib/cubeplace/internal/metrics"
	"github.com/scigolib/cubeplace/internal/placement"
	"go.uber.org/zap"
)

// Writer materializes one planned job's sub-array to its destination.
// Implementations back onto a concrete storage.Backend; the dispatcher
// itself is backend-agnostic.
type Writer interface {
	Write(ctx context.Context, job placement.Job) error
}

// Failure records one job that failed to write.
type Failure struct {
	Destination string
	Err         error
}

// Result summarizes one Run's outcome.
type Result struct {
	Total     int
	Succeeded int
	Failed    int
	Failures  []Failure
	Cancelled bool
}

// Dispatcher drains a job list with a bounded-size worker pool.
type Dispatcher struct {
	parallelism int
	log         *zap.Logger
	recorder    *metrics.Recorder
	mode        string
	used        atomic.Bool
}

// New constructs a Dispatcher with the given degree of parallelism. A
// nil logger defaults to a no-op logger. recorder is optional (nil
// disables metrics); mode labels every job this Dispatcher reports,
// e.g. "prod" or "back".
func New(parallelism int, log *zap.Logger, recorder *metrics.Recorder, mode string) *Dispatcher {
	if parallelism <= 0 {
		parallelism = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Dispatcher{parallelism: parallelism, log: log, recorder: recorder, mode: mode}
}

// Run drains jobs through writer using up to d.parallelism concurrent
// workers. It returns once the queue is empty and every worker has
// finished its current job, or once ctx is cancelled and all
// in-flight jobs have completed.
//
// Run must be called at most once per Dispatcher instance.
func (d *Dispatcher) Run(ctx context.Context, jobs []placement.Job, writer Writer) Result {
	if !d.used.CompareAndSwap(false, true) {
		panic("dispatch: Dispatcher.Run called more than once")
	}

	result := Result{Total: len(jobs)}
	if len(jobs) == 0 {
		return result
	}

	queue := make(chan placement.Job, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	var (
		mu        sync.Mutex
		succeeded int
		failures  []Failure
		wg        sync.WaitGroup
	)

	semaphore := make(chan struct{}, d.parallelism)

	for job := range queue {
		select {
		case <-ctx.Done():
			result.Cancelled = true
		default:
		}

		if result.Cancelled {
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(j placement.Job) {
			defer wg.Done()
			defer func() { <-semaphore }()

			start := time.Now()
			err := writer.Write(ctx, j)
			d.recorder.ObserveJob(d.mode, err == nil, time.Since(start))

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				d.log.Warn("sub-array write failed",
					zap.String("destination", j.Destination),
					zap.Error(err),
				)
				failures = append(failures, Failure{Destination: j.Destination, Err: err})
				return
			}

			succeeded++
		}(job)
	}

	wg.Wait()

	result.Succeeded = succeeded
	result.Failures = failures
	result.Failed = len(failures)

	d.log.Info("dispatch run complete",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Bool("cancelled", result.Cancelled),
	)

	return result
}
