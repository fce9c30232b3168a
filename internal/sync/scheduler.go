package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
)

// DefaultWorkers is the worker pool size used when none is configured.
const DefaultWorkers = 5

// job is one unit of work: a full sync of a single account. The
// account identity travels with the job so every failure path can
// still produce an attributable result.
type job struct {
	ctx     context.Context
	account Account
	count   int
	results chan<- Result
}

// Scheduler runs per-user syncs concurrently on a fixed-size worker
// pool. Each worker executes one account's full sync to completion
// before taking the next; there is no per-message parallelism.
type Scheduler struct {
	coord *Coordinator
	log   *slog.Logger
	jobs  chan job
	wg    gosync.WaitGroup

	mu     gosync.RWMutex
	closed bool
}

// NewScheduler creates a Scheduler with the given pool size and starts
// its workers. A non-positive workers value falls back to DefaultWorkers.
func NewScheduler(coord *Coordinator, workers int, log *slog.Logger) *Scheduler {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Scheduler{
		coord: coord,
		log:   log,
		jobs:  make(chan job),
	}

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}

	s.log.Debug("sync scheduler started", "workers", workers)
	return s
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for j := range s.jobs {
		j.results <- s.runJob(j)
	}
}

// runJob executes one sync and converts a panicking task into an
// attributable failed Result instead of losing the worker.
func (s *Scheduler) runJob(j job) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sync task panicked", "account", j.account.Email, "panic", r)
			result = Result{
				Account: j.account.Email,
				Errors:  []string{fmt.Sprintf("sync task failed: %v", r)},
			}
		}
	}()

	return s.coord.SyncUser(j.ctx, j.account, j.count)
}

// SyncMany syncs every submitted account concurrently and returns
// exactly one Result per account, in completion order. Submissions
// after Shutdown fail immediately with attributable results.
func (s *Scheduler) SyncMany(ctx context.Context, accounts []Account, count int) []Result {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		results := make([]Result, 0, len(accounts))
		for _, account := range accounts {
			results = append(results, Result{
				Account: account.Email,
				Errors:  []string{"sync scheduler is shut down"},
			})
		}
		return results
	}

	resultCh := make(chan Result, len(accounts))
	pending := 0
	var refused []Result

	for _, account := range accounts {
		select {
		case s.jobs <- job{ctx: ctx, account: account, count: count, results: resultCh}:
			pending++
		case <-ctx.Done():
			refused = append(refused, Result{
				Account: account.Email,
				Errors:  []string{fmt.Sprintf("sync not started: %v", ctx.Err())},
			})
		}
	}
	s.mu.RUnlock()

	results := make([]Result, 0, len(accounts))
	for i := 0; i < pending; i++ {
		results = append(results, <-resultCh)
	}
	results = append(results, refused...)

	return results
}

// Shutdown stops the scheduler. New SyncMany batches are refused
// immediately. With wait=true the call blocks until queued and
// in-flight work has drained; with wait=false it returns right away
// and workers finish their current jobs in the background. In-flight
// network sessions are never interrupted mid-flight.
func (s *Scheduler) Shutdown(wait bool) {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
		s.log.Debug("sync scheduler shutting down", "wait", wait)
	}
	s.mu.Unlock()

	if wait {
		s.wg.Wait()
	}
}
