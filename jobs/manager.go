// Package jobs provides background job processing functionality.
package jobs

import (
	"context"
	"sync"
	"time"

	"movierec/logging"
)

// DefaultBackfillInterval is used when NewJobManager gets a non-positive interval
const DefaultBackfillInterval = 30 * time.Minute

// JobManager handles background job execution
type JobManager struct {
	backfillJob *PosterBackfillJob
	interval    time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	mu          sync.RWMutex
}

// NewJobManager creates a new job manager that runs the backfill job every
// interval. The manager's jobs stop when parent is cancelled or Stop is called.
func NewJobManager(parent context.Context, backfillJob *PosterBackfillJob, interval time.Duration) *JobManager {
	if interval <= 0 {
		interval = DefaultBackfillInterval
	}
	ctx, cancel := context.WithCancel(parent)
	return &JobManager{
		backfillJob: backfillJob,
		interval:    interval,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins the job manager background processing
func (jm *JobManager) Start() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if jm.running {
		logging.Warn().Msg("Job manager is already running")
		return
	}

	jm.running = true
	logging.Info().Dur("interval", jm.interval).Msg("Starting job manager")

	jm.wg.Add(1)
	go jm.runPeriodicBackfill()
}

// Stop stops the job manager and waits for running jobs to return
func (jm *JobManager) Stop() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if !jm.running {
		return
	}

	logging.Info().Msg("Stopping job manager")
	jm.cancel()
	jm.running = false

	jm.wg.Wait()
	logging.Info().Msg("Job manager stopped")
}

// IsRunning returns whether the job manager is currently running
func (jm *JobManager) IsRunning() bool {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.running
}

// TriggerBackfill runs one backfill pass immediately in the background
func (jm *JobManager) TriggerBackfill() {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	if !jm.running || jm.backfillJob == nil {
		return
	}

	jm.wg.Add(1)
	go func() {
		defer jm.wg.Done()
		jm.runBackfill("triggered")
	}()
}

func (jm *JobManager) runPeriodicBackfill() {
	defer jm.wg.Done()

	if jm.backfillJob == nil {
		logging.Info().Msg("No backfill job configured, skipping periodic backfill")
		<-jm.ctx.Done()
		return
	}

	// Run immediately on startup
	jm.runBackfill("startup")

	ticker := time.NewTicker(jm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-jm.ctx.Done():
			logging.Info().Msg("Periodic poster backfill stopped")
			return
		case <-ticker.C:
			jm.runBackfill("periodic")
		}
	}
}

func (jm *JobManager) runBackfill(reason string) {
	updated, err := jm.backfillJob.Run(jm.ctx)
	event := logging.Info()
	if err != nil && jm.ctx.Err() == nil {
		event = logging.Warn().Err(err)
	}
	event.Str("reason", reason).Int("updated", updated).Msg("poster backfill pass finished")
}
