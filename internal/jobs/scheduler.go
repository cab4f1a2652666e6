package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"folio/internal/config"
)

// Job is one unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduledJob struct {
	job      Job
	interval time.Duration
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	jobs      []scheduledJob
	wg        sync.WaitGroup

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool
}

// NewScheduler wires the application's jobs: account cleanup on the configured
// interval and a GeoLite2 reload check every ten minutes.
func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger) (*Scheduler, error) {
	cfg := config.GetConfig()

	s := newScheduler(logger)
	s.Add(NewAccountCleanupJob(dbManager, logger), time.Duration(cfg.JobIntervalSeconds)*time.Second)
	s.Add(NewGeoDBReloadJob(cfg.GeoDBPath, logger), 10*time.Minute)
	return s, nil
}

func newScheduler(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{logger: logger, ctx: ctx, cancel: cancel}
}

// Add registers job to run every interval. Must be called before Start.
func (s *Scheduler) Add(job Job, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.jobs = append(s.jobs, scheduledJob{job: job, interval: interval})
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(job Job) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", job.Name()))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name()),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
	}
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}
	s.isRunning = true

	for _, sj := range s.jobs {
		s.wg.Add(1)
		go s.loop(sj)
	}

	s.logger.Info("Background jobs started", slog.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) loop(sj scheduledJob) {
	defer s.wg.Done()

	s.logger.Info("Starting job", slog.String("job", sj.job.Name()), slog.Duration("interval", sj.interval))
	ticker := time.NewTicker(sj.interval)
	defer ticker.Stop()

	s.executeJobSafely(sj.job)
	for {
		select {
		case <-ticker.C:
			s.executeJobSafely(sj.job)
		case <-s.ctx.Done():
			s.logger.Info("Job stopped", slog.String("job", sj.job.Name()))
			return
		}
	}
}

// Stop halts all background jobs and waits for running ones to return.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
