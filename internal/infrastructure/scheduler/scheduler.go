package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

// ErrDisabled is returned by Register when no schedule is configured.
var ErrDisabled = errors.New("scoring schedule disabled")

// RescoringJob is the batch rescoring entry point.
type RescoringJob interface {
	ExecuteAll(ctx context.Context) (*application.ScoreAllOutput, error)
}

// Scheduler runs batch rescoring on a cron schedule.
// overlapping runs are skipped, not queued.
type Scheduler struct {
	cron    *cron.Cron
	job     RescoringJob
	timeout time.Duration
	logger  *logging.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	lastOK time.Time
}

// New creates a scheduler; timeout bounds a single run.
func New(job RescoringJob, timeout time.Duration, logger *logging.Logger) *Scheduler {
	log := logger.WithComponent("scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger{log}),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
		job:     job,
		timeout: timeout,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds the rescoring job under a six-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if spec == "" {
		return ErrDisabled
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("register rescoring job: %w", err)
	}
	s.logger.ScoringScheduled(spec)
	return nil
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop cancels an in-flight run and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow executes one rescoring run synchronously.
func (s *Scheduler) RunNow() {
	s.run()
}

// LastSuccess returns when the last run finished without error.
func (s *Scheduler) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOK
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	s.logger.Info("scheduled rescoring started")

	out, err := s.job.ExecuteAll(ctx)
	if err != nil {
		s.logger.Error("scheduled rescoring failed", "error", err.Error())
		return
	}

	s.mu.Lock()
	s.lastOK = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info("scheduled rescoring finished",
		"processed", out.Processed,
		"succeeded", out.Succeeded,
		"failed", out.Failed,
		"breakouts", out.Breakouts,
		"duration_ms", out.Duration.Milliseconds(),
	)
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
