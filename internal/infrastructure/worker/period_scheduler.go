package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// DefaultSchedule checks for a new pay period every day at 06:00
const DefaultSchedule = "0 6 * * *"

// RunGenerator creates the draft run for the period containing now
type RunGenerator interface {
	GenerateScheduledRun(ctx context.Context, now time.Time) (*entity.PayrollRunDetail, bool, error)
}

// PeriodSchedulerConfig configures the period scheduler
type PeriodSchedulerConfig struct {
	Schedule   string
	Location   *time.Location
	RunOnStart bool
	JobTimeout time.Duration
}

// PeriodScheduler generates the default-period payroll run on a cron schedule
type PeriodScheduler struct {
	generator RunGenerator
	config    PeriodSchedulerConfig
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	startup sync.WaitGroup
}

// NewPeriodScheduler creates a new period scheduler
func NewPeriodScheduler(generator RunGenerator, cfg PeriodSchedulerConfig, logger *zap.Logger) *PeriodScheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	return &PeriodScheduler{
		generator: generator,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *PeriodScheduler) Name() string {
	return "payroll-period-scheduler"
}

// Start registers the cron job and starts the cron engine
func (s *PeriodScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("period scheduler is already running")
	}

	engine := cron.New(cron.WithLocation(s.config.Location))
	if _, err := engine.AddFunc(s.config.Schedule, s.tick); err != nil {
		return fmt.Errorf("invalid payroll schedule %q: %w", s.config.Schedule, err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = engine
	engine.Start()

	s.logger.Info("Period scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.String("location", s.config.Location.String()))

	if s.config.RunOnStart {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.tick()
		}()
	}
	return nil
}

// Stop stops the cron engine and waits for running jobs to finish
func (s *PeriodScheduler) Stop() error {
	s.mu.Lock()
	engine, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if engine == nil {
		return nil
	}

	stopped := engine.Stop()
	if cancel != nil {
		cancel()
	}
	<-stopped.Done()
	s.startup.Wait()

	s.logger.Info("Period scheduler stopped")
	return nil
}

func (s *PeriodScheduler) tick() {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithTimeout(parent, s.config.JobTimeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Scheduled payroll generation failed", zap.Error(err))
	}
}

// RunOnce generates the run for the current period if it does not exist yet
func (s *PeriodScheduler) RunOnce(ctx context.Context) (bool, error) {
	now := s.now().In(s.config.Location)

	detail, created, err := s.generator.GenerateScheduledRun(ctx, now)
	if err != nil {
		return false, fmt.Errorf("generate scheduled run: %w", err)
	}
	if !created {
		s.logger.Debug("Payroll run for current period already exists", zap.Time("now", now))
		return false, nil
	}

	s.logger.Info("Scheduled payroll run generated",
		zap.String("run_id", detail.Run.ID),
		zap.String("period_start", detail.Run.PeriodStart.Format(time.DateOnly)),
		zap.String("period_end", detail.Run.PeriodEnd.Format(time.DateOnly)),
		zap.Int("line_items", len(detail.LineItems)))
	return true, nil
}

var _ Worker = (*PeriodScheduler)(nil)
