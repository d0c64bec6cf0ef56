package check

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
)

// Checker runs one check invocation.
type Checker interface {
	Run(ctx context.Context) (models.Summary, error)
}

// LastRun is the outcome of the most recent invocation.
type LastRun struct {
	Summary  models.Summary `json:"summary"`
	Error    string         `json:"error,omitempty"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
}

type SchedulerConfig struct {
	Interval time.Duration
	// RunOnStart triggers a run before the first tick.
	RunOnStart bool
}

// Scheduler runs a Checker on a fixed interval. Runs never overlap: an
// on-demand RunOnce waits for an in-flight scheduled run and vice versa.
type Scheduler struct {
	config  SchedulerConfig
	checker Checker
	log     *zap.Logger
	now     func() time.Time

	runMu sync.Mutex
	mu    sync.RWMutex
	last  *LastRun
}

func NewScheduler(config SchedulerConfig, checker Checker, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		config:  config,
		checker: checker,
		log:     logger.With(zap.String("component", "scheduler")),
		now:     time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.RunOnStart {
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one invocation and records it as the last run. Errors are
// logged and recorded, never fatal to the loop.
func (s *Scheduler) RunOnce(ctx context.Context) LastRun {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	run := LastRun{Started: s.now()}
	sum, err := s.checker.Run(ctx)
	run.Summary = sum
	run.Finished = s.now()
	if err != nil {
		run.Error = err.Error()
		s.log.Error("check run failed", zap.String("run_id", sum.RunID), zap.Error(err))
	}

	s.mu.Lock()
	s.last = &run
	s.mu.Unlock()
	return run
}

// Last returns the most recent run, if any.
func (s *Scheduler) Last() (LastRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return LastRun{}, false
	}
	return *s.last, true
}
