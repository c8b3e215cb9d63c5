// Package scheduler runs the retroactive badge rescan on a fixed interval
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"tila/pkg/logger"
	"tila/pkg/models"
)

// Runner is the rescan job
type Runner interface {
	Run(ctx context.Context) (*models.RescanReport, error)
}

// Scheduler manages scheduled tasks for the engine
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler in loc. A non-positive interval disables the job.
func New(runner Runner, interval time.Duration, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := gocron.NewScheduler(loc)
	// A rescan still running when the next tick fires is not started twice
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins running the rescan job without blocking
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		logger.Info("Periodic badge rescan disabled")
		return nil
	}
	if _, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.rescan); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	logger.Infof("Periodic badge rescan every %s", s.interval)
	return nil
}

// Stop cancels a running rescan and terminates the job
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

// RunNow executes one rescan synchronously, waiting for a periodic run in progress
func (s *Scheduler) RunNow() (*models.RescanReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner.Run(s.ctx)
}

func (s *Scheduler) rescan() {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.runner.Run(s.ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Periodic badge rescan cancelled")
			return
		}
		logger.Errorf("Periodic badge rescan failed: %v", err)
		return
	}

	logger.WithFields(map[string]interface{}{
		"users_processed": report.UsersProcessed,
		"users_awarded":   report.UsersAwarded,
		"badges_awarded":  report.BadgesAwarded,
		"failures":        report.Failures,
		"duration_ms":     report.Duration.Milliseconds(),
	}).Info("Periodic badge rescan finished")
}
