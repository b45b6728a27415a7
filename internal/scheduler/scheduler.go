package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/loan-service/internal/models"
	"github.com/Dan9191/loan-service/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Rescorer runs rescore batches
type Rescorer interface {
	Rescore(ctx context.Context, req models.RescoreRequest, actor *int64, trigger service.Trigger) (*models.RescoreSummary, error)
}

// Scheduler periodically rescores stale applications
type Scheduler struct {
	cron    *cron.Cron
	svc     Rescorer
	log     *logrus.Logger
	timeout time.Duration
}

// New registers the stale rescore job on schedule. An empty schedule disables it.
func New(svc Rescorer, schedule string, timeout time.Duration, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		svc:     svc,
		log:     log,
		timeout: timeout,
	}
	if schedule == "" {
		return s, nil
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid rescore schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running job to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stopped before running job finished")
	}
}

// RunOnce rescores one batch of stale applications
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary, err := s.svc.Rescore(ctx, models.RescoreRequest{StaleOnly: true}, nil, service.TriggerScheduled)
	if err != nil {
		s.log.Errorf("Scheduled rescore failed: %v", err)
		return
	}
	s.log.WithFields(logrus.Fields{
		"batch":     summary.BatchID,
		"processed": summary.Processed,
		"failures":  len(summary.Failures),
	}).Info("Scheduled rescore finished")
}
