package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is a unit of periodic work driven by a Scheduler.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs a job on a fixed interval. A tick is skipped when the
// previous run of the same job has not finished yet, so runs never overlap.
type Scheduler struct {
	job      Job
	interval time.Duration
	logger   *logrus.Logger
	stopCh   chan struct{}
	running  atomic.Bool
}

func NewScheduler(job Job, interval time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		job:      job,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"job":      s.job.Name(),
		"interval": s.interval.String(),
	}).Info("Starting scheduler")

	s.runJob(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.WithField("job", s.job.Name()).Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.WithField("job", s.job.Name()).Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runJob(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runJob(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.WithField("job", s.job.Name()).Warn("Previous run still in progress, skipping tick")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	if err := s.job.Run(ctx); err != nil {
		s.logger.WithError(err).WithField("job", s.job.Name()).Error("Scheduled run failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"job":      s.job.Name(),
		"duration": time.Since(start).String(),
	}).Debug("Scheduled run completed")
}
