package runner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/todoqa/todo-e2e/internal/logging"
)

// Job is a run repeated on a schedule, e.g. a smoke pass against the
// public deployment.
type Job struct {
	Name string
	// Spec is a standard cron expression or a descriptor such as "@every 15m".
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler executes jobs until it is stopped or receives SIGINT/SIGTERM.
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Entry
	wg   sync.WaitGroup
}

func NewScheduler(logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  logging.Component(logger, "scheduler"),
	}
}

// Add registers job. Overlapping executions of the same job are skipped.
func (s *Scheduler) Add(ctx context.Context, job Job) error {
	var mu sync.Mutex
	_, err := s.cron.AddFunc(job.Spec, func() {
		if !mu.TryLock() {
			s.log.WithField("job", job.Name).Warn("previous execution still running, skipping")
			return
		}
		defer mu.Unlock()
		s.execute(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
	}
	s.log.WithFields(logrus.Fields{"job": job.Name, "spec": job.Spec}).Info("job registered")
	return nil
}

func (s *Scheduler) execute(ctx context.Context, job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	log := s.log.WithField("job", job.Name)
	log.Info("executing job")

	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)

	if err != nil {
		log.WithError(err).WithField("duration", duration).Error("job failed")
	} else {
		log.WithField("duration", duration).Info("job completed")
	}
}

// Start runs the schedule and blocks until shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.log.Info("scheduler started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		s.log.WithField("signal", sig.String()).Info("received signal")
		s.Stop()
		return nil
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	}
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.wg.Wait()
	<-done.Done()
	s.log.Info("scheduler stopped")
}
