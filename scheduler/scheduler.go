// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

// Package scheduler drives the job catalog on cron schedules with a
// per-job non-reentrancy latch: a tick that fires while the prior
// invocation of the same job still runs is dropped, never queued.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/validorg/otv-backend/metrics"
)

var log = logrus.WithField("prefix", "scheduler")

// cronParser accepts standard five-field expressions and six-field
// expressions with a leading seconds column.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var (
	errAlreadyStarted = errors.New("scheduler already started")
	errNoName         = errors.New("job requires a name")
	errNoBody         = errors.New("job requires a body")
)

// Job is one registered periodic task.
type Job struct {
	Name string
	Spec string
	Body func(ctx context.Context) error
	// Reentrant disables the latch; no job in the catalog sets it,
	// but the knob is part of the registration contract.
	Reentrant bool

	running atomic.Bool
}

// Scheduler owns the cron timeline. Jobs of different names overlap
// freely; coordination between them happens through the store.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []*Job
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an idle scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithParser(cronParser)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register validates the job's schedule and adds it to the timeline.
// Must be called before Start.
func (s *Scheduler) Register(job *Job) error {
	if job.Name == "" {
		return errNoName
	}
	if job.Body == nil {
		return errNoBody
	}
	if _, err := cronParser.Parse(job.Spec); err != nil {
		return errors.Wrapf(err, "job %s: bad cron %q", job.Name, job.Spec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errAlreadyStarted
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.dispatch(job) }); err != nil {
		return errors.Wrapf(err, "register job %s", job.Name)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start begins dispatching ticks.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errAlreadyStarted
	}
	s.started = true
	s.cron.Start()
	log.WithField("jobs", len(s.jobs)).Info("Scheduler started")
	return nil
}

// Stop halts the timeline and drains in-flight job bodies.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
	log.Info("Scheduler stopped")
}

// dispatch runs one tick of a job, enforcing the latch. The latch is
// released on every exit path, panics included; a body failure is
// reported and the next tick proceeds normally.
func (s *Scheduler) dispatch(job *Job) {
	if !job.Reentrant {
		if !job.running.CompareAndSwap(false, true) {
			metrics.JobDroppedTicks.WithLabelValues(job.Name).Inc()
			log.WithField("job", job.Name).Debug("Dropped tick, job still running")
			return
		}
	}

	s.wg.Add(1)
	go func() {
		started := time.Now()
		defer func() {
			if !job.Reentrant {
				job.running.Store(false)
			}
			elapsed := time.Since(started)
			metrics.JobDuration.WithLabelValues(job.Name).Observe(elapsed.Seconds())
			if r := recover(); r != nil {
				metrics.JobFailures.WithLabelValues(job.Name).Inc()
				log.WithFields(logrus.Fields{"job": job.Name, "panic": r}).Error("Job panicked")
			}
			s.wg.Done()
		}()

		log.WithFields(logrus.Fields{"job": job.Name, "start": started.Format(time.RFC3339)}).Info("Starting job")
		err := job.Body(s.ctx)
		elapsed := time.Since(started)
		if err != nil {
			metrics.JobFailures.WithLabelValues(job.Name).Inc()
			log.WithFields(logrus.Fields{"job": job.Name, "elapsed": elapsed.Seconds(), "err": err}).Warn("Job failed")
			return
		}
		metrics.JobRuns.WithLabelValues(job.Name).Inc()
		log.WithFields(logrus.Fields{"job": job.Name, "elapsed": elapsed.Seconds()}).Info("Finished job")
	}()
}
