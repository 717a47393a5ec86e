// Package scheduler runs the periodic appointment jobs on a gocron scheduler.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultJobTimeout = 2 * time.Minute

var (
	service     *Service
	serviceOnce sync.Once
	serviceErr  error
)

var (
	ErrNotInitialized = errors.New("scheduler not initialized")
	ErrEmptyJobName   = errors.New("job name is required")
	ErrEmptyCronExpr  = errors.New("cron expression is required")
)

// JobSpec describes a periodic job. A run that is still going when the next
// one is due is skipped, unless QueueOverlaps is set, in which case the next
// run waits for it.
type JobSpec struct {
	Name          string
	Cron          string
	Timeout       time.Duration
	QueueOverlaps bool
}

// Task is the body of a job. ctx carries the run timeout and a logger tagged
// with the job name.
type Task func(ctx context.Context) error

// Service owns the gocron scheduler the appointment jobs run on.
type Service struct {
	scheduler gocron.Scheduler
	stopOnce  sync.Once
	stopErr   error
}

func newService() (*Service, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("Scheduler job panicked")
				}),
			),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Service{scheduler: sched}, nil
}

// Init creates the process-wide scheduler. Later calls return the first result.
func Init() error {
	serviceOnce.Do(func() {
		service, serviceErr = newService()
		if serviceErr == nil {
			log.Info().Msg("Scheduler initialized")
		}
	})
	return serviceErr
}

// ServiceInstance returns the scheduler created by Init.
func ServiceInstance() (*Service, error) {
	if service == nil && serviceErr == nil {
		return nil, ErrNotInitialized
	}
	return service, serviceErr
}

// Start runs the registered jobs on the scheduler created by Init.
func Start() error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	svc.Start()
	return nil
}

// Stop shuts down the scheduler created by Init.
func Stop() error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	return svc.Stop()
}

// AddJob registers spec with the scheduler created by Init.
func AddJob(spec JobSpec, task Task) (gocron.Job, error) {
	svc, err := ServiceInstance()
	if err != nil {
		return nil, err
	}
	return svc.AddJob(spec, task)
}

func (s *Service) Start() {
	if s == nil {
		log.Error().Msg("Scheduler start requested before initialization")
		return
	}
	log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("Scheduler starting")
	s.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler. Safe to call twice.
func (s *Service) Stop() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.stopOnce.Do(func() {
		log.Info().Msg("Scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// Jobs lists the registered jobs.
func (s *Service) Jobs() []gocron.Job {
	if s == nil {
		return nil
	}
	return s.scheduler.Jobs()
}

// AddJob registers a cron job that runs task in singleton mode with a
// per-run timeout.
func (s *Service) AddJob(spec JobSpec, task Task) (gocron.Job, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, ErrEmptyJobName
	}
	if strings.TrimSpace(spec.Cron) == "" {
		return nil, ErrEmptyCronExpr
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	var limitMode gocron.LimitMode = gocron.LimitModeReschedule
	if spec.QueueOverlaps {
		limitMode = gocron.LimitModeWait
	}

	jobLogger := log.With().Str("component", "scheduler").Str("job_name", name).Logger()

	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		start := time.Now()
		jobLogger.Debug().Msg("Scheduler job started")
		if err := task(ctx); err != nil {
			jobLogger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Scheduler job failed")
			return
		}
		jobLogger.Debug().Dur("duration", time.Since(start)).Msg("Scheduler job completed")
	}

	job, err := s.scheduler.NewJob(
		gocron.CronJob(spec.Cron, false),
		gocron.NewTask(run),
		gocron.WithName(name),
		gocron.WithSingletonMode(limitMode),
	)
	if err != nil {
		jobLogger.Error().Err(err).Str("cron", spec.Cron).Msg("Failed to register scheduler job")
		return nil, err
	}
	jobLogger.Info().Str("cron", spec.Cron).Dur("timeout", timeout).Msg("Scheduler job registered")
	return job, nil
}
