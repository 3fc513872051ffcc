package service

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/usecase"
)

// Action is the work bound to a daily anchor. target is today's target instant.
type Action func(ctx context.Context, target time.Time) error

// DailyJob binds an action to a schedule anchor
type DailyJob struct {
	Anchor *domain.ScheduleAnchor
	Run    Action
}

// SchedulerConfig contains daily scheduler settings
type SchedulerConfig struct {
	MaxPollInterval time.Duration // longest sleep between evaluations
	ActionTimeout   time.Duration // per action, 0 disables
}

// DailyScheduler fires each job at most once per calendar day in the anchor's zone
type DailyScheduler struct {
	jobs   []*DailyJob
	config SchedulerConfig
	now    func() time.Time
	logger zerolog.Logger

	mu     sync.Mutex // guards anchor state between Tick callers
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDailyScheduler creates a scheduler evaluating jobs in the given order
func NewDailyScheduler(config SchedulerConfig, logger zerolog.Logger, jobs ...*DailyJob) *DailyScheduler {
	if config.MaxPollInterval <= 0 {
		config.MaxPollInterval = time.Minute
	}
	return &DailyScheduler{
		jobs:   jobs,
		config: config,
		now:    time.Now,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// SetClock replaces the wall clock
func (s *DailyScheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Tick runs every due job once and returns the names of those that fired.
// A job is marked fired once its action returns, whatever the outcome, so a
// failing day is not retried.
func (s *DailyScheduler) Tick(ctx context.Context, now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fired []string
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			break
		}
		if !job.Anchor.IsDue(now) {
			continue
		}

		s.runJob(ctx, job, job.Anchor.TargetOn(now))
		job.Anchor.MarkFired(now)
		fired = append(fired, job.Anchor.Name)
	}
	return fired
}

func (s *DailyScheduler) runJob(ctx context.Context, job *DailyJob, target time.Time) {
	log := s.logger.With().
		Str("job", job.Anchor.Name).
		Str("run_id", uuid.NewString()).
		Time("target", target).
		Logger()

	if s.config.ActionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ActionTimeout)
		defer cancel()
	}

	start := time.Now()
	log.Info().Msg("job started")
	if err := job.Run(ctx, target); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("job finished")
}

// NextWake returns how long to sleep before the next evaluation
func (s *DailyScheduler) NextWake(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	wait := s.config.MaxPollInterval
	for _, job := range s.jobs {
		if d := job.Anchor.NextTarget(now).Sub(now); d < wait {
			wait = d
		}
	}
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

// JobStatus is a snapshot of one daily job
type JobStatus struct {
	Name      string    `json:"name"`
	At        string    `json:"at"`
	LastFired string    `json:"last_fired,omitempty"`
	Next      time.Time `json:"next"`
}

// Status reports every job's anchor state at now
func (s *DailyScheduler) Status(now time.Time) []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, JobStatus{
			Name:      job.Anchor.Name,
			At:        job.Anchor.At.String(),
			LastFired: job.Anchor.LastFired,
			Next:      job.Anchor.NextTarget(now),
		})
	}
	return out
}

// Run evaluates the jobs until ctx is done
func (s *DailyScheduler) Run(ctx context.Context) error {
	for _, job := range s.jobs {
		s.logger.Info().
			Str("job", job.Anchor.Name).
			Time("next", job.Anchor.NextTarget(s.now())).
			Msg("job scheduled")
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		now := s.now()
		s.Tick(ctx, now)
		timer.Reset(s.NextWake(s.now()))
	}
}

// Start runs the scheduler in the background
func (s *DailyScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Run(s.ctx)
	}()
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight job
func (s *DailyScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// ExportJob exports the trailing day at the anchor
func ExportJob(anchor *domain.ScheduleAnchor, exportUC *usecase.ExportUsecase) *DailyJob {
	return &DailyJob{
		Anchor: anchor,
		Run: func(ctx context.Context, target time.Time) error {
			_, err := exportUC.Export(ctx, target)
			return err
		},
	}
}

// ExportDay returns the export directory date a publish at target reads: the
// date of the latest export target at or before it.
func ExportDay(exportAnchor *domain.ScheduleAnchor, target time.Time) string {
	return exportAnchor.LatestTarget(target).In(exportAnchor.Location).Format(domain.DateLayout)
}

// PublishJob generates the digest of the latest export and publishes it. With a
// nil publisher the digest is only written.
func PublishJob(anchor, exportAnchor *domain.ScheduleAnchor, digestUC *usecase.DigestUsecase, publishUC *usecase.PublishUsecase, logger zerolog.Logger) *DailyJob {
	return &DailyJob{
		Anchor: anchor,
		Run: func(ctx context.Context, target time.Time) error {
			day := ExportDay(exportAnchor, target)

			if _, err := digestUC.Generate(ctx, day); err != nil {
				if stderrors.Is(err, usecase.ErrArtifactMissing) {
					logger.Warn().Str("day", day).Msg("no export for day, skipping digest")
					return nil
				}
				return err
			}

			if publishUC == nil {
				return nil
			}
			err := publishUC.Publish(ctx, day)
			if stderrors.Is(err, usecase.ErrDigestTooLarge) {
				// already reported by the publisher, the digest stays on disk
				return nil
			}
			return err
		},
	}
}
