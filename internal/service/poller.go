package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/usecase"
)

// PollRunner drives poll-diff cycles on a fixed interval
type PollRunner struct {
	pollUC   *usecase.PollDiffUsecase
	interval time.Duration
	logger   zerolog.Logger
}

// NewPollRunner creates a new poll runner
func NewPollRunner(pollUC *usecase.PollDiffUsecase, interval time.Duration, logger zerolog.Logger) *PollRunner {
	return &PollRunner{
		pollUC:   pollUC,
		interval: interval,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Run baselines every room, then polls every interval until ctx is done.
// A cycle still running when the next one is due is not overlapped.
func (r *PollRunner) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return errors.Errorf("invalid poll interval %s", r.interval)
	}

	r.pollUC.Initialize(ctx)

	cronLogger := cron.PrintfLogger(&r.logger)
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	if _, err := c.AddFunc("@every "+r.interval.String(), func() {
		r.pollUC.PollCycle(ctx)
	}); err != nil {
		return errors.Wrap(err, "schedule poll cycle")
	}

	c.Start()
	r.logger.Info().
		Dur("interval", r.interval).
		Int("rooms", len(r.pollUC.Rooms())).
		Msg("poller started")

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info().Msg("poller stopped")
	return nil
}
