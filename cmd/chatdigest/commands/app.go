package commands

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/usecase"
	"github.com/devricklin/chatdigest/internal/conf"
	"github.com/devricklin/chatdigest/internal/data"
	"github.com/devricklin/chatdigest/internal/service"
)

// app holds what every command needs
type app struct {
	cfg    *conf.Config
	repos  *data.Repositories
	logger zerolog.Logger
}

// loadApp reads the config and prompts, sets up logging and opens the repositories
func loadApp(opts *globalOptions) (*app, error) {
	path := opts.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	cfg, err := conf.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger, err := newLogger(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	log.Logger = logger

	prompts, err := conf.LoadPromptsConfig(opts.promptsPath)
	if err != nil {
		return nil, errors.Wrap(err, "load prompts")
	}
	cfg.Prompts = prompts

	repos, err := data.NewRepositories(cfg, logger)
	if err != nil {
		return nil, errors.Wrap(err, "create repositories")
	}

	return &app{cfg: cfg, repos: repos, logger: logger}, nil
}

// newLogger builds the process logger. Logs go to w so stdout stays free for MCP.
func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "invalid log level %q", level)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func (a *app) close() {
	if err := a.repos.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close event store")
	}
}

func (a *app) exportUsecase() *usecase.ExportUsecase {
	return usecase.NewExportUsecase(a.repos.Event, a.repos.Artifact, a.cfg.ToExportConfig(), a.logger)
}

func (a *app) digestUsecase() (*usecase.DigestUsecase, error) {
	if err := a.cfg.ValidateSummarizer(); err != nil {
		return nil, err
	}
	return usecase.NewDigestUsecase(a.repos.Artifact, a.repos.Summary, a.cfg.ToDigestConfig(), a.logger), nil
}

// publishUsecase returns nil when no publish chat is configured
func (a *app) publishUsecase() (*usecase.PublishUsecase, error) {
	if a.cfg.Digest.PublishChatID == "" {
		return nil, nil
	}
	chatRepo, err := a.repos.ChatRepo(a.cfg.Digest.Platform)
	if err != nil {
		return nil, err
	}
	return usecase.NewPublishUsecase(a.repos.Artifact, chatRepo, a.cfg.ToPublishConfig(), a.logger), nil
}

func (a *app) anchor(name, at string) (*domain.ScheduleAnchor, error) {
	tod, err := domain.ParseTimeOfDay(at)
	if err != nil {
		return nil, err
	}
	return domain.NewScheduleAnchor(name, tod, a.cfg.Location()), nil
}

// scheduler builds the export and publish anchors with their jobs
func (a *app) scheduler() (*service.DailyScheduler, error) {
	exportAnchor, err := a.anchor("export", a.cfg.Schedule.ExportTime)
	if err != nil {
		return nil, err
	}
	publishAnchor, err := a.anchor("publish", a.cfg.Schedule.PublishTime)
	if err != nil {
		return nil, err
	}

	digestUC, err := a.digestUsecase()
	if err != nil {
		return nil, err
	}
	publishUC, err := a.publishUsecase()
	if err != nil {
		return nil, err
	}
	if publishUC == nil {
		a.logger.Warn().Msg("digest.publish_chat_id is not set, digests will only be written to disk")
	}

	return service.NewDailyScheduler(service.SchedulerConfig{
		MaxPollInterval: a.cfg.Schedule.MaxPollInterval,
		ActionTimeout:   a.cfg.Schedule.ActionTimeout,
	}, a.logger,
		service.ExportJob(exportAnchor, a.exportUsecase()),
		service.PublishJob(publishAnchor, exportAnchor, digestUC, publishUC, a.logger),
	), nil
}

// today returns the calendar date of now in the configured zone
func (a *app) today() string {
	return time.Now().In(a.cfg.Location()).Format(domain.DateLayout)
}

func (a *app) checkDay(day string) error {
	if _, err := time.Parse(domain.DateLayout, day); err != nil {
		return errors.Errorf("invalid day %q, want YYYY-MM-DD", day)
	}
	return nil
}
