package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/devricklin/chatdigest/internal/api"
	"github.com/devricklin/chatdigest/internal/biz/usecase"
	"github.com/devricklin/chatdigest/internal/conf"
	"github.com/devricklin/chatdigest/internal/server"
	"github.com/devricklin/chatdigest/internal/service"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run capture, the daily scheduler and the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	scheduler, err := a.scheduler()
	if err != nil {
		return err
	}

	var runners []func(ctx context.Context) error
	runners = append(runners, scheduler.Run)

	if a.cfg.Push.Enabled {
		push, err := a.pushServer()
		if err != nil {
			return err
		}
		runners = append(runners, push.Run)
	}

	if a.cfg.Poll.Enabled {
		poller, err := a.pollRunner()
		if err != nil {
			return err
		}
		runners = append(runners, poller.Run)
	}

	if a.cfg.API.Enabled {
		apiServer := api.NewServer(api.Config{
			Addr:              a.cfg.API.Addr,
			ChatID:            a.cfg.Push.TargetChatID,
			ExcludedThreadIDs: a.cfg.Push.IgnoredThreadIDs,
			Location:          a.cfg.Location(),
		}, a.repos.Event, a.repos.Artifact, scheduler, a.logger)
		runners = append(runners, apiServer.Run)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range runners {
		g.Go(func() error { return run(gctx) })
	}

	a.logger.Info().
		Str("timezone", a.cfg.Location().String()).
		Bool("push", a.cfg.Push.Enabled).
		Bool("poll", a.cfg.Poll.Enabled).
		Bool("api", a.cfg.API.Enabled).
		Msg("chatdigest started")

	err = g.Wait()
	a.logger.Info().Msg("chatdigest stopped")
	return err
}

func (a *app) pushServer() (*server.PushServer, error) {
	captureUC := usecase.NewCaptureUsecase(a.repos.Event, a.cfg.ToCaptureConfig(), a.logger)

	switch a.cfg.Push.Platform {
	case conf.PlatformTelegram:
		if a.repos.TelegramClient == nil {
			return nil, errors.New("telegram push needs TELEGRAM_BOT_TOKEN")
		}
		return server.NewTelegramPushServer(a.repos.TelegramClient, captureUC, a.logger), nil
	case conf.PlatformFeishu:
		if a.repos.FeishuClient == nil {
			return nil, errors.New("feishu push needs FEISHU_APP_ID and FEISHU_APP_SECRET")
		}
		return server.NewFeishuPushServer(a.repos.FeishuClient, a.repos.Feishu, captureUC, a.logger), nil
	default:
		return nil, errors.Errorf("unsupported push platform %q", a.cfg.Push.Platform)
	}
}

func (a *app) pollRunner() (*service.PollRunner, error) {
	roomRepo, err := a.repos.RoomRepo(a.cfg.Poll.Source)
	if err != nil {
		return nil, errors.Wrap(err, "poll source")
	}
	chatRepo, err := a.repos.ChatRepo(a.cfg.Poll.ForwardPlatform)
	if err != nil {
		return nil, errors.Wrap(err, "poll forward destination")
	}

	pollUC := usecase.NewPollDiffUsecase(roomRepo, chatRepo, a.cfg.ToPollDiffConfig(), a.logger)
	return service.NewPollRunner(pollUC, a.cfg.Poll.Interval, a.logger), nil
}
