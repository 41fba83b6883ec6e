package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kartpitsbot/pkg/archive"
	"kartpitsbot/pkg/bot"
	"kartpitsbot/pkg/config"
	"kartpitsbot/pkg/fetcher"
	"kartpitsbot/pkg/logging"
	"kartpitsbot/pkg/notification"
	"kartpitsbot/pkg/poller"
	"kartpitsbot/pkg/pubsub"
	"kartpitsbot/pkg/race"
	"kartpitsbot/pkg/render"
	"kartpitsbot/pkg/webserver"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pit session with the feed poller, web UI and Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(runCtx, cfg, ctx.configPath, demo)
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "Ingest a demo batch of laps at start-up")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, configPath string, demo bool) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	logger.Info("starting kartpit", "config", configPath)

	session := race.NewSession(race.Options{
		Params:          cfg.ScoringParams(),
		MaxRetainedLaps: cfg.Scoring.MaxRetainedLaps,
		Logger:          logging.Component(logger, "race"),
	})
	defer session.Close()

	if err := session.SetupRows(cfg.Pit.Rows, cfg.Pit.KartsPerRow); err != nil {
		return errors.Wrap(err, "set up pit rows")
	}

	var store *archive.Store
	if cfg.Archive.Path != "" {
		store, err = archive.Open(cfg.Archive.Path, logging.Component(logger, "archive"))
		if err != nil {
			return err
		}
		defer store.Close()
	}

	f := fetcher.New(nil, logging.Component(logger, "fetcher"))
	p := poller.New(cfg.Poll.URL, cfg.PollInterval(), f, session, logging.Component(logger, "poller"))

	if demo {
		session.Ingest(race.DemoObservations())
	}

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { p.Run(ctx) })

	if cfg.Console.Enabled {
		states := session.States().Subscribe(pubsub.TopicState)
		console := render.NewConsole(os.Stdout, logging.Component(logger, "console"))
		run(func() { console.Run(ctx, states) })
	}

	errCh := make(chan error, 1)
	if cfg.Web.Enabled {
		opts := webserver.Options{
			Address: cfg.Web.Address,
			Race:    session,
			Poller:  p,
			Fetcher: f,
			Logger:  logging.Component(logger, "webserver"),
		}
		if store != nil {
			opts.Archive = store
		}
		web := webserver.NewManager(opts)
		run(func() {
			if err := web.Serve(ctx); err != nil {
				errCh <- err
			}
		})
	}

	if cfg.Telegram.Token != "" {
		if err := startTelegram(ctx, cfg, session, logger, run); err != nil {
			return err
		}
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("webserver failed", "error", serveErr)
	}
	cancel()
	session.Close()
	wg.Wait()
	logger.Info("kartpit stopped")
	return serveErr
}

func startTelegram(ctx context.Context, cfg *config.Config, session *race.Session, logger *slog.Logger, run func(func())) error {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return errors.Wrap(err, "telegram bot")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	b := bot.New(session, api, cfg.Telegram.AllowedChatIDs, logging.Component(logger, "bot"))
	run(func() {
		b.Start(ctx, updates)
		api.StopReceivingUpdates()
	})
	logger.Info("telegram bot started", "account", api.Self.UserName)

	if len(cfg.Telegram.NotifyChatIDs) == 0 {
		return nil
	}
	sender, err := notification.NewTelegramSender(cfg.Telegram.Token, cfg.Telegram.NotifyChatIDs)
	if err != nil {
		return err
	}
	events := session.Events().Subscribe(pubsub.TopicEvents)
	nm := notification.NewManager(sender, logging.Component(logger, "notification"))
	run(func() { nm.Start(ctx, events) })
	return nil
}
