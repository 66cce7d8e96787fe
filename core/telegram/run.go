package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/shopintake/core/config"
	"github.com/m3rciful/shopintake/core/logger"
	tghelpers "github.com/m3rciful/shopintake/core/telegram/helpers"
	tgsender "github.com/m3rciful/shopintake/core/telegram/sender"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint (command, tele.OnText, ...).
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// DisableWebhookCleanup keeps a previously set webhook in long polling mode.
	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot and serves updates until ctx is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config provided")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	buildStart := time.Now()
	poller := BuildPoller(cfg)
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  BuildHTTPClient(PollTimeout(cfg.Telegram)),
		OnError: logUnhandled,
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logMode(ctx, poller, logger.Took(buildStart))

	if _, polling := poller.(*tele.LongPoller); polling && !opts.DisableWebhookCleanup {
		removeWebhook(ctx, bot)
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	SetupCommands(bot, reg)

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	stopped := make(chan struct{})
	go func() {
		bot.Start()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
	}

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func logMode(ctx context.Context, poller tele.Poller, took time.Duration) {
	switch p := poller.(type) {
	case *tele.Webhook:
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "tg.mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", took),
		)
	case *tele.LongPoller:
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "tg.mode",
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Int("timeout_seconds", int(p.Timeout/time.Second)),
			slog.Duration("duration", took),
		)
	}
}

// removeWebhook clears a webhook left by an earlier deployment; Telegram
// refuses getUpdates while one is set.
func removeWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "tg.delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "tg.delete_webhook",
		slog.String("status", "ok"),
	)
}

// logUnhandled receives errors that escaped the handler chain.
func logUnhandled(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.error",
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}
