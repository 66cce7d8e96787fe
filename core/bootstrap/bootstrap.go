package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/shopintake/core/commerce"
	coreconfig "github.com/m3rciful/shopintake/core/config"
	coredatabase "github.com/m3rciful/shopintake/core/database"
	"github.com/m3rciful/shopintake/core/intake"
	"github.com/m3rciful/shopintake/core/journal"
	"github.com/m3rciful/shopintake/core/logger"
	"github.com/m3rciful/shopintake/core/metrics"
	coretelegram "github.com/m3rciful/shopintake/core/telegram"
	"github.com/m3rciful/shopintake/core/telegram/intakebot"
	"github.com/m3rciful/shopintake/core/telegram/state"
)

// Options control the bootstrap pipeline. Nil funcs fall back to the real implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(context.Context, coreconfig.DatabaseConfig, coredatabase.MigrateOptions) error
	// Commerce replaces the WooCommerce client, mainly in tests.
	Commerce intake.Commerce
}

// App holds everything the bot needs at runtime.
type App struct {
	Config   *coreconfig.Config
	DB       *sqlx.DB
	Commerce intake.Commerce
	Sessions *state.Store[*intake.Session]
	Intake   *intake.Controller
	Journal  intake.Journal

	submissions intakebot.Submissions
}

// Run initializes the logger, the optional journal database, the shop client
// and the intake controller.
func Run(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	app := &App{Config: cfg, Journal: journal.Log{}}

	if cfg.Database.Enabled() {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, cfg.Database, coredatabase.MigrateOptions{}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}

		sqlJournal := journal.NewSQL(db)
		app.DB = db
		app.Journal = sqlJournal
		app.submissions = sqlJournal
	} else {
		logger.DB.Info("journal database disabled",
			slog.String("event", "db.skip"),
			slog.String("journal", "log"),
		)
	}

	app.Commerce = opts.Commerce
	if app.Commerce == nil {
		client, err := commerce.New(commerceOptions(cfg.Commerce))
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("bootstrap: commerce client: %w", err)
		}
		app.Commerce = client
	}

	app.Sessions = state.NewStore[*intake.Session](time.Duration(cfg.Intake.SessionTTLMinutes) * time.Minute)
	app.Sessions.OnEvicted(func(int64, *intake.Session) {
		metrics.SetSessionsActive(app.Sessions.Len())
	})

	ctrl, err := intake.New(intake.Options{
		AskPrice:     cfg.Intake.PriceStep(),
		CategoryMenu: cfg.Intake.CategoryMenu,
	}, app.Commerce, app.Sessions, app.Journal)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("bootstrap: intake controller: %w", err)
	}
	app.Intake = ctrl

	logger.L.With("component", "app").Info("bootstrap complete",
		slog.String("event", "bootstrap"),
		slog.Bool("journal_db", app.DB != nil),
		slog.Bool("ask_price", cfg.Intake.PriceStep()),
		slog.Bool("category_menu", cfg.Intake.CategoryMenu),
		slog.Int("session_ttl_minutes", cfg.Intake.SessionTTLMinutes),
	)
	return app, nil
}

func commerceOptions(c coreconfig.CommerceConfig) commerce.Options {
	return commerce.Options{
		BaseURL:         c.URL,
		ConsumerKey:     c.ConsumerKey,
		ConsumerSecret:  c.ConsumerSecret,
		QueryStringAuth: c.QueryStringAuth,
		MediaPath:       c.MediaPath,
		MediaRef:        commerce.MediaRefMode(c.MediaRef),
		MediaUser:       c.MediaUser,
		MediaPassword:   c.MediaPassword,
		Timeout:         time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

// CoreConfig returns the loaded configuration.
func (a *App) CoreConfig() *coreconfig.Config {
	return a.Config
}

// TelegramRunOptions wires the intake bot into the Telegram runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	bot, err := intakebot.New(intakebot.Options{
		Controller:  a.Intake,
		Submissions: a.submissions,
	})
	if err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("bootstrap: %w", err)
	}

	reg := coretelegram.NewRegistry()
	routes, err := bot.Routes(reg, a.Config.Telegram.AdminID)
	if err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("bootstrap: %w", err)
	}

	return coretelegram.RunOptions{
		Config:      a.Config,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.Config, bot.Hooks()),
		Routes:      routes,
	}, nil
}

// Close releases the journal database.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("bootstrap: close database: %w", err)
	}
	return nil
}
