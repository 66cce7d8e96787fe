package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/shopintake/core/buildinfo"
	coreconfig "github.com/m3rciful/shopintake/core/config"
)

var (
	initOnce sync.Once

	closeMu sync.Mutex
	closed  bool
	sink    *asyncWriter
	files   []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(defaultSampleNum, defaultSampleDen)
	traceOverride bool

	// L is the base logger.
	L *slog.Logger

	TG       *slog.Logger // Telegram transport
	TWire    *slog.Logger // handler and command wiring
	DB       *slog.Logger
	MIG      *slog.Logger
	JRNL     *slog.Logger // submission journal
	Commerce *slog.Logger // shop backend calls
	Intake   *slog.Logger // conversation steps
	Metrics  *slog.Logger
)

func init() {
	levelVar.Set(slog.LevelInfo)
	setBase(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &levelVar})))
}

// InitLogger installs the structured handler described by cfg. Calls after
// the first are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		opts := resolveOptions(cfg)
		levelVar.Set(opts.level)
		debugSampler.Set(opts.sampleNum, opts.sampleDen)
		traceOverride = opts.trace

		outputs, closers, openErr := openOutputs(opts.dir, opts.file)
		if openErr != nil {
			err = openErr
		}
		files = closers
		sink = newAsyncWriter(outputs, 64*1024)

		setBase(slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   sink,
			format:   opts.format,
			keyOrder: opts.keyOrder,
		})))
		slog.SetDefault(L)
		logStartup(opts, cfg)
	})
	return err
}

func setBase(base *slog.Logger) {
	L = base
	scoped := func(name string) *slog.Logger { return L.With("component", name) }
	TG = scoped("tg")
	TWire = scoped("tg.wire")
	DB = scoped("db")
	MIG = scoped("db.migrate")
	JRNL = scoped("journal")
	Commerce = scoped("commerce")
	Intake = scoped("intake")
	Metrics = scoped("metrics")
}

func logStartup(opts options, cfg *coreconfig.Config) {
	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", opts.profile),
	}
	if cfg != nil {
		attrs = append(attrs, slog.String("mode", cfg.Telegram.RunMode))
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

// Shutdown drains pending records and closes log files. It is safe to call twice.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if sink != nil {
		errs = append(errs, sink.Flush(), sink.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// LogEvent writes a record whose first attribute is event. A nil logger
// falls back to the one carried by ctx.
func LogEvent(ctx context.Context, lg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	if lg == nil {
		lg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	lg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns the base logger tagged with name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
