package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
	tghelpers "github.com/m3rciful/shopintake/core/telegram/helpers"
	"github.com/m3rciful/shopintake/core/telegram/middleware"
)

// summary writes one handler.handled line per dispatched update.
type summary struct {
	name   string
	start  time.Time
	status string // overrides the status derived from the error
	extras []slog.Attr
}

func summarize(name string, extras ...slog.Attr) *summary {
	return &summary{name: normalizeHandlerName(name), start: time.Now(), extras: extras}
}

// run calls h under the summary's handler name and logs the result.
func (s *summary) run(c tele.Context, h tele.HandlerFunc) error {
	tghelpers.WithHandler(c, s.name)
	err := h(c)
	s.log(c, err)
	return err
}

// skip logs that nothing handled the update.
func (s *summary) skip(c tele.Context) error {
	s.status = "skip"
	s.log(c, nil)
	return nil
}

func (s *summary) log(c tele.Context, err error) {
	ctx := tghelpers.WithHandler(c, s.name)
	msgs, kb := middleware.GetCounters(c)

	status := "ok"
	if err != nil {
		status = "fail"
	}
	outcome := status
	if s.status != "" {
		status = s.status
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.name),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(s.start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", append(attrs, s.extras...)...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

type errCoder interface{ ErrCode() string }

// deriveErrorCode prefers an ErrCode found anywhere in the chain, then the
// outermost named error type.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coder errCoder
	if errors.As(err, &coder) {
		if code := strings.TrimSpace(coder.ErrCode()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		t := reflect.TypeOf(e)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if pkg := t.PkgPath(); t.Name() != "" && pkg != "fmt" && pkg != "errors" {
			return strings.ToUpper(t.Name())
		}
	}
	return "UNKNOWN_ERROR"
}
