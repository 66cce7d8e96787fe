package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
	tghelpers "github.com/m3rciful/shopintake/core/telegram/helpers"
)

// ErrPanic wraps a recovered handler panic.
var ErrPanic = errors.New("telegram: handler panic")

// RecoverMiddleware converts a handler panic into an error wrapping ErrPanic.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelError, "tg.panic",
				slog.String("status", "fail"),
				slog.String("err", fmt.Sprint(r)),
				slog.String("handler", logger.HandlerFrom(tghelpers.BuildContext(c))),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}()
		return next(c)
	}
}
