package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
	tg "github.com/m3rciful/shopintake/core/telegram"
	"github.com/m3rciful/shopintake/core/telegram/callbacks"
	"github.com/m3rciful/shopintake/core/telegram/middleware"
)

// CallbackOptions configures the callback route.
type CallbackOptions struct {
	// NotFound overrides the registry fallback for stale or unknown buttons.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every inline button press by its unique key.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, payload := callbacks.ParseCallbackData(cb)
		extras := []slog.Attr{slog.String("cb_key", key)}
		if payload != "" {
			extras = append(extras, slog.String("payload", logger.SanitizeLimit(payload, 128)))
		}

		if h, ok := reg.GetCallback(key); ok {
			return summarize("callback."+key, extras...).run(c, h)
		}

		fallback := opts.NotFound
		if fallback == nil {
			fallback = reg.CallbackNotFound()
		}
		if fallback == nil {
			fallback = func(c tele.Context) error { return c.Respond() }
		}
		s := summarize("callback."+key, append(extras, slog.String("reason", "not_found"))...)
		s.status = "skip"
		return s.run(c, fallback)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
