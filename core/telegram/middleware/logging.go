package middleware

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
	"github.com/m3rciful/shopintake/core/metrics"
	"github.com/m3rciful/shopintake/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/shopintake/core/telegram/helpers"
)

// recentUpdates keeps a short-lived set of processed update IDs to avoid double logging.
var (
	recentMu     sync.Mutex
	recentUpdate = make(map[int]time.Time)
	keepFor      = 10 * time.Second
)

func alreadyLogged(updateID int) bool {
	now := time.Now()
	recentMu.Lock()
	defer recentMu.Unlock()
	for id, ts := range recentUpdate {
		if now.Sub(ts) > keepFor {
			delete(recentUpdate, id)
		}
	}
	if _, ok := recentUpdate[updateID]; ok {
		return true
	}
	recentUpdate[updateID] = now
	return false
}

// UpdateKind classifies an update for rate limiting and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		m := upd.Message
		switch {
		case m.Photo != nil:
			return "photo"
		case strings.HasPrefix(m.Text, "/"):
			return "command"
		case m.Text != "":
			return "text"
		}
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// LoggerMiddleware logs a single receipt line per update and sets rid.
// It deduplicates by update_id when applied on multiple branches.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		ctx, rid := tghelpers.NewContext(c)

		kind := UpdateKind(upd)
		if !alreadyLogged(upd.ID) {
			metrics.IncTelegramUpdate(kind)
			if logger.ShouldSampleDebug() {
				logReceipt(ctx, c, rid, kind)
			}
		}
		return next(c)
	}
}

func logReceipt(ctx context.Context, c tele.Context, rid, kind string) {
	upd := c.Update()
	user := c.Sender()
	chat := c.Chat()

	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("rid", rid),
		slog.Int("update_id", upd.ID),
		slog.String("kind", kind),
	}
	if chat != nil {
		attrs = append(attrs,
			slog.Int64("chat_id", chat.ID),
			slog.String("chat_type", string(chat.Type)),
		)
	}
	if user != nil {
		attrs = append(attrs, slog.Int64("user_id", user.ID))
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}

	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
		if p := upd.Message.Photo; p != nil {
			attrs = append(attrs, slog.Int64("bytes", p.FileSize))
		}
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
}
