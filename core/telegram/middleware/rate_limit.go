package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
	"github.com/m3rciful/shopintake/core/metrics"
	tghelpers "github.com/m3rciful/shopintake/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum gap between two updates of one user.
	Interval time.Duration
	// Exclude lists update kinds that bypass the limit. "message" covers
	// every message kind (text, command, photo).
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

func (o RateLimitOptions) exempt(upd tele.Update, kind string) bool {
	if _, ok := o.Exclude[kind]; ok {
		return true
	}
	_, ok := o.Exclude["message"]
	return ok && upd.Message != nil
}

// RateLimitMiddleware drops an update when the same user sent one less than
// Interval ago. Users are remembered only for Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	seen := cache.New(opts.Interval, 4*opts.Interval)

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return next(c)
			}
			upd := c.Update()
			kind := UpdateKind(upd)
			if opts.exempt(upd, kind) {
				return next(c)
			}

			// Add fails while the previous mark is still live.
			if err := seen.Add(strconv.FormatInt(user.ID, 10), struct{}{}, cache.DefaultExpiration); err == nil {
				return next(c)
			}

			metrics.IncRateLimitTriggered()
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
