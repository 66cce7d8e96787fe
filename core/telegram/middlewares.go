package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/shopintake/core/config"
	"github.com/m3rciful/shopintake/core/telegram/middleware"
)

// MiddlewareHooks carries optional user-facing replies for rejected updates.
type MiddlewareHooks struct {
	OnLimited tele.HandlerFunc
	OnDenied  tele.HandlerFunc
}

// DefaultMiddlewares builds the shared middleware chain for bots.
func DefaultMiddlewares(cfg *coreconfig.Config, hooks MiddlewareHooks) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: hooks.OnLimited,
				}),
			})
		}
	}

	mws = append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})

	if cfg != nil {
		mws = append(mws, Middleware{
			Name: "access",
			Use: middleware.AllowListMiddleware(middleware.AccessOptions{
				AdminID:        cfg.Telegram.AdminID,
				AllowedUserIDs: cfg.Telegram.AllowedUserIDs,
				OnReject:       hooks.OnDenied,
			}),
		})
	}

	mws = append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware})
	return mws
}
