package router

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
	tg "github.com/m3rciful/shopintake/core/telegram"
	"github.com/m3rciful/shopintake/core/telegram/middleware"
)

// CommandRouteOptions configures CommandRoutes.
type CommandRouteOptions struct {
	AdminID int64
	// OnAdminReject answers non-admins calling an admin-only command.
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command. Handlers run
// inside recover, update logging, the admin gate when needed and the
// handler summary, in that order.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AccessOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for endpoint, cmd := range cmds {
		name, inner := endpoint, cmd.Handler
		var h tele.HandlerFunc = func(c tele.Context) error {
			return summarize(name).run(c, inner)
		}
		if cmd.AdminOnly {
			h = adminOnly(h)
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: h})
	}

	logger.LogEvent(context.Background(), logger.TWire, slog.LevelInfo, "tg.wire.complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
