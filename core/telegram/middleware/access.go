package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
	tghelpers "github.com/m3rciful/shopintake/core/telegram/helpers"
)

// AccessOptions decide who may talk to the bot.
type AccessOptions struct {
	AdminID int64
	// AllowedUserIDs lists operators besides the admin. When both this and
	// AdminID are empty the bot is open to everyone.
	AllowedUserIDs []int64
	OnReject       tele.HandlerFunc
}

// AccessList answers whether a user may use the bot.
type AccessList struct {
	adminID int64
	allowed map[int64]struct{}
}

// NewAccessList builds the lookup for opts.
func NewAccessList(opts AccessOptions) AccessList {
	allowed := make(map[int64]struct{}, len(opts.AllowedUserIDs))
	for _, id := range opts.AllowedUserIDs {
		if id != 0 {
			allowed[id] = struct{}{}
		}
	}
	return AccessList{adminID: opts.AdminID, allowed: allowed}
}

// Allows reports whether userID passes the list.
func (a AccessList) Allows(userID int64) bool {
	if a.adminID == 0 && len(a.allowed) == 0 {
		return true
	}
	if userID != 0 && userID == a.adminID {
		return true
	}
	_, ok := a.allowed[userID]
	return ok
}

// IsAdmin reports whether userID is the configured admin.
func (a AccessList) IsAdmin(userID int64) bool {
	return a.adminID != 0 && userID == a.adminID
}

// AllowListMiddleware drops updates from users outside the access list.
func AllowListMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	list := NewAccessList(opts)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			var userID int64
			if u := c.Sender(); u != nil {
				userID = u.ID
			}
			if list.Allows(userID) {
				return next(c)
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.access",
				slog.String("status", "rejected"),
				slog.Int64("user_id", userID),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
func AdminOnlyMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	list := NewAccessList(opts)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			var userID int64
			if u := c.Sender(); u != nil {
				userID = u.ID
			}
			if !list.IsAdmin(userID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
