package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
)

const (
	contextKey = "logger_ctx"
	ridKey     = "rid"
)

// Identity returns the update, user and chat ids of c. Missing parts are zero.
func Identity(c tele.Context) (updateID int, userID, chatID int64) {
	updateID = c.Update().ID
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return updateID, userID, chatID
}

// NewContext builds a fresh logging context for c, stores it on c and
// returns it together with the request id.
func NewContext(c tele.Context) (context.Context, string) {
	updateID, userID, chatID := Identity(c)
	rid := logger.BuildRID(updateID, chatID, userID)
	c.Set(ridKey, rid)

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx, rid
}

// StoreContext attaches ctx to c for later handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context stored on c, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext returns the stored context of c, creating one when the
// logger middleware did not run.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}
	ctx, _ := NewContext(c)
	return ctx
}

// WithHandler tags the stored context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
