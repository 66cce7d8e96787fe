package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	ctxLogger ctxKey = iota
	ctxRID
	ctxUpdateID
	ctxUserID
	ctxChatID
	ctxHandler
	ctxSessionID
)

func with(ctx context.Context, key ctxKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func valueOf[T any](ctx context.Context, key ctxKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	v, ok := ctx.Value(key).(T)
	if !ok {
		return zero
	}
	return v
}

// WithLogger makes lg the logger returned by FromContext.
func WithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if lg == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return with(ctx, ctxLogger, lg)
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if lg := valueOf[*slog.Logger](ctx, ctxLogger); lg != nil {
		return lg
	}
	return L
}

func WithRID(ctx context.Context, rid string) context.Context {
	return with(ctx, ctxRID, rid)
}

func RIDFrom(ctx context.Context) string { return valueOf[string](ctx, ctxRID) }

// WithUpdateMeta records the Telegram ids of the update being served.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	ctx = with(ctx, ctxUpdateID, updateID)
	ctx = with(ctx, ctxUserID, userID)
	return with(ctx, ctxChatID, chatID)
}

func UpdateIDFrom(ctx context.Context) int { return valueOf[int](ctx, ctxUpdateID) }

func UserIDFrom(ctx context.Context) int64 { return valueOf[int64](ctx, ctxUserID) }

func ChatIDFrom(ctx context.Context) int64 { return valueOf[int64](ctx, ctxChatID) }

func HandlerFrom(ctx context.Context) string { return valueOf[string](ctx, ctxHandler) }

// WithHandler names the handler serving ctx. An empty name is ignored.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return with(ctx, ctxHandler, handler)
}

// WithSessionID tags ctx with the intake session it belongs to.
func WithSessionID(ctx context.Context, sessionID int64) context.Context {
	return with(ctx, ctxSessionID, sessionID)
}

func SessionIDFrom(ctx context.Context) int64 { return valueOf[int64](ctx, ctxSessionID) }
