package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
	"github.com/m3rciful/shopintake/core/telegram/sender"
)

var outbox atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes later sends through d. nil makes them synchronous.
func SetDispatcher(d *sender.Dispatcher) {
	outbox.Store(d)
}

// deliver hands run to the dispatcher, or runs it inline when there is
// no dispatcher or its queue cannot take the job.
func deliver(c tele.Context, action string, run func() error) error {
	d := outbox.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, "sendMessage", run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends plain text to the current chat.
func SendText(c tele.Context, text string) error {
	return send(c, "send.text", text, nil)
}

// SendWithMarkup sends plain text with a keyboard. A nil markup sends plain text.
func SendWithMarkup(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if markup == nil {
		return SendText(c, text)
	}
	return send(c, "send.markup", text, &tele.SendOptions{ReplyMarkup: markup})
}

// SendMDV2 sends text already escaped for MarkdownV2.
func SendMDV2(c tele.Context, text string) error {
	return send(c, "send.mdv2", text, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2})
}

func send(c tele.Context, action, text string, opts *tele.SendOptions) error {
	return deliver(c, action, func() error {
		if opts == nil {
			return c.Send(text)
		}
		return c.Send(text, opts)
	})
}
