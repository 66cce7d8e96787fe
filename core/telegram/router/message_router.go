package router

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/shopintake/core/telegram"
	"github.com/m3rciful/shopintake/core/telegram/middleware"
)

// Conversation receives messages while a user has a dialog in progress.
type Conversation interface {
	Active(userID int64) bool
	HandleText(c tele.Context) error
	HandlePhoto(c tele.Context) error
}

// MessageOptions controls fallback behaviour for text and photo updates.
type MessageOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownPhoto tele.HandlerFunc
}

// MessageRoutes builds the text and photo routes. Slash commands that reach
// OnText are resolved through the registry aliases first. Plain text from a
// user with an active conversation goes to it; unmatched commands and
// everything else go to the fallbacks.
func MessageRoutes(conv Conversation, reg *tg.Registry, opts MessageOptions) []tg.Route {
	active := func(c tele.Context) bool {
		u := c.Sender()
		return conv != nil && u != nil && conv.Active(u.ID)
	}

	textHandler := func(c tele.Context) error {
		text := c.Text()
		command := strings.HasPrefix(text, "/")
		if reg != nil && command {
			name, _, _ := strings.Cut(text, " ")
			if key, cmd, ok := reg.LookupCommand(name); ok && cmd.Handler != nil {
				return summarize(key).run(c, cmd.Handler)
			}
		}
		// Unknown commands never become dialog input.
		if !command && active(c) {
			return summarize("intake.text").run(c, conv.HandleText)
		}
		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return summarize("fallback").run(c, fb)
			}
		}
		if opts.UnknownText != nil {
			return summarize("unknown_text").run(c, opts.UnknownText)
		}
		return summarize("unknown_text").skip(c)
	}

	photoHandler := func(c tele.Context) error {
		switch {
		case active(c):
			return summarize("intake.photo").run(c, conv.HandlePhoto)
		case opts.UnknownPhoto != nil:
			return summarize("unexpected_photo").run(c, opts.UnknownPhoto)
		}
		return summarize("unexpected_photo").skip(c)
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(textHandler)),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(photoHandler)),
		},
	}
}
