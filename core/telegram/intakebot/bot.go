// Package intakebot binds the intake conversation to Telegram commands,
// messages and buttons.
package intakebot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/intake"
	"github.com/m3rciful/shopintake/core/journal"
	"github.com/m3rciful/shopintake/core/logger"
	tg "github.com/m3rciful/shopintake/core/telegram"
	tghelpers "github.com/m3rciful/shopintake/core/telegram/helpers"
	"github.com/m3rciful/shopintake/core/telegram/keyboard"
	"github.com/m3rciful/shopintake/core/telegram/router"
)

// CallbackCancel is the unique key of the inline cancel button.
const CallbackCancel = "intake_cancel"

const (
	defaultMaxPhotoBytes = 10 << 20
	defaultRecentLimit   = 10
	menuColumns          = 2
)

// Chat strings owned by the Telegram side.
const (
	MsgHelp = "I add products to the shop.\n\n" +
		"/start - add a new product\n" +
		"/cancel - stop the current product"
	MsgPhotoTooLarge   = "The photo is too large. Please send a smaller one."
	MsgPhotoUnreadable = "Could not read the photo. Please send it again."
	MsgNoAccess        = "Sorry, you are not allowed to use this bot."
	MsgSlowDown        = "Too many messages, please slow down."
	MsgNoSubmissions   = "No submissions yet."
)

// Controller is the conversation engine driven by the bot.
type Controller interface {
	Active(id int64) bool
	State(id int64) (intake.State, bool)
	Start(ctx context.Context, id int64) (intake.Result, error)
	Text(ctx context.Context, id int64, text string) (intake.Result, error)
	Photo(ctx context.Context, id int64, image []byte) (intake.Result, error)
	Cancel(ctx context.Context, id int64) (intake.Result, error)
}

// Submissions lists journaled sessions for the /recent command.
type Submissions interface {
	Recent(ctx context.Context, limit int) ([]journal.Row, error)
}

// FetchFunc opens the contents of a Telegram file.
type FetchFunc func(c tele.Context, file *tele.File) (io.ReadCloser, error)

// Options configure the bot binding.
type Options struct {
	Controller Controller
	// Submissions enables the admin /recent command when set.
	Submissions Submissions
	// Fetch defaults to downloading through the Bot API.
	Fetch         FetchFunc
	MaxPhotoBytes int64
	RecentLimit   int
}

// Bot handles Telegram updates for the intake conversation.
type Bot struct {
	ctrl        Controller
	submissions Submissions
	fetch       FetchFunc
	maxPhoto    int64
	recentLimit int
}

// New validates opts and applies defaults.
func New(opts Options) (*Bot, error) {
	if opts.Controller == nil {
		return nil, errors.New("intakebot: controller is required")
	}
	b := &Bot{
		ctrl:        opts.Controller,
		submissions: opts.Submissions,
		fetch:       opts.Fetch,
		maxPhoto:    opts.MaxPhotoBytes,
		recentLimit: opts.RecentLimit,
	}
	if b.fetch == nil {
		b.fetch = fetchFromAPI
	}
	if b.maxPhoto <= 0 {
		b.maxPhoto = defaultMaxPhotoBytes
	}
	if b.recentLimit <= 0 {
		b.recentLimit = defaultRecentLimit
	}
	return b, nil
}

func fetchFromAPI(c tele.Context, file *tele.File) (io.ReadCloser, error) {
	return c.Bot().File(file)
}

// Register adds the bot commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := map[string]tg.Command{
		"/start": {Handler: b.onStart, Description: "Add a new product"},
		"/cancel": {
			Handler:     b.onCancel,
			Description: "Cancel the current product",
			Aliases:     []string{"stop"},
		},
		"/help": {Handler: b.onHelp, Description: "Show help"},
	}
	if b.submissions != nil {
		cmds["/recent"] = tg.Command{Handler: b.onRecent, Description: "Show recent submissions", AdminOnly: true}
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return fmt.Errorf("intakebot: %w", err)
		}
	}
	reg.SetTextFallback(b.onHelp)
	if err := reg.RegisterCallback(CallbackCancel, b.onCancelButton); err != nil {
		return fmt.Errorf("intakebot: %w", err)
	}
	return nil
}

// Routes registers the handlers on reg and returns every bot route.
func (b *Bot) Routes(reg *tg.Registry, adminID int64) ([]tg.Route, error) {
	if err := b.Register(reg); err != nil {
		return nil, err
	}
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: adminID})
	routes = append(routes, router.MessageRoutes(b, reg, router.MessageOptions{
		UnknownPhoto: b.onHelp,
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return routes, nil
}

// Hooks returns the replies used by the access and rate limit middlewares.
func (b *Bot) Hooks() tg.MiddlewareHooks {
	return tg.MiddlewareHooks{
		OnLimited: func(c tele.Context) error { return tghelpers.SendText(c, MsgSlowDown) },
		OnDenied:  func(c tele.Context) error { return tghelpers.SendText(c, MsgNoAccess) },
	}
}

// Active reports whether the sender has a conversation in progress.
func (b *Bot) Active(userID int64) bool {
	return b.ctrl.Active(userID)
}

// HandleText feeds a text message into the conversation.
func (b *Bot) HandleText(c tele.Context) error {
	ctx, id := b.session(c)
	res, err := b.ctrl.Text(ctx, id, c.Text())
	return b.respond(c, res, err)
}

// HandlePhoto downloads the photo and feeds it into the conversation.
// Photos arriving before the photo step are passed on empty so the
// controller can re-prompt without a download.
func (b *Bot) HandlePhoto(c tele.Context) error {
	ctx, id := b.session(c)
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}
	if state, ok := b.ctrl.State(id); !ok || state != intake.AwaitingPhoto {
		res, err := b.ctrl.Photo(ctx, id, nil)
		return b.respond(c, res, err)
	}

	photo := msg.Photo
	if photo.FileSize > b.maxPhoto {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "intake.photo",
			slog.String("status", "rejected"),
			slog.Int64("size", photo.FileSize),
		)
		return tghelpers.SendText(c, MsgPhotoTooLarge)
	}
	data, err := b.download(c, &photo.File)
	if errors.Is(err, errPhotoTooLarge) {
		return tghelpers.SendText(c, MsgPhotoTooLarge)
	}
	if err != nil {
		_ = tghelpers.SendText(c, MsgPhotoUnreadable)
		return fmt.Errorf("intakebot: download photo: %w", err)
	}
	res, err := b.ctrl.Photo(ctx, id, data)
	return b.respond(c, res, err)
}

var errPhotoTooLarge = errors.New("photo exceeds size limit")

func (b *Bot) download(c tele.Context, file *tele.File) ([]byte, error) {
	rc, err := b.fetch(c, file)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, b.maxPhoto+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > b.maxPhoto {
		return nil, errPhotoTooLarge
	}
	return data, nil
}

func (b *Bot) onStart(c tele.Context) error {
	ctx, id := b.session(c)
	res, err := b.ctrl.Start(ctx, id)
	return b.respond(c, res, err)
}

func (b *Bot) onCancel(c tele.Context) error {
	ctx, id := b.session(c)
	res, err := b.ctrl.Cancel(ctx, id)
	return b.respond(c, res, err)
}

func (b *Bot) onCancelButton(c tele.Context) error {
	_ = c.Respond()
	return b.onCancel(c)
}

func (b *Bot) onHelp(c tele.Context) error {
	return tghelpers.SendText(c, MsgHelp)
}

// session derives the per-user session id and a request context.
func (b *Bot) session(c tele.Context) (context.Context, int64) {
	var id int64
	if u := c.Sender(); u != nil {
		id = u.ID
	} else if chat := c.Chat(); chat != nil {
		id = chat.ID
	}
	return logger.WithSessionID(tghelpers.BuildContext(c), id), id
}

// respond sends the replies in res. Input errors are answered in chat and
// not reported to the router.
func (b *Bot) respond(c tele.Context, res intake.Result, err error) error {
	if errors.Is(err, intake.ErrNoSession) && len(res.Replies) == 0 {
		return b.onHelp(c)
	}
	for i, r := range res.Replies {
		var markup *tele.ReplyMarkup
		if i == len(res.Replies)-1 {
			markup = markupFor(res.State, r)
		}
		if sendErr := tghelpers.SendWithMarkup(c, r.Text, markup); sendErr != nil {
			return fmt.Errorf("intakebot: send reply: %w", sendErr)
		}
	}
	if errors.Is(err, intake.ErrValidation) || errors.Is(err, intake.ErrNoSession) {
		return nil
	}
	return err
}

func markupFor(state intake.State, r intake.Reply) *tele.ReplyMarkup {
	switch {
	case len(r.Options) > 0:
		return keyboard.Choices(r.Options, menuColumns)
	case state == "" || state.Terminal():
		return keyboard.RemoveKeyboard()
	default:
		return keyboard.SingleCancelMarkup(CallbackCancel)
	}
}
