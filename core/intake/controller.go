// Package intake drives the product intake conversation: it collects the
// product fields step by step and, once a photo arrives, creates the product
// in the shop.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/shopintake/core/commerce"
	"github.com/m3rciful/shopintake/core/logger"
	"github.com/m3rciful/shopintake/core/metrics"
)

// Commerce is the shop backend used by the controller.
type Commerce interface {
	ListCategories(ctx context.Context) ([]commerce.Category, error)
	FindCategoryByExactName(ctx context.Context, name string) (commerce.Category, bool, error)
	CreateCategory(ctx context.Context, name string) (commerce.Category, error)
	UploadMedia(ctx context.Context, m commerce.Media) (commerce.MediaRef, error)
	CreateProduct(ctx context.Context, in commerce.ProductInput) (commerce.Product, error)
}

// SessionStore holds active sessions keyed by session id.
type SessionStore interface {
	Get(id int64) (*Session, bool)
	Put(id int64, s *Session)
	Delete(id int64)
	Len() int
}

// Journal records finished sessions.
type Journal interface {
	Record(ctx context.Context, sub Submission) error
}

// Options select the conversation variant.
type Options struct {
	// AskPrice adds the price step after the name.
	AskPrice bool
	// CategoryMenu offers existing categories as quick replies and resolves
	// the choice when the photo arrives. Without it the typed category name
	// is resolved immediately.
	CategoryMenu bool
}

// Controller owns the sessions and applies chat events to them.
type Controller struct {
	opts     Options
	commerce Commerce
	sessions SessionStore
	journal  Journal
	now      func() time.Time
}

// New builds a Controller. journal may be nil.
func New(opts Options, shop Commerce, sessions SessionStore, journal Journal) (*Controller, error) {
	if shop == nil {
		return nil, errors.New("intake: commerce client is required")
	}
	if sessions == nil {
		return nil, errors.New("intake: session store is required")
	}
	return &Controller{
		opts:     opts,
		commerce: shop,
		sessions: sessions,
		journal:  journal,
		now:      time.Now,
	}, nil
}

// State returns the state of the active session for id.
func (c *Controller) State(id int64) (State, bool) {
	s, ok := c.sessions.Get(id)
	if !ok {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State.Terminal() {
		return "", false
	}
	return s.State, true
}

// Active reports whether id has a conversation in progress.
func (c *Controller) Active(id int64) bool {
	_, ok := c.State(id)
	return ok
}

// Start opens a new session in AwaitingName. An active session for the same
// id is discarded.
func (c *Controller) Start(ctx context.Context, id int64) (Result, error) {
	ctx = logger.WithSessionID(ctx, id)
	if old, ok := c.sessions.Get(id); ok {
		old.mu.Lock()
		if prev := old.State; !prev.Terminal() {
			c.finish(ctx, old, Cancelled, Submission{Outcome: OutcomeCancelled})
			logger.LogEvent(ctx, logger.Intake, slog.LevelInfo, "intake.restart",
				slog.String("state", string(prev)),
			)
		}
		old.mu.Unlock()
	}

	s := &Session{ID: id, State: AwaitingName, StartedAt: c.now()}
	c.sessions.Put(id, s)
	metrics.IncSessionStarted()
	metrics.SetSessionsActive(c.sessions.Len())
	logger.LogEvent(ctx, logger.Intake, slog.LevelInfo, "intake.start",
		slog.String("state", string(s.State)),
	)
	return result(s, Reply{Text: PromptName}), nil
}

// Text applies a text message to the active session.
func (c *Controller) Text(ctx context.Context, id int64, text string) (Result, error) {
	return c.apply(ctx, id, func(ctx context.Context, s *Session) (Result, error) {
		return c.handleText(ctx, s, text)
	})
}

// Photo applies a photo message to the active session.
func (c *Controller) Photo(ctx context.Context, id int64, image []byte) (Result, error) {
	return c.apply(ctx, id, func(ctx context.Context, s *Session) (Result, error) {
		return c.handlePhoto(ctx, s, image)
	})
}

// Cancel ends the active session without calling the shop.
func (c *Controller) Cancel(ctx context.Context, id int64) (Result, error) {
	res, err := c.apply(ctx, id, func(ctx context.Context, s *Session) (Result, error) {
		c.finish(ctx, s, Cancelled, Submission{Outcome: OutcomeCancelled})
		return result(s, Reply{Text: MsgCancelled}), nil
	})
	if errors.Is(err, ErrNoSession) {
		return Result{Replies: []Reply{{Text: MsgNothingToCancel}}}, err
	}
	return res, err
}

func (c *Controller) apply(ctx context.Context, id int64, fn func(context.Context, *Session) (Result, error)) (Result, error) {
	ctx = logger.WithSessionID(ctx, id)
	s, ok := c.sessions.Get(id)
	if !ok {
		return Result{}, ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State.Terminal() {
		return Result{}, ErrNoSession
	}

	prev := s.State
	res, err := fn(ctx, s)
	if s.State != prev {
		logger.LogEvent(ctx, logger.Intake, slog.LevelInfo, "intake.transition",
			slog.String("state", string(prev)),
			slog.String("next_state", string(s.State)),
		)
	}
	if !s.State.Terminal() {
		c.touch(s)
	}
	return res, err
}

func (c *Controller) handleText(ctx context.Context, s *Session, text string) (Result, error) {
	if !s.State.ExpectsText() {
		metrics.IncInputRejected(string(s.State))
		return result(s, Reply{Text: MsgExpectPhoto}), nil
	}
	value := strings.TrimSpace(text)
	if value == "" {
		return c.reject(s)
	}

	switch s.State {
	case AwaitingName:
		s.Draft.Name = value
		if c.opts.AskPrice {
			s.State = AwaitingPrice
			return result(s, Reply{Text: PromptPrice}), nil
		}
		s.State = AwaitingDescription
		return result(s, Reply{Text: PromptDescription}), nil

	case AwaitingPrice:
		s.Draft.Price = value
		s.State = AwaitingDescription
		return result(s, Reply{Text: PromptDescription}), nil

	case AwaitingDescription:
		s.Draft.ShortDescription = value
		s.State = AwaitingCategoryChoice
		if c.opts.CategoryMenu {
			s.menu = c.categoryMenu(ctx)
		}
		return result(s, c.prompt(s)), nil

	case AwaitingCategoryChoice:
		if !c.opts.CategoryMenu {
			return c.resolveTypedCategory(ctx, s, value)
		}
		if value == NewCategoryOption {
			s.State = AwaitingNewCategoryName
			return result(s, Reply{Text: PromptNewCategory}), nil
		}
		s.Draft.CategoryName = value
		s.State = AwaitingPhoto
		return result(s, Reply{Text: PromptPhoto}), nil

	case AwaitingNewCategoryName:
		cat, err := c.commerce.CreateCategory(ctx, value)
		if err != nil {
			return c.categoryFailed(ctx, s, err)
		}
		s.Draft.CategoryName = cat.Name
		s.Draft.CategoryID = cat.ID
		s.State = AwaitingPhoto
		return result(s, Reply{Text: PromptPhoto}), nil
	}
	return result(s, c.prompt(s)), nil
}

// resolveTypedCategory looks the typed name up and creates it when missing.
func (c *Controller) resolveTypedCategory(ctx context.Context, s *Session, name string) (Result, error) {
	cat, err := c.resolveCategory(ctx, name)
	if err != nil {
		return c.categoryFailed(ctx, s, err)
	}
	s.Draft.CategoryName = cat.Name
	s.Draft.CategoryID = cat.ID
	s.State = AwaitingPhoto
	return result(s, Reply{Text: PromptPhoto}), nil
}

func (c *Controller) categoryFailed(ctx context.Context, s *Session, err error) (Result, error) {
	logger.LogEvent(ctx, logger.Intake, slog.LevelWarn, "intake.category",
		slog.String("state", string(s.State)),
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
	return result(s, Reply{Text: MsgCategoryFailed}, c.prompt(s)), fmt.Errorf("intake: resolve category: %w", err)
}

func (c *Controller) resolveCategory(ctx context.Context, name string) (commerce.Category, error) {
	cat, found, err := c.commerce.FindCategoryByExactName(ctx, name)
	if err != nil {
		return commerce.Category{}, err
	}
	if found {
		return cat, nil
	}
	return c.commerce.CreateCategory(ctx, name)
}

func (c *Controller) handlePhoto(ctx context.Context, s *Session, image []byte) (Result, error) {
	if s.State != AwaitingPhoto {
		metrics.IncInputRejected(string(s.State))
		return result(s, Reply{Text: MsgExpectText}, c.prompt(s)), nil
	}
	if len(image) == 0 {
		return c.reject(s)
	}

	if s.Draft.CategoryID == 0 {
		cat, err := c.resolveCategory(ctx, s.Draft.CategoryName)
		if err != nil {
			return c.fail(ctx, s, Submission{}, fmt.Errorf("intake: resolve category: %w", err))
		}
		s.Draft.CategoryID = cat.ID
	}

	ref, err := c.commerce.UploadMedia(ctx, commerce.Media{Data: image})
	if err != nil {
		return c.fail(ctx, s, Submission{}, fmt.Errorf("intake: upload photo: %w", err))
	}

	product, err := c.commerce.CreateProduct(ctx, commerce.ProductInput{
		Name:             s.Draft.Name,
		RegularPrice:     s.Draft.Price,
		ShortDescription: s.Draft.ShortDescription,
		CategoryID:       s.Draft.CategoryID,
		Image:            ref,
	})
	if err != nil {
		return c.fail(ctx, s, Submission{MediaID: ref.ID}, fmt.Errorf("intake: create product: %w", err))
	}

	c.finish(ctx, s, Complete, Submission{
		Outcome:   OutcomeComplete,
		ProductID: product.ID,
		MediaID:   ref.ID,
	})
	logger.LogEvent(ctx, logger.Intake, slog.LevelInfo, "intake.product",
		slog.String("status", "ok"),
		slog.Int64("product_id", product.ID),
		slog.Int64("category_id", s.Draft.CategoryID),
		slog.Int64("media_id", ref.ID),
	)
	return result(s, Reply{Text: MsgSuccess}), nil
}

func (c *Controller) fail(ctx context.Context, s *Session, sub Submission, err error) (Result, error) {
	logger.LogEvent(ctx, logger.Intake, slog.LevelWarn, "intake.product",
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
	sub.Outcome = OutcomeFailed
	sub.Error = err.Error()
	c.finish(ctx, s, Cancelled, sub)
	return result(s, Reply{Text: MsgFailure}), err
}

func (c *Controller) reject(s *Session) (Result, error) {
	metrics.IncInputRejected(string(s.State))
	return result(s, Reply{Text: MsgEmptyInput}, c.prompt(s)), fmt.Errorf("intake: %s: %w", s.State, ErrValidation)
}

// finish moves s into a terminal state, journals it and drops it from the store.
func (c *Controller) finish(ctx context.Context, s *Session, terminal State, sub Submission) {
	s.State = terminal
	sub.SessionID = s.ID
	sub.Draft = s.Draft
	sub.StartedAt = s.StartedAt
	sub.FinishedAt = c.now()

	if cur, ok := c.sessions.Get(s.ID); ok && cur == s {
		c.sessions.Delete(s.ID)
	}
	metrics.IncSessionFinished(sub.Outcome)
	metrics.SetSessionsActive(c.sessions.Len())

	if c.journal == nil {
		return
	}
	if err := c.journal.Record(ctx, sub); err != nil {
		logger.LogEvent(ctx, logger.Intake, slog.LevelWarn, "intake.journal",
			slog.String("status", "fail"),
			slog.String("outcome", sub.Outcome),
			slog.String("err", err.Error()),
		)
	}
}

// touch refreshes the store deadline unless s was replaced by a newer session.
func (c *Controller) touch(s *Session) {
	if cur, ok := c.sessions.Get(s.ID); ok && cur == s {
		c.sessions.Put(s.ID, s)
	}
}

// prompt repeats the question for the current step.
func (c *Controller) prompt(s *Session) Reply {
	switch s.State {
	case AwaitingName:
		return Reply{Text: PromptName}
	case AwaitingPrice:
		return Reply{Text: PromptPrice}
	case AwaitingDescription:
		return Reply{Text: PromptDescription}
	case AwaitingCategoryChoice:
		if c.opts.CategoryMenu {
			return Reply{Text: PromptCategoryMenu, Options: s.menu}
		}
		return Reply{Text: PromptCategory}
	case AwaitingNewCategoryName:
		return Reply{Text: PromptNewCategory}
	case AwaitingPhoto:
		return Reply{Text: PromptPhoto}
	}
	return Reply{}
}

// categoryMenu lists existing category names followed by the create option.
// A failed listing leaves only the create option.
func (c *Controller) categoryMenu(ctx context.Context) []string {
	cats, err := c.commerce.ListCategories(ctx)
	if err != nil {
		logger.LogEvent(ctx, logger.Intake, slog.LevelWarn, "intake.category_menu",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return []string{NewCategoryOption}
	}
	seen := make(map[string]struct{}, len(cats))
	opts := make([]string, 0, len(cats)+1)
	for _, cat := range cats {
		if len(opts) == maxMenuOptions {
			break
		}
		if _, dup := seen[cat.Name]; dup || cat.Name == NewCategoryOption {
			continue
		}
		seen[cat.Name] = struct{}{}
		opts = append(opts, cat.Name)
	}
	return append(opts, NewCategoryOption)
}

func result(s *Session, replies ...Reply) Result {
	return Result{State: s.State, Replies: replies}
}
