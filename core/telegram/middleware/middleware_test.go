package middleware

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

// stubContext implements the parts of tele.Context the middlewares touch.
type stubContext struct {
	tele.Context
	mu     sync.Mutex
	update tele.Update
	store  map[string]any
	sent   []any
}

func newStubContext(userID int64, msg *tele.Message) *stubContext {
	if msg != nil {
		msg.Sender = &tele.User{ID: userID}
		msg.Chat = &tele.Chat{ID: userID, Type: tele.ChatPrivate}
	}
	return &stubContext{
		update: tele.Update{ID: 10, Message: msg},
		store:  map[string]any{},
	}
}

func (s *stubContext) Update() tele.Update { return s.update }

func (s *stubContext) Message() *tele.Message { return s.update.Message }

func (s *stubContext) Sender() *tele.User {
	if s.update.Message != nil {
		return s.update.Message.Sender
	}
	return nil
}

func (s *stubContext) Chat() *tele.Chat {
	if s.update.Message != nil {
		return s.update.Message.Chat
	}
	return nil
}

func (s *stubContext) Text() string {
	if s.update.Message != nil {
		return s.update.Message.Text
	}
	return ""
}

func (s *stubContext) Get(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store[key]
}

func (s *stubContext) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = v
}

func (s *stubContext) Send(what any, opts ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, what)
	return nil
}

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "callback", UpdateKind(tele.Update{Callback: &tele.Callback{}}))
	assert.Equal(t, "photo", UpdateKind(tele.Update{Message: &tele.Message{Photo: &tele.Photo{}}}))
	assert.Equal(t, "command", UpdateKind(tele.Update{Message: &tele.Message{Text: "/start"}}))
	assert.Equal(t, "text", UpdateKind(tele.Update{Message: &tele.Message{Text: "Blue Mug"}}))
	assert.Equal(t, "message", UpdateKind(tele.Update{Message: &tele.Message{}}))
	assert.Equal(t, "other", UpdateKind(tele.Update{}))
}

func TestRateLimitDropsBurst(t *testing.T) {
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(newStubContext(1, &tele.Message{Text: "a"})))
	require.NoError(t, h(newStubContext(1, &tele.Message{Text: "b"})))
	require.NoError(t, h(newStubContext(2, &tele.Message{Text: "c"})))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, limited)
}

func TestRateLimitExcludesMessages(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	for i := 0; i < 3; i++ {
		require.NoError(t, h(newStubContext(1, &tele.Message{Photo: &tele.Photo{}})))
	}
	assert.Equal(t, 3, calls)
}

func TestRateLimitForgetsAfterInterval(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitOptions{Interval: 20 * time.Millisecond})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(newStubContext(1, &tele.Message{Text: "a"})))
	require.NoError(t, h(newStubContext(1, &tele.Message{Text: "b"})))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, h(newStubContext(1, &tele.Message{Text: "c"})))

	assert.Equal(t, 2, calls)
}

func TestRecoverTurnsPanicIntoError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newStubContext(1, &tele.Message{Text: "x"}))
	require.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "boom")

	want := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return want })
	assert.ErrorIs(t, h(newStubContext(1, &tele.Message{Text: "x"})), want)
}

func TestAllowListMiddleware(t *testing.T) {
	rejected := 0
	mw := AllowListMiddleware(AccessOptions{
		AdminID:        1,
		AllowedUserIDs: []int64{2},
		OnReject:       func(tele.Context) error { rejected++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(newStubContext(1, &tele.Message{Text: "/start"})))
	require.NoError(t, h(newStubContext(2, &tele.Message{Text: "/start"})))
	require.NoError(t, h(newStubContext(3, &tele.Message{Text: "/start"})))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, rejected)
}

func TestMessageMetricsCountsSends(t *testing.T) {
	var seen tele.Context
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		seen = c
		_ = c.Send("one")
		return c.Send("two", &tele.ReplyMarkup{RemoveKeyboard: true})
	})
	require.NoError(t, h(newStubContext(1, &tele.Message{Text: "x"})))

	msgs, kb := GetCounters(seen)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)
}

func TestLoggerMiddlewareSetsRID(t *testing.T) {
	c := newStubContext(7, &tele.Message{Text: "hello"})
	h := LoggerMiddleware(func(tele.Context) error { return nil })
	require.NoError(t, h(c))

	rid, _ := c.Get("rid").(string)
	assert.NotEmpty(t, rid)
}
