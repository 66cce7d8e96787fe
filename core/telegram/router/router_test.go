package router

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/commerce"
	tg "github.com/m3rciful/shopintake/core/telegram"
)

type stubContext struct {
	tele.Context
	mu     sync.Mutex
	update tele.Update
	store  map[string]any
}

func newMessage(id int, userID int64, msg *tele.Message) *stubContext {
	msg.Sender = &tele.User{ID: userID}
	msg.Chat = &tele.Chat{ID: userID, Type: tele.ChatPrivate}
	return &stubContext{update: tele.Update{ID: id, Message: msg}, store: map[string]any{}}
}

func (s *stubContext) Update() tele.Update { return s.update }

func (s *stubContext) Message() *tele.Message { return s.update.Message }

func (s *stubContext) Callback() *tele.Callback { return s.update.Callback }

func (s *stubContext) Sender() *tele.User {
	if s.update.Message != nil {
		return s.update.Message.Sender
	}
	if s.update.Callback != nil {
		return s.update.Callback.Sender
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

func (s *stubContext) Respond(...*tele.CallbackResponse) error { return nil }

type conversation struct {
	active map[int64]bool
	texts  []string
	photos int
}

func (c *conversation) Active(id int64) bool { return c.active[id] }

func (c *conversation) HandleText(ctx tele.Context) error {
	c.texts = append(c.texts, ctx.Text())
	return nil
}

func (c *conversation) HandlePhoto(tele.Context) error {
	c.photos++
	return nil
}

func routeFor(t *testing.T, routes []tg.Route, endpoint any) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for %v", endpoint)
	return nil
}

func TestMessageRoutesPreferActiveConversation(t *testing.T) {
	conv := &conversation{active: map[int64]bool{7: true}}
	reg := tg.NewRegistry()
	var helpCalls int
	require.NoError(t, reg.RegisterCommand("/help", tg.Command{
		Description: "help",
		Handler:     func(tele.Context) error { helpCalls++; return nil },
	}))
	var fallback int
	reg.SetTextFallback(func(tele.Context) error { fallback++; return nil })

	routes := MessageRoutes(conv, reg, MessageOptions{})
	onText := routeFor(t, routes, tele.OnText)

	require.NoError(t, onText(newMessage(1, 7, &tele.Message{Text: "help"})))
	assert.Equal(t, []string{"help"}, conv.texts)
	assert.Zero(t, helpCalls)

	require.NoError(t, onText(newMessage(2, 7, &tele.Message{Text: "/help me"})))
	assert.Equal(t, 1, helpCalls)

	require.NoError(t, onText(newMessage(3, 8, &tele.Message{Text: "hi"})))
	assert.Equal(t, 1, fallback)
	assert.Len(t, conv.texts, 1)
}

func TestMessageRoutesUnknownCommandSkipsConversation(t *testing.T) {
	conv := &conversation{active: map[int64]bool{7: true}}
	reg := tg.NewRegistry()
	var fallback int
	reg.SetTextFallback(func(tele.Context) error { fallback++; return nil })

	onText := routeFor(t, MessageRoutes(conv, reg, MessageOptions{}), tele.OnText)

	require.NoError(t, onText(newMessage(1, 7, &tele.Message{Text: "/settings"})))
	assert.Empty(t, conv.texts)
	assert.Equal(t, 1, fallback)

	var unknown int
	onText = routeFor(t, MessageRoutes(conv, nil, MessageOptions{
		UnknownText: func(tele.Context) error { unknown++; return nil },
	}), tele.OnText)
	require.NoError(t, onText(newMessage(2, 7, &tele.Message{Text: "/settings now"})))
	assert.Empty(t, conv.texts)
	assert.Equal(t, 1, unknown)
}

func TestMessageRoutesPhoto(t *testing.T) {
	conv := &conversation{active: map[int64]bool{7: true}}
	var unknown int
	routes := MessageRoutes(conv, tg.NewRegistry(), MessageOptions{
		UnknownPhoto: func(tele.Context) error { unknown++; return nil },
	})
	onPhoto := routeFor(t, routes, tele.OnPhoto)

	require.NoError(t, onPhoto(newMessage(10, 7, &tele.Message{Photo: &tele.Photo{}})))
	require.NoError(t, onPhoto(newMessage(11, 9, &tele.Message{Photo: &tele.Photo{}})))
	assert.Equal(t, 1, conv.photos)
	assert.Equal(t, 1, unknown)
}

func TestCallbackRoute(t *testing.T) {
	reg := tg.NewRegistry()
	var got int
	require.NoError(t, reg.RegisterCallback("intake_cancel", func(tele.Context) error { got++; return nil }))
	var missing int
	reg.SetCallbackNotFound(func(tele.Context) error { missing++; return nil })

	route := CallbackRoute(reg, CallbackOptions{})
	cb := func(id int, unique string) *stubContext {
		return &stubContext{
			update: tele.Update{ID: id, Callback: &tele.Callback{Sender: &tele.User{ID: 7}, Unique: unique}},
			store:  map[string]any{},
		}
	}
	require.NoError(t, route.Handler(cb(20, "intake_cancel")))
	require.NoError(t, route.Handler(cb(21, "other")))
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, missing)

	var overridden int
	route = CallbackRoute(reg, CallbackOptions{NotFound: func(tele.Context) error { overridden++; return nil }})
	require.NoError(t, route.Handler(cb(22, "other")))
	assert.Equal(t, 1, overridden)
	assert.Equal(t, 1, missing)
}

func TestCommandRoutesAdminOnly(t *testing.T) {
	reg := tg.NewRegistry()
	var calls int
	require.NoError(t, reg.RegisterCommand("/recent", tg.Command{
		Description: "recent",
		AdminOnly:   true,
		Handler:     func(tele.Context) error { calls++; return nil },
	}))
	var rejected int
	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       1,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	h := routeFor(t, routes, "/recent")

	require.NoError(t, h(newMessage(30, 2, &tele.Message{Text: "/recent"})))
	require.NoError(t, h(newMessage(31, 1, &tele.Message{Text: "/recent"})))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rejected)
}

type plainError struct{}

func (plainError) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	backend := &commerce.BackendError{Op: "create_category", Status: 400, Code: "term_exists"}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"backend", backend, "TERM_EXISTS"},
		{"wrapped backend", fmt.Errorf("intake: resolve category: %w", backend), "TERM_EXISTS"},
		{"media", fmt.Errorf("x: %w", &commerce.MediaUploadError{Err: backend}), "MEDIA_UPLOAD_FAILED"},
		{"named type", fmt.Errorf("x: %w", plainError{}), "PLAINERROR"},
		{"anonymous", errors.New("boom"), "UNKNOWN_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveErrorCode(tt.err))
		})
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "start", normalizeHandlerName("/Start"))
	assert.Equal(t, "unknown", normalizeHandlerName("  "))
	assert.Equal(t, "intake_cancel", normalizeHandlerName("intake cancel"))
}
