package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
)

type stubContext struct {
	tele.Context
	update tele.Update
	store  map[string]any
}

func newStub(updateID int, userID int64) *stubContext {
	msg := &tele.Message{
		Text:   "hi",
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}
	return &stubContext{update: tele.Update{ID: updateID, Message: msg}, store: map[string]any{}}
}

func (s *stubContext) Update() tele.Update   { return s.update }
func (s *stubContext) Sender() *tele.User    { return s.update.Message.Sender }
func (s *stubContext) Chat() *tele.Chat      { return s.update.Message.Chat }
func (s *stubContext) Get(key string) any    { return s.store[key] }
func (s *stubContext) Set(key string, v any) { s.store[key] = v }

func TestIdentity(t *testing.T) {
	u, user, chat := Identity(newStub(5, 42))
	assert.Equal(t, 5, u)
	assert.Equal(t, int64(42), user)
	assert.Equal(t, int64(42), chat)
}

func TestBuildContextCachesAndCarriesRID(t *testing.T) {
	c := newStub(9, 11)
	ctx := BuildContext(c)

	rid, _ := c.Get(ridKey).(string)
	require.NotEmpty(t, rid)
	assert.Equal(t, rid, logger.RIDFrom(ctx))
	assert.Equal(t, logger.BuildRID(9, 11, 11), rid)

	again := BuildContext(c)
	assert.Equal(t, ctx, again)
}

func TestWithHandlerTagsStoredContext(t *testing.T) {
	c := newStub(1, 2)
	WithHandler(c, "start")

	ctx, ok := ContextFrom(c)
	require.True(t, ok)
	assert.Equal(t, "start", logger.HandlerFrom(ctx))
}
