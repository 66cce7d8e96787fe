package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/logger"
)

func chatCtx(chatID int64) context.Context {
	return logger.WithUpdateMeta(context.Background(), 1, chatID, chatID)
}

func TestDispatcherKeepsPerChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 128})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 50; i++ {
		for chat := int64(1); chat <= 3; chat++ {
			i, chat := i, chat
			require.NoError(t, d.Enqueue(chatCtx(chat), "send.text", "sendMessage", func() error {
				mu.Lock()
				got[chat] = append(got[chat], i)
				mu.Unlock()
				return nil
			}))
		}
	}
	d.Close()

	for chat := int64(1); chat <= 3; chat++ {
		require.Len(t, got[chat], 50)
		for i, v := range got[chat] {
			assert.Equal(t, i, v)
		}
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	calls := 0
	require.NoError(t, d.Enqueue(chatCtx(1), "send.text", "sendMessage", func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	}))
	d.Close()

	assert.Equal(t, 3, calls)
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherCountsPermanentFailure(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	calls := 0
	require.NoError(t, d.Enqueue(chatCtx(1), "send.text", "sendMessage", func() error {
		calls++
		return fmt.Errorf("telegram: chat not found (400)")
	}))
	d.Close()

	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()

	err := d.Enqueue(context.Background(), "send.text", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	block := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, d.Enqueue(chatCtx(1), "a", "", func() error {
		close(started)
		<-block
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(chatCtx(1), "b", "", func() error { return nil }))
	err := d.Enqueue(chatCtx(1), "c", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
	d.Close()
}

func TestDispatcherGivesUpAtDeadline(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Second, MaxDuration: 20 * time.Millisecond})
	calls := 0
	require.NoError(t, d.Enqueue(chatCtx(1), "send.text", "sendMessage", func() error {
		calls++
		return errors.New("telegram: bad gateway (502)")
	}))
	d.Close()

	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestInspect(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  string
		retry bool
	}{
		{"deadline", context.DeadlineExceeded, "timeout", true},
		{"cancelled", context.Canceled, "cancelled", false},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, "dial", true},
		{"dns", &net.DNSError{Err: "no such host", IsNotFound: true}, "dns", false},
		{"bad request", errors.New("telegram: bad request (400)"), "http_4xx", false},
		{"bad gateway", errors.New("telegram: internal (502)"), "http_5xx", true},
		{"too many", errors.New("telegram: too many requests (429)"), "flood", true},
		{"plain", errors.New("boom"), "unknown", false},
		{"parens", errors.New("failed (soon)"), "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := inspect(tt.err)
			assert.Equal(t, tt.kind, f.kind)
			assert.Equal(t, tt.retry, f.retry)
		})
	}
}

func TestInspectFloodWait(t *testing.T) {
	f := inspect(tele.FloodError{RetryAfter: 3})
	assert.Equal(t, "flood", f.kind)
	assert.True(t, f.retry)
	assert.Equal(t, 3*time.Second, f.wait)
}
