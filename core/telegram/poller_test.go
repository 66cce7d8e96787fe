package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/shopintake/core/config"
)

func TestBuildPollerLongpoll(t *testing.T) {
	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll}}
	lp, ok := BuildPoller(cfg).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)
	assert.Equal(t, []string{"message", "callback_query"}, lp.AllowedUpdates)

	cfg.Telegram.LongPollTimeoutSeconds = 25
	lp = BuildPoller(cfg).(*tele.LongPoller)
	assert.Equal(t, 25*time.Second, lp.Timeout)
}

func TestBuildPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeWebhook},
		Webhook: coreconfig.WebhookConfig{
			URL:         "https://bot.example/hook",
			Listen:      "0.0.0.0",
			Port:        8443,
			SecretToken: "s3cret",
		},
	}
	wh, ok := BuildPoller(cfg).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "s3cret", wh.SecretToken)
	assert.Equal(t, "https://bot.example/hook", wh.Endpoint.PublicURL)
}
