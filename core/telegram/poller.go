package telegram

import (
	"net"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/shopintake/core/config"
)

const defaultPollTimeout = 10 * time.Second

// allowedUpdates are the update types the bot handles; Telegram drops the rest.
var allowedUpdates = []string{"message", "callback_query"}

// PollTimeout returns the configured long polling timeout.
func PollTimeout(cfg coreconfig.TelegramConfig) time.Duration {
	if cfg.LongPollTimeoutSeconds > 0 {
		return time.Duration(cfg.LongPollTimeoutSeconds) * time.Second
	}
	return defaultPollTimeout
}

// BuildPoller returns the webhook listener or long poller selected by cfg.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			AllowedUpdates: allowedUpdates,
			SecretToken:    cfg.Webhook.SecretToken,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{
		Timeout:        PollTimeout(cfg.Telegram),
		AllowedUpdates: allowedUpdates,
	}
}
