package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(telegramUpdates, telegramRateLimited, telegramSendFailures, telegramMessagesSent)
}

var (
	telegramUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_received_total",
			Help: "Incoming Telegram updates by kind.",
		},
		[]string{"kind"},
	)

	telegramRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Updates dropped by the per-user rate limiter.",
		},
	)

	telegramSendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_send_failures_total",
			Help: "Outbound Telegram calls that failed after retries.",
		},
	)

	telegramMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_messages_sent_total",
			Help: "Replies sent from handlers, split by whether they carried markup.",
		},
		[]string{"markup"},
	)
)

func IncTelegramUpdate(kind string) {
	telegramUpdates.WithLabelValues(norm(kind)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimited.Inc()
}

func IncSendFailure() {
	telegramSendFailures.Inc()
}

func IncMessageSent(withMarkup bool) {
	label := "none"
	if withMarkup {
		label = "keyboard"
	}
	telegramMessagesSent.WithLabelValues(label).Inc()
}
