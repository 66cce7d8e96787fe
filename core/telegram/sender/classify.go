package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// failure describes a failed Bot API call.
type failure struct {
	kind  string
	retry bool
	// wait is the minimum delay Telegram asked for before the next attempt.
	wait time.Duration
}

// inspect classifies err into a stable kind and decides whether the call
// is worth repeating. Client errors other than flood control never are.
func inspect(err error) failure {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return failure{kind: "flood", retry: true, wait: time.Duration(flood.RetryAfter) * time.Second}
	}

	var (
		dnsErr   *net.DNSError
		opErr    *net.OpError
		netErr   net.Error
		alertErr tls.AlertError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return failure{kind: "cancelled"}
	case errors.Is(err, context.DeadlineExceeded):
		return failure{kind: "timeout", retry: true}
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return failure{kind: "timeout", retry: true}
		}
		return failure{kind: "dns", retry: dnsErr.IsTemporary}
	case errors.As(err, &netErr) && netErr.Timeout():
		return failure{kind: "timeout", retry: true}
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return failure{kind: "dial", retry: true}
	case errors.As(err, &alertErr):
		return failure{kind: "tls"}
	}

	switch code := apiStatus(err); {
	case code == http.StatusTooManyRequests:
		return failure{kind: "flood", retry: true}
	case code >= 500:
		return failure{kind: "http_5xx", retry: true}
	case code >= 400:
		return failure{kind: "http_4xx"}
	}
	return failure{kind: "unknown"}
}

// apiStatus extracts the Bot API error code from err, or 0.
func apiStatus(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}

	// Unregistered API errors render as "telegram: <description> (<code>)".
	msg := strings.TrimSpace(err.Error())
	if !strings.HasSuffix(msg, ")") {
		return 0
	}
	open := strings.LastIndexByte(msg, '(')
	if open < 0 {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : len(msg)-1])
	if convErr != nil {
		return 0
	}
	return code
}
