package telegram

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/shopintake/core/logger"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 2 * time.Second
	// Long polling holds the response open for the poll timeout.
	responseHeaderSlack = 10 * time.Second
)

// BuildHTTPClient returns an HTTP client for Bot API calls. pollTimeout is the
// long polling timeout; response headers may take that long to arrive.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: pollTimeout + responseHeaderSlack,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout: max(defaultClientTimeout, pollTimeout+responseHeaderSlack),
		Transport: &retryTransport{
			base:       transport,
			maxRetries: defaultRetryAttempts,
			backoff:    defaultRetryBackoff,
		},
	}
}

// retryTransport repeats requests that failed before reaching the server.
// Bot API calls are POSTs that send messages, so a request that may have been
// delivered is never repeated.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	for attempt := 0; ; attempt++ {
		curr := req
		if attempt > 0 {
			curr = req.Clone(req.Context())
			if req.Body != nil {
				if req.GetBody == nil {
					return nil, errors.New("telegram: request body cannot be replayed")
				}
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				curr.Body = body
			}
		}

		resp, err := base.RoundTrip(curr)
		if err == nil || attempt >= t.maxRetries || !failedBeforeSend(err) {
			return resp, err
		}

		delay := t.backoff * time.Duration(attempt+1)
		logger.LogEvent(req.Context(), logger.TG, slog.LevelDebug, "tg.http.retry",
			slog.String("status", "retry"),
			slog.Int("attempts", attempt+1),
			slog.Duration("backoff", delay),
			slog.String("err", err.Error()),
		)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

// failedBeforeSend reports connection setup failures: the request never left
// the process, so repeating it cannot duplicate a message.
func failedBeforeSend(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary || dnsErr.IsNotFound
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
