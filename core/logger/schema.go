package logger

import (
	"log/slog"
	"strings"
)

// vocabulary maps accepted spellings of an enumerated field to its
// canonical value.
type vocabulary map[string]string

func (v vocabulary) canonical(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	c, ok := v[s]
	return c, ok
}

func identity(words ...string) vocabulary {
	v := make(vocabulary, len(words))
	for _, w := range words {
		v[w] = w
	}
	return v
}

var (
	statuses = func() vocabulary {
		v := identity("ok", "fail", "skip", "retry", "rate_limited", "cancelled", "rejected")
		v["error"] = "fail"
		return v
	}()

	// Outcomes cover handler results and the journal outcomes of a submission.
	outcomes = identity("ok", "fail", "failed", "skip", "complete", "cancelled", "rejected", "rate_limited")
)

// levelName renders a level in the four-name form, mapping custom levels
// to the nearest standard one below them.
func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

// sanitizeEnumerations canonicalizes status, outcome and state fields.
// Unknown statuses pass through lowercased; unknown outcomes are dropped.
func sanitizeEnumerations(fields map[string]any) {
	if s, ok := stringField(fields, "status"); ok && s != "" {
		if c, known := statuses.canonical(s); known {
			fields["status"] = c
		} else {
			fields["status"] = strings.ToLower(strings.TrimSpace(s))
		}
	}
	if o, ok := stringField(fields, "outcome"); ok && o != "" {
		if c, known := outcomes.canonical(o); known {
			fields["outcome"] = c
		} else {
			delete(fields, "outcome")
		}
	}
	for _, key := range []string{"state", "next_state"} {
		if st, ok := stringField(fields, key); ok && st != "" {
			fields[key] = strings.ToLower(st)
		}
	}
}

// defaultKeyOrder puts correlation ids first, then domain ids, then errors.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "session_id",
	"handler", "state", "next_state", "op", "cb_key", "outcome", "duration_ms",
	"messages", "kb", "count", "pages", "payload", "lang", "username",
	"mode", "listen", "public_url",
	"method", "path", "http_code",
	"category_id", "media_id", "product_id", "bytes",
	"db", "host", "port",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms",
}
