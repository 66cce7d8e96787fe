package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, format logFormat) (*slog.Logger, func() string) {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelDebug,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	flush := func() string {
		if err := aw.Flush(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		if err := aw.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		return strings.TrimSpace(buf.String())
	}
	return slog.New(handler), flush
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, flush := newTestLogger(t, formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", "intake"), slog.LevelInfo, "intake.transition",
		slog.String("status", "ok"),
		slog.String("state", "AWAITING_NAME"),
	)

	line := flush()
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=intake", "event=intake.transition", "status=ok", "rid=rid-123"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
	if !strings.Contains(line, "state=awaiting_name") {
		t.Fatalf("expected lower-cased state, got %s", line)
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	log, flush := newTestLogger(t, formatJSON)
	ctx := WithRID(context.Background(), "rid-json")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)
	ctx = WithSessionID(ctx, 22)

	LogEvent(ctx, log.With("component", "commerce"), slog.LevelError, "commerce.request",
		slog.String("status", "error"),
		slog.String("err", "boom"),
		slog.String("err_code", "BACKEND_ERROR"),
	)

	line := flush()
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"commerce"`, `"event":"commerce.request"`, `"status":"fail"`, `"rid":"rid-json"`, `"session_id":22`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	log, flush := newTestLogger(t, formatKV)
	rawRID := "123:456:789"
	LogEvent(WithRID(context.Background(), rawRID), log, slog.LevelInfo, "rid.test")

	line := flush()
	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}
	if !strings.Contains(line, "component=app") {
		t.Fatalf("expected default component, got %s", line)
	}
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	log, flush := newTestLogger(t, formatJSON)
	rawRID := "12:34:56"
	LogEvent(WithRID(context.Background(), rawRID), log, slog.LevelInfo, "rid.test")

	line := flush()
	if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", line)
	}
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano to be present in JSON output, got %s", line)
	}
}

func TestStructuredHandlerDurationKeys(t *testing.T) {
	log, flush := newTestLogger(t, formatKV)
	LogEvent(context.Background(), log, slog.LevelInfo, "timing",
		slog.Duration("duration", 1500*time.Millisecond),
		slog.Duration("upload_duration", 20*time.Millisecond),
		slog.Duration("backoff", 2*time.Second),
	)

	line := flush()
	for _, want := range []string{"duration_ms=1500", "upload_duration_ms=20", "backoff_ms=2000"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := map[string][2]int{
		"1/10": {1, 10},
		"25":   {1, 25},
		"":     {0, 0},
		"x/y":  {0, 0},
		"0":    {0, 0},
	}
	for spec, want := range cases {
		num, den := parseRatioSpec(spec)
		if num != want[0] || den != want[1] {
			t.Fatalf("parseRatioSpec(%q) = %d/%d, want %d/%d", spec, num, den, want[0], want[1])
		}
	}
}

func TestStructuredHandlerRedactsSecrets(t *testing.T) {
	log, flush := newTestLogger(t, formatKV)
	LogEvent(context.Background(), log, slog.LevelWarn, "commerce.request",
		slog.String("err", `Get "https://shop.example/wp-json/wc/v3/products?consumer_key=ck_1&consumer_secret=cs_2": EOF`),
		slog.String("consumer_secret", "cs_2"),
		slog.Group("auth", slog.String("password", "hunter2")),
		slog.String("url", "https://api.telegram.org/bot123456:AA-bb_cc/getMe"),
	)

	line := flush()
	for _, leaked := range []string{"ck_1", "cs_2", "hunter2", "AA-bb_cc"} {
		if strings.Contains(line, leaked) {
			t.Fatalf("secret %q leaked in %s", leaked, line)
		}
	}
	for _, want := range []string{"consumer_key=[redacted]", "auth.password=[redacted]", "bot[redacted]/getMe"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}

func TestRedactSecretsLeavesPlainText(t *testing.T) {
	for _, s := range []string{"", "status ok", "a=b", "robot 12"} {
		if got := RedactSecrets(s); got != s {
			t.Fatalf("RedactSecrets(%q) = %q", s, got)
		}
	}
}
