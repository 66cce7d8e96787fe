package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders one line per record with a fixed key order.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

// Enabled reports whether the handler allows processing the provided level.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle formats the record and queues it on the writer.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	isJSON := h.cfg.format == formatJSON
	ts := r.Time.UTC()
	fields := map[string]any{
		"ts":    ts.Truncate(time.Millisecond).Format(timeFormatMillis),
		"level": levelName(r.Level),
	}
	if isJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}

	for _, a := range h.attrs {
		h.collect(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(fields, a)
		return true
	})
	addContextFields(ctx, fields)

	compactRID(fields, isJSON)
	setDefault(fields, "event", r.Message, "unknown")
	setDefault(fields, "component", "app")
	sanitizeEnumerations(fields)
	redactFields(fields)
	pruneEmpty(fields)

	line, err := encodeLine(h.cfg.format, fields, h.cfg.keyOrder)
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

// WithAttrs returns a copy of the handler carrying attrs.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a copy of the handler prefixing keys with name.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) collect(fields map[string]any, attr slog.Attr) {
	flattenAttr(strings.Join(h.groups, "."), attr, func(k string, v slog.Value) {
		if key, val, ok := normalizeAttr(k, v); ok {
			fields[key] = val
		}
	})
}

// compactRID shortens the request id; JSON output keeps the full value as rid_full.
func compactRID(fields map[string]any, keepFull bool) {
	rid, ok := fields["rid"].(string)
	if !ok || rid == "" {
		return
	}
	compact := CompactRID(rid)
	if compact == "" || compact == rid {
		return
	}
	if _, seen := fields["rid_full"]; keepFull && !seen {
		fields["rid_full"] = rid
	}
	fields["rid"] = compact
}

// setDefault stores the first non-empty candidate when key is missing or empty.
func setDefault(fields map[string]any, key string, candidates ...string) {
	if s, ok := stringField(fields, key); ok && s != "" {
		return
	}
	for _, c := range candidates {
		if c != "" {
			fields[key] = c
			return
		}
	}
}

func flattenAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	val := attr.Value.Resolve()
	if val.Kind() == slog.KindGroup {
		for _, child := range val.Group() {
			flattenAttr(key, child, fn)
		}
		return
	}
	if key != "" {
		fn(key, val)
	}
}

func normalizeAttr(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u > math.MaxInt64 {
			return key, u, true
		}
		return key, int64(val.Uint64()), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := val.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey renames duration attributes so the unit is part of the key.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func pruneEmpty(fields map[string]any) {
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			delete(fields, k)
		}
	}
}

// encodeLine renders fields in order, then the remaining keys sorted.
func encodeLine(format logFormat, fields map[string]any, order []string) ([]byte, error) {
	var buf bytes.Buffer
	keys := orderedKeys(fields, order)
	if format == formatJSON {
		buf.WriteByte('{')
	}
	for i, key := range keys {
		if format == formatJSON {
			data, err := json.Marshal(fields[key])
			if err != nil {
				return nil, fmt.Errorf("logger: encode %q: %w", key, err)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(key))
			buf.WriteByte(':')
			buf.Write(data)
			continue
		}
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(formatValueKV(fields[key]))
	}
	if format == formatJSON {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(order))
	for _, key := range order {
		if _, ok := fields[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	rest := make([]string, 0, len(fields)-len(keys))
	for key := range fields {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func formatValueKV(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// contextFields lists request metadata copied from ctx unless set explicitly.
var contextFields = []struct {
	key string
	get func(context.Context) any
}{
	{"rid", func(ctx context.Context) any { return nonZero(RIDFrom(ctx)) }},
	{"session_id", func(ctx context.Context) any { return nonZero(SessionIDFrom(ctx)) }},
	{"user_id", func(ctx context.Context) any { return nonZero(UserIDFrom(ctx)) }},
	{"update_id", func(ctx context.Context) any { return nonZero(UpdateIDFrom(ctx)) }},
	{"chat_id", func(ctx context.Context) any { return nonZero(ChatIDFrom(ctx)) }},
	{"handler", func(ctx context.Context) any { return nonZero(HandlerFrom(ctx)) }},
}

func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	for _, f := range contextFields {
		if _, ok := fields[f.key]; ok {
			continue
		}
		if v := f.get(ctx); v != nil {
			fields[f.key] = v
		}
	}
}

func nonZero[T comparable](v T) any {
	var zero T
	if v == zero {
		return nil
	}
	return v
}
