package logger

import (
	"strconv"
	"strings"
	"unicode"
)

// Sanitize drops control and format runes from s, keeping tabs and newlines.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and cuts it to at most limit runes.
func SanitizeLimit(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = Sanitize(s)
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// BuildRID formats the request id as updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(updateID))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(chatID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(userID, 10))
	return b.String()
}

// CompactRID rewrites a BuildRID value as dot-separated base36 parts.
// Anything else is returned trimmed but otherwise unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
