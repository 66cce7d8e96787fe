// Package format escapes user-provided text for Telegram parse modes.
package format

import (
	"fmt"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

const (
	mdV1Specials = "_*`["
	mdV2Specials = "_*[]()~`>#+-=|{}.!\\"
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	var specials string
	switch version {
	case MarkdownV1:
		specials = mdV1Specials
	case MarkdownV2:
		specials = mdV2Specials
	default:
		return "", fmt.Errorf("format: unsupported markdown version: %d", version)
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// MDV2 escapes text for MarkdownV2.
func MDV2(text string) string {
	out, _ := EscapeMarkdown(text, MarkdownV2)
	return out
}
