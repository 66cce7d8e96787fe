// Package callbacks decodes inline button callback data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData returns the unique key and payload of cb. Telebot encodes
// data buttons as \f<unique>|<payload>; cb.Unique wins when already decoded.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	raw = strings.TrimPrefix(raw, "\\f")
	unique, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}
