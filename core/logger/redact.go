package logger

import (
	"regexp"
	"strings"
)

const redacted = "[redacted]"

// secretKeys are attribute keys whose values are never written.
var secretKeys = map[string]struct{}{
	"token":           {},
	"password":        {},
	"secret":          {},
	"consumer_key":    {},
	"consumer_secret": {},
	"authorization":   {},
}

var (
	// Query-string auth puts the shop credentials into request URLs.
	querySecretRe = regexp.MustCompile(`(?i)\b(consumer_key|consumer_secret|oauth_signature)=[^&\s"']+`)
	// Bot API URLs embed the bot token in the path.
	botTokenRe = regexp.MustCompile(`\bbot\d+:[A-Za-z0-9_-]+`)
)

// RedactSecrets masks shop credentials and bot tokens inside s.
func RedactSecrets(s string) string {
	if !strings.Contains(s, "=") && !strings.Contains(s, "bot") {
		return s
	}
	s = querySecretRe.ReplaceAllString(s, "${1}="+redacted)
	return botTokenRe.ReplaceAllString(s, "bot"+redacted)
}

func redactFields(fields map[string]any) {
	for k, v := range fields {
		leaf := k
		if i := strings.LastIndexByte(k, '.'); i >= 0 {
			leaf = k[i+1:]
		}
		if _, secret := secretKeys[strings.ToLower(leaf)]; secret {
			fields[k] = redacted
			continue
		}
		if s, ok := v.(string); ok {
			fields[k] = RedactSecrets(s)
		}
	}
}
