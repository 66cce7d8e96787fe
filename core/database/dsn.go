package database

import (
	"fmt"
	"net/url"

	"github.com/m3rciful/shopintake/core/config"
)

// keywordDSN builds a lib/pq key=value connection string.
func keywordDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		quote(cfg.User), quote(cfg.Password), quote(cfg.Host), quote(cfg.Port), quote(cfg.Name), quote(cfg.SSLMode),
	)
}

// urlDSN builds the postgres:// form golang-migrate expects.
func urlDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

func quote(v string) string {
	if v == "" {
		return "''"
	}
	needs := false
	for _, r := range v {
		if r == ' ' || r == '\'' || r == '\\' {
			needs = true
			break
		}
	}
	if !needs {
		return v
	}
	out := make([]rune, 0, len(v)+2)
	out = append(out, '\'')
	for _, r := range v {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(append(out, '\''))
}
