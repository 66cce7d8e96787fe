package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	coreconfig "github.com/m3rciful/shopintake/core/config"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

// options is the resolved form of the logging config block.
type options struct {
	format    logFormat
	keyOrder  []string
	level     slog.Level
	profile   string
	sampleNum int
	sampleDen int
	trace     bool
	dir       string
	file      string
}

func resolveOptions(cfg *coreconfig.Config) options {
	opts := options{
		format:    formatJSON,
		keyOrder:  append([]string(nil), defaultKeyOrder...),
		level:     slog.LevelInfo,
		profile:   "prod",
		sampleNum: defaultSampleNum,
		sampleDen: defaultSampleDen,
		trace:     envFlag("TRACE") || envFlag("LOG_TRACE"),
	}
	if cfg == nil {
		return opts
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		opts.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		opts.format = formatKV
	case "json":
	default:
		if opts.profile == "debug" || opts.profile == "dev" {
			opts.format = formatKV
		}
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			opts.keyOrder = order
		}
	}

	level := strings.TrimSpace(lc.Level)
	if strings.EqualFold(level, "warning") {
		level = "warn"
	}
	if level != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(level)); err == nil {
			opts.level = l
		}
	}

	if s := strings.TrimSpace(lc.DebugSample); s != "" {
		num, den := parseRatioSpec(s)
		switch {
		case num == 0 && den == 0:
			opts.sampleNum, opts.sampleDen = 0, 0
		case num > 0 && den > 0:
			opts.sampleNum, opts.sampleDen = num, den
		}
	}

	opts.dir = strings.TrimSpace(lc.Dir)
	opts.file = strings.TrimSpace(lc.BotFile)
	return opts
}

// openOutputs returns stdout plus the log file when dir and file are set.
// A file that cannot be opened is reported but stdout stays usable.
func openOutputs(dir, file string) ([]io.Writer, []io.Closer, error) {
	writers := []io.Writer{os.Stdout}
	if dir == "" || file == "" {
		return writers, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return writers, nil, fmt.Errorf("logger: create log dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return writers, nil, fmt.Errorf("logger: open log file %s: %w", path, err)
	}
	return append(writers, f), []io.Closer{f}, nil
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
