package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/shopintake/core/config"
	"github.com/m3rciful/shopintake/core/logger"
)

const (
	readyTimeout = 30 * time.Second
	previewLimit = 6
)

// MigrateOptions select what RunMigrations applies. The zero value applies every up migration.
type MigrateOptions struct {
	// Steps applies n migrations; negative values roll back.
	Steps int
	// Down rolls back every migration. Ignored when Steps is set.
	Down bool
}

// RunMigrations applies the SQL migrations found in cfg.MigrationsDir.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig, opts MigrateOptions) error {
	if err := waitForPostgres(ctx, keywordDSN(cfg), readyTimeout); err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate", slog.String("err", err.Error()))
		return err
	}

	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("database: resolve migrations dir: %w", err)
	}
	files := listMigrationFiles(dir)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "db.migrate.resolve",
		append([]slog.Attr{slog.String("path", dir)}, fileAttrs(files)...)...)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), urlDSN(cfg))
	if err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate", slog.String("err", err.Error()))
		return fmt.Errorf("database: init migrations: %w", err)
	}
	defer func() {
		if err := errors.Join(m.Close()); err != nil {
			logger.LogEvent(ctx, logger.MIG, slog.LevelWarn, "db.migrate.close", slog.String("err", err.Error()))
		}
	}()

	from := currentVersion(m)
	start := time.Now()
	runErr := apply(m, opts)
	took := logger.Took(start)
	if runErr != nil && !errors.Is(runErr, migrate.ErrNoChange) {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate.apply",
			slog.String("err", runErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("database: run migrations: %w", runErr)
	}

	to := currentVersion(m)
	changed := selectApplied(files, from, to)
	if len(changed) > 0 {
		logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "db.migrate.apply", fileAttrs(changed)...)
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "db.migrate.summary",
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Int("files", len(changed)),
		slog.Duration("duration", took),
	)
	return nil
}

func apply(m *migrate.Migrate, opts MigrateOptions) error {
	switch {
	case opts.Steps != 0:
		return m.Steps(opts.Steps)
	case opts.Down:
		return m.Down()
	}
	return m.Up()
}

// currentVersion is zero for a database with no migrations applied.
func currentVersion(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

func fileAttrs(names []string) []slog.Attr {
	attrs := []slog.Attr{slog.Int("files_total", len(names))}
	if len(names) == 0 {
		return attrs
	}
	shown := names
	if len(shown) > previewLimit {
		shown = shown[:previewLimit]
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return append(attrs, slog.String("files_preview", strings.Join(shown, ", ")))
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// selectApplied returns the files whose version lies between from and to.
// It works for rollbacks too, where to is below from.
func selectApplied(files []string, from, to uint64) []string {
	lo, hi := min(from, to), max(from, to)
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > lo && v <= hi {
			out = append(out, f)
		}
	}
	return out
}
