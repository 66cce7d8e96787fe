package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/shopintake/core/config"
	"github.com/m3rciful/shopintake/core/logger"
)

const (
	driverName     = "postgres"
	connectTimeout = 5 * time.Second
	pingInterval   = 2 * time.Second
	idleTimeout    = 5 * time.Minute
)

// Connect opens the journal database, sizes the pool and pings it.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(dialCtx, driverName, keywordDSN(cfg))
	attrs := append(targetAttrs(cfg), slog.Duration("duration", logger.Took(start)))
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect",
			append(attrs, slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxIdleTime(idleTimeout)

	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
		append(attrs, slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

func targetAttrs(cfg config.DatabaseConfig) []slog.Attr {
	return []slog.Attr{
		slog.String("driver", driverName),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}
}

// waitForPostgres pings until the server answers or timeout elapses.
func waitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("database: open: %w", err)
	}
	defer db.Close()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database: not ready after %s: %w", timeout, err)
		case <-ticker.C:
		}
	}
}
