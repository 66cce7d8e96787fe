// Package journal persists finished intake sessions.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/shopintake/core/intake"
	"github.com/m3rciful/shopintake/core/logger"
)

const insertSubmission = `
INSERT INTO intake_submissions (
	id, session_id, outcome, product_name, regular_price, short_description,
	category_name, category_id, media_id, product_id, error, started_at, finished_at
) VALUES (
	:id, :session_id, :outcome, :product_name, :regular_price, :short_description,
	:category_name, :category_id, :media_id, :product_id, :error, :started_at, :finished_at
)`

const selectRecent = `
SELECT id, session_id, outcome, product_name, regular_price, short_description,
	category_name, category_id, media_id, product_id, error, started_at, finished_at
FROM intake_submissions
ORDER BY finished_at DESC
LIMIT $1`

const writeTimeout = 3 * time.Second

// Row is one stored submission.
type Row struct {
	ID               uuid.UUID     `db:"id"`
	SessionID        int64         `db:"session_id"`
	Outcome          string        `db:"outcome"`
	ProductName      string        `db:"product_name"`
	RegularPrice     string        `db:"regular_price"`
	ShortDescription string        `db:"short_description"`
	CategoryName     string        `db:"category_name"`
	CategoryID       sql.NullInt64 `db:"category_id"`
	MediaID          sql.NullInt64 `db:"media_id"`
	ProductID        sql.NullInt64 `db:"product_id"`
	Error            string        `db:"error"`
	StartedAt        time.Time     `db:"started_at"`
	FinishedAt       time.Time     `db:"finished_at"`
}

// SQL writes submissions to postgres.
type SQL struct {
	db *sqlx.DB
}

// NewSQL wraps an open database handle.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db}
}

// Record inserts sub as a new row.
func (j *SQL) Record(ctx context.Context, sub intake.Submission) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	row := toRow(sub, uuid.New())
	start := time.Now()
	if _, err := j.db.NamedExecContext(ctx, insertSubmission, row); err != nil {
		return fmt.Errorf("journal: insert submission: %w", err)
	}
	logger.LogEvent(ctx, logger.JRNL, slog.LevelDebug, "journal.record",
		slog.String("status", "ok"),
		slog.String("outcome", row.Outcome),
		slog.String("id", row.ID.String()),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// Recent returns the latest submissions, newest first.
func (j *SQL) Recent(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []Row
	if err := j.db.SelectContext(ctx, &rows, selectRecent, limit); err != nil {
		return nil, fmt.Errorf("journal: select recent: %w", err)
	}
	return rows, nil
}

func toRow(sub intake.Submission, id uuid.UUID) Row {
	return Row{
		ID:               id,
		SessionID:        sub.SessionID,
		Outcome:          sub.Outcome,
		ProductName:      sub.Draft.Name,
		RegularPrice:     sub.Draft.Price,
		ShortDescription: sub.Draft.ShortDescription,
		CategoryName:     sub.Draft.CategoryName,
		CategoryID:       nullID(sub.Draft.CategoryID),
		MediaID:          nullID(sub.MediaID),
		ProductID:        nullID(sub.ProductID),
		Error:            logger.SanitizeLimit(sub.Error, 1000),
		StartedAt:        sub.StartedAt.UTC(),
		FinishedAt:       sub.FinishedAt.UTC(),
	}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

// Log writes submissions to the journal logger only; used when no database is configured.
type Log struct{}

func (Log) Record(ctx context.Context, sub intake.Submission) error {
	attrs := []slog.Attr{
		slog.String("outcome", sub.Outcome),
		slog.Int64("product_id", sub.ProductID),
		slog.Int64("category_id", sub.Draft.CategoryID),
	}
	if sub.Error != "" {
		attrs = append(attrs, slog.String("err", sub.Error))
	}
	logger.LogEvent(ctx, logger.JRNL, slog.LevelInfo, "journal.record", attrs...)
	return nil
}
