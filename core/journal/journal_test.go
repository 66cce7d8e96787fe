package journal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/shopintake/core/intake"
)

func TestToRowMapsSubmission(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))
	sub := intake.Submission{
		SessionID: 42,
		Outcome:   intake.OutcomeComplete,
		Draft: intake.Draft{
			Name:             "Blue Mug",
			Price:            "12.50",
			ShortDescription: "A nice mug",
			CategoryName:     "Mugs",
			CategoryID:       7,
		},
		ProductID:  900,
		MediaID:    77,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
	id := uuid.New()

	row := toRow(sub, id)
	assert.Equal(t, id, row.ID)
	assert.Equal(t, int64(42), row.SessionID)
	assert.Equal(t, "complete", row.Outcome)
	assert.Equal(t, "Blue Mug", row.ProductName)
	assert.Equal(t, "12.50", row.RegularPrice)
	assert.Equal(t, "Mugs", row.CategoryName)
	assert.True(t, row.CategoryID.Valid)
	assert.Equal(t, int64(7), row.CategoryID.Int64)
	assert.Equal(t, int64(900), row.ProductID.Int64)
	assert.Equal(t, time.UTC, row.StartedAt.Location())
	assert.True(t, row.FinishedAt.Equal(started.Add(time.Minute)))
}

func TestToRowLeavesMissingIDsNull(t *testing.T) {
	row := toRow(intake.Submission{Outcome: intake.OutcomeCancelled}, uuid.New())
	assert.False(t, row.CategoryID.Valid)
	assert.False(t, row.MediaID.Valid)
	assert.False(t, row.ProductID.Valid)
}

func TestLogJournalNeverFails(t *testing.T) {
	err := Log{}.Record(context.Background(), intake.Submission{Outcome: intake.OutcomeFailed, Error: "boom"})
	require.NoError(t, err)
}

func TestImplementsIntakeJournal(t *testing.T) {
	var _ intake.Journal = (*SQL)(nil)
	var _ intake.Journal = Log{}
}
