package intakebot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/intake"
	"github.com/m3rciful/shopintake/core/journal"
	"github.com/m3rciful/shopintake/core/telegram/format"
	tghelpers "github.com/m3rciful/shopintake/core/telegram/helpers"
)

func (b *Bot) onRecent(c tele.Context) error {
	ctx, _ := b.session(c)
	rows, err := b.submissions.Recent(ctx, b.recentLimit)
	if err != nil {
		return fmt.Errorf("intakebot: recent submissions: %w", err)
	}
	if len(rows) == 0 {
		return tghelpers.SendText(c, MsgNoSubmissions)
	}
	return tghelpers.SendMDV2(c, renderRecent(rows))
}

// renderRecent formats rows as MarkdownV2, one line per submission.
func renderRecent(rows []journal.Row) string {
	var sb strings.Builder
	sb.WriteString("*Recent submissions*\n")
	for _, r := range rows {
		sb.WriteString("\n")
		sb.WriteString(format.MDV2(r.FinishedAt.UTC().Format("2006-01-02 15:04")))
		sb.WriteString(" ")
		sb.WriteString(outcomeIcon(r.Outcome))
		sb.WriteString(" ")
		name := r.ProductName
		if name == "" {
			name = "(no name)"
		}
		sb.WriteString("*" + format.MDV2(name) + "*")
		if r.ProductID.Valid {
			sb.WriteString(format.MDV2(fmt.Sprintf(" #%d", r.ProductID.Int64)))
		}
		if r.Error != "" {
			sb.WriteString("\n  _" + format.MDV2(r.Error) + "_")
		}
	}
	return sb.String()
}

func outcomeIcon(outcome string) string {
	switch outcome {
	case intake.OutcomeComplete:
		return "✅"
	case intake.OutcomeCancelled:
		return "⛔"
	default:
		return "❌"
	}
}
