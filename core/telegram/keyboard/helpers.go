// Package keyboard builds Telegram reply and inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

const defaultCancelButtonText = "❌ Cancel"

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a resized reply keyboard from rows of text.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// Choices lays options out n per row as a one-time reply keyboard.
func Choices(options []string, n int) *tele.ReplyMarkup {
	markup := ReplyButtons(Chunk(options, n)...)
	markup.OneTimeKeyboard = true
	return markup
}

// Chunk splits labels into rows of up to n items. n <= 1 yields one per row.
func Chunk(labels []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	rows := make([][]string, 0, (len(labels)+n-1)/n)
	for i := 0; i < len(labels); i += n {
		end := min(i+n, len(labels))
		rows = append(rows, labels[i:end])
	}
	return rows
}

// CancelButton returns a cancel data button bound to the unique callback key.
// Optional values override the payload (first) and the label (second).
func CancelButton(markup *tele.ReplyMarkup, unique string, options ...string) tele.Btn {
	payload := "cancel"
	if len(options) > 0 && options[0] != "" {
		payload = options[0]
	}
	text := defaultCancelButtonText
	if len(options) > 1 && options[1] != "" {
		text = options[1]
	}
	return markup.Data(text, unique, payload)
}

// SingleCancelMarkup creates an inline keyboard with a single cancel button.
func SingleCancelMarkup(unique string, options ...string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	btn := CancelButton(markup, unique, options...)
	markup.Inline(markup.Row(btn))
	return markup
}
