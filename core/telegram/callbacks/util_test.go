package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		name    string
		cb      *tele.Callback
		key     string
		payload string
	}{
		{name: "nil", cb: nil},
		{name: "decoded", cb: &tele.Callback{Unique: "intake_cancel", Data: "x"}, key: "intake_cancel", payload: "x"},
		{name: "raw", cb: &tele.Callback{Data: "\fintake_cancel|now"}, key: "intake_cancel", payload: "now"},
		{name: "escaped", cb: &tele.Callback{Data: `\fintake_cancel`}, key: "intake_cancel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tt.cb)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.payload, payload)
		})
	}
}
