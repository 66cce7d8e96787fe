package intake

import (
	"errors"
	"sync"
	"time"
)

// State is a step of the intake conversation.
type State string

const (
	AwaitingName            State = "awaiting_name"
	AwaitingPrice           State = "awaiting_price"
	AwaitingDescription     State = "awaiting_description"
	AwaitingCategoryChoice  State = "awaiting_category_choice"
	AwaitingNewCategoryName State = "awaiting_new_category_name"
	AwaitingPhoto           State = "awaiting_photo"
	Complete                State = "complete"
	Cancelled               State = "cancelled"
)

// Terminal reports whether no further events are processed in s.
func (s State) Terminal() bool {
	return s == Complete || s == Cancelled
}

// ExpectsText reports whether s is collected from a text message.
func (s State) ExpectsText() bool {
	switch s {
	case AwaitingName, AwaitingPrice, AwaitingDescription, AwaitingCategoryChoice, AwaitingNewCategoryName:
		return true
	}
	return false
}

// Outcomes recorded for finished sessions.
const (
	OutcomeComplete  = "complete"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

var (
	// ErrValidation marks input rejected by a collecting step.
	ErrValidation = errors.New("intake: invalid input")
	// ErrNoSession is returned for events without an active conversation.
	ErrNoSession = errors.New("intake: no active session")
)

// Draft is the product record filled in across the conversation.
type Draft struct {
	Name             string
	Price            string
	ShortDescription string
	CategoryName     string
	// CategoryID is zero until the category is resolved against the shop.
	CategoryID int64
}

// Session is one in-progress conversation. Events for a session are applied
// one at a time under mu.
type Session struct {
	ID        int64
	State     State
	Draft     Draft
	StartedAt time.Time

	mu   sync.Mutex
	menu []string
}

// Reply is one outbound chat message. Options, when set, are offered as quick replies.
type Reply struct {
	Text    string
	Options []string
}

// Result is the state reached after an event and the messages to send back.
type Result struct {
	State   State
	Replies []Reply
}

// Submission describes a finished session for the journal.
type Submission struct {
	SessionID  int64
	Outcome    string
	Draft      Draft
	ProductID  int64
	MediaID    int64
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
