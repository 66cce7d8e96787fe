package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/metrics"
)

const countersKey = "reply_counters"

// replyCounters accumulates what a handler sent while serving one update.
// Sends may complete on dispatcher workers.
type replyCounters struct {
	messages atomic.Int32
	markup   atomic.Bool
}

func (rc *replyCounters) observe(opts []interface{}) {
	withMarkup := carriesMarkup(opts)
	rc.messages.Add(1)
	if withMarkup {
		rc.markup.Store(true)
	}
	metrics.IncMessageSent(withMarkup)
}

func carriesMarkup(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// countingContext intercepts outgoing replies and records them.
type countingContext struct {
	tele.Context
	counters *replyCounters
}

func (cc countingContext) count(err error, opts []interface{}) error {
	if err == nil {
		cc.counters.observe(opts)
	}
	return err
}

func (cc countingContext) Send(what interface{}, opts ...interface{}) error {
	return cc.count(cc.Context.Send(what, opts...), opts)
}

func (cc countingContext) Reply(what interface{}, opts ...interface{}) error {
	return cc.count(cc.Context.Reply(what, opts...), opts)
}

func (cc countingContext) Edit(what interface{}, opts ...interface{}) error {
	return cc.count(cc.Context.Edit(what, opts...), opts)
}

func (cc countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return cc.count(cc.Context.EditOrSend(what, opts...), opts)
}

func (cc countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return cc.count(cc.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the replies a handler sends and whether any
// of them carried a keyboard.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		rc := &replyCounters{}
		c.Set(countersKey, rc)
		return next(countingContext{Context: c, counters: rc})
	}
}

// GetCounters reports the number of replies sent so far and whether any had markup.
func GetCounters(c tele.Context) (int, bool) {
	rc, ok := c.Get(countersKey).(*replyCounters)
	if !ok || rc == nil {
		return 0, false
	}
	return int(rc.messages.Load()), rc.markup.Load()
}
