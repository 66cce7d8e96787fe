// Package sender runs outbound Telegram calls on background workers with retries.
// Jobs for the same chat always run on the same worker, in enqueue order.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/shopintake/core/logger"
	"github.com/m3rciful/shopintake/core/metrics"
)

const component = "tg.sender"

var (
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	ErrQueueFull   = errors.New("telegram sender: queue full")
)

// Options tune the dispatcher. Zero values take defaults.
type Options struct {
	QueueSize    int // per worker
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts   Options
	queues []chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	rr   atomic.Uint64
	errs atomic.Uint64
}

// NewDispatcher starts opts.Workers workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, queues: make([]chan job, opts.Workers)}
	d.wg.Add(len(d.queues))
	for i := range d.queues {
		q := make(chan job, opts.QueueSize)
		d.queues[i] = q
		go func() {
			defer d.wg.Done()
			for j := range q {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run on the worker owning the chat found in ctx.
// run may be called more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.shard(ctx) <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// shard picks the chat's worker; updates without a chat go round robin.
func (d *Dispatcher) shard(ctx context.Context) chan job {
	n := uint64(len(d.queues))
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		return d.queues[uint64(chatID)%n]
	}
	return d.queues[d.rr.Add(1)%n]
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(j.ctx, component, "send.start", j.attrs()...)

	var (
		err     error
		f       failure
		attempt int
	)
	for attempt = 1; ; attempt++ {
		if err = j.run(); err == nil {
			d.logSuccess(j, attempt, start)
			return
		}
		f = inspect(err)
		if !f.retry || attempt > d.opts.MaxRetries {
			break
		}
		delay := max(f.wait, d.opts.RetryBackoff*time.Duration(attempt))
		logger.Debug(j.ctx, component, "send.retry.backoff", append(j.attrs(),
			slog.Int("attempt", attempt),
			slog.String("err_code", f.kind),
			slog.Duration("backoff", delay),
		)...)
		if !sleep(ctx, delay) {
			err = errors.Join(err, ctx.Err())
			break
		}
	}

	d.errs.Add(1)
	metrics.IncSendFailure()
	logger.Error(j.ctx, component, "send.fail", append(j.attrs(),
		slog.String("status", "fail"),
		slog.String("err", logger.RedactSecrets(err.Error())),
		slog.String("err_code", f.kind),
		slog.Int("attempts", attempt),
		slog.Duration("duration", logger.Took(start)),
	)...)
}

func (d *Dispatcher) logSuccess(j job, attempt int, start time.Time) {
	attrs := append(j.attrs(), slog.Duration("duration", logger.Took(start)))
	if attempt == 1 {
		logger.Debug(j.ctx, component, "send.success", attrs...)
		return
	}
	logger.Info(j.ctx, component, "send.retry.success", append(attrs, slog.Int("attempts", attempt))...)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
