package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

const defaultQueueLen = 256

var errWriterClosed = errors.New("logger: writer closed")

// asyncWriter fans lines out to its sinks from a single goroutine. Sinks are
// flushed whenever the queue runs empty, so bursts are written in batches.
type asyncWriter struct {
	lines   chan []byte
	flushes chan chan error
	done    chan struct{}
	closing sync.Once

	// state guards lines against sends after Close.
	state  sync.RWMutex
	closed bool

	// sinks are touched only by the loop goroutine.
	sinks []*bufio.Writer

	mu       sync.Mutex
	firstErr error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		lines:   make(chan []byte, defaultQueueLen),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.record(w.flushSinks())
				return
			}
			w.record(w.writeSinks(line))
			if len(w.lines) == 0 {
				w.record(w.flushSinks())
			}
		case ack := <-w.flushes:
			w.drain()
			ack <- w.flushSinks()
		}
	}
}

// drain writes whatever is queued right now without blocking.
func (w *asyncWriter) drain() {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			w.record(w.writeSinks(line))
		default:
			return
		}
	}
}

// Write queues a copy of p. It blocks while the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.state.RLock()
	defer w.state.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush waits until everything queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return errors.Join(<-ack, w.err())
	case <-w.done:
		return w.err()
	}
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.closing.Do(func() {
		w.state.Lock()
		w.closed = true
		close(w.lines)
		w.state.Unlock()
	})
	<-w.done
	return w.err()
}

func (w *asyncWriter) writeSinks(p []byte) error {
	var errs []error
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) flushSinks() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firstErr
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.firstErr == nil {
		w.firstErr = err
	}
}
