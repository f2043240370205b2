// Package oneshot is a single-value completion channel: the first sent value
// is delivered, later sends are protocol violations and are dropped.
package oneshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	ErrTimeout = errors.New("timed out waiting for reply")
	ErrNoReply = errors.New("producer finished without replying")
)

type Value[T any] struct {
	name string
	log  *slog.Logger

	sent   atomic.Bool
	extra  atomic.Int64
	ch     chan T
	closed chan struct{}
	once   sync.Once
	cause  error
}

func New[T any](name string, log *slog.Logger) *Value[T] {
	if log == nil {
		log = slog.Default()
	}
	return &Value[T]{
		name:   name,
		log:    log,
		ch:     make(chan T, 1),
		closed: make(chan struct{}),
	}
}

// Send delivers v if nothing has been sent yet and reports whether it was accepted.
func (v *Value[T]) Send(msg T) bool {
	if !v.sent.CompareAndSwap(false, true) {
		n := v.extra.Add(1)
		v.log.Warn("ignoring extra reply", "channel", v.name, "extra", n)
		return false
	}
	v.ch <- msg
	return true
}

// Close marks the producer as gone. cause, if not nil, is attached to
// the ErrNoReply returned by Await when nothing was sent.
func (v *Value[T]) Close(cause error) {
	v.once.Do(func() {
		v.cause = cause
		close(v.closed)
	})
}

// Dropped returns the number of sends that were ignored.
func (v *Value[T]) Dropped() int64 {
	return v.extra.Load()
}

// Await blocks until a value arrives, the producer closes, or ctx is done.
func (v *Value[T]) Await(ctx context.Context) (T, error) {
	var zero T
	select {
	case msg := <-v.ch:
		return msg, nil
	case <-v.closed:
		// a value sent before Close wins
		select {
		case msg := <-v.ch:
			return msg, nil
		default:
		}
		if v.cause != nil {
			return zero, fmt.Errorf("%s: %w: %w", v.name, ErrNoReply, v.cause)
		}
		return zero, fmt.Errorf("%s: %w", v.name, ErrNoReply)
	case <-ctx.Done():
		// a value that made it in time wins over the deadline
		select {
		case msg := <-v.ch:
			return msg, nil
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s: %w", v.name, ErrTimeout)
		}
		return zero, ctx.Err()
	}
}
