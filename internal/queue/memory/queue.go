// Package memory provides an in-process capture queue for local development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// ErrClosed is returned when publishing to a closed queue.
var ErrClosed = errors.New("queue closed")

// Config tunes delivery.
type Config struct {
	// MaxAttempts bounds deliveries per message; a message nacked on its last attempt is dropped.
	MaxAttempts int
	Concurrency int
}

// Queue is an unbounded FIFO that implements capture.Publisher and capture.Consumer.
type Queue struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	items  []capture.Delivery
	seq    int
	closed bool
	notify chan struct{}
	done   chan struct{}
}

// New constructs a Queue.
func New(cfg Config, logger *zap.Logger) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		cfg:    cfg,
		logger: logger,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Publish enqueues msg for its first delivery.
func (q *Queue) Publish(ctx context.Context, msg capture.QueueMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("publish canceled: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	q.seq++
	id := strconv.Itoa(q.seq)
	q.items = append(q.items, capture.Delivery{Message: msg, Attempt: 1})
	q.mu.Unlock()
	q.signal()
	return id, nil
}

// Len reports how many deliveries are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Receive runs Concurrency handlers until ctx ends or the queue is closed.
func (q *Queue) Receive(ctx context.Context, handler capture.Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < q.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				d, ok := q.next(ctx)
				if !ok {
					return
				}
				if handler(ctx, d) {
					continue
				}
				q.redeliver(d)
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("receive canceled: %w", err)
	}
	return nil
}

// Close stops receivers once they finish their current delivery.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue) next(ctx context.Context) (capture.Delivery, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return capture.Delivery{}, false
		}
		if len(q.items) > 0 {
			d := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return d, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return capture.Delivery{}, false
		case <-q.done:
			return capture.Delivery{}, false
		case <-q.notify:
		}
	}
}

func (q *Queue) redeliver(d capture.Delivery) {
	if d.Attempt >= q.cfg.MaxAttempts {
		q.logger.Warn("dropping message after max attempts",
			zap.String("capture_id", d.Message.CaptureID),
			zap.Int("attempts", d.Attempt),
		)
		return
	}
	d.Attempt++
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, d)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
