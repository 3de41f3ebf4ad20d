package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/observability"
)

// ErrQueueFull is returned when the buffer has no room; the message is dropped.
var ErrQueueFull = errors.New("mail queue is full")

// ErrQueueStopped is returned after Stop has been called.
var ErrQueueStopped = errors.New("mail queue is stopped")

// Message is one queued email.
type Message struct {
	ID        string
	Receivers []string
	Subject   string
	Body      string
}

// Queue hands messages to a Sender on a background worker so that callers
// never wait on SMTP.
type Queue struct {
	sender  Sender
	items   chan Message
	logger  *zap.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	stopped bool
	started bool
	done    chan struct{}
}

// NewQueue builds a queue buffering up to size messages.
func NewQueue(sender Sender, size int, logger *zap.Logger, metrics *observability.Metrics) *Queue {
	if size <= 0 {
		size = 1000
	}
	return &Queue{
		sender:  sender,
		items:   make(chan Message, size),
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Start launches the worker. Calling it twice is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	go q.worker()
	q.logger.Info("mail queue started", zap.Int("capacity", cap(q.items)))
}

// Enqueue buffers msg for delivery without blocking.
func (q *Queue) Enqueue(msg Message) error {
	if len(msg.Receivers) == 0 {
		return ErrNoRecipients
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		q.metrics.RecordNotification("dropped")
		return ErrQueueStopped
	}
	select {
	case q.items <- msg:
		q.metrics.RecordNotification("queued")
		return nil
	default:
		q.metrics.RecordNotification("dropped")
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(q.items))
	}
}

func (q *Queue) worker() {
	defer close(q.done)
	for msg := range q.items {
		q.deliver(msg)
	}
}

func (q *Queue) deliver(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			q.metrics.RecordNotification("failed")
			q.logger.Error("mail sender panicked", zap.String("id", msg.ID), zap.Any("panic", r))
		}
	}()
	if err := q.sender.Send(msg.Receivers, msg.Subject, msg.Body); err != nil {
		q.metrics.RecordNotification("failed")
		q.logger.Error("mail delivery failed",
			zap.String("id", msg.ID),
			zap.String("host", q.sender.Host()),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return
	}
	q.metrics.RecordNotification("sent")
}

// Stop refuses new messages, drains what is buffered and waits for the worker
// or ctx, whichever comes first.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.items)
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-q.done:
		q.logger.Info("mail queue stopped")
		return nil
	case <-ctx.Done():
		q.logger.Warn("mail queue stop timed out", zap.Int("pending", len(q.items)))
		return ctx.Err()
	}
}

// Len reports how many messages are waiting.
func (q *Queue) Len() int {
	return len(q.items)
}
