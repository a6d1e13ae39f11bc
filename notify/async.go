package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Task is one notification for one recipient. Message.To may be empty, then only the inbox is written.
type Task struct {
	RecipientID string
	Kind        string
	Message     Message
}

// Async delivers tasks in the background. Failures are logged and counted, never returned.
type Async struct {
	dispatcher Dispatcher
	inbox      *Inbox
	metrics    *Metrics
	timeout    time.Duration
	wg         sync.WaitGroup
	mu         sync.Mutex
	closed     bool
}

// NewAsync returns a runner for dispatcher. inbox and metrics may be nil.
func NewAsync(dispatcher Dispatcher, inbox *Inbox, metrics *Metrics, timeout time.Duration) *Async {
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Async{
		dispatcher: dispatcher,
		inbox:      inbox,
		metrics:    metrics,
		timeout:    timeout,
	}
}

// Notify schedules task and returns at once. The task outlives the cancellation of ctx. Tasks arriving after Close
// are dropped.
func (a *Async) Notify(ctx context.Context, task Task) {
	ctx = context.WithoutCancel(ctx)

	a.mu.Lock()

	if a.closed {
		a.mu.Unlock()

		a.metrics.observeDispatch(a.dispatcher.Provider(), OutcomeSkipped, 0)
		slog.WarnContext(ctx, "notifier is closed, dropping notification", "recipient", task.RecipientID)

		return
	}

	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()

		a.deliver(ctx, task)
	}()
}

func (a *Async) deliver(ctx context.Context, task Task) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if a.inbox != nil && task.RecipientID != "" {
		_, err := a.inbox.Record(ctx, task.RecipientID, task.Kind, task.Message)
		if err != nil {
			a.metrics.observeRecord(OutcomeFailed)
			slog.ErrorContext(ctx, "failed to record notification", "recipient", task.RecipientID, "error", err)
		} else {
			a.metrics.observeRecord(OutcomeSent)
		}
	}

	provider := a.dispatcher.Provider()

	if task.Message.To == "" {
		a.metrics.observeDispatch(provider, OutcomeSkipped, 0)

		return
	}

	start := time.Now()

	receipt, err := a.dispatcher.Send(ctx, task.Message)
	if err != nil {
		a.metrics.observeDispatch(provider, OutcomeFailed, time.Since(start))
		slog.ErrorContext(ctx, "failed to send push notification",
			"provider", provider, "recipient", task.RecipientID, "error", err)

		return
	}

	a.metrics.observeDispatch(provider, OutcomeSent, time.Since(start))
	slog.DebugContext(ctx, "push notification sent",
		"provider", provider, "recipient", task.RecipientID, "receipt", receipt.ID)
}

// Close stops accepting tasks and waits for scheduled ones until ctx is done.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})

	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for pending notifications: %w", ctx.Err())
	}
}
