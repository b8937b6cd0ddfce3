package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/spec-kit/staff-service/internal/events"
)

const (
	defaultQueueSize   = 256
	defaultConcurrency = 2
	deliveryAttempts   = 3
)

// WebhookWorker delivers domain events to an HTTP endpoint off the request path.
// Events are queued in memory; when the queue is full new events are dropped.
type WebhookWorker struct {
	url         string
	client      *resty.Client
	logger      *zap.Logger
	queue       chan events.Event
	concurrency int
	backoff     time.Duration

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

// Option customises a WebhookWorker.
type Option func(*WebhookWorker)

// WithQueueSize bounds the number of undelivered events held in memory.
func WithQueueSize(n int) Option {
	return func(w *WebhookWorker) {
		if n > 0 {
			w.queue = make(chan events.Event, n)
		}
	}
}

// WithConcurrency sets how many deliveries run in parallel.
func WithConcurrency(n int) Option {
	return func(w *WebhookWorker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithBackoff sets the base delay between delivery attempts.
func WithBackoff(d time.Duration) Option {
	return func(w *WebhookWorker) {
		if d > 0 {
			w.backoff = d
		}
	}
}

// NewWebhookWorker builds a worker posting events to url.
func NewWebhookWorker(url string, logger *zap.Logger, opts ...Option) *WebhookWorker {
	w := &WebhookWorker{
		url: url,
		client: resty.New().
			SetTimeout(5*time.Second).
			SetHeader("Content-Type", "application/json"),
		logger:      logger,
		queue:       make(chan events.Event, defaultQueueSize),
		concurrency: defaultConcurrency,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the delivery goroutines. Cancelling ctx does not abort queued
// deliveries; only an expired Stop context does.
func (w *WebhookWorker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
		for i := 0; i < w.concurrency; i++ {
			w.wg.Add(1)
			go w.run(ctx)
		}
		w.logger.Info("webhook worker started", zap.String("url", w.url), zap.Int("concurrency", w.concurrency))
	})
}

// Enqueue schedules an event for delivery and reports whether it was accepted.
func (w *WebhookWorker) Enqueue(event events.Event) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- event:
		return true
	default:
		w.logger.Warn("webhook queue full; dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return false
	}
}

// Stop drains queued events and waits for the delivery goroutines. If ctx expires
// first, in-flight deliveries are cancelled.
func (w *WebhookWorker) Stop(ctx context.Context) error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
		done := make(chan struct{})
		go func() {
			w.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
			if w.cancel != nil {
				w.cancel()
			}
			<-done
		}
		if w.cancel != nil {
			w.cancel()
		}
		w.client.GetClient().CloseIdleConnections()
	})
	return err
}

func (w *WebhookWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for event := range w.queue {
		if err := w.deliver(ctx, event); err != nil {
			w.logger.Warn("webhook delivery failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}

func (w *WebhookWorker) deliver(ctx context.Context, event events.Event) error {
	backoff := retry.WithMaxRetries(deliveryAttempts-1, retry.NewExponential(w.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := w.client.R().
			SetContext(ctx).
			SetHeader("X-Event-Type", string(event.Type)).
			SetHeader("X-Event-Id", event.ID).
			SetBody(event).
			Post(w.url)
		if err != nil {
			return retry.RetryableError(err)
		}
		code := resp.StatusCode()
		switch {
		case code >= 500 || code == 429:
			return retry.RetryableError(fmt.Errorf("webhook returned %d", code))
		case code >= 400:
			return fmt.Errorf("webhook rejected event with %d", code)
		}
		return nil
	})
}
