package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/order-ticket-service/internal/notification"
)

// NotificationWorker delivers notifications off the request path through a
// bounded queue. Deliveries that fail are logged and dropped.
type NotificationWorker struct {
	notifier notification.Notifier
	logger   *zap.Logger
	queue    chan notification.Notification
	workers  int

	once sync.Once
	wg   sync.WaitGroup
}

// NewNotificationWorker creates a worker pool of the given size.
func NewNotificationWorker(notifier notification.Notifier, logger *zap.Logger, queueSize, workers int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 1
	}
	return &NotificationWorker{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan notification.Notification, queueSize),
		workers:  workers,
	}
}

// Start launches the delivery goroutines. They exit when ctx is done or
// Stop drains the queue.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
}

// Enqueue schedules n without blocking. It reports false when the queue is
// full and the notification was dropped.
func (w *NotificationWorker) Enqueue(n notification.Notification) (queued bool) {
	defer func() {
		if recover() != nil {
			queued = false
		}
	}()
	select {
	case w.queue <- n:
		return true
	default:
		w.logger.Warn("notification queue full, dropping", zap.String("user_id", n.UserID), zap.String("title", n.Title))
		return false
	}
}

// Stop closes the queue and waits for queued notifications to be delivered.
func (w *NotificationWorker) Stop() {
	w.once.Do(func() { close(w.queue) })
	w.wg.Wait()
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-w.queue:
			if !ok {
				return
			}
			if err := w.notifier.Notify(ctx, n); err != nil {
				w.logger.Warn("notification delivery failed",
					zap.String("user_id", n.UserID),
					zap.String("title", n.Title),
					zap.Error(err))
			}
		}
	}
}
