package jobs

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"freelance-market/internal/metrics"
	"freelance-market/internal/models"
	"freelance-market/internal/notify"
	"freelance-market/internal/services"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DispatcherConfig controls leasing and retry of outbox events
type DispatcherConfig struct {
	Consumer      string
	PollInterval  time.Duration
	BatchSize     int
	LeaseTTL      time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	Concurrency   int
}

func (c DispatcherConfig) normalized() DispatcherConfig {
	if c.Consumer == "" {
		host, _ := os.Hostname()
		c.Consumer = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	if c.RetryMaxDelay < c.RetryBackoff {
		c.RetryMaxDelay = c.RetryBackoff
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

// DispatchStats counts the outcome of one or more dispatch passes
type DispatchStats struct {
	Leased    int `json:"leased"`
	Delivered int `json:"delivered"`
	Retried   int `json:"retried"`
	Dead      int `json:"dead"`
}

func (s *DispatchStats) add(o DispatchStats) {
	s.Leased += o.Leased
	s.Delivered += o.Delivered
	s.Retried += o.Retried
	s.Dead += o.Dead
}

// OutboxDispatcher delivers queued notifications at least once. Delivery failures are
// retried with exponential backoff and never reach the request that caused the event.
type OutboxDispatcher struct {
	notifications *services.NotificationService
	notifier      notify.Notifier
	cfg           DispatcherConfig
	stopChan      chan struct{}
	stopOnce      sync.Once
	now           func() time.Time
}

// NewOutboxDispatcher creates a new outbox dispatcher job
func NewOutboxDispatcher(
	notifications *services.NotificationService,
	notifier notify.Notifier,
	cfg DispatcherConfig,
) *OutboxDispatcher {
	return &OutboxDispatcher{
		notifications: notifications,
		notifier:      notifier,
		cfg:           cfg.normalized(),
		stopChan:      make(chan struct{}),
		now:           time.Now,
	}
}

// Consumer returns the lease owner name used by this dispatcher
func (d *OutboxDispatcher) Consumer() string {
	return d.cfg.Consumer
}

// Start begins the dispatch loop
func (d *OutboxDispatcher) Start() {
	log.Printf("[OutboxDispatcher] Starting outbox dispatcher %s (interval: %v)", d.cfg.Consumer, d.cfg.PollInterval)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				log.Printf("[OutboxDispatcher] Error dispatching events: %v", err)
			}
		case <-d.stopChan:
			log.Println("[OutboxDispatcher] Stopping outbox dispatcher")
			return
		}
	}
}

// Stop stops the dispatch loop
func (d *OutboxDispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
}

// RunOnce leases one batch of due events and delivers it
func (d *OutboxDispatcher) RunOnce(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats

	events, err := d.notifications.LeaseDue(ctx, d.cfg.Consumer, d.cfg.LeaseTTL, d.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Leased = len(events)
	if len(events) == 0 {
		return stats, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for _, event := range events {
		g.Go(func() error {
			outcome, err := d.deliver(gctx, event)
			if err != nil {
				return err
			}
			mu.Lock()
			stats.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	if stats.Retried > 0 || stats.Dead > 0 {
		log.Printf("[OutboxDispatcher] Batch: %d delivered, %d retrying, %d dead", stats.Delivered, stats.Retried, stats.Dead)
	}
	return stats, nil
}

// Drain runs passes until no due event is left. Events waiting on a backoff are not
// forced.
func (d *OutboxDispatcher) Drain(ctx context.Context) (DispatchStats, error) {
	var total DispatchStats
	for {
		stats, err := d.RunOnce(ctx)
		total.add(stats)
		if err != nil || stats.Leased == 0 {
			return total, err
		}
	}
}

// deliver sends one event and records the outcome. The returned error is a storage
// failure; notifier failures are absorbed into retry or dead-letter state.
func (d *OutboxDispatcher) deliver(ctx context.Context, event *models.OutboxEvent) (DispatchStats, error) {
	start := time.Now()
	notifyErr := d.notifier.Notify(ctx, event)
	metrics.OutboxDeliveryDuration.Observe(time.Since(start).Seconds())

	if notifyErr == nil {
		if err := d.notifications.MarkDelivered(ctx, event, d.cfg.Consumer); err != nil {
			return DispatchStats{}, fmt.Errorf("mark event %s delivered: %w", event.ID, err)
		}
		metrics.OutboxDeliveries.WithLabelValues(event.EventType, "delivered").Inc()
		return DispatchStats{Delivered: 1}, nil
	}

	attempt := event.AttemptCount + 1
	if notify.IsPermanent(notifyErr) || attempt >= d.cfg.MaxAttempts {
		log.Printf("[OutboxDispatcher] Warning: event %s (%s) dead after %d attempts: %v",
			event.ID, event.EventType, attempt, notifyErr)
		if err := d.notifications.MarkDead(ctx, event, d.cfg.Consumer, notifyErr); err != nil {
			return DispatchStats{}, fmt.Errorf("mark event %s dead: %w", event.ID, err)
		}
		metrics.OutboxDeliveries.WithLabelValues(event.EventType, "dead").Inc()
		return DispatchStats{Dead: 1}, nil
	}

	next := d.now().Add(RetryDelay(d.cfg.RetryBackoff, d.cfg.RetryMaxDelay, attempt))
	log.Printf("[OutboxDispatcher] Warning: event %s (%s) attempt %d failed, retry at %s: %v",
		event.ID, event.EventType, attempt, next.Format(time.RFC3339), notifyErr)
	if err := d.notifications.MarkRetry(ctx, event, d.cfg.Consumer, next, notifyErr); err != nil {
		return DispatchStats{}, fmt.Errorf("mark event %s for retry: %w", event.ID, err)
	}
	metrics.OutboxDeliveries.WithLabelValues(event.EventType, "retry").Inc()
	return DispatchStats{Retried: 1}, nil
}

// RetryDelay returns base * 2^(attempt-1), capped at max
func RetryDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max || delay <= 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
