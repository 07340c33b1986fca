// Package worker drains durable notification engines.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/insider-one/local-notifications/internal/config"
	"github.com/insider-one/local-notifications/internal/domain"
)

const maxBackoff = 5 * time.Minute

type nopDeliveryRecorder struct{}

func (nopDeliveryRecorder) RecordDelivery(string, string, time.Duration) {}

// Dispatcher polls a DueStore and hands due notifications to the provider.
// Failed deliveries are deferred with exponential backoff until the retry
// budget runs out.
type Dispatcher struct {
	store           domain.DueStore
	rateLimiter     domain.RateLimiter
	provider        domain.DeliveryProvider
	logger          *slog.Logger
	retry           config.RetryConfig
	config          config.DispatcherConfig
	deliveryTimeout time.Duration
	onFired         domain.FiredHandler
	recorder        domain.DeliveryRecorder
	now             func() time.Time

	mu         sync.Mutex
	running    bool
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

// NewDispatcher creates a new Dispatcher. rateLimiter may be nil.
func NewDispatcher(
	store domain.DueStore,
	rateLimiter domain.RateLimiter,
	provider domain.DeliveryProvider,
	logger *slog.Logger,
	retryConfig config.RetryConfig,
	dispatcherConfig config.DispatcherConfig,
	deliveryTimeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		store:           store,
		rateLimiter:     rateLimiter,
		provider:        provider,
		logger:          logger,
		retry:           retryConfig,
		config:          dispatcherConfig,
		deliveryTimeout: deliveryTimeout,
		recorder:        nopDeliveryRecorder{},
		now:             time.Now,
	}
}

// SetFiredHandler sets the function called once a due occurrence is consumed
func (d *Dispatcher) SetFiredHandler(fn domain.FiredHandler) {
	d.onFired = fn
}

// SetRecorder sets the delivery metrics recorder
func (d *Dispatcher) SetRecorder(recorder domain.DeliveryRecorder) {
	if recorder == nil {
		recorder = nopDeliveryRecorder{}
	}
	d.recorder = recorder
}

// Start starts the polling loop
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	ctx, d.cancelFunc = context.WithCancel(ctx)
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	d.logger.Info("dispatcher started",
		"interval", d.config.Interval,
		"batch_size", d.config.BatchSize,
		"provider", d.provider.Name(),
	)

	return nil
}

// Stop stops the polling loop and waits for the current batch
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancelFunc()
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped gracefully")
	case <-time.After(30 * time.Second):
		d.logger.Warn("dispatcher stop timed out")
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	d.dispatchDue(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatchDue(ctx)
		}
	}
}

// dispatchDue delivers one batch of due notifications
func (d *Dispatcher) dispatchDue(ctx context.Context) {
	due, err := d.store.Due(ctx, d.now().UTC(), d.config.BatchSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.Error("failed to get due notifications", "error", err)
		}
		return
	}

	if len(due) == 0 {
		return
	}

	d.logger.Debug("dispatching due notifications", "count", len(due))

	for _, n := range due {
		if ctx.Err() != nil {
			return
		}
		if err := d.deliver(ctx, n); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to dispatch notification",
				"notification_id", n.Request.ID,
				"error", err,
			)
		}
	}
}

// deliver sends a single due notification to the provider
func (d *Dispatcher) deliver(ctx context.Context, due domain.DueNotification) error {
	logger := d.logger.With("notification_id", due.Request.ID)

	if d.rateLimiter != nil {
		if err := d.rateLimiter.Wait(ctx, d.provider.Name()); err != nil {
			return err
		}
	}

	firedAt := d.now().UTC()
	sendCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := d.provider.Send(sendCtx, domain.NewDelivery(due.Request, firedAt))
	duration := time.Since(start)
	if err != nil {
		return d.handleSendError(ctx, due, err, duration, logger)
	}

	if err := d.store.Acknowledge(ctx, due, firedAt); err != nil {
		return err
	}
	d.recorder.RecordDelivery(d.provider.Name(), domain.DeliveryDelivered, duration)

	logger.Info("notification delivered",
		"provider", d.provider.Name(),
		"message_id", receipt.MessageID,
	)

	d.fired(ctx, due)
	return nil
}

// handleSendError defers retryable failures and drops the rest
func (d *Dispatcher) handleSendError(ctx context.Context, due domain.DueNotification, err error, duration time.Duration, logger *slog.Logger) error {
	var providerErr domain.ProviderError
	if errors.As(err, &providerErr) && !providerErr.Retryable {
		logger.Error("notification failed permanently", "error", providerErr.Message)
		return d.drop(ctx, due, duration)
	}

	attempts := due.Attempts + 1
	if attempts >= d.retry.MaxCount {
		logger.Error("notification failed after max retries",
			"retry_count", attempts,
			"error", err,
		)
		return d.drop(ctx, due, duration)
	}

	delay := d.calculateBackoff(attempts)
	if err := d.store.Defer(ctx, due, d.now().UTC().Add(delay)); err != nil {
		return err
	}
	d.recorder.RecordDelivery(d.provider.Name(), domain.DeliveryRetried, duration)

	logger.Warn("notification will be retried",
		"retry_count", attempts,
		"delay", delay,
		"error", err,
	)
	return nil
}

// drop gives up on the current occurrence. Repeating notifications move on
// to their next occurrence.
func (d *Dispatcher) drop(ctx context.Context, due domain.DueNotification, duration time.Duration) error {
	if err := d.store.Acknowledge(ctx, due, d.now().UTC()); err != nil {
		return err
	}
	d.recorder.RecordDelivery(d.provider.Name(), domain.DeliveryFailed, duration)
	d.fired(ctx, due)
	return nil
}

func (d *Dispatcher) fired(ctx context.Context, due domain.DueNotification) {
	if d.onFired != nil {
		d.onFired(ctx, due.Handle, due.Request)
	}
}

// calculateBackoff calculates exponential backoff delay
func (d *Dispatcher) calculateBackoff(retryCount int) time.Duration {
	// Exponential backoff: baseDelay * 2^(retryCount-1)
	multiplier := math.Pow(2, float64(retryCount-1))
	delay := time.Duration(float64(d.retry.BaseDelay) * multiplier)

	if delay > maxBackoff {
		delay = maxBackoff
	}

	return delay
}
