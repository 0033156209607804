// Package dispatch runs the background loop that delivers due reminders and
// queues each user's next one.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"hydromate/internal/metrics"
	"hydromate/internal/model"
)

// Notifier hands a reminder to a delivery transport.
type Notifier interface {
	Send(ctx context.Context, r *model.ReminderLog) error
}

// DueStore lists reminders whose scheduled time has passed.
type DueStore interface {
	ListDue(ctx context.Context, before time.Time) ([]model.ReminderLog, error)
}

// Retention marks old terminal reminder rows deleted.
type Retention interface {
	SoftDelete(ctx context.Context, before time.Time) (int64, error)
}

// ReminderService is the slice of the service boundary the dispatcher needs.
type ReminderService interface {
	OnDelivered(ctx context.Context, reminderID int64) error
	OnDeliveryFailed(ctx context.Context, reminderID int64, reason string) error
	ScheduleNext(ctx context.Context, userID int64) (*model.ReminderLog, error)
}

// Config holds dispatcher settings.
type Config struct {
	// CheckInterval is how often to look for due reminders.
	CheckInterval time.Duration
	// RatePerSecond limits notification sends.
	RatePerSecond float64
	// Burst is the rate limiter burst size.
	Burst int
	// MaxRetries bounds delivery attempts per reminder per cycle.
	MaxRetries int
	// RetryDelays are the waits between attempts.
	RetryDelays []time.Duration
	// RetentionDays is how long terminal rows are kept before the daily
	// sweep soft-deletes them.
	RetentionDays int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: time.Minute,
		RatePerSecond: 20,
		Burst:         30,
		MaxRetries:    3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
		RetentionDays: 90,
	}
}

// Dispatcher periodically delivers due reminders.
type Dispatcher struct {
	config    Config
	due       DueStore
	svc       ReminderService
	notifier  Notifier
	limiter   *rate.Limiter
	retention Retention
	logger    zerolog.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// New creates a dispatcher.
func New(config Config, due DueStore, svc ReminderService, notifier Notifier, logger zerolog.Logger) *Dispatcher {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 20
	}
	if config.Burst <= 0 {
		config.Burst = 30
	}

	return &Dispatcher{
		config:   config,
		due:      due,
		svc:      svc,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		logger:   logger.With().Str("component", "dispatch").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// WithRetention enables the daily soft-delete sweep of old terminal rows.
func (d *Dispatcher) WithRetention(r Retention) *Dispatcher {
	d.retention = r
	return d
}

// Start begins the dispatch loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.loop(ctx)

	d.logger.Info().Dur("check_interval", d.config.CheckInterval).Msg("dispatcher started")
}

// Stop gracefully stops the dispatcher.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()
	d.logger.Info().Msg("dispatcher stopped")
}

// IsRunning reports whether the loop is active.
func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	sweep := time.NewTicker(24 * time.Hour)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.RunOnce(ctx)
		case <-sweep.C:
			d.sweepOldRows(ctx)
		}
	}
}

// sweepOldRows soft-deletes terminal rows past the retention horizon.
func (d *Dispatcher) sweepOldRows(ctx context.Context) {
	if d.retention == nil || d.config.RetentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -d.config.RetentionDays)
	n, err := d.retention.SoftDelete(ctx, cutoff)
	if err != nil {
		d.logger.Error().Err(err).Msg("retention sweep failed")
		return
	}
	if n > 0 {
		d.logger.Info().Int64("rows", n).Time("cutoff", cutoff).Msg("old reminder rows swept")
	}
}

// RunOnce processes all currently due reminders. Exported so operators can
// trigger an immediate cycle.
func (d *Dispatcher) RunOnce(ctx context.Context) {
	start := time.Now()

	due, err := d.due.ListDue(ctx, time.Now())
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to list due reminders")
		return
	}
	if len(due) == 0 {
		return
	}

	d.logger.Info().Int("count", len(due)).Msg("processing due reminders")

	var sent, failed int
	for i := range due {
		select {
		case <-ctx.Done():
			d.logger.Info().Int("processed", sent+failed).Msg("dispatch interrupted")
			return
		default:
		}

		if err := d.process(ctx, &due[i]); err != nil {
			failed++
		} else {
			sent++
		}
	}

	metrics.ObserveDispatchCycle(time.Since(start).Seconds())
	d.logger.Info().
		Int("sent", sent).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("dispatch cycle complete")
}

// process delivers one reminder with bounded retries, updates its state, and
// queues the user's next reminder.
func (d *Dispatcher) process(ctx context.Context, r *model.ReminderLog) error {
	attemptID := uuid.NewString()
	log := d.logger.With().
		Int64("reminder_id", r.ID).
		Int64("user_id", r.UserID).
		Str("attempt_id", attemptID).
		Logger()

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		lastErr = d.notifier.Send(ctx, r)
		if lastErr == nil {
			if err := d.svc.OnDelivered(ctx, r.ID); err != nil {
				log.Error().Err(err).Msg("failed to mark reminder sent")
				return err
			}
			d.scheduleFollowUp(ctx, r.UserID, log)
			return nil
		}

		if attempt < d.config.MaxRetries {
			delay := d.retryDelay(attempt)
			log.Info().Err(lastErr).Int("attempt", attempt+1).Dur("delay", delay).
				Msg("retrying reminder delivery")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	log.Error().Err(lastErr).Msg("max retries exceeded for reminder")
	if err := d.svc.OnDeliveryFailed(ctx, r.ID, "max_retries_exceeded"); err != nil {
		log.Error().Err(err).Msg("failed to mark reminder failed")
	}
	d.scheduleFollowUp(ctx, r.UserID, log)
	return lastErr
}

// scheduleFollowUp queues the user's next reminder after a terminal delivery
// outcome. Scheduling failures are logged, not propagated: the delivery
// result already stands.
func (d *Dispatcher) scheduleFollowUp(ctx context.Context, userID int64, log zerolog.Logger) {
	next, err := d.svc.ScheduleNext(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("failed to schedule follow-up reminder")
		return
	}
	if next != nil {
		log.Debug().Time("next_at", next.ScheduledAt).Msg("follow-up reminder queued")
	}
}

func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	if attempt < len(d.config.RetryDelays) {
		return d.config.RetryDelays[attempt]
	}
	if n := len(d.config.RetryDelays); n > 0 {
		return d.config.RetryDelays[n-1]
	}
	return time.Second
}
