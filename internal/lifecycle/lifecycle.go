// Package lifecycle tracks a reminder from creation through delivery and user
// response, and computes aggregate effectiveness statistics.
//
// The state machine is forward-only:
//
//	scheduled -> sent -> responded
//	scheduled -> failed
//	sent      -> failed
//
// Concurrent transitions for the same reminder are serialized by the store
// via conditional updates keyed on the current state; the loser of a race
// observes a rejected transition rather than silently overwriting.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hydromate/internal/model"
)

var (
	// ErrInvalidStateTransition is returned when a response arrives for a
	// reminder that is not in the sent state. It indicates a duplicate or
	// out-of-order client response and is surfaced to the caller, not retried.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNotFound is returned when no reminder exists for the given id.
	ErrNotFound = errors.New("reminder not found")
)

// Store provides conditional access to reminder log rows. Transition methods
// return false when the row was not in the expected state, without modifying it.
type Store interface {
	// Insert creates a new row and returns its id.
	Insert(ctx context.Context, r *model.ReminderLog) (int64, error)

	// GetByID returns a row, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*model.ReminderLog, error)

	// MarkSent transitions scheduled -> sent, stamping sentAt.
	MarkSent(ctx context.Context, id int64, at time.Time) (bool, error)

	// MarkFailed transitions scheduled|sent -> failed with a reason.
	MarkFailed(ctx context.Context, id int64, reason string, at time.Time) (bool, error)

	// MarkResponded transitions sent -> responded, stamping respondedAt and
	// the user's action.
	MarkResponded(ctx context.Context, id int64, at time.Time, action model.ResponseAction, amountML float64) (bool, error)

	// ListByUserSince returns all rows for a user scheduled at or after since.
	ListByUserSince(ctx context.Context, userID int64, since time.Time) ([]model.ReminderLog, error)
}

// Lifecycle drives reminder state transitions through a Store.
type Lifecycle struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a Lifecycle backed by the given store.
func New(store Store, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		logger: logger.With().Str("component", "lifecycle").Logger(),
		now:    time.Now,
	}
}

// WithNow overrides the wall clock. For tests.
func (l *Lifecycle) WithNow(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}

// Create inserts a new reminder in the scheduled state and returns its id.
func (l *Lifecycle) Create(ctx context.Context, userID int64, scheduledAt time.Time, message string, channel model.Channel) (int64, error) {
	now := l.now()
	row := &model.ReminderLog{
		UserID:      userID,
		ScheduledAt: scheduledAt,
		Status:      model.StatusScheduled,
		Channel:     channel,
		Message:     message,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := l.store.Insert(ctx, row)
	if err != nil {
		return 0, fmt.Errorf("insert reminder: %w", err)
	}

	l.logger.Debug().
		Int64("reminder_id", id).
		Int64("user_id", userID).
		Time("scheduled_at", scheduledAt).
		Str("channel", string(channel)).
		Msg("reminder scheduled")

	return id, nil
}

// MarkSent transitions a reminder to sent. Safe to call multiple times for
// the same id: delivery collaborators may retry, so a call on a row no longer
// in the scheduled state is a logged no-op.
func (l *Lifecycle) MarkSent(ctx context.Context, id int64) error {
	ok, err := l.store.MarkSent(ctx, id, l.now())
	if err != nil {
		return err
	}
	if !ok {
		l.logger.Debug().Int64("reminder_id", id).Msg("mark-sent skipped, reminder not in scheduled state")
		return nil
	}

	l.logger.Info().Int64("reminder_id", id).Msg("reminder sent")
	return nil
}

// MarkFailed transitions a scheduled or sent reminder to failed. Calls on
// rows already terminal are logged no-ops.
func (l *Lifecycle) MarkFailed(ctx context.Context, id int64, reason string) error {
	ok, err := l.store.MarkFailed(ctx, id, reason, l.now())
	if err != nil {
		return err
	}
	if !ok {
		l.logger.Debug().Int64("reminder_id", id).Str("reason", reason).
			Msg("mark-failed skipped, reminder already terminal")
		return nil
	}

	l.logger.Info().Int64("reminder_id", id).Str("reason", reason).Msg("reminder failed")
	return nil
}

// RecordResponse transitions a sent reminder to responded and returns the
// delay between delivery and the response. Responses for reminders in any
// other state yield ErrInvalidStateTransition.
func (l *Lifecycle) RecordResponse(ctx context.Context, id int64, action model.ResponseAction, amountML float64) (time.Duration, error) {
	now := l.now()

	ok, err := l.store.MarkResponded(ctx, id, now, action, amountML)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: reminder %d is not in sent state", ErrInvalidStateTransition, id)
	}

	row, err := l.store.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if row.SentAt == nil {
		// Transition from sent guarantees the stamp; its absence means the
		// store broke its contract.
		return 0, fmt.Errorf("reminder %d responded without sent_at", id)
	}

	delay := now.Sub(*row.SentAt)
	l.logger.Info().
		Int64("reminder_id", id).
		Str("action", string(action)).
		Dur("response_delay", delay).
		Msg("reminder response recorded")

	return delay, nil
}

// Statistics aggregates the user's reminders over the trailing period.
func (l *Lifecycle) Statistics(ctx context.Context, userID int64, periodDays int) (model.ReminderStatistics, error) {
	since := l.now().AddDate(0, 0, -periodDays)
	rows, err := l.store.ListByUserSince(ctx, userID, since)
	if err != nil {
		return model.ReminderStatistics{}, err
	}
	return Aggregate(rows), nil
}

// Aggregate computes statistics over a set of reminder rows. Rates with a
// zero denominator are defined as 0, not an error. Responded rows count as
// delivered: they passed through the sent state first.
func Aggregate(rows []model.ReminderLog) model.ReminderStatistics {
	stats := model.ReminderStatistics{Total: len(rows)}

	var totalDelay time.Duration
	for _, r := range rows {
		switch r.Status {
		case model.StatusScheduled:
			stats.Scheduled++
		case model.StatusSent:
			stats.Sent++
		case model.StatusFailed:
			stats.Failed++
		case model.StatusResponded:
			stats.Responded++
			if r.SentAt != nil && r.RespondedAt != nil {
				totalDelay += r.RespondedAt.Sub(*r.SentAt)
			}
			if r.ResponseAction == model.ActionDrinkLogged {
				stats.AmountViaRemindersML += r.AmountLoggedML
			}
		}
	}

	delivered := stats.Sent + stats.Responded
	if delivered > 0 {
		stats.ResponseRate = float64(stats.Responded) / float64(delivered)
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(delivered) / float64(stats.Total)
	}
	if stats.Responded > 0 {
		stats.AvgResponseDelayMins = totalDelay.Minutes() / float64(stats.Responded)
	}

	return stats
}
