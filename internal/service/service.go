// Package service is the boundary the delivery layer and the HTTP API call
// into. It wires settings, consumption history, the scheduling engine, and
// the reminder lifecycle together; all entry points are synchronous
// computations over caller-supplied inputs and injected stores.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hydromate/internal/lifecycle"
	"hydromate/internal/metrics"
	"hydromate/internal/model"
	"hydromate/internal/pattern"
	"hydromate/internal/schedule"
)

// HistoryDays is the consumption lookback fed to the pattern analyzer.
const HistoryDays = 30

// SettingsStore persists per-user reminder settings.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID int64) (*model.ReminderSettings, error)
	UpsertSettings(ctx context.Context, s *model.ReminderSettings) error
}

// ConsumptionStore reads and records water intakes.
type ConsumptionStore interface {
	InsertIntake(ctx context.Context, userID int64, amountML float64, at time.Time) error
	RecentSamples(ctx context.Context, userID int64, days int) ([]model.ConsumptionSample, error)
	TodayTotal(ctx context.Context, userID int64, now time.Time) (float64, error)
}

// ReminderQuery covers the reads the service needs beyond the lifecycle.
type ReminderQuery interface {
	GetByID(ctx context.Context, id int64) (*model.ReminderLog, error)
	ListScheduledByUser(ctx context.Context, userID int64) ([]model.ReminderLog, error)
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error)
}

// Service exposes the reminder scheduling and personalization operations.
type Service struct {
	settings    SettingsStore
	consumption ConsumptionStore
	reminders   ReminderQuery
	engine      *schedule.Engine
	lifecycle   *lifecycle.Lifecycle
	clock       schedule.Clock
	cache       *Cache
	logger      zerolog.Logger
}

// New creates the service. cache may be nil.
func New(
	settings SettingsStore,
	consumption ConsumptionStore,
	reminders ReminderQuery,
	engine *schedule.Engine,
	lc *lifecycle.Lifecycle,
	clock schedule.Clock,
	cache *Cache,
	logger zerolog.Logger,
) *Service {
	return &Service{
		settings:    settings,
		consumption: consumption,
		reminders:   reminders,
		engine:      engine,
		lifecycle:   lc,
		clock:       clock,
		cache:       cache,
		logger:      logger.With().Str("component", "service").Logger(),
	}
}

// ScheduleNext computes and persists the user's next reminder. A nil result
// means reminders are disabled for the user, which is a normal outcome.
func (s *Service) ScheduleNext(ctx context.Context, userID int64) (*model.ReminderLog, error) {
	settings, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	samples, err := s.consumption.RecentSamples(ctx, userID, HistoryDays)
	if err != nil {
		return nil, fmt.Errorf("recent samples: %w", err)
	}

	now := s.clock.Now(userID)
	ratio, err := s.progressRatio(ctx, userID, settings, now)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Compute(settings, samples, ratio, now)
	if err != nil {
		return nil, err
	}
	if result == nil {
		s.logger.Debug().Int64("user_id", userID).Msg("reminders disabled, nothing scheduled")
		return nil, nil
	}

	id, err := s.lifecycle.Create(ctx, userID, result.At, result.Message, result.Channel)
	if err != nil {
		return nil, err
	}
	metrics.IncScheduled()

	return s.reminders.GetByID(ctx, id)
}

// OnDelivered records a successful hand-off to the delivery collaborator.
// Idempotent: repeated calls for the same reminder are no-ops.
func (s *Service) OnDelivered(ctx context.Context, reminderID int64) error {
	if err := s.lifecycle.MarkSent(ctx, reminderID); err != nil {
		return err
	}
	metrics.IncSent("sent")
	return nil
}

// OnDeliveryFailed records a delivery failure.
func (s *Service) OnDeliveryFailed(ctx context.Context, reminderID int64, reason string) error {
	if err := s.lifecycle.MarkFailed(ctx, reminderID, reason); err != nil {
		return err
	}
	metrics.IncSent("failed")
	return nil
}

// OnUserResponse records the user's reaction to a sent reminder and returns
// the response delay in minutes. A drink_logged action also records the
// intake so it feeds the pattern analyzer.
func (s *Service) OnUserResponse(ctx context.Context, reminderID int64, action model.ResponseAction, amountML float64) (float64, error) {
	if !model.ValidAction(action) {
		return 0, fmt.Errorf("%w: %q", model.ErrUnknownAction, action)
	}

	delay, err := s.lifecycle.RecordResponse(ctx, reminderID, action, amountML)
	if err != nil {
		return 0, err
	}
	metrics.IncResponse(string(action))

	if action == model.ActionDrinkLogged && amountML > 0 {
		row, err := s.reminders.GetByID(ctx, reminderID)
		if err != nil {
			return 0, err
		}
		if err := s.consumption.InsertIntake(ctx, row.UserID, amountML, s.clock.Now(row.UserID)); err != nil {
			return 0, fmt.Errorf("record intake from response: %w", err)
		}
		s.cache.invalidateUser(ctx, row.UserID)
	}

	return delay.Minutes(), nil
}

// GetSuggestions returns the user's candidate reminder times.
func (s *Service) GetSuggestions(ctx context.Context, userID int64) ([]pattern.Suggestion, error) {
	var cached []pattern.Suggestion
	if s.cache.read(ctx, suggestionsKey(userID), &cached) {
		return cached, nil
	}

	settings, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	samples, err := s.consumption.RecentSamples(ctx, userID, HistoryDays)
	if err != nil {
		return nil, err
	}

	suggestions := pattern.Analyze(samples, settings.ActiveWindow, settings.IntervalMinutes)
	s.cache.write(ctx, suggestionsKey(userID), suggestions)
	return suggestions, nil
}

// GetStatistics aggregates reminder effectiveness over the trailing period.
func (s *Service) GetStatistics(ctx context.Context, userID int64, periodDays int) (model.ReminderStatistics, error) {
	var cached model.ReminderStatistics
	if s.cache.read(ctx, statisticsKey(userID, periodDays), &cached) {
		return cached, nil
	}

	stats, err := s.lifecycle.Statistics(ctx, userID, periodDays)
	if err != nil {
		return model.ReminderStatistics{}, err
	}

	s.cache.write(ctx, statisticsKey(userID, periodDays), stats)
	return stats, nil
}

// ListActiveUserIDs returns users with reminder activity since the given
// instant. Used by the effectiveness report.
func (s *Service) ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error) {
	return s.reminders.ListActiveUserIDs(ctx, since)
}

// GetSettings returns the user's reminder settings, falling back to the
// registration defaults.
func (s *Service) GetSettings(ctx context.Context, userID int64) (*model.ReminderSettings, error) {
	return s.settings.GetSettings(ctx, userID)
}

// UpdateSettings applies a partial settings update. Any still-scheduled
// reminder is superseded so the next dispatch cycle works from the new
// preferences.
func (s *Service) UpdateSettings(ctx context.Context, userID int64, patch *model.SettingsPatch) (*model.ReminderSettings, error) {
	settings, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := settings.Apply(patch); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if err := s.settings.UpsertSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("persist settings: %w", err)
	}

	pending, err := s.reminders.ListScheduledByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, r := range pending {
		if err := s.lifecycle.MarkFailed(ctx, r.ID, "superseded"); err != nil {
			return nil, err
		}
	}

	s.cache.invalidateUser(ctx, userID)
	s.logger.Info().Int64("user_id", userID).Int("superseded", len(pending)).Msg("settings updated")
	return settings, nil
}

// LogIntake records a drink outside the reminder flow.
func (s *Service) LogIntake(ctx context.Context, userID int64, amountML float64, at time.Time) error {
	if amountML <= 0 {
		return fmt.Errorf("intake amount must be positive, got %v", amountML)
	}
	if at.IsZero() {
		at = s.clock.Now(userID)
	}

	if err := s.consumption.InsertIntake(ctx, userID, amountML, at); err != nil {
		return err
	}
	s.cache.invalidateUser(ctx, userID)
	return nil
}

// ProgressRatio returns today's intake divided by the daily goal.
func (s *Service) ProgressRatio(ctx context.Context, userID int64) (float64, error) {
	settings, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.progressRatio(ctx, userID, settings, s.clock.Now(userID))
}

func (s *Service) progressRatio(ctx context.Context, userID int64, settings *model.ReminderSettings, now time.Time) (float64, error) {
	today, err := s.consumption.TodayTotal(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("today total: %w", err)
	}
	if settings.DailyGoalML <= 0 {
		// Goal positivity is enforced at validation time.
		return 0, fmt.Errorf("%w: user %d", model.ErrInvalidGoal, userID)
	}
	return today / settings.DailyGoalML, nil
}
