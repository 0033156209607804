// Package model defines the hydration reminder domain types and their
// validation rules. Validation runs at the boundary; the scheduling engine
// assumes it receives pre-validated settings.
package model

import (
	"errors"
	"fmt"
	"time"

	"hydromate/internal/timewindow"
)

// Channel is a delivery channel for reminders.
type Channel string

const (
	ChannelPush      Channel = "push"
	ChannelSound     Channel = "sound"
	ChannelVibration Channel = "vibration"
	ChannelEmail     Channel = "email"
)

// Intensity controls how insistent reminders are.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// ReminderStatus is the lifecycle state of a reminder log row.
type ReminderStatus string

const (
	StatusScheduled ReminderStatus = "scheduled"
	StatusSent      ReminderStatus = "sent"
	StatusFailed    ReminderStatus = "failed"
	StatusResponded ReminderStatus = "responded"
)

// ResponseAction is what the user did after receiving a reminder.
type ResponseAction string

const (
	ActionDrinkLogged ResponseAction = "drink_logged"
	ActionSnooze      ResponseAction = "snooze"
	ActionDismiss     ResponseAction = "dismiss"
	ActionDisabled    ResponseAction = "disabled"
)

// Interval bounds for reminder stepping, in minutes.
const (
	MinIntervalMinutes = 30
	MaxIntervalMinutes = 480
)

// MinActiveWindow is the shortest legal active window.
const MinActiveWindow = time.Hour

var (
	ErrInvalidInterval  = errors.New("interval minutes out of range")
	ErrInvalidWindow    = errors.New("invalid time window")
	ErrNoChannels       = errors.New("at least one channel required")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrUnknownIntensity = errors.New("unknown intensity")
	ErrUnknownAction    = errors.New("unknown response action")
	ErrInvalidGoal      = errors.New("daily goal must be positive")
)

// ReminderSettings holds a user's reminder preferences. One row per user,
// created with defaults at registration.
type ReminderSettings struct {
	UserID          int64             `json:"user_id"`
	Enabled         bool              `json:"enabled"`
	ActiveWindow    timewindow.Window `json:"active_window"`
	QuietWindow     timewindow.Window `json:"quiet_window"`
	IntervalMinutes int               `json:"interval_minutes"`
	SmartMode       bool              `json:"smart_mode"`
	WeekendEnabled  bool              `json:"weekend_enabled"`
	Channels        []Channel         `json:"channels"`
	Intensity       Intensity         `json:"intensity"`
	DailyGoalML     float64           `json:"daily_goal_ml"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// DefaultSettings returns the settings assigned at user registration.
func DefaultSettings(userID int64) *ReminderSettings {
	return &ReminderSettings{
		UserID:          userID,
		Enabled:         true,
		ActiveWindow:    timewindow.Window{Start: timewindow.TimeOfDay{Hour: 8}, End: timewindow.TimeOfDay{Hour: 22}},
		QuietWindow:     timewindow.Window{Start: timewindow.TimeOfDay{Hour: 22}, End: timewindow.TimeOfDay{Hour: 8}},
		IntervalMinutes: 90,
		SmartMode:       false,
		WeekendEnabled:  true,
		Channels:        []Channel{ChannelPush},
		Intensity:       IntensityMedium,
		DailyGoalML:     2000,
	}
}

// Validate checks the settings invariants. Called at the boundary before
// settings are persisted or handed to the scheduling engine.
func (s *ReminderSettings) Validate() error {
	if s.IntervalMinutes < MinIntervalMinutes || s.IntervalMinutes > MaxIntervalMinutes {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidInterval,
			s.IntervalMinutes, MinIntervalMinutes, MaxIntervalMinutes)
	}

	if s.ActiveWindow.Wraps() {
		return fmt.Errorf("%w: active window must not wrap past midnight", ErrInvalidWindow)
	}
	if s.ActiveWindow.Duration() < MinActiveWindow {
		return fmt.Errorf("%w: active window shorter than %s", ErrInvalidWindow, MinActiveWindow)
	}

	// A zero-duration quiet window is ambiguous; a full-day quiet window is
	// legal and acts as a pause.
	if s.QuietWindow.Start == s.QuietWindow.End {
		return fmt.Errorf("%w: quiet window has zero duration", ErrInvalidWindow)
	}

	if len(s.Channels) == 0 {
		return ErrNoChannels
	}
	for _, ch := range s.Channels {
		if !ValidChannel(ch) {
			return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
		}
	}

	switch s.Intensity {
	case IntensityLow, IntensityMedium, IntensityHigh:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIntensity, s.Intensity)
	}

	if s.DailyGoalML <= 0 {
		return ErrInvalidGoal
	}

	return nil
}

// ValidChannel reports whether ch is a known delivery channel.
func ValidChannel(ch Channel) bool {
	switch ch {
	case ChannelPush, ChannelSound, ChannelVibration, ChannelEmail:
		return true
	}
	return false
}

// ValidAction reports whether a is a known response action.
func ValidAction(a ResponseAction) bool {
	switch a {
	case ActionDrinkLogged, ActionSnooze, ActionDismiss, ActionDisabled:
		return true
	}
	return false
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged;
// unknown fields are rejected by the JSON decoder at the boundary.
type SettingsPatch struct {
	Enabled         *bool      `json:"enabled,omitempty"`
	ActiveStart     *string    `json:"active_start,omitempty"` // "HH:MM"
	ActiveEnd       *string    `json:"active_end,omitempty"`
	QuietStart      *string    `json:"quiet_start,omitempty"`
	QuietEnd        *string    `json:"quiet_end,omitempty"`
	IntervalMinutes *int       `json:"interval_minutes,omitempty"`
	SmartMode       *bool      `json:"smart_mode,omitempty"`
	WeekendEnabled  *bool      `json:"weekend_enabled,omitempty"`
	Channels        []Channel  `json:"channels,omitempty"`
	Intensity       *Intensity `json:"intensity,omitempty"`
	DailyGoalML     *float64   `json:"daily_goal_ml,omitempty"`
}

// Apply merges the patch into the settings. The result must still pass
// Validate before being persisted.
func (s *ReminderSettings) Apply(p *SettingsPatch) error {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.ActiveStart != nil {
		t, err := timewindow.Parse(*p.ActiveStart)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidWindow, err)
		}
		s.ActiveWindow.Start = t
	}
	if p.ActiveEnd != nil {
		t, err := timewindow.Parse(*p.ActiveEnd)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidWindow, err)
		}
		s.ActiveWindow.End = t
	}
	if p.QuietStart != nil {
		t, err := timewindow.Parse(*p.QuietStart)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidWindow, err)
		}
		s.QuietWindow.Start = t
	}
	if p.QuietEnd != nil {
		t, err := timewindow.Parse(*p.QuietEnd)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidWindow, err)
		}
		s.QuietWindow.End = t
	}
	if p.IntervalMinutes != nil {
		s.IntervalMinutes = *p.IntervalMinutes
	}
	if p.SmartMode != nil {
		s.SmartMode = *p.SmartMode
	}
	if p.WeekendEnabled != nil {
		s.WeekendEnabled = *p.WeekendEnabled
	}
	if p.Channels != nil {
		s.Channels = p.Channels
	}
	if p.Intensity != nil {
		s.Intensity = *p.Intensity
	}
	if p.DailyGoalML != nil {
		s.DailyGoalML = *p.DailyGoalML
	}
	return nil
}

// ReminderLog is one reminder from creation through delivery and response.
// Rows are append-mostly and never physically deleted.
type ReminderLog struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	ScheduledAt    time.Time      `json:"scheduled_at"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	RespondedAt    *time.Time     `json:"responded_at,omitempty"`
	Status         ReminderStatus `json:"status"`
	Channel        Channel        `json:"channel"`
	Message        string         `json:"message"`
	ResponseAction ResponseAction `json:"response_action,omitempty"`
	AmountLoggedML float64        `json:"amount_logged_ml,omitempty"`
	FailReason     string         `json:"fail_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ConsumptionSample is one historical drink record as seen by the pattern
// analyzer. Read-only input; the scheduling core never writes these.
type ConsumptionSample struct {
	Hour      int       `json:"hour"` // 0..23
	AmountML  float64   `json:"amount_ml"`
	Timestamp time.Time `json:"timestamp"`
}

// ReminderStatistics is derived on demand from a window of reminder log rows.
type ReminderStatistics struct {
	Total                int     `json:"total"`
	Scheduled            int     `json:"scheduled"`
	Sent                 int     `json:"sent"`
	Failed               int     `json:"failed"`
	Responded            int     `json:"responded"`
	ResponseRate         float64 `json:"response_rate"` // responded/sent, 0 when sent == 0
	SuccessRate          float64 `json:"success_rate"`  // sent/total, 0 when total == 0
	AvgResponseDelayMins float64 `json:"avg_response_delay_minutes"`
	AmountViaRemindersML float64 `json:"amount_via_reminders_ml"`
}
