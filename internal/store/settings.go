package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hydromate/internal/model"
	"hydromate/internal/timewindow"
)

// GetSettings returns reminder settings for a user. If no row exists the
// registration defaults are returned.
func (db *DB) GetSettings(ctx context.Context, userID int64) (*model.ReminderSettings, error) {
	row := db.QueryRowContext(ctx, `
		SELECT user_id, enabled, active_start, active_end, quiet_start, quiet_end,
		       interval_minutes, smart_mode, weekend_enabled, channels, intensity,
		       daily_goal_ml, created_at, updated_at
		FROM reminder_settings
		WHERE user_id = ?`, userID)

	var (
		s                                            model.ReminderSettings
		activeStart, activeEnd, quietStart, quietEnd string
		channels                                     string
	)
	err := row.Scan(&s.UserID, &s.Enabled, &activeStart, &activeEnd, &quietStart, &quietEnd,
		&s.IntervalMinutes, &s.SmartMode, &s.WeekendEnabled, &channels, &s.Intensity,
		&s.DailyGoalML, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.DefaultSettings(userID), nil
		}
		return nil, err
	}

	if s.ActiveWindow, err = timewindow.NewWindow(activeStart, activeEnd); err != nil {
		return nil, fmt.Errorf("settings row for user %d: %w", userID, err)
	}
	if s.QuietWindow, err = timewindow.NewWindow(quietStart, quietEnd); err != nil {
		return nil, fmt.Errorf("settings row for user %d: %w", userID, err)
	}

	for _, ch := range strings.Split(channels, ",") {
		if ch != "" {
			s.Channels = append(s.Channels, model.Channel(ch))
		}
	}

	return &s, nil
}

// UpsertSettings creates or replaces a user's reminder settings.
func (db *DB) UpsertSettings(ctx context.Context, s *model.ReminderSettings) error {
	channels := make([]string, len(s.Channels))
	for i, ch := range s.Channels {
		channels[i] = string(ch)
	}

	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO reminder_settings (
			user_id, enabled, active_start, active_end, quiet_start, quiet_end,
			interval_minutes, smart_mode, weekend_enabled, channels, intensity,
			daily_goal_ml, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			enabled = excluded.enabled,
			active_start = excluded.active_start,
			active_end = excluded.active_end,
			quiet_start = excluded.quiet_start,
			quiet_end = excluded.quiet_end,
			interval_minutes = excluded.interval_minutes,
			smart_mode = excluded.smart_mode,
			weekend_enabled = excluded.weekend_enabled,
			channels = excluded.channels,
			intensity = excluded.intensity,
			daily_goal_ml = excluded.daily_goal_ml,
			updated_at = excluded.updated_at`,
		s.UserID, s.Enabled,
		s.ActiveWindow.Start.String(), s.ActiveWindow.End.String(),
		s.QuietWindow.Start.String(), s.QuietWindow.End.String(),
		s.IntervalMinutes, s.SmartMode, s.WeekendEnabled,
		strings.Join(channels, ","), string(s.Intensity),
		s.DailyGoalML, now, now)
	return err
}
