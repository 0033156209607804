// Package schedule computes the next reminder instant for a user from their
// settings, recent consumption history, and the current user-local time.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hydromate/internal/message"
	"hydromate/internal/model"
	"hydromate/internal/pattern"
	"hydromate/internal/timewindow"
)

// ErrInternalInconsistency marks settings outside the documented range
// reaching the engine. The settings validator rejects those at the boundary,
// so seeing this error means a collaborator broke its contract. The
// computation aborts with no partial writes and is not retried.
var ErrInternalInconsistency = errors.New("internal consistency violation")

// Clock supplies the current user-local time. The engine never reads system
// time directly, which keeps time-based behavior deterministic under test.
type Clock interface {
	Now(userID int64) time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func(userID int64) time.Time

func (f ClockFunc) Now(userID int64) time.Time { return f(userID) }

// SystemClock returns user-local time in the given location.
func SystemClock(loc *time.Location) Clock {
	return ClockFunc(func(int64) time.Time { return time.Now().In(loc) })
}

// Result is a computed reminder, ready to be handed to the lifecycle.
type Result struct {
	At      time.Time
	Message string
	Channel model.Channel
}

// Engine orchestrates the time-window algebra, the pattern analyzer, and the
// message generator into a single scheduling computation. It is stateless:
// every call works from caller-supplied inputs.
type Engine struct {
	messages *message.Generator
	logger   zerolog.Logger
}

// New creates a scheduling engine.
func New(messages *message.Generator, logger zerolog.Logger) *Engine {
	return &Engine{
		messages: messages,
		logger:   logger.With().Str("component", "schedule").Logger(),
	}
}

// Compute determines the next reminder for the user. A nil Result with nil
// error means reminders are disabled, which is a normal outcome rather than
// an error. The settings are assumed validated; out-of-range values abort
// with ErrInternalInconsistency.
func (e *Engine) Compute(settings *model.ReminderSettings, samples []model.ConsumptionSample, progressRatio float64, now time.Time) (*Result, error) {
	if err := e.checkSettings(settings); err != nil {
		return nil, err
	}

	if !settings.Enabled {
		return nil, nil
	}

	at := e.next(settings, samples, now)

	return &Result{
		At:      at,
		Message: e.messages.Generate(progressRatio),
		Channel: settings.Channels[0],
	}, nil
}

// next walks the candidate through quiet-hour advancement, candidate
// selection, active-window clamping, and the weekend rule.
func (e *Engine) next(settings *model.ReminderSettings, samples []model.ConsumptionSample, now time.Time) time.Time {
	// Quiet-hour advancement moves the base to the window exit; candidate
	// selection then applies the interval (or smart hour) from there.
	base := now
	if settings.QuietWindow.Contains(timewindow.FromTime(base)) {
		base = quietExit(settings.QuietWindow, base)
	}

	candidate := e.clampToActive(settings, e.selectCandidate(settings, samples, base))

	// The clamped candidate can still land strictly inside a quiet window
	// that sits in the middle of the active hours. Advance past it and
	// re-run candidate selection once; windows are validated at settings
	// update time to never reject all candidates, so one step suffices.
	if insideQuiet(settings.QuietWindow, candidate) {
		base = quietExit(settings.QuietWindow, candidate)
		candidate = e.clampToActive(settings, e.selectCandidate(settings, samples, base))
	}

	if !settings.WeekendEnabled {
		moved := false
		for candidate.Weekday() == time.Saturday || candidate.Weekday() == time.Sunday {
			candidate = candidate.AddDate(0, 0, 1)
			moved = true
		}
		if moved {
			candidate = settings.ActiveWindow.Start.On(candidate)
		}
	}

	return candidate
}

// selectCandidate picks the raw next reminder instant. In smart mode it takes
// the first pattern suggestion strictly after the base hour that falls inside
// the active window; otherwise, or when no suggestion qualifies, it steps
// forward by the configured interval.
func (e *Engine) selectCandidate(settings *model.ReminderSettings, samples []model.ConsumptionSample, base time.Time) time.Time {
	if settings.SmartMode {
		suggestions := pattern.Analyze(samples, settings.ActiveWindow, settings.IntervalMinutes)
		for _, s := range suggestions {
			if s.Time.Hour > base.Hour() && settings.ActiveWindow.Contains(s.Time) {
				return s.Time.On(base)
			}
		}
	}
	return base.Add(time.Duration(settings.IntervalMinutes) * time.Minute)
}

// clampToActive shifts the candidate into the active window, rolling the date
// forward when the clamp wraps past the window end.
func (e *Engine) clampToActive(settings *model.ReminderSettings, candidate time.Time) time.Time {
	clamped, rolled := settings.ActiveWindow.ClampForward(timewindow.FromTime(candidate))
	candidate = clamped.On(candidate)
	if rolled {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func (e *Engine) checkSettings(s *model.ReminderSettings) error {
	if s.IntervalMinutes < model.MinIntervalMinutes || s.IntervalMinutes > model.MaxIntervalMinutes {
		err := fmt.Errorf("%w: interval %d minutes", ErrInternalInconsistency, s.IntervalMinutes)
		e.logger.Error().Err(err).Int64("user_id", s.UserID).Msg("unvalidated settings reached engine")
		return err
	}
	if len(s.Channels) == 0 {
		err := fmt.Errorf("%w: no channels", ErrInternalInconsistency)
		e.logger.Error().Err(err).Int64("user_id", s.UserID).Msg("unvalidated settings reached engine")
		return err
	}
	return nil
}

// insideQuiet reports whether t is strictly inside the quiet window. The
// window end itself is the resumption point and is allowed to fire.
func insideQuiet(quiet timewindow.Window, t time.Time) bool {
	tod := timewindow.FromTime(t)
	return quiet.Contains(tod) && tod != quiet.End
}

// quietExit returns the instant at which the quiet window containing t ends.
func quietExit(quiet timewindow.Window, t time.Time) time.Time {
	end := quiet.End.On(t)
	if quiet.Wraps() && timewindow.FromTime(t).Minutes() >= quiet.Start.Minutes() {
		// In the pre-midnight half of a wrapping window: the exit is on the
		// following day.
		end = end.AddDate(0, 0, 1)
	}
	return end
}
