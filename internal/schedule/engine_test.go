package schedule

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydromate/internal/message"
	"hydromate/internal/model"
	"hydromate/internal/timewindow"
)

func newTestEngine() *Engine {
	return New(message.NewGenerator(rand.NewSource(1)), zerolog.Nop())
}

func baseSettings() *model.ReminderSettings {
	s := model.DefaultSettings(1)
	s.IntervalMinutes = 120
	return s
}

// weekday returns a Monday-based instant at the given clock time.
func weekday(hhmm string) time.Time {
	tod := timewindow.MustParse(hhmm)
	// 2025-03-10 is a Monday.
	return time.Date(2025, 3, 10, tod.Hour, tod.Minute, 0, 0, time.UTC)
}

func TestComputeDisabled(t *testing.T) {
	e := newTestEngine()
	s := baseSettings()
	s.Enabled = false

	res, err := e.Compute(s, nil, 0.5, weekday("12:00"))
	require.NoError(t, err)
	assert.Nil(t, res, "disabled settings yield no reminder, not an error")
}

func TestComputeFixedInterval(t *testing.T) {
	e := newTestEngine()
	s := baseSettings()

	res, err := e.Compute(s, nil, 0.5, weekday("10:00"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, weekday("12:00"), res.At)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, model.ChannelPush, res.Channel)
}

func TestComputeEveningPushedPastQuietHours(t *testing.T) {
	// active 08:00-22:00, quiet 22:00-08:00, interval 120, fixed mode,
	// weekends on, now 21:30 on a Monday: the raw candidate 23:30 falls in
	// the quiet window and lands on 08:00 the next day.
	e := newTestEngine()
	s := baseSettings()

	res, err := e.Compute(s, nil, 0.5, weekday("21:30"))
	require.NoError(t, err)
	require.NotNil(t, res)

	want := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, want, res.At)
}

func TestComputeNowInsideQuietWindow(t *testing.T) {
	e := newTestEngine()
	s := baseSettings()

	// 23:00 is inside the wrapping quiet window; the base advances to the
	// quiet exit at 08:00 next day, then the interval applies.
	res, err := e.Compute(s, nil, 0.5, weekday("23:00"))
	require.NoError(t, err)
	require.NotNil(t, res)

	want := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, want, res.At)
}

func TestComputeMiddayQuietWindow(t *testing.T) {
	e := newTestEngine()
	s := baseSettings()
	s.QuietWindow = timewindow.Window{Start: timewindow.MustParse("12:00"), End: timewindow.MustParse("14:00")}
	s.IntervalMinutes = 180

	// Candidate 13:00 sits strictly inside the midday quiet window; the
	// engine advances to the 14:00 exit and reselects: 17:00.
	res, err := e.Compute(s, nil, 0.5, weekday("10:00"))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, weekday("17:00"), res.At)
}

func TestComputeSmartMode(t *testing.T) {
	e := newTestEngine()
	s := baseSettings()
	s.SmartMode = true

	var samples []model.ConsumptionSample
	for i := 0; i < 5; i++ {
		samples = append(samples, model.ConsumptionSample{Hour: 14, AmountML: 250})
	}
	for i := 0; i < 4; i++ {
		samples = append(samples, model.ConsumptionSample{Hour: 19, AmountML: 250})
	}

	// Most frequent hour is 14, but with now at 16:00 the next qualifying
	// pattern hour is 19.
	res, err := e.Compute(s, samples, 0.5, weekday("16:00"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, weekday("19:00"), res.At)
}

func TestComputeSmartModeFallsBackToInterval(t *testing.T) {
	e := newTestEngine()
	s := baseSettings()
	s.SmartMode = true

	var samples []model.ConsumptionSample
	for i := 0; i < 5; i++ {
		samples = append(samples, model.ConsumptionSample{Hour: 9, AmountML: 250})
	}

	// The only pattern hour is behind us; interval stepping takes over.
	res, err := e.Compute(s, samples, 0.5, weekday("15:00"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, weekday("17:00"), res.At)
}

func TestComputeWeekendDisabled(t *testing.T) {
	e := newTestEngine()
	s := baseSettings()
	s.WeekendEnabled = false

	// Friday 2025-03-14 at 21:30: candidate rolls to Saturday morning, then
	// the weekend rule pushes it to Monday at the active window start.
	friday := time.Date(2025, 3, 14, 21, 30, 0, 0, time.UTC)
	res, err := e.Compute(s, nil, 0.5, friday)
	require.NoError(t, err)
	require.NotNil(t, res)

	monday := time.Date(2025, 3, 17, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, res.At)
	assert.Equal(t, time.Monday, res.At.Weekday())
}

func TestComputeWeekendEnabledFiresOnSaturday(t *testing.T) {
	e := newTestEngine()
	s := baseSettings()

	friday := time.Date(2025, 3, 14, 21, 30, 0, 0, time.UTC)
	res, err := e.Compute(s, nil, 0.5, friday)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, time.Saturday, res.At.Weekday())
}

func TestComputeResultAlwaysInsideActiveWindow(t *testing.T) {
	e := newTestEngine()
	s := baseSettings()

	for hour := 0; hour < 24; hour++ {
		for _, minute := range []int{0, 30} {
			now := time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
			res, err := e.Compute(s, nil, 0.5, now)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.True(t, s.ActiveWindow.Contains(timewindow.FromTime(res.At)),
				"now %02d:%02d produced %s", hour, minute, res.At)
		}
	}
}

func TestComputeRejectsOutOfRangeInterval(t *testing.T) {
	e := newTestEngine()

	s := baseSettings()
	s.IntervalMinutes = 10
	_, err := e.Compute(s, nil, 0.5, weekday("10:00"))
	assert.ErrorIs(t, err, ErrInternalInconsistency)

	s = baseSettings()
	s.IntervalMinutes = 600
	_, err = e.Compute(s, nil, 0.5, weekday("10:00"))
	assert.ErrorIs(t, err, ErrInternalInconsistency)
}

func TestComputeRejectsMissingChannels(t *testing.T) {
	e := newTestEngine()
	s := baseSettings()
	s.Channels = nil

	_, err := e.Compute(s, nil, 0.5, weekday("10:00"))
	assert.ErrorIs(t, err, ErrInternalInconsistency)
}

func TestClockFunc(t *testing.T) {
	fixed := weekday("09:15")
	clock := ClockFunc(func(int64) time.Time { return fixed })
	assert.Equal(t, fixed, clock.Now(7))
}
