package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydromate/internal/lifecycle"
	"hydromate/internal/message"
	"hydromate/internal/model"
	"hydromate/internal/schedule"
	"hydromate/internal/service"
)

// fakeBackend backs a real service with in-memory state for handler tests.
type fakeBackend struct {
	mu        sync.Mutex
	settings  map[int64]*model.ReminderSettings
	reminders map[int64]*model.ReminderLog
	nextID    int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		settings:  make(map[int64]*model.ReminderSettings),
		reminders: make(map[int64]*model.ReminderLog),
		nextID:    1,
	}
}

func (f *fakeBackend) GetSettings(_ context.Context, userID int64) (*model.ReminderSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.settings[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return model.DefaultSettings(userID), nil
}

func (f *fakeBackend) UpsertSettings(_ context.Context, s *model.ReminderSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.settings[s.UserID] = &cp
	return nil
}

func (f *fakeBackend) InsertIntake(context.Context, int64, float64, time.Time) error {
	return nil
}

func (f *fakeBackend) RecentSamples(context.Context, int64, int) ([]model.ConsumptionSample, error) {
	return nil, nil
}

func (f *fakeBackend) TodayTotal(context.Context, int64, time.Time) (float64, error) {
	return 0, nil
}

func (f *fakeBackend) Insert(_ context.Context, r *model.ReminderLog) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	cp.ID = f.nextID
	f.nextID++
	f.reminders[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeBackend) GetByID(_ context.Context, id int64) (*model.ReminderLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeBackend) MarkSent(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok {
		return false, lifecycle.ErrNotFound
	}
	if r.Status != model.StatusScheduled {
		return false, nil
	}
	r.Status = model.StatusSent
	r.SentAt = &at
	return true, nil
}

func (f *fakeBackend) MarkFailed(_ context.Context, id int64, reason string, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok {
		return false, lifecycle.ErrNotFound
	}
	if r.Status != model.StatusScheduled && r.Status != model.StatusSent {
		return false, nil
	}
	r.Status = model.StatusFailed
	r.FailReason = reason
	return true, nil
}

func (f *fakeBackend) MarkResponded(_ context.Context, id int64, at time.Time, action model.ResponseAction, amountML float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok {
		return false, lifecycle.ErrNotFound
	}
	if r.Status != model.StatusSent {
		return false, nil
	}
	r.Status = model.StatusResponded
	r.RespondedAt = &at
	r.ResponseAction = action
	r.AmountLoggedML = amountML
	return true, nil
}

func (f *fakeBackend) ListByUserSince(context.Context, int64, time.Time) ([]model.ReminderLog, error) {
	return nil, nil
}

func (f *fakeBackend) ListScheduledByUser(_ context.Context, userID int64) ([]model.ReminderLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ReminderLog
	for _, r := range f.reminders {
		if r.UserID == userID && r.Status == model.StatusScheduled {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeBackend) ListActiveUserIDs(context.Context, time.Time) ([]int64, error) {
	return nil, nil
}

func newTestServer(backend *fakeBackend, now time.Time) *Server {
	logger := zerolog.Nop()
	engine := schedule.New(message.NewGenerator(rand.NewSource(1)), logger)
	lc := lifecycle.New(backend, logger).WithNow(func() time.Time { return now })
	clock := schedule.ClockFunc(func(int64) time.Time { return now })
	svc := service.New(backend, backend, backend, engine, lc, clock, nil, logger)
	return NewServer(":0", svc, logger)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(newFakeBackend(), time.Now())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestScheduleNextEndpoint(t *testing.T) {
	now := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	srv := newTestServer(newFakeBackend(), now)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/users/7/reminders/next", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	var rem model.ReminderLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rem))
	assert.Equal(t, int64(7), rem.UserID)
	assert.Equal(t, model.StatusScheduled, rem.Status)
}

func TestScheduleNextDisabledReturnsNoContent(t *testing.T) {
	now := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	backend := newFakeBackend()
	disabled := model.DefaultSettings(7)
	disabled.Enabled = false
	require.NoError(t, backend.UpsertSettings(context.Background(), disabled))
	srv := newTestServer(backend, now)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/users/7/reminders/next", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpdateSettingsValidationError(t *testing.T) {
	srv := newTestServer(newFakeBackend(), time.Now())

	body := bytes.NewBufferString(`{"interval_minutes": 10}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/users/7/settings", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSettingsUnknownField(t *testing.T) {
	srv := newTestServer(newFakeBackend(), time.Now())

	body := bytes.NewBufferString(`{"cadence": "hourly"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/users/7/settings", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResponseConflictBeforeDelivery(t *testing.T) {
	now := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	backend := newFakeBackend()
	srv := newTestServer(backend, now)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/users/7/reminders/next", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var rem model.ReminderLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rem))

	// Responding to a reminder that was never delivered is a state conflict.
	body := bytes.NewBufferString(`{"action": "dismiss"}`)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/reminders/%d/response", rem.ID), body))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReminderLifecycleOverHTTP(t *testing.T) {
	now := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	backend := newFakeBackend()
	srv := newTestServer(backend, now)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/users/7/reminders/next", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var rem model.ReminderLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rem))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/reminders/%d/delivered", rem.ID), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	body := bytes.NewBufferString(`{"action": "drink_logged", "amount_ml": 250}`)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/reminders/%d/response", rem.ID), body))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := backend.GetByID(context.Background(), rem.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResponded, stored.Status)
	assert.Equal(t, model.ActionDrinkLogged, stored.ResponseAction)
}

func TestReminderNotFound(t *testing.T) {
	srv := newTestServer(newFakeBackend(), time.Now())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reminders/999/delivered", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidUserID(t *testing.T) {
	srv := newTestServer(newFakeBackend(), time.Now())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/abc/settings", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatisticsBadDaysParam(t *testing.T) {
	srv := newTestServer(newFakeBackend(), time.Now())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/7/statistics?days=0", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
