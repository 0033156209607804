package store

import (
	"context"
	"database/sql"
	"time"

	"hydromate/internal/lifecycle"
	"hydromate/internal/model"
)

// Insert creates a new reminder log row and returns its id.
func (db *DB) Insert(ctx context.Context, r *model.ReminderLog) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO reminder_logs (
			user_id, scheduled_at, status, channel, message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.ScheduledAt, string(r.Status), string(r.Channel), r.Message,
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetByID returns a reminder log row.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.ReminderLog, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, scheduled_at, sent_at, responded_at, status, channel,
		       message, response_action, amount_logged_ml, fail_reason,
		       created_at, updated_at
		FROM reminder_logs
		WHERE id = ? AND deleted = 0`, id)

	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, lifecycle.ErrNotFound
	}
	return r, err
}

// MarkSent transitions scheduled -> sent. The WHERE clause on the current
// status serializes racing callers: only the first transition succeeds.
func (db *DB) MarkSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE reminder_logs
		SET status = ?, sent_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.StatusSent), at, at, id, string(model.StatusScheduled))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkFailed transitions scheduled|sent -> failed.
func (db *DB) MarkFailed(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE reminder_logs
		SET status = ?, fail_reason = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(model.StatusFailed), reason, at, id,
		string(model.StatusScheduled), string(model.StatusSent))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkResponded transitions sent -> responded. Losers of a concurrent
// response race observe zero affected rows.
func (db *DB) MarkResponded(ctx context.Context, id int64, at time.Time, action model.ResponseAction, amountML float64) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE reminder_logs
		SET status = ?, responded_at = ?, response_action = ?, amount_logged_ml = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.StatusResponded), at, string(action), amountML, at, id,
		string(model.StatusSent))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListByUserSince returns a user's reminders scheduled at or after since.
func (db *DB) ListByUserSince(ctx context.Context, userID int64, since time.Time) ([]model.ReminderLog, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, scheduled_at, sent_at, responded_at, status, channel,
		       message, response_action, amount_logged_ml, fail_reason,
		       created_at, updated_at
		FROM reminder_logs
		WHERE user_id = ? AND scheduled_at >= ? AND deleted = 0
		ORDER BY scheduled_at DESC`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReminders(rows)
}

// ListDue returns scheduled reminders whose time has come, across all users.
func (db *DB) ListDue(ctx context.Context, before time.Time) ([]model.ReminderLog, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, scheduled_at, sent_at, responded_at, status, channel,
		       message, response_action, amount_logged_ml, fail_reason,
		       created_at, updated_at
		FROM reminder_logs
		WHERE status = ? AND scheduled_at <= ? AND deleted = 0
		ORDER BY scheduled_at ASC`, string(model.StatusScheduled), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReminders(rows)
}

// ListScheduledByUser returns a user's still-scheduled reminders. Used to
// supersede pending reminders when settings change.
func (db *DB) ListScheduledByUser(ctx context.Context, userID int64) ([]model.ReminderLog, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, scheduled_at, sent_at, responded_at, status, channel,
		       message, response_action, amount_logged_ml, fail_reason,
		       created_at, updated_at
		FROM reminder_logs
		WHERE user_id = ? AND status = ? AND deleted = 0`,
		userID, string(model.StatusScheduled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReminders(rows)
}

// ListActiveUserIDs returns the users with at least one reminder scheduled at
// or after since. Used by the effectiveness report.
func (db *DB) ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM reminder_logs
		WHERE scheduled_at >= ? AND deleted = 0
		ORDER BY user_id`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SoftDelete marks old terminal rows deleted for the retention policy.
func (db *DB) SoftDelete(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE reminder_logs
		SET deleted = 1, updated_at = ?
		WHERE scheduled_at < ? AND status IN (?, ?) AND deleted = 0`,
		time.Now(), before,
		string(model.StatusFailed), string(model.StatusResponded))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*model.ReminderLog, error) {
	var (
		r              model.ReminderLog
		sentAt         sql.NullTime
		respondedAt    sql.NullTime
		responseAction sql.NullString
		amount         sql.NullFloat64
		failReason     sql.NullString
	)
	err := row.Scan(&r.ID, &r.UserID, &r.ScheduledAt, &sentAt, &respondedAt,
		&r.Status, &r.Channel, &r.Message, &responseAction, &amount, &failReason,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if sentAt.Valid {
		t := sentAt.Time
		r.SentAt = &t
	}
	if respondedAt.Valid {
		t := respondedAt.Time
		r.RespondedAt = &t
	}
	if responseAction.Valid {
		r.ResponseAction = model.ResponseAction(responseAction.String)
	}
	if amount.Valid {
		r.AmountLoggedML = amount.Float64
	}
	if failReason.Valid {
		r.FailReason = failReason.String
	}
	return &r, nil
}

func collectReminders(rows *sql.Rows) ([]model.ReminderLog, error) {
	var out []model.ReminderLog
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
