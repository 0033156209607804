package store

import (
	"context"
	"time"

	"hydromate/internal/model"
)

// InsertIntake records a water intake for a user.
func (db *DB) InsertIntake(ctx context.Context, userID int64, amountML float64, at time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO water_intakes (user_id, amount_ml, taken_at)
		VALUES (?, ?, ?)`,
		userID, amountML, at)
	return err
}

// RecentSamples returns the user's intakes over the trailing days as
// consumption samples for the pattern analyzer.
func (db *DB) RecentSamples(ctx context.Context, userID int64, days int) ([]model.ConsumptionSample, error) {
	since := time.Now().AddDate(0, 0, -days)

	rows, err := db.QueryContext(ctx, `
		SELECT amount_ml, taken_at FROM water_intakes
		WHERE user_id = ? AND taken_at >= ?
		ORDER BY taken_at ASC`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []model.ConsumptionSample
	for rows.Next() {
		var s model.ConsumptionSample
		if err := rows.Scan(&s.AmountML, &s.Timestamp); err != nil {
			return nil, err
		}
		s.Hour = s.Timestamp.Hour()
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// TodayTotal sums the user's intake for the calendar day containing now.
func (db *DB) TodayTotal(ctx context.Context, userID int64, now time.Time) (float64, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var total float64
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_ml), 0) FROM water_intakes
		WHERE user_id = ? AND taken_at >= ? AND taken_at < ?`,
		userID, dayStart, dayEnd).Scan(&total)
	return total, err
}
