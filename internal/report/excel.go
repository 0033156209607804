// Package report builds reminder-effectiveness exports for operators.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"hydromate/internal/model"
)

// StatisticsSource supplies per-user effectiveness statistics.
type StatisticsSource interface {
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error)
	GetStatistics(ctx context.Context, userID int64, periodDays int) (model.ReminderStatistics, error)
}

// Effectiveness writes a reminder-effectiveness workbook covering the
// trailing period to w. One row per user with reminder activity.
func Effectiveness(ctx context.Context, src StatisticsSource, periodDays int, w io.Writer) error {
	since := time.Now().AddDate(0, 0, -periodDays)
	userIDs, err := src.ListActiveUserIDs(ctx, since)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Effectiveness"
	f.SetSheetName("Sheet1", sheet)

	columns := []string{
		"User ID", "Total", "Scheduled", "Sent", "Failed", "Responded",
		"Response Rate", "Success Rate", "Avg Response Delay (min)", "Intake via Reminders (ml)",
	}
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for i, userID := range userIDs {
		stats, err := src.GetStatistics(ctx, userID, periodDays)
		if err != nil {
			return fmt.Errorf("statistics for user %d: %w", userID, err)
		}

		values := []any{
			userID, stats.Total, stats.Scheduled, stats.Sent, stats.Failed, stats.Responded,
			stats.ResponseRate, stats.SuccessRate, stats.AvgResponseDelayMins, stats.AmountViaRemindersML,
		}
		for j, val := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
