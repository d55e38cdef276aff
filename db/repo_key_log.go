package db

import (
	"context"
	"fmt"
	"time"

	"keynow/models"
)

// Audit log. Append-only: nothing here updates a row, and the only delete
// path is PurgeLogsBefore.

func (r *Repo) LogKeyAction(ctx context.Context, action, keyName, userName string, at time.Time) error {
	row := &models.KeyLog{
		Action:     action,
		KeyName:    keyName,
		UserName:   userName,
		OccurredAt: at,
	}
	if err := r.DB.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert key log: %w", err)
	}
	return nil
}

func (r *Repo) ListLogsSince(ctx context.Context, since time.Time) ([]models.KeyLog, error) {
	var logs []models.KeyLog
	err := r.DB.WithContext(ctx).
		Where("occurred_at >= ?", since).
		Order("occurred_at DESC").
		Order("id DESC").
		Find(&logs).Error
	return logs, err
}

func (r *Repo) PurgeLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&models.KeyLog{})
	return res.RowsAffected, res.Error
}

// HasNotifyOn reports whether a 通知 entry for this key label and display
// name already exists on the calendar day containing `day` (local time).
// This is the durable dedup index for the overdue scanner.
func (r *Repo) HasNotifyOn(ctx context.Context, keyName, userName string, day time.Time) (bool, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var n int64
	err := r.DB.WithContext(ctx).Model(&models.KeyLog{}).
		Where("action = ? AND key_name = ? AND user_name = ?", models.ActionNotify, keyName, userName).
		Where("occurred_at >= ? AND occurred_at < ?", start, end).
		Count(&n).Error
	return n > 0, err
}
