package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"sitewatch/internal/models"
)

// CreateNotification inserts a pending notification record.
func (d *DB) CreateNotification(ctx context.Context, n models.NotificationRecord) (models.NotificationRecord, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Status == "" {
		n.Status = models.NotificationPending
	}

	query := `
	INSERT INTO notifications (
		id, rule_id, channel, recipient, subject, body, status, last_error, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	RETURNING created_at`

	err := d.pool.QueryRow(ctx, query,
		n.ID,
		n.RuleID,
		n.Channel,
		n.Recipient,
		n.Subject,
		n.Body,
		n.Status,
		n.LastError,
	).Scan(&n.CreatedAt)
	if err != nil {
		return models.NotificationRecord{}, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

// MarkNotificationSent flips a notification to sent and stamps sent_at.
func (d *DB) MarkNotificationSent(ctx context.Context, id string) error {
	query := `
	UPDATE notifications
	SET status = $1, sent_at = NOW()
	WHERE id = $2`

	tag, err := d.pool.Exec(ctx, query, models.NotificationSent, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no notification updated for id %s", id)
	}
	return nil
}

// MarkNotificationFailed records a delivery failure and its reason.
func (d *DB) MarkNotificationFailed(ctx context.Context, id, reason string) error {
	query := `
	UPDATE notifications
	SET status = $1, last_error = $2
	WHERE id = $3`

	tag, err := d.pool.Exec(ctx, query, models.NotificationFailed, reason, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no notification updated for id %s", id)
	}
	return nil
}

// ListNotifications returns notifications newest first with pagination.
func (d *DB) ListNotifications(ctx context.Context, limit, offset int) ([]models.NotificationRecord, int, error) {
	var total int
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := `
	SELECT id, rule_id, channel, recipient, subject, body, status, last_error, created_at, sent_at
	FROM notifications
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2`

	rows, err := d.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var list []models.NotificationRecord
	for rows.Next() {
		var n models.NotificationRecord
		err := rows.Scan(
			&n.ID,
			&n.RuleID,
			&n.Channel,
			&n.Recipient,
			&n.Subject,
			&n.Body,
			&n.Status,
			&n.LastError,
			&n.CreatedAt,
			&n.SentAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, n)
	}
	return list, total, rows.Err()
}
