package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"sitewatch/internal/models"
)

// CreateAlert inserts a new alert record, generating an id if missing. Alerts
// are created active; the operator workflow owns them afterwards.
func (d *DB) CreateAlert(ctx context.Context, a models.Alert) (models.Alert, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = models.AlertStatusActive
	}

	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return models.Alert{}, fmt.Errorf("failed to encode alert metadata: %w", err)
	}

	query := `
	INSERT INTO alerts (
		id, title, severity, type, zone_id, equipment_id, status, acknowledged, metadata, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	RETURNING created_at, updated_at`

	err = d.pool.QueryRow(ctx, query,
		a.ID,
		a.Title,
		a.Severity,
		a.Type,
		a.ZoneID,
		a.EquipmentID,
		a.Status,
		a.Acknowledged,
		metaJSON,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return models.Alert{}, fmt.Errorf("failed to create alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts newest first with pagination and a total count.
func (d *DB) ListAlerts(ctx context.Context, limit, offset int) ([]models.Alert, int, error) {
	var total int
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := `
	SELECT id, title, severity, type, zone_id, equipment_id, status, acknowledged, metadata, created_at, updated_at
	FROM alerts
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2`

	rows, err := d.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var metaJSON []byte
		err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.Severity,
			&a.Type,
			&a.ZoneID,
			&a.EquipmentID,
			&a.Status,
			&a.Acknowledged,
			&metaJSON,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &a.Metadata)
		}
		alerts = append(alerts, a)
	}
	return alerts, total, rows.Err()
}
