package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sitewatch/internal/models"
)

const sensorColumns = `id, rack_id, type, value, threshold, alert, last_updated`

// CreateSensor inserts a sensor row. The caller-supplied alert flag is kept
// as-is on creation; every later value/threshold mutation recomputes it.
func (d *DB) CreateSensor(ctx context.Context, s models.Sensor) (models.Sensor, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	query := `
	INSERT INTO sensors (id, rack_id, type, value, threshold, alert, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	RETURNING last_updated`

	err := d.pool.QueryRow(ctx, query,
		s.ID, s.RackID, s.Type, s.Value, s.Threshold, s.Alert,
	).Scan(&s.LastUpdated)
	if err != nil {
		return models.Sensor{}, fmt.Errorf("failed to create sensor: %w", err)
	}
	return s, nil
}

// GetSensor retrieves one sensor by id.
func (d *DB) GetSensor(ctx context.Context, id string) (models.Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE id = $1`

	s, err := scanSensor(d.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Sensor{}, fmt.Errorf("sensor %s: %w", id, models.ErrSensorNotFound)
		}
		return models.Sensor{}, fmt.Errorf("failed to get sensor %s: %w", id, err)
	}
	return s, nil
}

// UpdateSensorValue stores a new reading and recomputes the alert flag in the
// same statement, so value, threshold, and alert can never be observed from a
// stale pairing. The row lock serializes concurrent value/threshold updates
// on the same sensor.
func (d *DB) UpdateSensorValue(ctx context.Context, id string, value float64) (models.Sensor, error) {
	query := `
	UPDATE sensors
	SET value = $2,
	    alert = $2 > threshold,
	    last_updated = NOW()
	WHERE id = $1
	RETURNING ` + sensorColumns

	s, err := scanSensor(d.pool.QueryRow(ctx, query, id, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Sensor{}, fmt.Errorf("sensor %s: %w", id, models.ErrSensorNotFound)
		}
		return models.Sensor{}, fmt.Errorf("failed to update sensor %s value: %w", id, err)
	}
	return s, nil
}

// UpdateSensorThreshold stores a new threshold and recomputes the alert flag
// atomically, mirroring UpdateSensorValue.
func (d *DB) UpdateSensorThreshold(ctx context.Context, id string, threshold float64) (models.Sensor, error) {
	query := `
	UPDATE sensors
	SET threshold = $2,
	    alert = value > $2,
	    last_updated = NOW()
	WHERE id = $1
	RETURNING ` + sensorColumns

	s, err := scanSensor(d.pool.QueryRow(ctx, query, id, threshold))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Sensor{}, fmt.Errorf("sensor %s: %w", id, models.ErrSensorNotFound)
		}
		return models.Sensor{}, fmt.Errorf("failed to update sensor %s threshold: %w", id, err)
	}
	return s, nil
}

func scanSensor(row pgx.Row) (models.Sensor, error) {
	var s models.Sensor
	err := row.Scan(
		&s.ID,
		&s.RackID,
		&s.Type,
		&s.Value,
		&s.Threshold,
		&s.Alert,
		&s.LastUpdated,
	)
	return s, err
}
