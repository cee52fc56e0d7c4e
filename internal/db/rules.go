package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sitewatch/internal/models"
)

// CreateRule validates and inserts a new rule, generating an id if missing.
func (d *DB) CreateRule(ctx context.Context, r models.Rule) (models.Rule, error) {
	if err := r.Validate(); err != nil {
		return models.Rule{}, fmt.Errorf("invalid rule: %w", err)
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	condJSON, err := json.Marshal(r.Condition)
	if err != nil {
		return models.Rule{}, fmt.Errorf("failed to encode condition: %w", err)
	}
	actionJSON, err := json.Marshal(r.Action)
	if err != nil {
		return models.Rule{}, fmt.Errorf("failed to encode action: %w", err)
	}

	query := `
	INSERT INTO rules (
		id, name, description, condition, action, severity, is_active, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	RETURNING created_at, updated_at`

	err = d.pool.QueryRow(ctx, query,
		r.ID,
		r.Name,
		r.Description,
		condJSON,
		actionJSON,
		r.Severity,
		r.IsActive,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return models.Rule{}, fmt.Errorf("failed to create rule: %w", err)
	}
	return r, nil
}

// GetRule retrieves one rule by id; returns models.ErrRuleNotFound when no
// such row exists.
func (d *DB) GetRule(ctx context.Context, id string) (models.Rule, error) {
	query := `
	SELECT id, name, description, condition, action, severity, is_active, created_at, updated_at
	FROM rules
	WHERE id = $1`

	r, err := scanRule(d.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Rule{}, fmt.Errorf("rule %s: %w", id, models.ErrRuleNotFound)
		}
		return models.Rule{}, fmt.Errorf("failed to get rule %s: %w", id, err)
	}
	return r, nil
}

// ListActiveRules returns every active rule ordered by creation time
// descending. Rows whose stored condition or action no longer decodes are
// returned with that part nil so the engine can fail closed and still
// enumerate them in its report.
func (d *DB) ListActiveRules(ctx context.Context) ([]models.Rule, error) {
	query := `
	SELECT id, name, description, condition, action, severity, is_active, created_at, updated_at
	FROM rules
	WHERE is_active = TRUE
	ORDER BY created_at DESC`

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return rules, nil
}

// ListRules returns all rules with pagination, newest first.
func (d *DB) ListRules(ctx context.Context, limit, offset int) ([]models.Rule, int, error) {
	var total int
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rules`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rules: %w", err)
	}

	query := `
	SELECT id, name, description, condition, action, severity, is_active, created_at, updated_at
	FROM rules
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2`

	rows, err := d.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, total, rows.Err()
}

// UpdateRule replaces an existing rule's definition.
func (d *DB) UpdateRule(ctx context.Context, r models.Rule) error {
	if r.ID == "" {
		return fmt.Errorf("invalid rule ID")
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}

	condJSON, err := json.Marshal(r.Condition)
	if err != nil {
		return fmt.Errorf("failed to encode condition: %w", err)
	}
	actionJSON, err := json.Marshal(r.Action)
	if err != nil {
		return fmt.Errorf("failed to encode action: %w", err)
	}

	query := `
	UPDATE rules
	SET name = $1,
	    description = $2,
	    condition = $3,
	    action = $4,
	    severity = $5,
	    is_active = $6,
	    updated_at = NOW()
	WHERE id = $7`

	tag, err := d.pool.Exec(ctx, query,
		r.Name, r.Description, condJSON, actionJSON, r.Severity, r.IsActive, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", r.ID, models.ErrRuleNotFound)
	}
	return nil
}

// DeleteRule removes a rule permanently.
func (d *DB) DeleteRule(ctx context.Context, id string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", id, models.ErrRuleNotFound)
	}
	return nil
}

func scanRule(row pgx.Row) (models.Rule, error) {
	var r models.Rule
	var condJSON, actionJSON []byte

	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Description,
		&condJSON,
		&actionJSON,
		&r.Severity,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return models.Rule{}, err
	}

	// A decode failure leaves the part nil; the engine treats that as a
	// malformed rule rather than dropping it from the pass.
	if cond, err := models.DecodeCondition(condJSON); err == nil {
		r.Condition = cond
	}
	if action, err := models.DecodeActionSpec(actionJSON); err == nil {
		r.Action = action
	}
	return r, nil
}
