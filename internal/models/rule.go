package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity grades how serious a rule's alerts and notifications are.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ValidSeverities lists the accepted severity grades.
var ValidSeverities = map[Severity]bool{
	SeverityLow:      true,
	SeverityMedium:   true,
	SeverityHigh:     true,
	SeverityCritical: true,
}

// Rule pairs a condition tree with the action to run when it matches. Rules
// are owned by the rule store; the engine only works on immutable snapshots
// loaded per evaluation pass.
type Rule struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Condition   Condition  `json:"condition"`
	Severity    Severity   `json:"severity"`
	Action      ActionSpec `json:"action"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks a rule before it is created or updated in the store.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule is missing a name")
	}
	if !ValidSeverities[r.Severity] {
		return fmt.Errorf("unknown rule severity %q", r.Severity)
	}
	if r.Condition == nil {
		return fmt.Errorf("rule %q has no condition", r.Name)
	}
	if err := r.Condition.Validate(); err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	if r.Action == nil {
		return fmt.Errorf("rule %q has no action", r.Name)
	}
	if err := r.Action.Validate(); err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	return nil
}

// UnmarshalJSON decodes the condition and action through their tagged-union
// decoders; the rest of the fields unmarshal as usual.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type alias Rule
	aux := &struct {
		Condition json.RawMessage `json:"condition"`
		Action    json.RawMessage `json:"action"`
		*alias
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if len(aux.Condition) > 0 && string(aux.Condition) != "null" {
		cond, err := DecodeCondition(aux.Condition)
		if err != nil {
			return err
		}
		r.Condition = cond
	}
	if len(aux.Action) > 0 && string(aux.Action) != "null" {
		action, err := DecodeActionSpec(aux.Action)
		if err != nil {
			return err
		}
		r.Action = action
	}
	return nil
}
