package models

import "time"

// AlertStatus tracks where an alert sits in the operator workflow. The engine
// only ever creates alerts as active; acknowledge/resolve/escalate belong to
// the operator surface.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusEscalated    AlertStatus = "escalated"
)

// Alert is a persisted record of a triggered condition.
type Alert struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Severity     Severity       `json:"severity"`
	Type         string         `json:"type"`
	ZoneID       string         `json:"zone_id,omitempty"`
	EquipmentID  string         `json:"equipment_id,omitempty"`
	Status       AlertStatus    `json:"status"`
	Acknowledged bool           `json:"acknowledged"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
