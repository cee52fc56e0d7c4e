package models

import "time"

// Sensor is a physical sensor's latest reading and threshold. Alert is a
// derived field: it must equal value > threshold immediately after any value
// or threshold mutation.
type Sensor struct {
	ID          string    `json:"id"`
	RackID      string    `json:"rack_id"`
	Type        string    `json:"type"`
	Value       float64   `json:"value"`
	Threshold   float64   `json:"threshold"`
	Alert       bool      `json:"alert"`
	LastUpdated time.Time `json:"last_updated"`
}
