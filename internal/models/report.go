package models

import "time"

// DispatchStatus is the outcome of one attempted action dispatch.
type DispatchStatus string

const (
	DispatchOK     DispatchStatus = "ok"
	DispatchFailed DispatchStatus = "failed"
)

// DispatchResult records one action's dispatch outcome for the report.
type DispatchResult struct {
	Action         string         `json:"action"`
	Channel        Channel        `json:"channel,omitempty"`
	Status         DispatchStatus `json:"status"`
	AlertID        string         `json:"alert_id,omitempty"`
	NotificationID string         `json:"notification_id,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// RuleOutcome is one rule's entry in an evaluation report. Error is set when
// the rule could not be evaluated (malformed condition) and the engine failed
// closed; Dispatches is populated only for matched rules.
type RuleOutcome struct {
	RuleID     string           `json:"rule_id"`
	RuleName   string           `json:"rule_name"`
	Matched    bool             `json:"matched"`
	Error      string           `json:"error,omitempty"`
	Dispatches []DispatchResult `json:"dispatches,omitempty"`
}

// EvaluationReport enumerates every active rule's outcome for one event, in
// rule evaluation order. Callers always receive a full report even under
// partial failure.
type EvaluationReport struct {
	Source      string        `json:"source"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
	Entries     []RuleOutcome `json:"entries"`
}

// MatchedCount reports how many rules matched the event.
func (r EvaluationReport) MatchedCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Matched {
			n++
		}
	}
	return n
}

// RuleTestResult is the dry-run outcome of Engine.TestRule: the actions that
// would have been dispatched, never executed.
type RuleTestResult struct {
	Triggered bool         `json:"triggered"`
	Actions   []ActionSpec `json:"actions"`
}
