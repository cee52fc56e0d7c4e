package models

import "time"

// Event is the ephemeral record a producer hands to the engine for one
// evaluation pass: a field→value mapping plus source metadata. RuleID is
// filled in after a rule matches, before dispatch. Events are never persisted
// by the engine.
type Event struct {
	Source    string         `json:"source"`
	RuleID    string         `json:"rule_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
}

// Field looks up a data field by name.
func (e Event) Field(name string) (any, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// WithRule returns a copy of the event tagged with the matched rule and the
// producing source, for handing to the dispatcher.
func (e Event) WithRule(ruleID, source string) Event {
	tagged := e
	tagged.RuleID = ruleID
	tagged.Source = source
	return tagged
}
