package models

import (
	"encoding/json"
	"fmt"
)

// Operator is a comparison applied by a Leaf condition.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
	OpIn       Operator = "in"
)

// ValidOperators lists every comparison operator the evaluator understands.
var ValidOperators = map[Operator]bool{
	OpEq:       true,
	OpNeq:      true,
	OpGt:       true,
	OpGte:      true,
	OpLt:       true,
	OpLte:      true,
	OpContains: true,
	OpIn:       true,
}

// Condition is one node of a rule's boolean expression tree: a Leaf
// comparison, or an And/Or group of sub-conditions. Trees are finite and
// acyclic; they are rebuilt from stored JSON on every rule load.
type Condition interface {
	isCondition()
	Validate() error
}

// Leaf compares a single event field against a fixed value.
type Leaf struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// And holds when every sub-condition holds. An empty group is vacuously true;
// Validate rejects it so it never reaches storage.
type And struct {
	Conditions []Condition
}

// Or holds when at least one sub-condition holds. An empty group is vacuously
// false; Validate rejects it so it never reaches storage.
type Or struct {
	Conditions []Condition
}

func (Leaf) isCondition() {}
func (And) isCondition()  {}
func (Or) isCondition()   {}

func (l Leaf) Validate() error {
	if l.Field == "" {
		return fmt.Errorf("condition leaf is missing a field name")
	}
	if !ValidOperators[l.Operator] {
		return fmt.Errorf("unknown condition operator %q", l.Operator)
	}
	return nil
}

func (a And) Validate() error {
	if len(a.Conditions) == 0 {
		return fmt.Errorf("and group has no sub-conditions")
	}
	for _, c := range a.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o Or) Validate() error {
	if len(o.Conditions) == 0 {
		return fmt.Errorf("or group has no sub-conditions")
	}
	for _, c := range o.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON encodes an And group as {"and": [...]}.
func (a And) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]Condition{"and": a.Conditions})
}

// MarshalJSON encodes an Or group as {"or": [...]}.
func (o Or) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]Condition{"or": o.Conditions})
}

// DecodeCondition parses the stored JSON form of a condition tree:
// {"and":[...]}, {"or":[...]}, or a leaf {"field":..,"operator":..,"value":..}.
// Mixed nodes (e.g. both "and" and "field") are rejected rather than guessed at.
func DecodeCondition(data []byte) (Condition, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("condition is not a JSON object: %w", err)
	}

	_, hasAnd := probe["and"]
	_, hasOr := probe["or"]
	_, hasField := probe["field"]

	switch {
	case hasAnd && !hasOr && !hasField:
		conds, err := decodeConditionList(probe["and"])
		if err != nil {
			return nil, err
		}
		return And{Conditions: conds}, nil
	case hasOr && !hasAnd && !hasField:
		conds, err := decodeConditionList(probe["or"])
		if err != nil {
			return nil, err
		}
		return Or{Conditions: conds}, nil
	case hasField && !hasAnd && !hasOr:
		var l Leaf
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("malformed condition leaf: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("malformed condition node: expected exactly one of \"and\", \"or\", or \"field\"")
	}
}

func decodeConditionList(data json.RawMessage) ([]Condition, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("condition group is not an array: %w", err)
	}
	conds := make([]Condition, 0, len(raw))
	for _, r := range raw {
		c, err := DecodeCondition(r)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}
