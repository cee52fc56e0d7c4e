package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sitewatch/internal/models"
)

func event(fields map[string]any) models.Event {
	return models.Event{Source: "test", Timestamp: time.Now(), Fields: fields}
}

func TestEvaluateLeafGreaterThan(t *testing.T) {
	cond := models.Leaf{Field: "temperature", Operator: models.OpGt, Value: 30}

	assert.True(t, Evaluate(cond, event(map[string]any{"temperature": 35})))
	assert.False(t, Evaluate(cond, event(map[string]any{"temperature": 25})))
	assert.False(t, Evaluate(cond, event(map[string]any{})))
}

func TestEvaluateLeafAbsentFieldIsFalse(t *testing.T) {
	for _, op := range []models.Operator{models.OpEq, models.OpNeq, models.OpGt, models.OpGte, models.OpLt, models.OpLte, models.OpContains, models.OpIn} {
		cond := models.Leaf{Field: "missing", Operator: op, Value: 1}
		assert.False(t, Evaluate(cond, event(map[string]any{"other": 1})), "operator %s", op)
	}
}

func TestEvaluateEqualityAcrossNumericTypes(t *testing.T) {
	// Rule values decoded from JSON are float64; event producers may hand
	// over native ints.
	cond := models.Leaf{Field: "count", Operator: models.OpEq, Value: float64(3)}
	assert.True(t, Evaluate(cond, event(map[string]any{"count": 3})))
	assert.True(t, Evaluate(cond, event(map[string]any{"count": int64(3)})))
	assert.False(t, Evaluate(cond, event(map[string]any{"count": 4})))

	neq := models.Leaf{Field: "status", Operator: models.OpNeq, Value: "open"}
	assert.True(t, Evaluate(neq, event(map[string]any{"status": "closed"})))
	assert.False(t, Evaluate(neq, event(map[string]any{"status": "open"})))
}

func TestEvaluateComparisonFailsClosedOnNonNumeric(t *testing.T) {
	cond := models.Leaf{Field: "name", Operator: models.OpGt, Value: 10}
	assert.False(t, Evaluate(cond, event(map[string]any{"name": "rack-7"})))

	cond = models.Leaf{Field: "value", Operator: models.OpLte, Value: "ten"}
	assert.False(t, Evaluate(cond, event(map[string]any{"value": 5})))
}

func TestEvaluateContains(t *testing.T) {
	cond := models.Leaf{Field: "zone", Operator: models.OpContains, Value: "north"}
	assert.True(t, Evaluate(cond, event(map[string]any{"zone": "dc1-north-3"})))
	assert.False(t, Evaluate(cond, event(map[string]any{"zone": "dc1-south-3"})))

	// Non-string operands compare via their string form.
	numeric := models.Leaf{Field: "code", Operator: models.OpContains, Value: 40}
	assert.True(t, Evaluate(numeric, event(map[string]any{"code": 1403})))
}

func TestEvaluateIn(t *testing.T) {
	cond := models.Leaf{Field: "type", Operator: models.OpIn, Value: []any{"smoke", "fire"}}
	assert.True(t, Evaluate(cond, event(map[string]any{"type": "smoke"})))
	assert.False(t, Evaluate(cond, event(map[string]any{"type": "door"})))

	// Operand that is not a sequence fails closed.
	bad := models.Leaf{Field: "type", Operator: models.OpIn, Value: "smoke"}
	assert.False(t, Evaluate(bad, event(map[string]any{"type": "smoke"})))

	nums := models.Leaf{Field: "severity", Operator: models.OpIn, Value: []any{float64(3), float64(4)}}
	assert.True(t, Evaluate(nums, event(map[string]any{"severity": 3})))
}

func TestEvaluateUnknownOperatorIsFalse(t *testing.T) {
	cond := models.Leaf{Field: "temperature", Operator: "between", Value: 30}
	assert.False(t, Evaluate(cond, event(map[string]any{"temperature": 35})))
}

func TestEvaluateAndGroup(t *testing.T) {
	cond := models.And{Conditions: []models.Condition{
		models.Leaf{Field: "type", Operator: models.OpEq, Value: "smoke"},
		models.Leaf{Field: "value", Operator: models.OpGt, Value: 0},
	}}

	assert.True(t, Evaluate(cond, event(map[string]any{"type": "smoke", "value": 1})))
	assert.False(t, Evaluate(cond, event(map[string]any{"type": "smoke", "value": 0})))
	assert.False(t, Evaluate(cond, event(map[string]any{"type": "door", "value": 1})))
}

func TestEvaluateOrGroup(t *testing.T) {
	cond := models.Or{Conditions: []models.Condition{
		models.Leaf{Field: "smoke", Operator: models.OpEq, Value: true},
		models.Leaf{Field: "temperature", Operator: models.OpGt, Value: 60},
	}}

	assert.True(t, Evaluate(cond, event(map[string]any{"smoke": true, "temperature": 20})))
	assert.True(t, Evaluate(cond, event(map[string]any{"smoke": false, "temperature": 80})))
	assert.False(t, Evaluate(cond, event(map[string]any{"smoke": false, "temperature": 20})))
}

func TestEvaluateVacuousGroups(t *testing.T) {
	assert.True(t, Evaluate(models.And{}, event(map[string]any{"x": 1})))
	assert.False(t, Evaluate(models.Or{}, event(map[string]any{"x": 1})))
}

func TestEvaluateShortCircuits(t *testing.T) {
	// A nil sub-condition stands in for a node that must not decide the
	// outcome: the deciding earlier sibling settles the group first.
	and := models.And{Conditions: []models.Condition{
		models.Leaf{Field: "temperature", Operator: models.OpGt, Value: 100},
		nil,
	}}
	assert.False(t, Evaluate(and, event(map[string]any{"temperature": 20})))

	or := models.Or{Conditions: []models.Condition{
		models.Leaf{Field: "temperature", Operator: models.OpGt, Value: 10},
		nil,
	}}
	assert.True(t, Evaluate(or, event(map[string]any{"temperature": 20})))
}

func TestEvaluateNilAndMalformedNodesAreFalse(t *testing.T) {
	assert.False(t, Evaluate(nil, event(map[string]any{"x": 1})))
	assert.False(t, Evaluate(models.And{Conditions: []models.Condition{nil}}, event(map[string]any{"x": 1})))
}

func TestEvaluateIsIdempotent(t *testing.T) {
	cond := models.And{Conditions: []models.Condition{
		models.Leaf{Field: "type", Operator: models.OpEq, Value: "smoke"},
		models.Leaf{Field: "value", Operator: models.OpGt, Value: 0},
	}}
	ev := event(map[string]any{"type": "smoke", "value": 2})

	first := Evaluate(cond, ev)
	second := Evaluate(cond, ev)
	assert.Equal(t, first, second)
	assert.True(t, first)
}

func TestEvaluateNestedTree(t *testing.T) {
	// (type == "temperature" AND (value > 40 OR zone == "server-room"))
	cond := models.And{Conditions: []models.Condition{
		models.Leaf{Field: "type", Operator: models.OpEq, Value: "temperature"},
		models.Or{Conditions: []models.Condition{
			models.Leaf{Field: "value", Operator: models.OpGt, Value: 40},
			models.Leaf{Field: "zone", Operator: models.OpEq, Value: "server-room"},
		}},
	}}

	assert.True(t, Evaluate(cond, event(map[string]any{"type": "temperature", "value": 45, "zone": "lobby"})))
	assert.True(t, Evaluate(cond, event(map[string]any{"type": "temperature", "value": 20, "zone": "server-room"})))
	assert.False(t, Evaluate(cond, event(map[string]any{"type": "temperature", "value": 20, "zone": "lobby"})))
	assert.False(t, Evaluate(cond, event(map[string]any{"type": "humidity", "value": 45, "zone": "server-room"})))
}
