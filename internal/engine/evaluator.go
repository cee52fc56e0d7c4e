package engine

import (
	"fmt"
	"reflect"
	"strings"

	"sitewatch/internal/models"
)

// Evaluate reports whether cond holds for the event. It is pure and total:
// absent fields, type mismatches, unknown operators, and nil or unrecognized
// nodes all evaluate to false rather than erroring. And/Or groups
// short-circuit left to right; an empty And is vacuously true, an empty Or
// vacuously false.
func Evaluate(cond models.Condition, ev models.Event) bool {
	switch c := cond.(type) {
	case models.Leaf:
		return evalLeaf(c, ev)
	case models.And:
		for _, sub := range c.Conditions {
			if !Evaluate(sub, ev) {
				return false
			}
		}
		return true
	case models.Or:
		for _, sub := range c.Conditions {
			if Evaluate(sub, ev) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalLeaf(l models.Leaf, ev models.Event) bool {
	v, ok := ev.Field(l.Field)
	if !ok {
		return false
	}

	switch l.Operator {
	case models.OpEq:
		return looseEqual(v, l.Value)
	case models.OpNeq:
		return !looseEqual(v, l.Value)
	case models.OpGt, models.OpGte, models.OpLt, models.OpLte:
		a, aok := toFloat(v)
		b, bok := toFloat(l.Value)
		if !aok || !bok {
			return false
		}
		switch l.Operator {
		case models.OpGt:
			return a > b
		case models.OpGte:
			return a >= b
		case models.OpLt:
			return a < b
		default:
			return a <= b
		}
	case models.OpContains:
		return strings.Contains(stringify(v), stringify(l.Value))
	case models.OpIn:
		return isMember(v, l.Value)
	default:
		return false
	}
}

// looseEqual compares structurally, treating all numeric types as one domain
// so that an int event value matches a float64 decoded from rule JSON.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// isMember reports whether v appears in the operand, which must be a sequence.
func isMember(v, operand any) bool {
	rv := reflect.ValueOf(operand)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if looseEqual(v, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}
