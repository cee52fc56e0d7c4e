package models

import "errors"

// Sentinel errors shared between the stores and their callers.
var (
	ErrRuleNotFound   = errors.New("rule not found")
	ErrSensorNotFound = errors.New("sensor not found")
)
