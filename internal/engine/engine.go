package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sitewatch/internal/logging"
	"sitewatch/internal/models"
)

// RuleStore supplies the rule snapshots an evaluation pass works on.
// ListActiveRules must return rules ordered by creation time descending;
// evaluation order is an observable contract, not an implementation detail.
type RuleStore interface {
	ListActiveRules(ctx context.Context) ([]models.Rule, error)
	GetRule(ctx context.Context, id string) (models.Rule, error)
}

// Engine evaluates every active rule against incoming events and hands
// matches to the dispatcher. Concurrent ProcessEvent calls are safe: the
// engine holds no mutable state beyond the stores, which own their own
// locking.
type Engine struct {
	rules      RuleStore
	dispatcher *Dispatcher
	logger     *logging.Logger
	gate       chan struct{} // bounds concurrent action dispatch per pass
}

// New builds an Engine. maxDispatch bounds how many rules' actions may be
// in flight at once so a surge of matches cannot fan out unbounded network
// calls.
func New(rules RuleStore, dispatcher *Dispatcher, logger *logging.Logger, maxDispatch int) *Engine {
	if maxDispatch <= 0 {
		maxDispatch = 8
	}
	return &Engine{
		rules:      rules,
		dispatcher: dispatcher,
		logger:     logger,
		gate:       make(chan struct{}, maxDispatch),
	}
}

// ProcessEvent evaluates every active rule against the event, dispatching the
// actions of those that match. The returned report enumerates every rule's
// outcome in evaluation order; per-rule evaluation and dispatch failures are
// captured there and never abort the batch. The only batch-level error is the
// rule list itself being unavailable.
func (e *Engine) ProcessEvent(ctx context.Context, ev models.Event, source string) (models.EvaluationReport, error) {
	rules, err := e.rules.ListActiveRules(ctx)
	if err != nil {
		return models.EvaluationReport{}, fmt.Errorf("fetch active rules: %w", err)
	}

	report := models.EvaluationReport{
		Source:      source,
		EvaluatedAt: time.Now(),
		Entries:     make([]models.RuleOutcome, len(rules)),
	}

	var wg sync.WaitGroup
	for i, rule := range rules {
		outcome := models.RuleOutcome{RuleID: rule.ID, RuleName: rule.Name}

		if rule.Condition == nil {
			// Load-time decode failures surface here; fail closed.
			e.logger.Warnf("Rule %s has a malformed or missing condition, treating as no match", rule.ID)
			outcome.Error = "malformed condition"
			report.Entries[i] = outcome
			continue
		}

		outcome.Matched = Evaluate(rule.Condition, ev)
		report.Entries[i] = outcome
		if !outcome.Matched {
			continue
		}

		tagged := ev.WithRule(rule.ID, source)
		wg.Add(1)
		go func(i int, rule models.Rule, tagged models.Event) {
			defer wg.Done()
			e.gate <- struct{}{}
			defer func() { <-e.gate }()
			report.Entries[i].Dispatches = e.dispatcher.Execute(ctx, rule.Action, rule, tagged)
		}(i, rule, tagged)
	}
	wg.Wait()

	return report, nil
}

// TestRule dry-runs one rule against a sample event: it reports whether the
// rule would trigger and which actions would run, without executing anything.
// Returns models.ErrRuleNotFound for an unknown id.
func (e *Engine) TestRule(ctx context.Context, ruleID string, sample models.Event) (models.RuleTestResult, error) {
	rule, err := e.rules.GetRule(ctx, ruleID)
	if err != nil {
		return models.RuleTestResult{}, err
	}

	result := models.RuleTestResult{}
	if rule.Condition == nil {
		return result, nil
	}
	result.Triggered = Evaluate(rule.Condition, sample)
	if result.Triggered && rule.Action != nil {
		result.Actions = flattenActions(rule.Action)
	}
	return result, nil
}

func flattenActions(spec models.ActionSpec) []models.ActionSpec {
	if compound, ok := spec.(models.CompoundAction); ok {
		flat := make([]models.ActionSpec, 0, len(compound.Actions))
		for _, sub := range compound.Actions {
			flat = append(flat, flattenActions(sub)...)
		}
		return flat
	}
	return []models.ActionSpec{spec}
}
