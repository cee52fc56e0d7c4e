package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"sitewatch/internal/logging"
	"sitewatch/internal/models"
)

// AlertStore persists alerts created by rule actions.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert models.Alert) (models.Alert, error)
}

// NotificationStore persists the delivery trail of channel notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n models.NotificationRecord) (models.NotificationRecord, error)
	MarkNotificationSent(ctx context.Context, id string) error
	MarkNotificationFailed(ctx context.Context, id, reason string) error
}

// Sender delivers a resolved message over one channel. Implementations must
// honor ctx cancellation; the dispatcher enforces a deadline on every call.
type Sender interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// Dispatcher executes a rule's configured action against a matched event.
// Failures are isolated per action: they are logged, recorded in the result,
// and never propagate to other actions or rules.
type Dispatcher struct {
	alerts        AlertStore
	notifications NotificationStore
	senders       map[models.Channel]Sender
	actionTimeout time.Duration
	logger        *logging.Logger
}

// NewDispatcher wires a Dispatcher from its store and sender collaborators.
func NewDispatcher(alerts AlertStore, notifications NotificationStore, senders map[models.Channel]Sender, actionTimeout time.Duration, logger *logging.Logger) *Dispatcher {
	if actionTimeout <= 0 {
		actionTimeout = 10 * time.Second
	}
	return &Dispatcher{
		alerts:        alerts,
		notifications: notifications,
		senders:       senders,
		actionTimeout: actionTimeout,
		logger:        logger,
	}
}

// Execute runs one action spec for a rule-tagged event and returns a result
// per attempted (sub-)action. Compound specs dispatch each sub-action
// independently; one failure does not prevent attempting the rest.
func (d *Dispatcher) Execute(ctx context.Context, spec models.ActionSpec, rule models.Rule, ev models.Event) []models.DispatchResult {
	switch a := spec.(type) {
	case models.CreateAlertAction:
		return []models.DispatchResult{d.createAlert(ctx, a, rule, ev)}
	case models.NotifyAction:
		return []models.DispatchResult{d.notify(ctx, a, rule, ev)}
	case models.CompoundAction:
		results := make([]models.DispatchResult, 0, len(a.Actions))
		for _, sub := range a.Actions {
			results = append(results, d.Execute(ctx, sub, rule, ev)...)
		}
		return results
	default:
		d.logger.Errorf("Rule %s has an unrecognized action, nothing dispatched", rule.ID)
		return []models.DispatchResult{{
			Action: "unknown",
			Status: models.DispatchFailed,
			Reason: "unknown action type",
		}}
	}
}

func (d *Dispatcher) createAlert(ctx context.Context, a models.CreateAlertAction, rule models.Rule, ev models.Event) models.DispatchResult {
	result := models.DispatchResult{Action: models.ActionKindCreateAlert}

	alert := models.Alert{
		Title:       resolveTemplate(a.Alert.Title, ev),
		Severity:    rule.Severity,
		Type:        a.Alert.Type,
		ZoneID:      a.Alert.ZoneID,
		EquipmentID: a.Alert.EquipmentID,
		Status:      models.AlertStatusActive,
		Metadata:    alertMetadata(a.Alert.Metadata, rule, ev),
	}

	callCtx, cancel := context.WithTimeout(ctx, d.actionTimeout)
	defer cancel()

	created, err := d.alerts.CreateAlert(callCtx, alert)
	if err != nil {
		d.logger.Errorf("Rule %s: create alert failed: %v", rule.ID, err)
		result.Status = models.DispatchFailed
		result.Reason = failureReason(err)
		return result
	}

	d.logger.Infof("Rule %s created alert %s (%s)", rule.ID, created.ID, created.Severity)
	result.Status = models.DispatchOK
	result.AlertID = created.ID
	return result
}

func (d *Dispatcher) notify(ctx context.Context, a models.NotifyAction, rule models.Rule, ev models.Event) models.DispatchResult {
	result := models.DispatchResult{Action: models.ActionKindNotify, Channel: a.Channel}

	msg := models.OutboundMessage{
		Channel:   a.Channel,
		Recipient: resolveTemplate(a.Recipient, ev),
		Subject:   resolveTemplate(a.Subject, ev),
		Body:      resolveTemplate(a.Message, ev),
		Method:    a.Method,
		Headers:   a.Headers,
		RuleID:    rule.ID,
	}
	if a.Channel == models.ChannelWebhook && a.Message == "" {
		// Webhook body defaults to the rule-tagged event context.
		if payload, err := json.Marshal(ev); err == nil {
			msg.Body = string(payload)
		}
	}

	record := models.NotificationRecord{
		RuleID:    rule.ID,
		Channel:   a.Channel,
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Status:    models.NotificationPending,
	}

	callCtx, cancel := context.WithTimeout(ctx, d.actionTimeout)
	defer cancel()

	created, err := d.notifications.CreateNotification(callCtx, record)
	if err != nil {
		d.logger.Errorf("Rule %s: create notification failed: %v", rule.ID, err)
		result.Status = models.DispatchFailed
		result.Reason = failureReason(err)
		return result
	}
	result.NotificationID = created.ID

	sender, ok := d.senders[a.Channel]
	if !ok {
		d.logger.Errorf("Rule %s: no sender configured for channel %s", rule.ID, a.Channel)
		result.Status = models.DispatchFailed
		result.Reason = "no sender for channel " + string(a.Channel)
		d.markFailed(ctx, created.ID, result.Reason)
		return result
	}

	if err := sender.Send(callCtx, msg); err != nil {
		d.logger.Errorf("Rule %s: dispatch via %s failed: %v", rule.ID, a.Channel, err)
		result.Status = models.DispatchFailed
		result.Reason = failureReason(err)
		d.markFailed(ctx, created.ID, result.Reason)
		return result
	}

	d.logger.Infof("Rule %s dispatched via %s to %s", rule.ID, a.Channel, msg.Recipient)
	result.Status = models.DispatchOK
	if err := d.notifications.MarkNotificationSent(ctx, created.ID); err != nil {
		d.logger.Errorf("Rule %s: mark notification %s sent failed: %v", rule.ID, created.ID, err)
	}
	return result
}

// markFailed records a delivery failure; the notification store being down at
// this point is itself a non-fatal condition.
func (d *Dispatcher) markFailed(ctx context.Context, id, reason string) {
	if err := d.notifications.MarkNotificationFailed(ctx, id, reason); err != nil {
		d.logger.Errorf("Mark notification %s failed errored: %v", id, err)
	}
}

func alertMetadata(tmpl map[string]any, rule models.Rule, ev models.Event) map[string]any {
	meta := make(map[string]any, len(tmpl)+2)
	for k, v := range tmpl {
		if s, ok := v.(string); ok {
			meta[k] = resolveTemplate(s, ev)
			continue
		}
		meta[k] = v
	}
	meta["rule_id"] = rule.ID
	meta["source"] = ev.Source
	return meta
}

// failureReason normalizes an error for the report, collapsing deadline and
// network timeouts to "timeout".
func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return err.Error()
}
