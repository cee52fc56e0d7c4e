package models

import (
	"encoding/json"
	"fmt"
)

// Channel is a notification delivery mechanism.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWebhook  Channel = "webhook"
	ChannelDesktop  Channel = "desktop"
	ChannelSlack    Channel = "slack"
	ChannelTelegram Channel = "telegram"
)

// ValidChannels lists every delivery channel the dispatcher can route to.
var ValidChannels = map[Channel]bool{
	ChannelEmail:    true,
	ChannelSMS:      true,
	ChannelWebhook:  true,
	ChannelDesktop:  true,
	ChannelSlack:    true,
	ChannelTelegram: true,
}

const (
	ActionKindCreateAlert = "create_alert"
	ActionKindNotify      = "notify"
	ActionKindCompound    = "compound"
)

// ActionSpec is the side effect configured on a rule. Exactly one of the
// variants below; unrecognized kinds surface as a dispatch failure instead of
// a silent no-op.
type ActionSpec interface {
	isAction()
	Kind() string
	Validate() error
}

// AlertTemplate describes the alert a CreateAlertAction synthesizes. Title may
// reference event fields with {{field}} tokens, resolved at dispatch time.
type AlertTemplate struct {
	Title       string         `json:"title"`
	Type        string         `json:"type"`
	ZoneID      string         `json:"zone_id,omitempty"`
	EquipmentID string         `json:"equipment_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CreateAlertAction writes an alert record via the alert store.
type CreateAlertAction struct {
	Alert AlertTemplate `json:"alert"`
}

// NotifyAction delivers a message through one channel. Recipient, Subject and
// Message may reference event fields with {{field}} tokens. Method, Headers
// and Message body are only consulted for the webhook channel, where Recipient
// is the target URL and an empty Message defaults to the event context JSON.
type NotifyAction struct {
	Channel   Channel           `json:"channel"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject,omitempty"`
	Message   string            `json:"message,omitempty"`
	Method    string            `json:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// CompoundAction runs several sub-actions; each is dispatched independently.
type CompoundAction struct {
	Actions []ActionSpec `json:"actions"`
}

func (CreateAlertAction) isAction() {}
func (NotifyAction) isAction()      {}
func (CompoundAction) isAction()    {}

func (CreateAlertAction) Kind() string { return ActionKindCreateAlert }
func (NotifyAction) Kind() string      { return ActionKindNotify }
func (CompoundAction) Kind() string    { return ActionKindCompound }

func (a CreateAlertAction) Validate() error {
	if a.Alert.Title == "" {
		return fmt.Errorf("create_alert action is missing an alert title")
	}
	return nil
}

func (a NotifyAction) Validate() error {
	if !ValidChannels[a.Channel] {
		return fmt.Errorf("unknown notification channel %q", a.Channel)
	}
	if a.Recipient == "" {
		return fmt.Errorf("notify action is missing a recipient")
	}
	return nil
}

func (a CompoundAction) Validate() error {
	if len(a.Actions) == 0 {
		return fmt.Errorf("compound action has no sub-actions")
	}
	for _, sub := range a.Actions {
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON adds the "type" tag to the variant's fields.
func (a CreateAlertAction) MarshalJSON() ([]byte, error) {
	type alias CreateAlertAction
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: a.Kind(), alias: alias(a)})
}

func (a NotifyAction) MarshalJSON() ([]byte, error) {
	type alias NotifyAction
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: a.Kind(), alias: alias(a)})
}

func (a CompoundAction) MarshalJSON() ([]byte, error) {
	type alias CompoundAction
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: a.Kind(), alias: alias(a)})
}

// DecodeActionSpec parses the stored JSON form of an action, tagged by "type".
func DecodeActionSpec(data []byte) (ActionSpec, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("action is not a JSON object: %w", err)
	}

	switch probe.Type {
	case ActionKindCreateAlert:
		var a CreateAlertAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("malformed create_alert action: %w", err)
		}
		return a, nil
	case ActionKindNotify:
		var a NotifyAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("malformed notify action: %w", err)
		}
		return a, nil
	case ActionKindCompound:
		var raw struct {
			Actions []json.RawMessage `json:"actions"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("malformed compound action: %w", err)
		}
		a := CompoundAction{Actions: make([]ActionSpec, 0, len(raw.Actions))}
		for _, r := range raw.Actions {
			sub, err := DecodeActionSpec(r)
			if err != nil {
				return nil, err
			}
			a.Actions = append(a.Actions, sub)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", probe.Type)
	}
}
