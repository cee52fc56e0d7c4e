package models

import "time"

// NotificationStatus tracks delivery of one channel notification.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// NotificationRecord is the persisted trail of one dispatched notification.
// It is created pending before the channel sender is invoked and marked
// sent/failed afterwards.
type NotificationRecord struct {
	ID        string             `json:"id"`
	RuleID    string             `json:"rule_id"`
	Channel   Channel            `json:"channel"`
	Recipient string             `json:"recipient"`
	Subject   string             `json:"subject,omitempty"`
	Body      string             `json:"body"`
	Status    NotificationStatus `json:"status"`
	LastError string             `json:"last_error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	SentAt    *time.Time         `json:"sent_at,omitempty"`
}

// OutboundMessage is the resolved content handed to a channel sender. Method
// and Headers are only set for the webhook channel.
type OutboundMessage struct {
	Channel   Channel
	Recipient string
	Subject   string
	Body      string
	Method    string
	Headers   map[string]string
	RuleID    string
}
