package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitewatch/internal/logging"
	"sitewatch/internal/models"
	"sitewatch/internal/providers"
)

type fakeAlertStore struct {
	mu      sync.Mutex
	created []models.Alert
	err     error
}

func (f *fakeAlertStore) CreateAlert(ctx context.Context, a models.Alert) (models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Alert{}, f.err
	}
	a.ID = fmt.Sprintf("alert-%d", len(f.created)+1)
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.created = append(f.created, a)
	return a, nil
}

type fakeNotificationStore struct {
	mu        sync.Mutex
	created   []models.NotificationRecord
	sent      []string
	failed    map[string]string
	createErr error
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{failed: make(map[string]string)}
}

func (f *fakeNotificationStore) CreateNotification(ctx context.Context, n models.NotificationRecord) (models.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.NotificationRecord{}, f.createErr
	}
	n.ID = fmt.Sprintf("notif-%d", len(f.created)+1)
	n.CreatedAt = time.Now()
	f.created = append(f.created, n)
	return n, nil
}

func (f *fakeNotificationStore) MarkNotificationSent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeNotificationStore) MarkNotificationFailed(ctx context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = reason
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []models.OutboundMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testRule(id string, action models.ActionSpec) models.Rule {
	return models.Rule{
		ID:        id,
		Name:      "rule " + id,
		Severity:  models.SeverityHigh,
		Condition: models.Leaf{Field: "value", Operator: models.OpGt, Value: 0},
		Action:    action,
		IsActive:  true,
	}
}

func TestExecuteCreateAlert(t *testing.T) {
	alerts := &fakeAlertStore{}
	notifs := newFakeNotificationStore()
	d := NewDispatcher(alerts, notifs, nil, time.Second, logging.NewNop())

	action := models.CreateAlertAction{Alert: models.AlertTemplate{
		Title:  "Overheat in {{zone}}",
		Type:   "temperature",
		ZoneID: "z1",
	}}
	rule := testRule("r1", action)
	ev := event(map[string]any{"zone": "server-room", "value": 42})

	results := d.Execute(context.Background(), action, rule, ev.WithRule("r1", "sensor"))

	require.Len(t, results, 1)
	assert.Equal(t, models.DispatchOK, results[0].Status)
	assert.Equal(t, "alert-1", results[0].AlertID)

	require.Len(t, alerts.created, 1)
	created := alerts.created[0]
	assert.Equal(t, "Overheat in server-room", created.Title)
	assert.Equal(t, models.SeverityHigh, created.Severity)
	assert.Equal(t, models.AlertStatusActive, created.Status)
	assert.Equal(t, "r1", created.Metadata["rule_id"])
	assert.Equal(t, "sensor", created.Metadata["source"])
}

func TestExecuteCreateAlertStoreFailureIsIsolated(t *testing.T) {
	alerts := &fakeAlertStore{err: errors.New("alert store down")}
	d := NewDispatcher(alerts, newFakeNotificationStore(), nil, time.Second, logging.NewNop())

	action := models.CreateAlertAction{Alert: models.AlertTemplate{Title: "t"}}
	results := d.Execute(context.Background(), action, testRule("r1", action), event(nil))

	require.Len(t, results, 1)
	assert.Equal(t, models.DispatchFailed, results[0].Status)
	assert.Contains(t, results[0].Reason, "alert store down")
}

func TestExecuteNotifyRecordsSent(t *testing.T) {
	notifs := newFakeNotificationStore()
	sender := &fakeSender{}
	d := NewDispatcher(&fakeAlertStore{}, notifs, map[models.Channel]Sender{models.ChannelEmail: sender}, time.Second, logging.NewNop())

	action := models.NotifyAction{
		Channel:   models.ChannelEmail,
		Recipient: "ops@example.com",
		Subject:   "Temp {{value}} in {{zone}}",
		Message:   "Reading {{value}} exceeded the threshold",
	}
	ev := event(map[string]any{"zone": "dc1", "value": 44.5})

	results := d.Execute(context.Background(), action, testRule("r1", action), ev.WithRule("r1", "sensor"))

	require.Len(t, results, 1)
	assert.Equal(t, models.DispatchOK, results[0].Status)
	assert.Equal(t, models.ChannelEmail, results[0].Channel)
	assert.Equal(t, "notif-1", results[0].NotificationID)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Temp 44.5 in dc1", sender.sent[0].Subject)
	assert.Equal(t, "Reading 44.5 exceeded the threshold", sender.sent[0].Body)

	assert.Equal(t, []string{"notif-1"}, notifs.sent)
	assert.Empty(t, notifs.failed)
}

func TestExecuteNotifySenderFailureMarkedFailed(t *testing.T) {
	notifs := newFakeNotificationStore()
	sender := &fakeSender{err: errors.New("smtp unreachable")}
	d := NewDispatcher(&fakeAlertStore{}, notifs, map[models.Channel]Sender{models.ChannelEmail: sender}, time.Second, logging.NewNop())

	action := models.NotifyAction{Channel: models.ChannelEmail, Recipient: "ops@example.com", Message: "m"}
	results := d.Execute(context.Background(), action, testRule("r1", action), event(nil))

	require.Len(t, results, 1)
	assert.Equal(t, models.DispatchFailed, results[0].Status)
	assert.Contains(t, results[0].Reason, "smtp unreachable")
	assert.Equal(t, "smtp unreachable", notifs.failed["notif-1"])
	assert.Empty(t, notifs.sent)
}

func TestExecuteNotifyNoSenderForChannel(t *testing.T) {
	notifs := newFakeNotificationStore()
	d := NewDispatcher(&fakeAlertStore{}, notifs, map[models.Channel]Sender{}, time.Second, logging.NewNop())

	action := models.NotifyAction{Channel: models.ChannelSMS, Recipient: "+15550100", Message: "m"}
	results := d.Execute(context.Background(), action, testRule("r1", action), event(nil))

	require.Len(t, results, 1)
	assert.Equal(t, models.DispatchFailed, results[0].Status)
	assert.Contains(t, results[0].Reason, "no sender for channel sms")
	assert.Contains(t, notifs.failed, "notif-1")
}

func TestExecuteNotifyCreateRecordFailureSkipsSend(t *testing.T) {
	notifs := newFakeNotificationStore()
	notifs.createErr = errors.New("notification store down")
	sender := &fakeSender{}
	d := NewDispatcher(&fakeAlertStore{}, notifs, map[models.Channel]Sender{models.ChannelEmail: sender}, time.Second, logging.NewNop())

	action := models.NotifyAction{Channel: models.ChannelEmail, Recipient: "ops@example.com", Message: "m"}
	results := d.Execute(context.Background(), action, testRule("r1", action), event(nil))

	require.Len(t, results, 1)
	assert.Equal(t, models.DispatchFailed, results[0].Status)
	assert.Empty(t, sender.sent)
}

func TestExecuteCompoundIsolatesFailures(t *testing.T) {
	alerts := &fakeAlertStore{}
	notifs := newFakeNotificationStore()
	failing := &fakeSender{err: errors.New("gateway rejected message")}
	d := NewDispatcher(alerts, notifs, map[models.Channel]Sender{models.ChannelSMS: failing}, time.Second, logging.NewNop())

	action := models.CompoundAction{Actions: []models.ActionSpec{
		models.NotifyAction{Channel: models.ChannelSMS, Recipient: "+15550100", Message: "m"},
		models.CreateAlertAction{Alert: models.AlertTemplate{Title: "still created"}},
	}}

	results := d.Execute(context.Background(), action, testRule("r1", action), event(nil))

	require.Len(t, results, 2)
	assert.Equal(t, models.DispatchFailed, results[0].Status)
	assert.Equal(t, models.DispatchOK, results[1].Status)
	assert.Len(t, alerts.created, 1)
}

func TestExecuteUnknownActionReported(t *testing.T) {
	d := NewDispatcher(&fakeAlertStore{}, newFakeNotificationStore(), nil, time.Second, logging.NewNop())

	results := d.Execute(context.Background(), nil, testRule("r1", nil), event(nil))

	require.Len(t, results, 1)
	assert.Equal(t, models.DispatchFailed, results[0].Status)
	assert.Equal(t, "unknown action type", results[0].Reason)
}

func TestExecuteWebhookNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifs := newFakeNotificationStore()
	senders := map[models.Channel]Sender{models.ChannelWebhook: providers.NewWebhookSender(time.Second)}
	d := NewDispatcher(&fakeAlertStore{}, notifs, senders, time.Second, logging.NewNop())

	action := models.NotifyAction{Channel: models.ChannelWebhook, Recipient: srv.URL, Message: `{"ping":1}`}
	results := d.Execute(context.Background(), action, testRule("r1", action), event(nil))

	require.Len(t, results, 1)
	assert.Equal(t, models.DispatchFailed, results[0].Status)
	assert.Contains(t, results[0].Reason, "status 500")
}

func TestExecuteWebhookDefaultBodyIsEventContext(t *testing.T) {
	var received map[string]any
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	senders := map[models.Channel]Sender{models.ChannelWebhook: providers.NewWebhookSender(time.Second)}
	d := NewDispatcher(&fakeAlertStore{}, newFakeNotificationStore(), senders, time.Second, logging.NewNop())

	action := models.NotifyAction{Channel: models.ChannelWebhook, Recipient: srv.URL, Method: "PUT"}
	ev := event(map[string]any{"temperature": 35.0})
	results := d.Execute(context.Background(), action, testRule("r9", action), ev.WithRule("r9", "sensor"))

	require.Len(t, results, 1)
	assert.Equal(t, models.DispatchOK, results[0].Status)
	assert.Equal(t, "PUT", method)
	require.NotNil(t, received)
	assert.Equal(t, "r9", received["rule_id"])

	fields, ok := received["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 35.0, fields["temperature"])
}

func TestResolveTemplate(t *testing.T) {
	ev := models.Event{
		Source:    "sensor",
		RuleID:    "r1",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Fields:    map[string]any{"zone": "dc1", "value": 42},
	}

	assert.Equal(t, "dc1: 42", resolveTemplate("{{zone}}: {{value}}", ev))
	assert.Equal(t, "from sensor rule r1", resolveTemplate("from {{source}} rule {{rule_id}}", ev))
	assert.Equal(t, "at 2026-03-01 12:00:00", resolveTemplate("at {{timestamp}}", ev))
	// Unknown tokens stay visible instead of resolving blank.
	assert.Equal(t, "{{missing}}", resolveTemplate("{{missing}}", ev))
	assert.Equal(t, "", resolveTemplate("", ev))
}
