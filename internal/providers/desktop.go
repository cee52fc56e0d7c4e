package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"sitewatch/internal/logging"
	"sitewatch/internal/models"
)

// Hub tracks the websocket connections of operator consoles, keyed by console
// id. The desktop notification channel pushes through it.
type Hub struct {
	connections map[string]map[*websocket.Conn]bool
	mutex       sync.Mutex
	logger      *logging.Logger
}

const maxConnsPerConsole = 10

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[string]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// Register adds a console connection.
func (h *Hub) Register(consoleID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, exists := h.connections[consoleID]; !exists {
		h.connections[consoleID] = make(map[*websocket.Conn]bool)
	}
	if len(h.connections[consoleID]) >= maxConnsPerConsole {
		h.logger.Warnf("Max connections reached for console %s", consoleID)
		return
	}
	h.connections[consoleID][conn] = true
	h.logger.Infof("Console %s attached (%d connection(s))", consoleID, len(h.connections[consoleID]))
}

// Unregister removes a console connection.
func (h *Hub) Unregister(consoleID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, exists := h.connections[consoleID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, consoleID)
		}
		h.logger.Infof("Console %s detached (%d remaining)", consoleID, len(conns))
	}
}

// SendTo writes the message to every connection of one console. Write errors
// drop the broken connection.
func (h *Hub) SendTo(consoleID string, message []byte) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	conns, exists := h.connections[consoleID]
	if !exists || len(conns) == 0 {
		return fmt.Errorf("no connected console %s", consoleID)
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Errorf("Failed to push to console %s: %v", consoleID, err)
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(h.connections, consoleID)
		return fmt.Errorf("all connections to console %s failed", consoleID)
	}
	return nil
}

// DesktopSender pushes notifications to operator consoles over the Hub.
type DesktopSender struct {
	hub *Hub
}

func NewDesktopSender(hub *Hub) *DesktopSender {
	return &DesktopSender{hub: hub}
}

func (s *DesktopSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	payload, err := json.Marshal(map[string]string{
		"subject": msg.Subject,
		"body":    msg.Body,
		"rule_id": msg.RuleID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode desktop payload: %w", err)
	}
	return s.hub.SendTo(msg.Recipient, payload)
}
