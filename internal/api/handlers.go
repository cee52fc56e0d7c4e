package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sitewatch/internal/db"
	"sitewatch/internal/engine"
	"sitewatch/internal/logging"
	"sitewatch/internal/models"
	"sitewatch/internal/providers"
	"sitewatch/internal/sensors"
)

type Handler struct {
	db      *db.DB
	engine  *engine.Engine
	sensors *sensors.Service
	hub     *providers.Hub
	logger  *logging.Logger
}

func NewHandler(db *db.DB, eng *engine.Engine, sensorSvc *sensors.Service, hub *providers.Hub, logger *logging.Logger) *Handler {
	return &Handler{db: db, engine: eng, sensors: sensorSvc, hub: hub, logger: logger}
}

// --- Rules ---

func (h *Handler) CreateRule(c *gin.Context) {
	var rule models.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		h.logger.Errorf("Invalid request body for rule: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.db.CreateRule(c.Request.Context(), rule)
	if err != nil {
		h.logger.Errorf("Failed to create rule: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Infof("Created rule %s (%s)", created.ID, created.Name)
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListRules(c *gin.Context) {
	limit, offset := pagination(c)
	rules, total, err := h.db.ListRules(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to list rules: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list rules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "total": total})
}

func (h *Handler) GetRule(c *gin.Context) {
	id := c.Param("id")
	rule, err := h.db.GetRule(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		h.logger.Errorf("Failed to get rule %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get rule"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	var rule models.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		h.logger.Errorf("Invalid request body for rule: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = c.Param("id")

	if err := h.db.UpdateRule(c.Request.Context(), rule); err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		h.logger.Errorf("Failed to update rule %s: %v", rule.ID, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Infof("Updated rule %s", rule.ID)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) DeleteRule(c *gin.Context) {
	id := c.Param("id")
	if err := h.db.DeleteRule(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		h.logger.Errorf("Failed to delete rule %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rule"})
		return
	}
	h.logger.Infof("Deleted rule %s", id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// TestRule dry-runs a rule against a sample event without side effects.
func (h *Handler) TestRule(c *gin.Context) {
	id := c.Param("id")

	var body struct {
		Fields map[string]any `json:"fields" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sample := models.Event{Timestamp: time.Now(), Fields: body.Fields}
	result, err := h.engine.TestRule(c.Request.Context(), id, sample)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		h.logger.Errorf("Failed to test rule %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to test rule"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- Sensors ---

func (h *Handler) CreateSensor(c *gin.Context) {
	var sensor models.Sensor
	if err := c.ShouldBindJSON(&sensor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.sensors.Create(c.Request.Context(), sensor)
	if err != nil {
		h.logger.Errorf("Failed to create sensor: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create sensor"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetSensor(c *gin.Context) {
	id := c.Param("id")
	sensor, err := h.sensors.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrSensorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sensor not found"})
			return
		}
		h.logger.Errorf("Failed to get sensor %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get sensor"})
		return
	}
	c.JSON(http.StatusOK, sensor)
}

func (h *Handler) UpdateSensorValue(c *gin.Context) {
	h.updateSensor(c, func(id string, v float64) (models.Sensor, error) {
		return h.sensors.OnValueUpdate(c.Request.Context(), id, v)
	}, "value")
}

func (h *Handler) UpdateSensorThreshold(c *gin.Context) {
	h.updateSensor(c, func(id string, v float64) (models.Sensor, error) {
		return h.sensors.OnThresholdUpdate(c.Request.Context(), id, v)
	}, "threshold")
}

func (h *Handler) updateSensor(c *gin.Context, update func(string, float64) (models.Sensor, error), field string) {
	id := c.Param("id")

	var body map[string]float64
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, ok := body[field]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + field})
		return
	}

	sensor, err := update(id, v)
	if err != nil {
		if errors.Is(err, models.ErrSensorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sensor not found"})
			return
		}
		h.logger.Errorf("Failed to update sensor %s %s: %v", id, field, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update sensor"})
		return
	}
	c.JSON(http.StatusOK, sensor)
}

// --- Alerts and notifications ---

func (h *Handler) ListAlerts(c *gin.Context) {
	limit, offset := pagination(c)
	alerts, total, err := h.db.ListAlerts(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to list alerts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": total})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	limit, offset := pagination(c)
	notifications, total, err := h.db.ListNotifications(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to list notifications: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "total": total})
}

// --- Events ---

// IngestEvent accepts a generic telemetry record and runs it through the
// engine, returning the full evaluation report.
func (h *Handler) IngestEvent(c *gin.Context) {
	var body struct {
		Source string         `json:"source" binding:"required"`
		Fields map[string]any `json:"fields" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := models.Event{Timestamp: time.Now(), Fields: body.Fields}
	report, err := h.engine.ProcessEvent(c.Request.Context(), ev, body.Source)
	if err != nil {
		h.logger.Errorf("Failed to process event from %s: %v", body.Source, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Rule evaluation unavailable"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// --- Desktop channel ---

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ConsoleSocket attaches an operator console to the desktop notification
// channel.
func (h *Handler) ConsoleSocket(c *gin.Context) {
	consoleID := c.Query("console_id")
	if consoleID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing console_id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for console %s: %v", consoleID, err)
		return
	}

	h.hub.Register(consoleID, conn)
	defer func() {
		h.hub.Unregister(consoleID, conn)
		conn.Close()
	}()

	// Hold the connection open; consoles only receive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}
	if o, err := strconv.Atoi(c.Query("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}
