package api

import (
	"github.com/gin-gonic/gin"

	"sitewatch/internal/config"
	"sitewatch/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Rules
		api.POST("/rules", h.CreateRule)
		api.GET("/rules", h.ListRules)
		api.GET("/rules/:id", h.GetRule)
		api.PUT("/rules/:id", h.UpdateRule)
		api.DELETE("/rules/:id", h.DeleteRule)
		api.POST("/rules/:id/test", h.TestRule)

		// Sensors
		api.POST("/sensors", h.CreateSensor)
		api.GET("/sensors/:id", h.GetSensor)
		api.PUT("/sensors/:id/value", h.UpdateSensorValue)
		api.PUT("/sensors/:id/threshold", h.UpdateSensorThreshold)

		// Alerts and notifications
		api.GET("/alerts", h.ListAlerts)
		api.GET("/notifications", h.ListNotifications)

		// Generic telemetry ingest
		api.POST("/events", h.IngestEvent)

		// Desktop channel attach
		api.GET("/ws", h.ConsoleSocket)
	}
	return r
}
