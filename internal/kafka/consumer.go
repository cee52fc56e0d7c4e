package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"sitewatch/internal/config"
	"sitewatch/internal/engine"
	"sitewatch/internal/logging"
	"sitewatch/internal/models"
)

// telemetryMessage is the wire form producers publish: a source tag plus the
// raw field map the rules evaluate against.
type telemetryMessage struct {
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
}

// Consumer reads telemetry events from Kafka and feeds them through the rule
// engine.
type Consumer struct {
	reader *kafka.Reader
	engine *engine.Engine
	logger *logging.Logger
}

func NewConsumer(cfg config.Config, eng *engine.Engine, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.Kafka.Broker},
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	return &Consumer{reader: reader, engine: eng, logger: logger}
}

// Start consumes until ctx is cancelled. Malformed messages are logged and
// skipped; processing failures do not stop the loop.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started")

		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var tm telemetryMessage
			if err := json.Unmarshal(msg.Value, &tm); err != nil {
				c.logger.Errorf("Unmarshal message failed: %v", err)
				continue
			}
			if tm.Source == "" || len(tm.Fields) == 0 {
				c.logger.Errorf("Invalid message: missing source or fields")
				continue
			}
			if tm.Timestamp.IsZero() {
				tm.Timestamp = time.Now()
			}

			ev := models.Event{Timestamp: tm.Timestamp, Fields: tm.Fields}
			report, err := c.engine.ProcessEvent(ctx, ev, tm.Source)
			if err != nil {
				c.logger.Errorf("Process event from %s failed: %v", tm.Source, err)
				continue
			}
			c.logger.Infof("Processed event from %s: %d rule(s) evaluated, %d matched",
				tm.Source, len(report.Entries), report.MatchedCount())
		}
	}()
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
