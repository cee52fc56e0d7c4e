package sensors

import (
	"context"

	"sitewatch/internal/logging"
	"sitewatch/internal/models"
)

// Store persists sensors. Value and threshold updates must recompute the
// alert flag atomically with the mutation.
type Store interface {
	CreateSensor(ctx context.Context, s models.Sensor) (models.Sensor, error)
	GetSensor(ctx context.Context, id string) (models.Sensor, error)
	UpdateSensorValue(ctx context.Context, id string, value float64) (models.Sensor, error)
	UpdateSensorThreshold(ctx context.Context, id string, threshold float64) (models.Sensor, error)
}

// EventSink receives the sensor events this service produces. Satisfied by
// the rule engine.
type EventSink interface {
	ProcessEvent(ctx context.Context, ev models.Event, source string) (models.EvaluationReport, error)
}

// Service keeps each sensor's derived alert flag consistent with its value
// and threshold, and feeds every mutation into the rule engine as an event.
type Service struct {
	store  Store
	sink   EventSink
	logger *logging.Logger
}

func New(store Store, sink EventSink, logger *logging.Logger) *Service {
	return &Service{store: store, sink: sink, logger: logger}
}

// Create registers a new sensor.
func (s *Service) Create(ctx context.Context, sensor models.Sensor) (models.Sensor, error) {
	return s.store.CreateSensor(ctx, sensor)
}

// Get returns one sensor by id.
func (s *Service) Get(ctx context.Context, id string) (models.Sensor, error) {
	return s.store.GetSensor(ctx, id)
}

// OnValueUpdate stores a new reading. The alert flag is recomputed as
// value > threshold in the same store update, then the fresh sensor state is
// published to the rule engine.
func (s *Service) OnValueUpdate(ctx context.Context, id string, value float64) (models.Sensor, error) {
	sensor, err := s.store.UpdateSensorValue(ctx, id, value)
	if err != nil {
		return models.Sensor{}, err
	}
	s.publish(ctx, sensor)
	return sensor, nil
}

// OnThresholdUpdate stores a new threshold, recomputing the alert flag the
// same way as OnValueUpdate.
func (s *Service) OnThresholdUpdate(ctx context.Context, id string, threshold float64) (models.Sensor, error) {
	sensor, err := s.store.UpdateSensorThreshold(ctx, id, threshold)
	if err != nil {
		return models.Sensor{}, err
	}
	s.publish(ctx, sensor)
	return sensor, nil
}

func (s *Service) publish(ctx context.Context, sensor models.Sensor) {
	if s.sink == nil {
		return
	}
	ev := models.Event{
		Timestamp: sensor.LastUpdated,
		Fields: map[string]any{
			"sensor_id": sensor.ID,
			"rack_id":   sensor.RackID,
			"type":      sensor.Type,
			"value":     sensor.Value,
			"threshold": sensor.Threshold,
			"alert":     sensor.Alert,
		},
	}
	report, err := s.sink.ProcessEvent(ctx, ev, "sensor")
	if err != nil {
		s.logger.Errorf("Sensor %s: rule evaluation failed: %v", sensor.ID, err)
		return
	}
	if n := report.MatchedCount(); n > 0 {
		s.logger.Infof("Sensor %s update matched %d rule(s)", sensor.ID, n)
	}
}
