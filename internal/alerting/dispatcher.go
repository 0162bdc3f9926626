// Package alerting raises alerts for degraded health assessments.
package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/datastore"
	"github.com/herdwatch/herdwatch-go/internal/errors"
	"github.com/herdwatch/herdwatch-go/internal/health"
	"github.com/herdwatch/herdwatch-go/internal/logging"
	"github.com/herdwatch/herdwatch-go/internal/mqtt"
	"github.com/herdwatch/herdwatch-go/internal/observability"
)

// Alert types raised by the pipeline.
const (
	TypeHealthCritical  = "health_critical"
	TypeHealthAttention = "health_attention"
	TypeMissingAnimal   = "missing_animal"
)

// Severity levels.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

// publishTimeout bounds the best-effort MQTT publish per alert.
const publishTimeout = 10 * time.Second

// Dispatcher decides whether a health assessment warrants an alert,
// persists it, and optionally announces it over MQTT.
type Dispatcher struct {
	ds      datastore.Interface
	mq      mqtt.Client
	topic   string
	metrics *observability.Metrics
	log     *slog.Logger
}

// NewDispatcher creates a dispatcher. mq may be nil when MQTT publishing
// is disabled.
func NewDispatcher(settings *conf.Settings, ds datastore.Interface, mq mqtt.Client, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		ds:      ds,
		mq:      mq,
		topic:   settings.MQTT.Topic,
		metrics: metrics,
		log:     logging.ForService("alerting"),
	}
}

// mqttPayload is the JSON body announced per alert.
type mqttPayload struct {
	AlertID    uint    `json:"alert_id"`
	AnimalID   uint    `json:"animal_id"`
	TagID      string  `json:"tag_id"`
	AlertType  string  `json:"alert_type"`
	Severity   string  `json:"severity"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
	CreatedAt  string  `json:"created_at"`
}

// Dispatch raises an alert iff the assessment status is needs_attention
// or critical; healthy never alerts. The alert insert is authoritative;
// the MQTT announce is best effort and its failure never fails the
// dispatch. Repeat alerts for an animal that stays degraded are raised
// every time.
func (d *Dispatcher) Dispatch(ctx context.Context, animal *datastore.Animal, assessment *health.Assessment, healthRecordID *uint) (*datastore.Alert, error) {
	var severity, alertType string
	switch assessment.Status {
	case health.StatusCritical:
		severity, alertType = SeverityCritical, TypeHealthCritical
	case health.StatusNeedsAttention:
		severity, alertType = SeverityMedium, TypeHealthAttention
	default:
		return nil, nil
	}

	alert := &datastore.Alert{
		AnimalID:       &animal.ID,
		AlertType:      alertType,
		Severity:       severity,
		Title:          fmt.Sprintf("Health Alert: %s", animal.TagID),
		Message:        fmt.Sprintf("Animal %s has been classified as '%s' with %.1f%% confidence.", animal.TagID, assessment.Status, assessment.Confidence*100),
		HealthRecordID: healthRecordID,
		CreatedAt:      time.Now(),
	}

	if err := d.ds.InsertAlert(alert); err != nil {
		return nil, errors.New(fmt.Errorf("%w: inserting alert: %w", errors.ErrPersistenceWrite, err)).
			Component("alerting").
			Category(errors.CategoryDatastore).
			Context("animal_id", animal.ID).
			Build()
	}

	if d.metrics != nil {
		d.metrics.AlertsCreated.WithLabelValues(severity).Inc()
	}
	d.log.Info("alert raised",
		"animal", animal.TagID, "type", alertType, "severity", severity)

	d.announce(ctx, animal, assessment, alert)
	return alert, nil
}

// announce publishes the alert over MQTT when a connected client is
// wired. Failures are logged only.
func (d *Dispatcher) announce(ctx context.Context, animal *datastore.Animal, assessment *health.Assessment, alert *datastore.Alert) {
	if d.mq == nil || d.topic == "" {
		return
	}

	payload, err := json.Marshal(mqttPayload{
		AlertID:    alert.ID,
		AnimalID:   animal.ID,
		TagID:      animal.TagID,
		AlertType:  alert.AlertType,
		Severity:   alert.Severity,
		Status:     assessment.Status.String(),
		Confidence: assessment.Confidence,
		Message:    alert.Message,
		CreatedAt:  alert.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		d.log.Error("failed to encode alert payload", "error", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := d.mq.Publish(publishCtx, d.topic, string(payload)); err != nil {
		d.log.Warn("alert MQTT publish failed",
			"animal", animal.TagID, "topic", d.topic, "error", err)
	}
}
