package alerting

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/datastore"
	"github.com/herdwatch/herdwatch-go/internal/health"
)

func setupDispatcher(t *testing.T, mq *recordingMQTT) (*Dispatcher, *datastore.SQLiteStore, *datastore.Animal) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&datastore.Animal{}, &datastore.Alert{}))
	ds := &datastore.SQLiteStore{}
	ds.DB = db

	animal := &datastore.Animal{TagID: "AB1234", Species: "cattle"}
	require.NoError(t, ds.SaveAnimal(animal))

	settings := &conf.Settings{}
	settings.MQTT.Topic = "herdwatch/alerts"

	var dispatcher *Dispatcher
	if mq != nil {
		dispatcher = NewDispatcher(settings, ds, mq, nil)
	} else {
		dispatcher = NewDispatcher(settings, ds, nil, nil)
	}
	return dispatcher, ds, animal
}

// recordingMQTT captures published payloads.
type recordingMQTT struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (r *recordingMQTT) Connect(context.Context) error { return nil }
func (r *recordingMQTT) IsConnected() bool             { return true }
func (r *recordingMQTT) Disconnect()                   {}

func (r *recordingMQTT) Publish(_ context.Context, _ string, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, payload)
	return nil
}

func assessment(status health.Status, confidence float64) *health.Assessment {
	return &health.Assessment{Status: status, Confidence: confidence}
}

func TestDispatchHealthyNeverAlerts(t *testing.T) {
	dispatcher, ds, animal := setupDispatcher(t, nil)

	alert, err := dispatcher.Dispatch(context.Background(), animal, assessment(health.StatusHealthy, 0.95), nil)
	require.NoError(t, err)
	assert.Nil(t, alert)

	alerts, err := ds.ListAlerts(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDispatchCriticalSeverity(t *testing.T) {
	dispatcher, _, animal := setupDispatcher(t, nil)

	recordID := uint(11)
	alert, err := dispatcher.Dispatch(context.Background(), animal, assessment(health.StatusCritical, 0.875), &recordID)
	require.NoError(t, err)
	require.NotNil(t, alert)

	assert.Equal(t, SeverityCritical, alert.Severity)
	assert.Equal(t, TypeHealthCritical, alert.AlertType)
	assert.Equal(t, "Health Alert: AB1234", alert.Title)
	assert.Contains(t, alert.Message, "'critical' with 87.5% confidence")
	require.NotNil(t, alert.HealthRecordID)
	assert.Equal(t, recordID, *alert.HealthRecordID)
}

func TestDispatchNeedsAttentionSeverity(t *testing.T) {
	dispatcher, _, animal := setupDispatcher(t, nil)

	alert, err := dispatcher.Dispatch(context.Background(), animal, assessment(health.StatusNeedsAttention, 0.7), nil)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, SeverityMedium, alert.Severity)
	assert.Equal(t, TypeHealthAttention, alert.AlertType)
}

func TestDispatchRepeatsAreNotSuppressed(t *testing.T) {
	dispatcher, ds, animal := setupDispatcher(t, nil)

	for i := 0; i < 3; i++ {
		_, err := dispatcher.Dispatch(context.Background(), animal, assessment(health.StatusCritical, 0.9), nil)
		require.NoError(t, err)
	}

	alerts, err := ds.ListAlerts(nil, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 3)
}

func TestDispatchPublishesOverMQTT(t *testing.T) {
	mq := &recordingMQTT{}
	dispatcher, _, animal := setupDispatcher(t, mq)

	_, err := dispatcher.Dispatch(context.Background(), animal, assessment(health.StatusCritical, 0.9), nil)
	require.NoError(t, err)

	require.Len(t, mq.payloads, 1)
	assert.Contains(t, mq.payloads[0], `"tag_id":"AB1234"`)
	assert.Contains(t, mq.payloads[0], `"severity":"critical"`)
}

func TestDispatchPublishFailureDoesNotFailDispatch(t *testing.T) {
	mq := &recordingMQTT{err: assert.AnError}
	dispatcher, ds, animal := setupDispatcher(t, mq)

	alert, err := dispatcher.Dispatch(context.Background(), animal, assessment(health.StatusNeedsAttention, 0.8), nil)
	require.NoError(t, err)
	require.NotNil(t, alert)

	alerts, err := ds.ListAlerts(nil, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}
