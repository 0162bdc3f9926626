package monitor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/herdwatch/herdwatch-go/internal/alerting"
	"github.com/herdwatch/herdwatch-go/internal/attendance"
	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/datastore"
	"github.com/herdwatch/herdwatch-go/internal/health"
	"github.com/herdwatch/herdwatch-go/internal/identify"
	"github.com/herdwatch/herdwatch-go/internal/imagesource"
	"github.com/herdwatch/herdwatch-go/internal/logging"
	"github.com/herdwatch/herdwatch-go/internal/vision"
)

func pngFrame(t *testing.T, level uint8) *imagesource.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{level, level, level, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &imagesource.Frame{
		ID:         "frame",
		Data:       buf.Bytes(),
		CapturedAt: time.Now(),
		SourcePath: "frame.png",
	}
}

// fixedTagReader always reads the same tag.
type fixedTagReader struct {
	tag        string
	confidence float64
}

func (f fixedTagReader) ReadEarTag(context.Context, *imagesource.Frame) (*identify.TagReading, error) {
	return &identify.TagReading{Text: f.tag, Confidence: f.confidence}, nil
}

func testDatastore(t *testing.T) *datastore.SQLiteStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&datastore.Animal{}, &datastore.AttendanceRecord{},
		&datastore.HealthRecord{}, &datastore.Alert{}))
	store := &datastore.SQLiteStore{}
	store.DB = db
	return store
}

func testMonitorSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Monitor.Interval = 1
	settings.Monitor.DebounceMinutes = 5
	settings.Monitor.CaptureTimeout = 5
	settings.Identify.UseOCR = true
	settings.Thresholds.DetectionConfidence = 0.5
	settings.Thresholds.OCRConfidence = 0.6
	return settings
}

// newTestController wires a pipeline with a fixed identification and a
// deterministic heuristic over static frames.
func newTestController(t *testing.T, settings *conf.Settings, ds datastore.Interface, source imagesource.Source) *Controller {
	t.Helper()

	detector := vision.NewEngine(settings, nil,
		vision.NewHeuristicBackend(rand.New(rand.NewPCG(1, 1))))
	resolver := identify.NewResolver(settings,
		fixedTagReader{tag: "AB1234", confidence: 0.85}, nil, nil, nil)
	assessor := health.NewEngine(nil, rand.New(rand.NewPCG(2, 2)))
	ledger := attendance.NewLedger(ds)
	dispatcher := alerting.NewDispatcher(settings, ds, nil, nil)

	return NewController(settings, source, detector, resolver, assessor, ledger, dispatcher, ds, nil)
}

func TestPipelineEndToEnd(t *testing.T) {
	ds := testDatastore(t)
	animal := &datastore.Animal{TagID: "AB1234", Species: "cattle"}
	require.NoError(t, ds.SaveAnimal(animal))

	settings := testMonitorSettings()
	// dark frame: health score 0.5, needs_attention
	source := imagesource.NewStaticSource(pngFrame(t, 0))
	controller := newTestController(t, settings, ds, source)

	controller.cycle(context.Background())

	today := time.Now().Format(attendance.DateLayout)
	records, err := ds.ListAttendanceByDate(today)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, animal.ID, records[0].AnimalID)
	assert.InDelta(t, 0.85, records[0].DetectionConfidence, 1e-9)
	assert.Equal(t, "ocr_ear_tag", records[0].IdentificationMethod)

	healthRecords, err := ds.ListHealthRecords(animal.ID, 0)
	require.NoError(t, err)
	require.Len(t, healthRecords, 1)
	assert.Equal(t, "needs_attention", healthRecords[0].Status)
	assert.False(t, healthRecords[0].UsingRealAI)

	updated, err := ds.GetAnimal(animal.ID)
	require.NoError(t, err)
	assert.Equal(t, "needs_attention", updated.CurrentHealthStatus)

	alerts, err := ds.ListAlerts(nil, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, alerting.SeverityMedium, alerts[0].Severity)
	assert.Equal(t, alerting.TypeHealthAttention, alerts[0].AlertType)

	snapshot := controller.Snapshot()
	assert.Equal(t, int64(1), snapshot.Frames)
	assert.Equal(t, int64(1), snapshot.Attendance)
	assert.Equal(t, int64(1), snapshot.Alerts)
}

func TestPipelineHealthyNoAlert(t *testing.T) {
	ds := testDatastore(t)
	require.NoError(t, ds.SaveAnimal(&datastore.Animal{TagID: "AB1234", Species: "cattle"}))

	settings := testMonitorSettings()
	// white frame: health score 0.8, healthy
	source := imagesource.NewStaticSource(pngFrame(t, 255))
	controller := newTestController(t, settings, ds, source)

	controller.cycle(context.Background())

	alerts, err := ds.ListAlerts(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDebounceSuppressesSecondMark(t *testing.T) {
	ds := testDatastore(t)
	require.NoError(t, ds.SaveAnimal(&datastore.Animal{TagID: "AB1234", Species: "cattle"}))

	settings := testMonitorSettings()
	source := imagesource.NewStaticSource(pngFrame(t, 0))
	controller := newTestController(t, settings, ds, source)

	ctx := context.Background()
	controller.cycle(ctx)
	controller.cycle(ctx)

	snapshot := controller.Snapshot()
	assert.Equal(t, int64(2), snapshot.Frames)
	assert.Equal(t, int64(1), snapshot.Attendance)
	assert.Equal(t, int64(1), snapshot.Debounced)

	today := time.Now().Format(attendance.DateLayout)
	records, err := ds.ListAttendanceByDate(today)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDebounceDisabledMarksEveryDay(t *testing.T) {
	ds := testDatastore(t)
	animal := &datastore.Animal{TagID: "AB1234", Species: "cattle"}
	require.NoError(t, ds.SaveAnimal(animal))

	settings := testMonitorSettings()
	settings.Monitor.DebounceMinutes = 0

	day1 := pngFrame(t, 0)
	day2 := pngFrame(t, 0)
	day2.CapturedAt = day1.CapturedAt.Add(24 * time.Hour)
	source := imagesource.NewStaticSource(day1, day2)
	controller := newTestController(t, settings, ds, source)

	ctx := context.Background()
	controller.cycle(ctx)
	controller.cycle(ctx)

	// with debouncing off no sighting is ever suppressed, so the second
	// day gets its own record
	snapshot := controller.Snapshot()
	assert.Equal(t, int64(2), snapshot.Attendance)
	assert.Equal(t, int64(0), snapshot.Debounced)

	for _, day := range []time.Time{day1.CapturedAt, day2.CapturedAt} {
		records, err := ds.ListAttendanceByDate(day.Format(attendance.DateLayout))
		require.NoError(t, err)
		require.Len(t, records, 1, "expected a record for %s", day.Format(attendance.DateLayout))
		assert.Equal(t, animal.ID, records[0].AnimalID)
	}
}

func TestAnimalLookupFailureLoggedAsError(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf, io.Discard)
	defer logging.SetOutput(os.Stdout, os.Stderr)

	ds := testDatastore(t)
	settings := testMonitorSettings()
	source := imagesource.NewStaticSource(pngFrame(t, 0))
	controller := newTestController(t, settings, ds, source)

	// an unregistered tag is a quiet skip, not an error
	controller.cycle(context.Background())
	assert.Contains(t, buf.String(), "tag not registered")
	assert.NotContains(t, buf.String(), "animal lookup failed")

	// a broken datastore must surface as an error, not masquerade as an
	// unregistered tag
	buf.Reset()
	sqlDB, err := ds.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	controller.cycle(context.Background())
	assert.Contains(t, buf.String(), "animal lookup failed")
	assert.NotContains(t, buf.String(), "tag not registered")
}

func TestUnregisteredTagSkipsLedger(t *testing.T) {
	ds := testDatastore(t)
	// no animals registered

	settings := testMonitorSettings()
	source := imagesource.NewStaticSource(pngFrame(t, 0))
	controller := newTestController(t, settings, ds, source)

	controller.cycle(context.Background())

	today := time.Now().Format(attendance.DateLayout)
	records, err := ds.ListAttendanceByDate(today)
	require.NoError(t, err)
	assert.Empty(t, records)

	alerts, err := ds.ListAlerts(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestCaptureFailureSkipsFrame(t *testing.T) {
	ds := testDatastore(t)
	settings := testMonitorSettings()

	source := imagesource.NewStaticSource(pngFrame(t, 0))
	source.CaptureErr = assert.AnError
	controller := newTestController(t, settings, ds, source)

	controller.cycle(context.Background())

	snapshot := controller.Snapshot()
	assert.Equal(t, int64(0), snapshot.Frames)
	assert.Equal(t, int64(1), snapshot.CaptureFailures)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ds := testDatastore(t)
	require.NoError(t, ds.SaveAnimal(&datastore.Animal{TagID: "AB1234", Species: "cattle"}))

	settings := testMonitorSettings()
	source := imagesource.NewStaticSource(pngFrame(t, 255))
	controller := newTestController(t, settings, ds, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- controller.Run(ctx) }()

	// first cycle runs immediately; then cancel between frames
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop on context cancel")
	}
	assert.Equal(t, StateStopped, controller.State())
	assert.GreaterOrEqual(t, controller.Snapshot().Frames, int64(1))
}

func TestRunFatalOnConnectFailure(t *testing.T) {
	ds := testDatastore(t)
	settings := testMonitorSettings()
	settings.Monitor.Source = "/nonexistent/path"

	source := imagesource.NewDirectorySource("/nonexistent/path")
	controller := newTestController(t, settings, ds, source)

	err := controller.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateStopped, controller.State())
}

func TestConcurrentPipelinePerAnimalSerialized(t *testing.T) {
	ds := testDatastore(t)
	require.NoError(t, ds.SaveAnimal(&datastore.Animal{TagID: "AB1234", Species: "cattle"}))

	settings := testMonitorSettings()
	settings.Monitor.ConcurrentPipeline = true
	source := imagesource.NewStaticSource(pngFrame(t, 0))
	controller := newTestController(t, settings, ds, source)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	require.NoError(t, controller.Run(ctx))

	today := time.Now().Format(attendance.DateLayout)
	records, err := ds.ListAttendanceByDate(today)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStopTakesEffectBetweenFrames(t *testing.T) {
	ds := testDatastore(t)
	settings := testMonitorSettings()
	source := imagesource.NewStaticSource(pngFrame(t, 255))
	controller := newTestController(t, settings, ds, source)

	done := make(chan error, 1)
	go func() { done <- controller.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	controller.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop")
	}
	assert.Equal(t, StateStopped, controller.State())
}
