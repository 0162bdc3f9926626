package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/herdwatch/herdwatch-go/internal/attendance"
	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/datastore"
)

func setupServer(t *testing.T) (*Server, *datastore.SQLiteStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&datastore.Animal{}, &datastore.AttendanceRecord{},
		&datastore.HealthRecord{}, &datastore.Alert{}))
	ds := &datastore.SQLiteStore{}
	ds.DB = db

	settings := &conf.Settings{}
	settings.WebServer.Port = "8080"
	return New(settings, ds, nil), ds
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	server, _ := setupServer(t)
	rec := doRequest(server, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAttendanceToday(t *testing.T) {
	server, ds := setupServer(t)

	present := &datastore.Animal{TagID: "AB1234", Species: "cattle"}
	absent := &datastore.Animal{TagID: "CD5678", Species: "goat"}
	require.NoError(t, ds.SaveAnimal(present))
	require.NoError(t, ds.SaveAnimal(absent))

	today := time.Now().Format(attendance.DateLayout)
	require.NoError(t, ds.InsertAttendance(&datastore.AttendanceRecord{
		AnimalID: present.ID, Date: today, DetectionConfidence: 0.9,
	}))

	rec := doRequest(server, http.MethodGet, "/api/v1/attendance/today", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.EqualValues(t, 2, summary["total_animals"])
	assert.EqualValues(t, 1, summary["detected_count"])
	assert.EqualValues(t, 1, summary["missing_count"])
	assert.EqualValues(t, 50, summary["attendance_rate"])

	missing := summary["missing_animals"].([]any)
	require.Len(t, missing, 1)
}

func TestAttendanceByDateValidation(t *testing.T) {
	server, _ := setupServer(t)
	rec := doRequest(server, http.MethodGet, "/api/v1/attendance/not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(server, http.MethodGet, "/api/v1/attendance/2025-06-01", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListAlertsFilter(t *testing.T) {
	server, ds := setupServer(t)
	animal := &datastore.Animal{TagID: "AB1234"}
	require.NoError(t, ds.SaveAnimal(animal))

	require.NoError(t, ds.InsertAlert(&datastore.Alert{
		AnimalID: &animal.ID, AlertType: "health_critical", Severity: "critical",
		Title: "Health Alert: AB1234", Message: "m",
	}))
	require.NoError(t, ds.InsertAlert(&datastore.Alert{
		AnimalID: &animal.ID, AlertType: "health_attention", Severity: "medium",
		Title: "Health Alert: AB1234", Message: "m", Resolved: true,
	}))

	rec := doRequest(server, http.MethodGet, "/api/v1/alerts?resolved=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts []datastore.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "health_critical", alerts[0].AlertType)

	rec = doRequest(server, http.MethodGet, "/api/v1/alerts?resolved=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveAlert(t *testing.T) {
	server, ds := setupServer(t)
	animal := &datastore.Animal{TagID: "AB1234"}
	require.NoError(t, ds.SaveAnimal(animal))
	alert := &datastore.Alert{AnimalID: &animal.ID, AlertType: "health_critical",
		Severity: "critical", Title: "t", Message: "m"}
	require.NoError(t, ds.InsertAlert(alert))

	rec := doRequest(server, http.MethodPost, "/api/v1/alerts/1/resolve",
		`{"resolved_by":"vet","notes":"checked"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// already resolved
	rec = doRequest(server, http.MethodPost, "/api/v1/alerts/1/resolve", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnimalsEndpoints(t *testing.T) {
	server, ds := setupServer(t)
	animal := &datastore.Animal{TagID: "AB1234", Name: "Bella", Species: "cattle"}
	require.NoError(t, ds.SaveAnimal(animal))

	rec := doRequest(server, http.MethodGet, "/api/v1/animals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var animals []datastore.Animal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &animals))
	require.Len(t, animals, 1)

	rec = doRequest(server, http.MethodGet, "/api/v1/animals/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(server, http.MethodGet, "/api/v1/animals/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
