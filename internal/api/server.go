// Package api exposes the boundary HTTP surface: health, metrics and
// read endpoints over the herd datastore.
package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/herdwatch/herdwatch-go/internal/attendance"
	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/datastore"
	"github.com/herdwatch/herdwatch-go/internal/logging"
	"github.com/herdwatch/herdwatch-go/internal/observability"
)

// Server is the boundary HTTP API.
type Server struct {
	echo     *echo.Echo
	ds       datastore.Interface
	settings *conf.Settings
	metrics  *observability.Metrics
	log      *slog.Logger
}

// New builds the server and its routes.
func New(settings *conf.Settings, ds datastore.Interface, metrics *observability.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		ds:       ds,
		settings: settings,
		metrics:  metrics,
		log:      logging.ForService("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.healthz)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/attendance/today", s.attendanceToday)
	v1.GET("/attendance/:date", s.attendanceByDate)
	v1.GET("/alerts", s.listAlerts)
	v1.POST("/alerts/:id/resolve", s.resolveAlert)
	v1.GET("/animals", s.listAnimals)
	v1.GET("/animals/:id", s.getAnimal)
}

// Start serves on the configured port until Shutdown.
func (s *Server) Start() error {
	addr := ":" + s.settings.WebServer.Port
	s.log.Info("API server listening", "addr", addr)
	err := s.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close stops the server.
func (s *Server) Close() error {
	return s.echo.Close()
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// attendanceSummary is the per-day report payload.
type attendanceSummary struct {
	Date              string                       `json:"date"`
	TotalAnimals      int64                        `json:"total_animals"`
	DetectedCount     int                          `json:"detected_count"`
	MissingCount      int64                        `json:"missing_count"`
	AttendanceRate    float64                      `json:"attendance_rate"`
	AttendanceRecords []datastore.AttendanceRecord `json:"attendance_records"`
	MissingAnimals    []datastore.Animal           `json:"missing_animals"`
}

func (s *Server) attendanceToday(c echo.Context) error {
	return s.attendanceSummaryFor(c, time.Now().Format(attendance.DateLayout))
}

func (s *Server) attendanceByDate(c echo.Context) error {
	day := c.Param("date")
	if _, err := time.Parse(attendance.DateLayout, day); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return s.attendanceSummaryFor(c, day)
}

func (s *Server) attendanceSummaryFor(c echo.Context, day string) error {
	total, err := s.ds.CountAnimals()
	if err != nil {
		return s.internalError(c, err)
	}
	records, err := s.ds.ListAttendanceByDate(day)
	if err != nil {
		return s.internalError(c, err)
	}
	missing, err := s.ds.ListAnimalsNotSeenOn(day)
	if err != nil {
		return s.internalError(c, err)
	}

	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(len(records))/float64(total)*100*100) / 100
	}

	return c.JSON(http.StatusOK, attendanceSummary{
		Date:              day,
		TotalAnimals:      total,
		DetectedCount:     len(records),
		MissingCount:      total - int64(len(records)),
		AttendanceRate:    rate,
		AttendanceRecords: records,
		MissingAnimals:    missing,
	})
}

func (s *Server) listAlerts(c echo.Context) error {
	var resolved *bool
	if raw := c.QueryParam("resolved"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "resolved must be a boolean")
		}
		resolved = &value
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = value
	}

	alerts, err := s.ds.ListAlerts(resolved, limit)
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, alerts)
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes"`
}

func (s *Server) resolveAlert(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid alert id")
	}

	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.ds.ResolveAlert(uint(id), req.ResolvedBy, req.Notes); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "alert not found or already resolved")
	}
	return c.JSON(http.StatusOK, map[string]any{"resolved": true, "id": id})
}

func (s *Server) listAnimals(c echo.Context) error {
	animals, err := s.ds.ListAnimals()
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, animals)
}

func (s *Server) getAnimal(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid animal id")
	}

	animal, err := s.ds.GetAnimal(uint(id))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "animal not found")
	}
	return c.JSON(http.StatusOK, animal)
}

func (s *Server) internalError(c echo.Context, err error) error {
	s.log.Error("request failed", "path", c.Path(), "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
