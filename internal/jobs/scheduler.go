// Package jobs runs scheduled background tasks against the herd database.
package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/herdwatch/herdwatch-go/internal/alerting"
	"github.com/herdwatch/herdwatch-go/internal/attendance"
	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/datastore"
	"github.com/herdwatch/herdwatch-go/internal/errors"
	"github.com/herdwatch/herdwatch-go/internal/logging"
	"github.com/herdwatch/herdwatch-go/internal/observability"
)

// DefaultMissingSweepSchedule runs the sweep shortly before midnight so the
// day's attendance is as complete as it will get.
const DefaultMissingSweepSchedule = "45 23 * * *"

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	settings *conf.Settings
	ds       datastore.Interface
	metrics  *observability.Metrics
	cron     *cron.Cron
	log      *slog.Logger
}

// NewScheduler creates a scheduler with no jobs registered yet.
func NewScheduler(settings *conf.Settings, ds datastore.Interface, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		settings: settings,
		ds:       ds,
		metrics:  metrics,
		cron:     cron.New(),
		log:      logging.ForService("jobs"),
	}
}

// Start registers the enabled jobs and begins the cron loop.
func (s *Scheduler) Start() error {
	if s.settings.Jobs.MissingSweepEnabled {
		schedule := s.settings.Jobs.MissingSweepSchedule
		if schedule == "" {
			schedule = DefaultMissingSweepSchedule
		}
		if _, err := s.cron.AddFunc(schedule, s.runMissingSweep); err != nil {
			return errors.New(fmt.Errorf("failed to register missing animal sweep: %w", err)).
				Component("jobs").
				Category(errors.CategoryConfiguration).
				Context("schedule", schedule).
				Build()
		}
		s.log.Info("missing animal sweep scheduled", "schedule", schedule)
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop, waiting for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runMissingSweep() {
	created, err := s.MissingSweep(time.Now())
	if err != nil {
		s.log.Error("missing animal sweep failed", "error", err)
		return
	}
	s.log.Info("missing animal sweep completed", "alerts_created", created)
}

// MissingSweep creates a high severity alert for every registered animal with
// no attendance record on the given day. Animals that already have an open
// missing_animal alert from the same day are skipped so repeated sweeps do
// not pile up duplicates. It returns the number of alerts created.
func (s *Scheduler) MissingSweep(day time.Time) (int, error) {
	date := day.Format(attendance.DateLayout)

	missing, err := s.ds.ListAnimalsNotSeenOn(date)
	if err != nil {
		return 0, errors.New(fmt.Errorf("failed to list missing animals: %w", err)).
			Component("jobs").
			Category(errors.CategoryDatastore).
			Context("date", date).
			Build()
	}

	created := 0
	for i := range missing {
		animal := &missing[i]

		open, err := s.ds.HasUnresolvedAlert(animal.ID, alerting.TypeMissingAnimal, date)
		if err != nil {
			s.log.Error("failed to check open alerts", "animal_id", animal.ID, "error", err)
			continue
		}
		if open {
			continue
		}

		alert := &datastore.Alert{
			AnimalID:  &animal.ID,
			AlertType: alerting.TypeMissingAnimal,
			Severity:  alerting.SeverityHigh,
			Title:     fmt.Sprintf("Missing Animal: %s", animal.TagID),
			Message:   fmt.Sprintf("Animal %s was not detected on %s.", animal.TagID, date),
		}
		if err := s.ds.InsertAlert(alert); err != nil {
			s.log.Error("failed to create missing animal alert", "animal_id", animal.ID, "error", err)
			continue
		}
		created++

		if s.metrics != nil {
			s.metrics.AlertsCreated.WithLabelValues(alerting.SeverityHigh).Inc()
		}
		s.log.Warn("animal missing",
			"animal_id", animal.ID,
			"tag_id", animal.TagID,
			"date", date)
	}

	return created, nil
}
