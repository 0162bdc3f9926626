// Package attendance maintains the daily presence ledger: at most one
// record per animal per calendar day, with in-place confidence upgrades.
package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/herdwatch/herdwatch-go/internal/datastore"
	"github.com/herdwatch/herdwatch-go/internal/errors"
	"github.com/herdwatch/herdwatch-go/internal/logging"
)

// DateLayout is the ledger's calendar day key format.
const DateLayout = "2006-01-02"

// MarkRequest describes one observation of an animal.
type MarkRequest struct {
	AnimalID     uint
	Confidence   float64
	Method       string
	LocationZone string
	ImagePath    string
	ObservedAt   time.Time // zero means now
}

// Ledger serializes attendance writes per animal and enforces the
// one-record-per-day invariant on top of the datastore.
type Ledger struct {
	ds  datastore.Interface
	log *slog.Logger

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewLedger creates a ledger over the datastore.
func NewLedger(ds datastore.Interface) *Ledger {
	return &Ledger{
		ds:    ds,
		log:   logging.ForService("attendance"),
		locks: make(map[uint]*sync.Mutex),
	}
}

// keyLock returns the mutex guarding one animal's ledger entries.
// Concurrent pipeline runs touching different animals do not contend.
func (l *Ledger) keyLock(animalID uint) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[animalID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[animalID] = lock
	}
	return lock
}

// Mark records an observation. The first observation of the day creates
// the record; later observations upgrade confidence, timestamp and image
// path in place only when strictly higher confidence arrives. Duplicate
// marks are normal operation, never an error. Returns the stored record
// and whether it was newly created.
func (l *Ledger) Mark(ctx context.Context, req MarkRequest) (*datastore.AttendanceRecord, bool, error) {
	observedAt := req.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}
	day := observedAt.Format(DateLayout)

	lock := l.keyLock(req.AnimalID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := l.ds.GetAttendance(req.AnimalID, day)
	if err != nil {
		return nil, false, l.writeError("looking up attendance", req.AnimalID, day, err)
	}

	if existing == nil {
		record := &datastore.AttendanceRecord{
			AnimalID:             req.AnimalID,
			Date:                 day,
			DetectedAt:           observedAt,
			DetectionConfidence:  req.Confidence,
			IdentificationMethod: req.Method,
			LocationZone:         req.LocationZone,
			ImagePath:            req.ImagePath,
		}
		if err := l.ds.InsertAttendance(record); err != nil {
			return nil, false, l.writeError("inserting attendance", req.AnimalID, day, err)
		}
		l.log.Debug("attendance recorded",
			"animal_id", req.AnimalID, "date", day, "confidence", req.Confidence)
		return record, true, nil
	}

	if req.Confidence <= existing.DetectionConfidence {
		return existing, false, nil
	}

	existing.DetectionConfidence = req.Confidence
	existing.DetectedAt = observedAt
	if req.ImagePath != "" {
		existing.ImagePath = req.ImagePath
	}
	if err := l.ds.UpdateAttendance(existing); err != nil {
		return nil, false, l.writeError("updating attendance", req.AnimalID, day, err)
	}
	l.log.Debug("attendance confidence upgraded",
		"animal_id", req.AnimalID, "date", day, "confidence", req.Confidence)
	return existing, false, nil
}

func (l *Ledger) writeError(op string, animalID uint, day string, err error) error {
	return errors.New(fmt.Errorf("%w: %s: %w", errors.ErrPersistenceWrite, op, err)).
		Component("attendance").
		Category(errors.CategoryDatastore).
		Context("animal_id", animalID).
		Context("date", day).
		Build()
}
