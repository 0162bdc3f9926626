// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/herdwatch/herdwatch-go/internal/conf"
)

// Interface abstracts the underlying database implementation and defines the
// operations the pipeline and its boundary surfaces need.
type Interface interface {
	Open() error
	Close() error

	// Animals
	GetAnimal(id uint) (Animal, error)
	GetAnimalByTagID(tagID string) (Animal, error)
	GetAnimalByMuzzleHash(hash string) (Animal, error)
	ListAnimals() ([]Animal, error)
	CountAnimals() (int64, error)
	SaveAnimal(animal *Animal) error
	UpdateAnimalHealth(animalID uint, status string) error

	// Attendance ledger operations
	GetAttendance(animalID uint, date string) (*AttendanceRecord, error)
	InsertAttendance(record *AttendanceRecord) error
	UpdateAttendance(record *AttendanceRecord) error
	ListAttendanceByDate(date string) ([]AttendanceRecord, error)
	ListAnimalsNotSeenOn(date string) ([]Animal, error)

	// Health records
	SaveHealthRecord(record *HealthRecord) error
	ListHealthRecords(animalID uint, limit int) ([]HealthRecord, error)

	// Alerts
	InsertAlert(alert *Alert) error
	ListAlerts(resolved *bool, limit int) ([]Alert, error)
	ResolveAlert(id uint, resolvedBy, notes string) error
	HasUnresolvedAlert(animalID uint, alertType, since string) (bool, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// GetAnimal retrieves an animal by its ID.
func (ds *DataStore) GetAnimal(id uint) (Animal, error) {
	var animal Animal
	if err := ds.DB.First(&animal, id).Error; err != nil {
		return Animal{}, fmt.Errorf("getting animal with ID %d: %w", id, err)
	}
	return animal, nil
}

// GetAnimalByTagID retrieves an animal by its unique tag identifier.
func (ds *DataStore) GetAnimalByTagID(tagID string) (Animal, error) {
	var animal Animal
	if err := ds.DB.Where("tag_id = ?", tagID).First(&animal).Error; err != nil {
		return Animal{}, fmt.Errorf("getting animal with tag %q: %w", tagID, err)
	}
	return animal, nil
}

// GetAnimalByMuzzleHash retrieves an animal by its stored muzzle print hash.
func (ds *DataStore) GetAnimalByMuzzleHash(hash string) (Animal, error) {
	var animal Animal
	if err := ds.DB.Where("muzzle_print_hash = ?", hash).First(&animal).Error; err != nil {
		return Animal{}, fmt.Errorf("getting animal with muzzle hash: %w", err)
	}
	return animal, nil
}

// ListAnimals retrieves all registered animals.
func (ds *DataStore) ListAnimals() ([]Animal, error) {
	var animals []Animal
	if err := ds.DB.Order("tag_id").Find(&animals).Error; err != nil {
		return nil, fmt.Errorf("listing animals: %w", err)
	}
	return animals, nil
}

// CountAnimals returns the number of registered animals.
func (ds *DataStore) CountAnimals() (int64, error) {
	var count int64
	if err := ds.DB.Model(&Animal{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting animals: %w", err)
	}
	return count, nil
}

// SaveAnimal inserts or updates an animal record.
func (ds *DataStore) SaveAnimal(animal *Animal) error {
	if err := ds.DB.Save(animal).Error; err != nil {
		return fmt.Errorf("saving animal: %w", err)
	}
	return nil
}

// UpdateAnimalHealth updates the cached health status on the animal row.
func (ds *DataStore) UpdateAnimalHealth(animalID uint, status string) error {
	err := ds.DB.Model(&Animal{}).
		Where("id = ?", animalID).
		Updates(map[string]any{
			"current_health_status": status,
			"last_health_check":     gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
	if err != nil {
		return fmt.Errorf("updating health status for animal %d: %w", animalID, err)
	}
	return nil
}

// GetAttendance looks up the attendance record for an animal on a calendar
// day. Returns (nil, nil) when no record exists, which is a normal outcome.
func (ds *DataStore) GetAttendance(animalID uint, date string) (*AttendanceRecord, error) {
	var record AttendanceRecord
	err := ds.DB.Where("animal_id = ? AND date = ?", animalID, date).First(&record).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting attendance for animal %d on %s: %w", animalID, date, err)
	}
	return &record, nil
}

// InsertAttendance stores a new attendance record.
func (ds *DataStore) InsertAttendance(record *AttendanceRecord) error {
	if err := ds.DB.Create(record).Error; err != nil {
		return fmt.Errorf("inserting attendance record: %w", err)
	}
	return nil
}

// UpdateAttendance persists changes to an existing attendance record.
func (ds *DataStore) UpdateAttendance(record *AttendanceRecord) error {
	if err := ds.DB.Save(record).Error; err != nil {
		return fmt.Errorf("updating attendance record %d: %w", record.ID, err)
	}
	return nil
}

// ListAttendanceByDate retrieves all attendance records for a calendar day.
func (ds *DataStore) ListAttendanceByDate(date string) ([]AttendanceRecord, error) {
	var records []AttendanceRecord
	if err := ds.DB.Where("date = ?", date).Order("detected_at").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing attendance for %s: %w", date, err)
	}
	return records, nil
}

// ListAnimalsNotSeenOn returns animals with no attendance record on the
// given day.
func (ds *DataStore) ListAnimalsNotSeenOn(date string) ([]Animal, error) {
	var animals []Animal
	subQuery := ds.DB.Model(&AttendanceRecord{}).Select("animal_id").Where("date = ?", date)
	if err := ds.DB.Where("id NOT IN (?)", subQuery).Find(&animals).Error; err != nil {
		return nil, fmt.Errorf("listing animals not seen on %s: %w", date, err)
	}
	return animals, nil
}

// SaveHealthRecord stores one health assessment.
func (ds *DataStore) SaveHealthRecord(record *HealthRecord) error {
	if err := ds.DB.Create(record).Error; err != nil {
		return fmt.Errorf("saving health record: %w", err)
	}
	return nil
}

// ListHealthRecords retrieves the most recent health records for an animal.
func (ds *DataStore) ListHealthRecords(animalID uint, limit int) ([]HealthRecord, error) {
	var records []HealthRecord
	query := ds.DB.Where("animal_id = ?", animalID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing health records for animal %d: %w", animalID, err)
	}
	return records, nil
}

// InsertAlert stores a new alert.
func (ds *DataStore) InsertAlert(alert *Alert) error {
	if err := ds.DB.Create(alert).Error; err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// ListAlerts retrieves alerts, optionally filtered by resolution state.
func (ds *DataStore) ListAlerts(resolved *bool, limit int) ([]Alert, error) {
	var alerts []Alert
	query := ds.DB.Order("created_at DESC")
	if resolved != nil {
		query = query.Where("resolved = ?", *resolved)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	return alerts, nil
}

// ResolveAlert marks an alert as resolved.
func (ds *DataStore) ResolveAlert(id uint, resolvedBy, notes string) error {
	result := ds.DB.Model(&Alert{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]any{
			"resolved":         true,
			"resolved_at":      gorm.Expr("CURRENT_TIMESTAMP"),
			"resolved_by":      resolvedBy,
			"resolution_notes": notes,
		})
	if result.Error != nil {
		return fmt.Errorf("resolving alert %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("alert %d not found or already resolved", id)
	}
	return nil
}

// HasUnresolvedAlert reports whether an unresolved alert of the given type
// exists for the animal, created on or after the given date.
func (ds *DataStore) HasUnresolvedAlert(animalID uint, alertType, since string) (bool, error) {
	var count int64
	err := ds.DB.Model(&Alert{}).
		Where("animal_id = ? AND alert_type = ? AND resolved = ? AND created_at >= ?",
			animalID, alertType, false, since).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking unresolved alerts for animal %d: %w", animalID, err)
	}
	return count > 0, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
