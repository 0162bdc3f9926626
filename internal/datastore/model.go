// model.go this code defines the data model for the application
package datastore

import "time"

// Animal represents a registered livestock animal.
type Animal struct {
	ID        uint   `gorm:"primaryKey"`
	TagID     string `gorm:"size:50;uniqueIndex;not null"`
	Name      string `gorm:"size:100"`
	Species   string `gorm:"size:20;index"`
	Breed     string `gorm:"size:100"`
	AgeMonths int
	Gender    string `gorm:"size:10"`
	WeightKg  float64

	// Identification references
	MuzzlePrintHash string `gorm:"size:256;index"`
	QRCode          string `gorm:"size:100"`
	EarTagNumber    string `gorm:"size:50"`

	Notes     string `gorm:"type:text"`
	ImagePath string `gorm:"size:500"`

	// Health status cached from the latest health record
	CurrentHealthStatus string `gorm:"size:20;default:unknown"`
	LastHealthCheck     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	HealthRecords     []HealthRecord     `gorm:"foreignKey:AnimalID;constraint:OnDelete:CASCADE"`
	AttendanceRecords []AttendanceRecord `gorm:"foreignKey:AnimalID;constraint:OnDelete:CASCADE"`
	Alerts            []Alert            `gorm:"foreignKey:AnimalID;constraint:OnDelete:CASCADE"`
}

// AttendanceRecord is the daily presence record for one animal.
// At most one record exists per (animal, date) pair; the date is stored
// in ISO 8601 form to keep the composite key portable across drivers.
type AttendanceRecord struct {
	ID       uint   `gorm:"primaryKey"`
	AnimalID uint   `gorm:"not null;index;uniqueIndex:idx_attendance_animal_date"`
	Date     string `gorm:"size:10;not null;index;uniqueIndex:idx_attendance_animal_date"`

	DetectedAt           time.Time
	DetectionConfidence  float64
	IdentificationMethod string `gorm:"size:50"`

	LocationZone string `gorm:"size:100"`
	ImagePath    string `gorm:"size:500"`
}

// HealthRecord stores one health assessment for an animal.
type HealthRecord struct {
	ID       uint `gorm:"primaryKey"`
	AnimalID uint `gorm:"not null;index"`

	Status     string `gorm:"size:20"`
	Confidence float64

	PostureScore       float64
	CoatConditionScore float64
	MobilityScore      float64
	AlertnessScore     float64

	// Serialized findings and recommendations; enums and structures live
	// in memory, strings only at this boundary.
	FindingsJSON        string `gorm:"type:text"`
	RecommendationsJSON string `gorm:"type:text"`

	ImagePath        string `gorm:"size:500"`
	ProcessingTimeMs float64
	UsingRealAI      bool

	CreatedAt time.Time `gorm:"index"`
}

// Alert is a notification about animal health or status.
type Alert struct {
	ID       uint  `gorm:"primaryKey"`
	AnimalID *uint `gorm:"index"`

	AlertType string `gorm:"size:50"`
	Severity  string `gorm:"size:20"`
	Title     string `gorm:"size:200;not null"`
	Message   string `gorm:"type:text;not null"`

	Resolved        bool `gorm:"default:false;index"`
	ResolvedAt      *time.Time
	ResolvedBy      string `gorm:"size:100"`
	ResolutionNotes string `gorm:"type:text"`

	HealthRecordID *uint
	ImagePath      string `gorm:"size:500"`

	CreatedAt time.Time `gorm:"index"`
}
