package monitor

import (
	"encoding/json"

	"github.com/herdwatch/herdwatch-go/internal/datastore"
	"github.com/herdwatch/herdwatch-go/internal/health"
)

// buildHealthRecord serializes an assessment for the persistence
// boundary. Findings and recommendations travel as JSON text columns;
// the typed structures live only in memory.
func buildHealthRecord(animalID uint, assessment *health.Assessment, imagePath string) *datastore.HealthRecord {
	findings, err := json.Marshal(assessment.Findings)
	if err != nil {
		findings = []byte("{}")
	}
	recommendations, err := json.Marshal(assessment.Recommendations)
	if err != nil {
		recommendations = []byte("[]")
	}

	return &datastore.HealthRecord{
		AnimalID:            animalID,
		Status:              assessment.Status.String(),
		Confidence:          assessment.Confidence,
		PostureScore:        assessment.Scores.Posture,
		CoatConditionScore:  assessment.Scores.Coat,
		MobilityScore:       assessment.Scores.Mobility,
		AlertnessScore:      assessment.Scores.Alertness,
		FindingsJSON:        string(findings),
		RecommendationsJSON: string(recommendations),
		ImagePath:           imagePath,
		ProcessingTimeMs:    assessment.ProcessingTimeMs,
		UsingRealAI:         assessment.UsingRealAI,
	}
}
