// Package health assesses livestock health from captured frames.
package health

// Status is the tri-state health classification.
type Status string

const (
	StatusHealthy        Status = "healthy"
	StatusNeedsAttention Status = "needs_attention"
	StatusCritical       Status = "critical"
)

func (s Status) String() string { return string(s) }

// Valid reports whether the status is one of the three classifications.
func (s Status) Valid() bool {
	switch s {
	case StatusHealthy, StatusNeedsAttention, StatusCritical:
		return true
	}
	return false
}

// StatusForScore maps an overall health score to a status.
// score >= 0.75 is healthy, 0.5 <= score < 0.75 needs attention,
// anything lower is critical.
func StatusForScore(score float64) Status {
	switch {
	case score >= 0.75:
		return StatusHealthy
	case score >= 0.5:
		return StatusNeedsAttention
	default:
		return StatusCritical
	}
}

// Scores are the four visual health component scores, each in [0,1].
type Scores struct {
	Posture   float64 `json:"posture_score"`
	Coat      float64 `json:"coat_condition_score"`
	Mobility  float64 `json:"mobility_score"`
	Alertness float64 `json:"alertness_score"`
}

// Findings derive deterministically from the component scores.
type Findings struct {
	OverallScore       float64  `json:"overall_score"`
	DetectedSymptoms   []string `json:"detected_symptoms"`
	PositiveIndicators []string `json:"positive_indicators"`
}

// Assessment is the outcome of one health classification pass.
type Assessment struct {
	Status           Status   `json:"status"`
	Confidence       float64  `json:"confidence"`
	Scores           Scores   `json:"scores"`
	Findings         Findings `json:"findings"`
	Recommendations  []string `json:"recommendations"`
	ProcessingTimeMs float64  `json:"processing_time_ms"`
	UsingRealAI      bool     `json:"using_real_ai"`
}
