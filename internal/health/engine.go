package health

import (
	"context"
	"image"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/herdwatch/herdwatch-go/internal/imagesource"
	"github.com/herdwatch/herdwatch-go/internal/logging"
	"github.com/herdwatch/herdwatch-go/internal/vision"
)

// Classifier is the model path: class probabilities over the three
// statuses, from which the engine takes the arg-max.
type Classifier interface {
	Classify(ctx context.Context, img image.Image, speciesHint vision.Species) (map[Status]float64, error)
}

// Component score baselines per status, jittered within ±0.1 and
// clamped to [0.1, 1.0].
var baseScores = map[Status]Scores{
	StatusHealthy:        {Posture: 0.90, Coat: 0.88, Mobility: 0.92, Alertness: 0.85},
	StatusNeedsAttention: {Posture: 0.70, Coat: 0.65, Mobility: 0.72, Alertness: 0.68},
	StatusCritical:       {Posture: 0.45, Coat: 0.40, Mobility: 0.50, Alertness: 0.42},
}

var statusRecommendations = map[Status][]string{
	StatusHealthy: {
		"Continue regular health monitoring",
		"Maintain current nutrition program",
		"Keep vaccination schedule up to date",
	},
	StatusNeedsAttention: {
		"Schedule veterinary checkup within 48 hours",
		"Monitor eating and drinking patterns",
		"Isolate from herd if symptoms worsen",
		"Keep detailed observation logs",
	},
	StatusCritical: {
		"URGENT: Contact veterinarian immediately",
		"Isolate animal from the herd",
		"Ensure access to fresh water and shelter",
		"Do not administer medication without vet guidance",
		"Document all symptoms and timeline",
	},
}

// symptomRecommendations are appended when the matching symptom tag is
// present, subject to the overall cap.
var symptomRecommendations = map[string]string{
	"coat_issues":     "Review nutritional supplements",
	"mobility_issues": "Inspect hooves and legs for injury",
	"lethargy":        "Check hydration and body temperature",
}

const maxRecommendations = 5

// Engine runs health assessment, preferring the model path and falling
// back to image-statistics heuristics marked using_real_ai=false.
type Engine struct {
	classifier Classifier
	log        *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates an assessment engine. A nil classifier means no model
// is shipped and every call takes the heuristic path.
func NewEngine(classifier Classifier, rng *rand.Rand) *Engine {
	return &Engine{
		classifier: classifier,
		rng:        rng,
		log:        logging.ForService("health"),
	}
}

// Assess classifies the animal in the frame. Classifier failure falls
// back to the heuristic path rather than propagating; each call is an
// independent classification with no state carried across calls.
func (e *Engine) Assess(ctx context.Context, frame *imagesource.Frame, speciesHint vision.Species) *Assessment {
	start := time.Now()

	img, decodeErr := frame.Decode()

	if e.classifier != nil && decodeErr == nil {
		probs, err := e.classifier.Classify(ctx, img, speciesHint)
		if err == nil {
			assessment := e.fromProbabilities(probs)
			assessment.ProcessingTimeMs = elapsedMs(start)
			return assessment
		}
		e.log.Warn("health classifier failed, using heuristic path",
			"frame", frame.ID, "error", err)
	}

	assessment := e.heuristic(img, decodeErr != nil)
	assessment.ProcessingTimeMs = elapsedMs(start)
	return assessment
}

// fromProbabilities takes the arg-max class as status and its
// probability as confidence.
func (e *Engine) fromProbabilities(probs map[Status]float64) *Assessment {
	status := StatusHealthy
	confidence := 0.0
	for _, s := range []Status{StatusHealthy, StatusNeedsAttention, StatusCritical} {
		if p := probs[s]; p > confidence {
			status = s
			confidence = p
		}
	}
	return e.build(status, round4(confidence), true)
}

// heuristic derives a health score from simple image statistics, or from
// a bounded random draw when no statistics are available.
func (e *Engine) heuristic(img image.Image, noImage bool) *Assessment {
	var score float64
	if noImage || img == nil {
		score = e.uniform(0.6, 0.9)
	} else {
		brightness, variance := imageStats(img)
		score = 0.5 + brightness*0.3 + variance*0.2
		score = clamp(score, 0.3, 0.95)
	}

	status := StatusForScore(score)
	var confidence float64
	switch status {
	case StatusHealthy:
		confidence = score
	case StatusNeedsAttention:
		confidence = 0.7 + e.uniform(0, 0.15)
	default:
		confidence = 0.65 + e.uniform(0, 0.2)
	}

	return e.build(status, round4(confidence), false)
}

// build assembles component scores, findings and recommendations for a
// classified status.
func (e *Engine) build(status Status, confidence float64, usingRealAI bool) *Assessment {
	scores := e.componentScores(status)
	findings := deriveFindings(scores)
	return &Assessment{
		Status:          status,
		Confidence:      confidence,
		Scores:          scores,
		Findings:        findings,
		Recommendations: recommend(status, findings.DetectedSymptoms),
		UsingRealAI:     usingRealAI,
	}
}

// componentScores jitters the status baselines.
func (e *Engine) componentScores(status Status) Scores {
	base, ok := baseScores[status]
	if !ok {
		base = baseScores[StatusHealthy]
	}
	jitter := func(v float64) float64 {
		return round2(clamp(v+e.uniform(-0.1, 0.1), 0.1, 1.0))
	}
	return Scores{
		Posture:   jitter(base.Posture),
		Coat:      jitter(base.Coat),
		Mobility:  jitter(base.Mobility),
		Alertness: jitter(base.Alertness),
	}
}

// deriveFindings applies the fixed sub-thresholds to each component:
// >= 0.8 is a positive indicator, < 0.6 a symptom.
func deriveFindings(scores Scores) Findings {
	findings := Findings{
		OverallScore: round2((scores.Posture + scores.Coat + scores.Mobility + scores.Alertness) / 4),
	}

	check := func(score float64, positive, symptom string) {
		switch {
		case score >= 0.8:
			findings.PositiveIndicators = append(findings.PositiveIndicators, positive)
		case score < 0.6:
			findings.DetectedSymptoms = append(findings.DetectedSymptoms, symptom)
		}
	}
	check(scores.Posture, "good_posture", "poor_posture")
	check(scores.Coat, "healthy_coat", "coat_issues")
	check(scores.Mobility, "normal_mobility", "mobility_issues")
	check(scores.Alertness, "alert_behavior", "lethargy")

	return findings
}

// recommend returns the status-keyed list with symptom-specific entries
// appended, capped at maxRecommendations.
func recommend(status Status, symptoms []string) []string {
	base, ok := statusRecommendations[status]
	if !ok {
		base = statusRecommendations[StatusNeedsAttention]
	}
	recommendations := make([]string, len(base))
	copy(recommendations, base)

	for _, symptom := range symptoms {
		if len(recommendations) >= maxRecommendations {
			break
		}
		if extra, ok := symptomRecommendations[symptom]; ok {
			recommendations = append(recommendations, extra)
		}
	}
	if len(recommendations) > maxRecommendations {
		recommendations = recommendations[:maxRecommendations]
	}
	return recommendations
}

// imageStats computes mean brightness and channel standard deviation,
// both normalized to [0,1].
func imageStats(img image.Image) (brightness, variance float64) {
	bounds := img.Bounds()
	var sum, sumSq, n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			for _, c := range [3]float64{float64(r >> 8), float64(g >> 8), float64(b >> 8)} {
				sum += c
				sumSq += c * c
				n++
			}
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean := sum / n
	std := math.Sqrt(max(sumSq/n-mean*mean, 0))
	return mean / 255.0, std / 255.0
}

func (e *Engine) uniform(lo, hi float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo + e.rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
