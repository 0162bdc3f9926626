package vision

import (
	"context"
	"log/slog"
	"time"

	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/imagesource"
	"github.com/herdwatch/herdwatch-go/internal/logging"
)

// Engine runs detection over captured frames. It prefers the primary
// backend and falls back to the heuristic when the primary is missing or
// fails, so a frame never fails detection outright once it decodes.
type Engine struct {
	backend   Backend
	fallback  Backend
	threshold float64
	log       *slog.Logger
}

// NewEngine selects the detection backend once at startup. A nil primary
// means no real model is shipped and the heuristic serves every frame.
func NewEngine(settings *conf.Settings, primary Backend, fallback *HeuristicBackend) *Engine {
	e := &Engine{
		backend:   primary,
		fallback:  fallback,
		threshold: settings.Thresholds.DetectionConfidence,
		log:       logging.ForService("vision"),
	}
	if e.backend == nil {
		e.backend = fallback
	}
	return e
}

// Detect decodes the frame and returns all detections at or above the
// confidence threshold. An undecodable frame fails with ErrImageRead;
// backend failure falls back to the heuristic instead of propagating.
func (e *Engine) Detect(ctx context.Context, frame *imagesource.Frame) (*Result, error) {
	start := time.Now()

	img, err := frame.Decode()
	if err != nil {
		return nil, err
	}

	backend := e.backend
	detections, err := backend.Detect(ctx, img)
	if err != nil && backend != e.fallback {
		e.log.Warn("detection backend failed, using heuristic fallback",
			"backend", backend.Version(), "error", err)
		backend = e.fallback
		detections, err = backend.Detect(ctx, img)
	}
	if err != nil {
		// The heuristic never errors in practice; treat this as an
		// empty fallback result rather than a frame failure.
		e.log.Error("fallback detection failed", "error", err)
		detections = nil
		backend = e.fallback
	}

	kept := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence < e.threshold {
			continue
		}
		if !d.Box.Valid() || !d.Species.Valid() {
			e.log.Warn("dropping invalid detection",
				"detection_id", d.ID, "species", d.Species)
			continue
		}
		kept = append(kept, d)
	}

	return &Result{
		Detections:       kept,
		TotalDetected:    len(kept),
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		ModelVersion:     backend.Version(),
		UsingRealAI:      backend.UsingRealAI(),
	}, nil
}

// DetectSingle returns the highest-confidence detection for the frame,
// optionally steered by a species hint, or nil when nothing is detected.
func (e *Engine) DetectSingle(ctx context.Context, frame *imagesource.Frame, speciesHint Species) (*Detection, error) {
	result, err := e.Detect(ctx, frame)
	if err != nil {
		return nil, err
	}

	var best *Detection
	for i := range result.Detections {
		d := &result.Detections[i]
		if speciesHint.Valid() && speciesHint != SpeciesOther && d.Species != speciesHint {
			continue
		}
		if best == nil || d.Confidence > best.Confidence {
			best = d
		}
	}
	if best == nil && speciesHint != "" {
		// No hint-matching detection; fall back to the overall best.
		for i := range result.Detections {
			d := &result.Detections[i]
			if best == nil || d.Confidence > best.Confidence {
				best = d
			}
		}
	}
	return best, nil
}
