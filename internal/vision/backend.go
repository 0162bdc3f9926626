package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Backend produces raw detections for a decoded image. Implementations
// must keep confidences in [0,1] and boxes normalized.
type Backend interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
	Version() string
	UsingRealAI() bool
}

// HeuristicBackend approximates a detector when no real model is loaded.
// Output is deterministic for a given seed so tests can pin expectations.
type HeuristicBackend struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewHeuristicBackend creates a heuristic backend over the given random
// source.
func NewHeuristicBackend(rng *rand.Rand) *HeuristicBackend {
	return &HeuristicBackend{rng: rng}
}

// Detect synthesizes between one and five plausible detections.
func (h *HeuristicBackend) Detect(_ context.Context, _ image.Image) ([]Detection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 1 + h.rng.IntN(5)
	detections := make([]Detection, 0, count)
	for i := 0; i < count; i++ {
		x1 := h.uniform(0.05, 0.6)
		y1 := h.uniform(0.05, 0.6)
		width := h.uniform(0.15, 0.35)
		height := h.uniform(0.2, 0.4)

		detections = append(detections, Detection{
			ID: fmt.Sprintf("det_%d_%d", i, time.Now().UnixMilli()),
			Box: BoundingBox{
				X1: round4(x1),
				Y1: round4(y1),
				X2: round4(min(x1+width, 0.95)),
				Y2: round4(min(y1+height, 0.95)),
			},
			Species:    AnimalClasses[h.rng.IntN(len(AnimalClasses))],
			Confidence: round4(h.uniform(0.65, 0.98)),
		})
	}
	return detections, nil
}

func (h *HeuristicBackend) Version() string { return "heuristic" }

func (h *HeuristicBackend) UsingRealAI() bool { return false }

func (h *HeuristicBackend) uniform(lo, hi float64) float64 {
	return lo + h.rng.Float64()*(hi-lo)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
