package identify

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/herdwatch/herdwatch-go/internal/imagesource"
)

// heuristicRNG shares one locked random source across the heuristic
// capabilities so a single seed drives the whole chain deterministically.
type heuristicRNG struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (h *heuristicRNG) float64() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64()
}

func (h *heuristicRNG) intN(n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.IntN(n)
}

func (h *heuristicRNG) uniform(lo, hi float64) float64 {
	return lo + h.float64()*(hi-lo)
}

// generateTagID produces a tag in one of the common ear tag formats:
// AB1234, AB-1234, IN#######, TAG-#####.
func (h *heuristicRNG) generateTagID() string {
	letters := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte('A' + h.intN(26))
		}
		return string(b)
	}
	switch h.intN(4) {
	case 0:
		return fmt.Sprintf("%s%d", letters(2), 1000+h.intN(9000))
	case 1:
		return fmt.Sprintf("%s-%d", letters(2), 1000+h.intN(9000))
	case 2:
		return fmt.Sprintf("IN%d", 1000000+h.intN(9000000))
	default:
		return fmt.Sprintf("TAG-%d", 10000+h.intN(90000))
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// HeuristicTagReader simulates ear-tag OCR when no real engine is wired.
type HeuristicTagReader struct {
	rng *heuristicRNG

	// SuccessRate is the probability a readable tag is found, default 0.85.
	SuccessRate float64
}

// NewHeuristicTagReader creates a tag reader over the given random source.
func NewHeuristicTagReader(rng *rand.Rand) *HeuristicTagReader {
	return &HeuristicTagReader{rng: &heuristicRNG{rng: rng}, SuccessRate: 0.85}
}

func (r *HeuristicTagReader) ReadEarTag(_ context.Context, _ *imagesource.Frame) (*TagReading, error) {
	if r.rng.float64() >= r.SuccessRate {
		return nil, nil
	}
	return &TagReading{
		Text:       r.rng.generateTagID(),
		Confidence: round3(r.rng.uniform(0.7, 0.98)),
	}, nil
}

// HeuristicQRDecoder simulates QR identity decode.
type HeuristicQRDecoder struct {
	rng *heuristicRNG

	// SuccessRate is the probability a QR code is found, default 0.9.
	SuccessRate float64
}

// NewHeuristicQRDecoder creates a QR decoder over the given random source.
func NewHeuristicQRDecoder(rng *rand.Rand) *HeuristicQRDecoder {
	return &HeuristicQRDecoder{rng: &heuristicRNG{rng: rng}, SuccessRate: 0.9}
}

func (d *HeuristicQRDecoder) DecodeQR(_ context.Context, _ *imagesource.Frame) (*QRReading, error) {
	if d.rng.float64() >= d.SuccessRate {
		return nil, nil
	}
	return &QRReading{
		Payload: QRPayload{
			AnimalID:         fmt.Sprintf("ANIMAL-%d", 10000+d.rng.intN(90000)),
			TagID:            d.rng.generateTagID(),
			FarmID:           fmt.Sprintf("FARM-%d", 100+d.rng.intN(900)),
			RegistrationDate: "2024-01-15",
		},
		Confidence: round3(d.rng.uniform(0.9, 0.99)),
	}, nil
}

// HeuristicMuzzleMatcher simulates muzzle-print matching against the
// registered references. With no references there is never a match.
type HeuristicMuzzleMatcher struct {
	rng *heuristicRNG

	// SuccessRate is the probability a match is found, default 0.7.
	SuccessRate float64
}

// NewHeuristicMuzzleMatcher creates a matcher over the given random source.
func NewHeuristicMuzzleMatcher(rng *rand.Rand) *HeuristicMuzzleMatcher {
	return &HeuristicMuzzleMatcher{rng: &heuristicRNG{rng: rng}, SuccessRate: 0.7}
}

func (m *HeuristicMuzzleMatcher) MatchMuzzle(_ context.Context, _ *imagesource.Frame, refs []MuzzleReference) (*MuzzleMatch, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	if m.rng.float64() >= m.SuccessRate {
		return nil, nil
	}
	return &MuzzleMatch{
		Reference:  refs[m.rng.intN(len(refs))],
		Confidence: round3(m.rng.uniform(0.75, 0.95)),
	}, nil
}
