package vision

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/errors"
	"github.com/herdwatch/herdwatch-go/internal/imagesource"
)

func testSettings() *conf.Settings {
	return &conf.Settings{
		Thresholds: conf.ThresholdSettings{
			DetectionConfidence: 0.5,
		},
	}
}

func pngFrame(t *testing.T) *imagesource.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &imagesource.Frame{
		ID:         "frame-1",
		Data:       buf.Bytes(),
		CapturedAt: time.Now(),
		SourcePath: "test.png",
	}
}

func TestDetectHeuristic(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	engine := NewEngine(testSettings(), nil, NewHeuristicBackend(rng))

	result, err := engine.Detect(context.Background(), pngFrame(t))
	require.NoError(t, err)

	assert.False(t, result.UsingRealAI)
	assert.Equal(t, "heuristic", result.ModelVersion)
	assert.Equal(t, len(result.Detections), result.TotalDetected)
	require.NotEmpty(t, result.Detections)

	for _, d := range result.Detections {
		assert.True(t, d.Box.Valid(), "box must be normalized: %+v", d.Box)
		assert.True(t, d.Species.Valid())
		assert.GreaterOrEqual(t, d.Confidence, 0.5)
		assert.LessOrEqual(t, d.Confidence, 0.98)
	}
}

func TestDetectDeterministicForSeed(t *testing.T) {
	settings := testSettings()
	frame := pngFrame(t)

	run := func() *Result {
		rng := rand.New(rand.NewPCG(7, 7))
		engine := NewEngine(settings, nil, NewHeuristicBackend(rng))
		result, err := engine.Detect(context.Background(), frame)
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()

	require.Equal(t, len(first.Detections), len(second.Detections))
	for i := range first.Detections {
		assert.Equal(t, first.Detections[i].Box, second.Detections[i].Box)
		assert.Equal(t, first.Detections[i].Species, second.Detections[i].Species)
		assert.InDelta(t, first.Detections[i].Confidence, second.Detections[i].Confidence, 1e-9)
	}
}

func TestDetectUndecodableFrame(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 0))
	engine := NewEngine(testSettings(), nil, NewHeuristicBackend(rng))

	frame := &imagesource.Frame{ID: "bad", Data: []byte("not an image")}
	_, err := engine.Detect(context.Background(), frame)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrImageRead)
}

// failingBackend simulates a loaded model that errors at inference time.
type failingBackend struct{}

func (failingBackend) Detect(context.Context, image.Image) ([]Detection, error) {
	return nil, errors.Newf("inference crashed").
		Component("vision").
		Category(errors.CategoryVisionInference).
		Build()
}

func (failingBackend) Version() string { return "broken-model" }

func (failingBackend) UsingRealAI() bool { return true }

func TestDetectFallsBackWhenBackendFails(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 0))
	engine := NewEngine(testSettings(), failingBackend{}, NewHeuristicBackend(rng))

	result, err := engine.Detect(context.Background(), pngFrame(t))
	require.NoError(t, err)
	assert.False(t, result.UsingRealAI)
	assert.Equal(t, "heuristic", result.ModelVersion)
	assert.NotEmpty(t, result.Detections)
}

func TestDetectSingleReturnsHighestConfidence(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 0))
	engine := NewEngine(testSettings(), nil, NewHeuristicBackend(rng))

	frame := pngFrame(t)
	full, err := engine.Detect(context.Background(), frame)
	require.NoError(t, err)

	rng2 := rand.New(rand.NewPCG(11, 0))
	engine2 := NewEngine(testSettings(), nil, NewHeuristicBackend(rng2))
	single, err := engine2.DetectSingle(context.Background(), frame, "")
	require.NoError(t, err)
	require.NotNil(t, single)

	var best float64
	for _, d := range full.Detections {
		if d.Confidence > best {
			best = d.Confidence
		}
	}
	assert.InDelta(t, best, single.Confidence, 1e-9)
}

func TestBoundingBoxValid(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"normal", BoundingBox{0.1, 0.1, 0.5, 0.5}, true},
		{"inverted x", BoundingBox{0.5, 0.1, 0.1, 0.5}, false},
		{"inverted y", BoundingBox{0.1, 0.5, 0.5, 0.1}, false},
		{"out of range", BoundingBox{-0.1, 0.1, 0.5, 0.5}, false},
		{"above one", BoundingBox{0.1, 0.1, 1.5, 0.5}, false},
		{"degenerate", BoundingBox{0.5, 0.5, 0.5, 0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Valid())
		})
	}
}
