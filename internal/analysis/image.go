package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/health"
	"github.com/herdwatch/herdwatch-go/internal/identify"
	"github.com/herdwatch/herdwatch-go/internal/imagesource"
	"github.com/herdwatch/herdwatch-go/internal/vision"
)

// ImageAnalysis runs the detection, identification and health stages over a
// single image file and prints a report. Nothing is persisted.
func ImageAnalysis(settings *conf.Settings, path string) error {
	frame, err := imagesource.FrameFromFile(path)
	if err != nil {
		return err
	}

	detector := vision.NewEngine(settings, nil,
		vision.NewHeuristicBackend(newRand(0)))
	resolver := identify.NewResolver(settings,
		identify.NewHeuristicTagReader(newRand(1)),
		identify.NewHeuristicQRDecoder(newRand(2)),
		nil, nil)
	assessor := health.NewEngine(nil, newRand(4))

	ctx := context.Background()

	result, err := detector.Detect(ctx, frame)
	if err != nil {
		return err
	}

	fmt.Printf("File: %s\n", path)
	fmt.Printf("Detections: %d (model %s)\n", result.TotalDetected, result.ModelVersion)
	for i := range result.Detections {
		d := &result.Detections[i]
		fmt.Printf("  %2d. %-8s confidence %.2f box [%.2f %.2f %.2f %.2f]\n",
			i+1, d.Species, d.Confidence, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
	}
	if result.TotalDetected == 0 {
		fmt.Println("No animals detected above threshold.")
		return nil
	}

	identity := resolver.Identify(ctx, frame, identify.Options{
		UseOCR:    settings.Identify.UseOCR,
		UseMuzzle: false,
	})
	if identity.Identified {
		fmt.Printf("Identified: tag %s via %s (confidence %.2f)\n",
			identity.TagID, identity.Method, identity.Confidence)
	} else {
		fmt.Println("Identification: no tag found, manual review needed")
	}

	best := &result.Detections[0]
	for i := range result.Detections {
		if result.Detections[i].Confidence > best.Confidence {
			best = &result.Detections[i]
		}
	}
	assessment := assessor.Assess(ctx, frame, best.Species)
	fmt.Printf("Health: %s (confidence %.2f, overall score %.2f)\n",
		assessment.Status, assessment.Confidence, assessment.Findings.OverallScore)
	if len(assessment.Findings.DetectedSymptoms) > 0 {
		fmt.Printf("Symptoms: %s\n", strings.Join(assessment.Findings.DetectedSymptoms, ", "))
	}
	for _, rec := range assessment.Recommendations {
		fmt.Printf("  - %s\n", rec)
	}

	return nil
}
