// Package monitor drives the capture loop: frames are acquired on a
// fixed cadence and fed through detection, identification, health
// assessment, attendance and alerting.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/herdwatch/herdwatch-go/internal/alerting"
	"github.com/herdwatch/herdwatch-go/internal/attendance"
	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/datastore"
	"github.com/herdwatch/herdwatch-go/internal/errors"
	"github.com/herdwatch/herdwatch-go/internal/health"
	"github.com/herdwatch/herdwatch-go/internal/identify"
	"github.com/herdwatch/herdwatch-go/internal/imagesource"
	"github.com/herdwatch/herdwatch-go/internal/logging"
	"github.com/herdwatch/herdwatch-go/internal/observability"
	"github.com/herdwatch/herdwatch-go/internal/vision"
)

// State is the controller's lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateCapturing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateCapturing:
		return "capturing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Controller owns the capture loop and the pipeline stages.
type Controller struct {
	settings   *conf.Settings
	source     imagesource.Source
	detector   *vision.Engine
	resolver   *identify.Resolver
	assessor   *health.Engine
	ledger     *attendance.Ledger
	dispatcher *alerting.Dispatcher
	ds         datastore.Interface
	metrics    *observability.Metrics
	log        *slog.Logger

	// lastSeen debounces attendance marks per animal. Entries expire at
	// the debounce window, so presence alone means "seen recently". The
	// ledger stays authoritative for per-day dedup even without it. Nil
	// when the window is zero: go-cache would treat a zero default TTL
	// as no expiration, suppressing every sighting after the first.
	lastSeen *gocache.Cache

	stats Stats

	mu    sync.Mutex
	state State

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewController wires the pipeline stages into a capture loop.
func NewController(
	settings *conf.Settings,
	source imagesource.Source,
	detector *vision.Engine,
	resolver *identify.Resolver,
	assessor *health.Engine,
	ledger *attendance.Ledger,
	dispatcher *alerting.Dispatcher,
	ds datastore.Interface,
	metrics *observability.Metrics,
) *Controller {
	var lastSeen *gocache.Cache
	if window := settings.DebounceWindow(); window > 0 {
		lastSeen = gocache.New(window, 2*window)
	}
	return &Controller{
		settings:   settings,
		source:     source,
		detector:   detector,
		resolver:   resolver,
		assessor:   assessor,
		ledger:     ledger,
		dispatcher: dispatcher,
		ds:         ds,
		metrics:    metrics,
		log:        logging.ForService("monitor"),
		lastSeen:   lastSeen,
		state:      StateDisconnected,
		stopCh:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Stop requests a stop. It takes effect between frames; no stage is
// cancelled mid-flight.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Run connects the source and drives the capture loop until the context
// is cancelled or Stop is called. Connect failure at startup is the only
// fatal outcome; everything after that is logged and retried on the next
// tick.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.source.Connect(); err != nil {
		c.setState(StateStopped)
		return errors.New(fmt.Errorf("connecting image source: %w", err)).
			Component("monitor").
			Category(errors.CategoryCapture).
			Context("source", c.source.Name()).
			Build()
	}
	c.setState(StateConnected)
	c.log.Info("image source connected",
		"source", c.source.Name(), "interval", c.settings.CaptureInterval())

	defer func() {
		if err := c.source.Close(); err != nil {
			c.log.Warn("closing image source", "error", err)
		}
		c.setState(StateStopped)
	}()

	if c.settings.Monitor.ConcurrentPipeline {
		return c.runConcurrent(ctx)
	}
	return c.runSequential(ctx)
}

// runSequential captures and processes one frame at a time.
func (c *Controller) runSequential(ctx context.Context) error {
	ticker := time.NewTicker(c.settings.CaptureInterval())
	defer ticker.Stop()

	c.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stopCh:
			return nil
		case <-ticker.C:
			c.cycle(ctx)
		}
	}
}

// runConcurrent captures frame N+1 while the pipeline worker processes
// frame N. The single-slot channel keeps at most one frame in flight
// beyond the one being processed; per-animal consistency is guaranteed
// by the ledger's key mutexes.
func (c *Controller) runConcurrent(ctx context.Context) error {
	frames := make(chan *imagesource.Frame, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for frame := range frames {
			c.process(ctx, frame)
		}
	}()

	ticker := time.NewTicker(c.settings.CaptureInterval())
	defer ticker.Stop()

	capture := func() {
		frame := c.capture(ctx)
		if frame == nil {
			return
		}
		select {
		case frames <- frame:
		case <-ctx.Done():
		case <-c.stopCh:
		}
	}

	capture()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-c.stopCh:
			break loop
		case <-ticker.C:
			capture()
		}
	}

	close(frames)
	wg.Wait()
	return nil
}

// cycle runs one capture followed by the pipeline.
func (c *Controller) cycle(ctx context.Context) {
	frame := c.capture(ctx)
	if frame == nil {
		return
	}
	c.process(ctx, frame)
}

// capture acquires one frame, bounded by the capture timeout. A failed
// or timed out capture is skipped, never fatal.
func (c *Controller) capture(ctx context.Context) *imagesource.Frame {
	c.setState(StateCapturing)
	defer c.setState(StateConnected)

	captureCtx, cancel := context.WithTimeout(ctx, c.settings.CaptureTimeout())
	defer cancel()

	frame, err := c.source.Capture(captureCtx)
	if err != nil {
		c.stats.captureFailures.Add(1)
		if c.metrics != nil {
			c.metrics.CaptureFailures.Inc()
		}
		if errors.Is(err, errors.ErrCaptureTimeout) {
			c.log.Warn("frame capture timed out, skipping", "source", c.source.Name())
		} else {
			c.log.Warn("frame capture failed, skipping", "source", c.source.Name(), "error", err)
		}
		return nil
	}
	return frame
}

// process runs the full pipeline over one frame. Nothing in here is
// allowed to take down the loop; per-frame failures are logged and the
// next tick proceeds.
func (c *Controller) process(ctx context.Context, frame *imagesource.Frame) {
	start := time.Now()
	c.stats.frames.Add(1)
	if c.metrics != nil {
		c.metrics.FramesProcessed.Inc()
		defer func() {
			c.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
		}()
	}

	detection, err := c.detect(ctx, frame)
	if err != nil || detection == nil {
		c.maybeDisplay()
		return
	}

	// Identification and health assessment are independent of each
	// other's success; both run on the same source frame.
	var (
		ident      *identify.Result
		assessment *health.Assessment
		wg         sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ident = c.resolver.Identify(ctx, frame, identify.Options{
			UseOCR:    c.settings.Identify.UseOCR,
			UseMuzzle: c.settings.Identify.UseMuzzle,
		})
	}()
	go func() {
		defer wg.Done()
		assessment = c.assessor.Assess(ctx, frame, detection.Species)
	}()
	wg.Wait()

	if c.metrics != nil {
		c.metrics.Identifications.WithLabelValues(ident.Method.String()).Inc()
		c.metrics.HealthAssessments.WithLabelValues(assessment.Status.String()).Inc()
	}

	if !ident.Identified {
		c.log.Debug("animal not identified, skipping ledger",
			"frame", frame.ID, "methods_tried", len(ident.MethodsTried))
		c.maybeDisplay()
		return
	}

	animal, err := c.ds.GetAnimalByTagID(ident.TagID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.log.Debug("tag not registered, skipping ledger",
				"tag_id", ident.TagID, "frame", frame.ID)
		} else {
			c.log.Error("animal lookup failed",
				"tag_id", ident.TagID, "frame", frame.ID, "error", err)
		}
		c.maybeDisplay()
		return
	}

	c.markAttendance(ctx, &animal, ident, frame)
	c.recordHealth(ctx, &animal, assessment, frame)
	c.maybeDisplay()
}

// detect runs detection and returns the strongest detection, or nil when
// the frame is empty of animals.
func (c *Controller) detect(ctx context.Context, frame *imagesource.Frame) (*vision.Detection, error) {
	result, err := c.detector.Detect(ctx, frame)
	if err != nil {
		// Undecodable frame: fatal for this frame only.
		c.log.Warn("frame unreadable, skipping", "frame", frame.ID, "error", err)
		return nil, err
	}

	c.stats.detections.Add(int64(result.TotalDetected))
	if c.metrics != nil {
		for _, d := range result.Detections {
			c.metrics.Detections.WithLabelValues(d.Species.String()).Inc()
		}
	}
	if result.TotalDetected == 0 {
		return nil, nil
	}

	best := &result.Detections[0]
	for i := range result.Detections {
		if result.Detections[i].Confidence > best.Confidence {
			best = &result.Detections[i]
		}
	}
	return best, nil
}

// markAttendance applies the debounce window and the ledger. Debounce
// only controls call frequency; the ledger's per-day dedup guarantees
// correctness even without it.
func (c *Controller) markAttendance(ctx context.Context, animal *datastore.Animal, ident *identify.Result, frame *imagesource.Frame) {
	if c.lastSeen != nil {
		key := strconv.FormatUint(uint64(animal.ID), 10)
		if _, seen := c.lastSeen.Get(key); seen {
			c.stats.debounced.Add(1)
			if c.metrics != nil {
				c.metrics.AttendanceDebounced.Inc()
			}
			return
		}
		c.lastSeen.Set(key, time.Now(), gocache.DefaultExpiration)
	}

	_, created, err := c.ledger.Mark(ctx, attendance.MarkRequest{
		AnimalID:     animal.ID,
		Confidence:   ident.Confidence,
		Method:       ident.Method.String(),
		LocationZone: c.settings.Monitor.LocationZone,
		ImagePath:    frame.SourcePath,
		ObservedAt:   frame.CapturedAt,
	})
	if err != nil {
		c.log.Error("attendance mark failed", "animal", animal.TagID, "error", err)
		return
	}

	c.stats.attendance.Add(1)
	if c.metrics != nil {
		c.metrics.AttendanceMarked.Inc()
	}
	if created {
		c.log.Info("attendance recorded", "animal", animal.TagID, "method", ident.Method)
	}
}

// recordHealth persists the assessment, refreshes the animal's cached
// status and raises an alert for degraded statuses. Write failures are
// logged; the loop continues.
func (c *Controller) recordHealth(ctx context.Context, animal *datastore.Animal, assessment *health.Assessment, frame *imagesource.Frame) {
	record := buildHealthRecord(animal.ID, assessment, frame.SourcePath)
	if err := c.ds.SaveHealthRecord(record); err != nil {
		c.log.Error("health record write failed", "animal", animal.TagID, "error", err)
		return
	}

	if err := c.ds.UpdateAnimalHealth(animal.ID, assessment.Status.String()); err != nil {
		c.log.Error("health status update failed", "animal", animal.TagID, "error", err)
	}

	alert, err := c.dispatcher.Dispatch(ctx, animal, assessment, &record.ID)
	if err != nil {
		c.log.Error("alert dispatch failed", "animal", animal.TagID, "error", err)
		return
	}
	if alert != nil {
		c.stats.alerts.Add(1)
	}
}

// maybeDisplay renders the running counters when live display is on.
func (c *Controller) maybeDisplay() {
	if !c.settings.Monitor.LiveDisplay {
		return
	}
	s := c.Snapshot()
	logging.HumanReadable().Info(fmt.Sprintf(
		"frames=%d detections=%d attendance=%d debounced=%d alerts=%d capture_failures=%d",
		s.Frames, s.Detections, s.Attendance, s.Debounced, s.Alerts, s.CaptureFailures))
}
