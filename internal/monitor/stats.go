package monitor

import "sync/atomic"

// Stats are the controller's running counters, updated atomically from
// the pipeline.
type Stats struct {
	frames          atomic.Int64
	detections      atomic.Int64
	attendance      atomic.Int64
	debounced       atomic.Int64
	alerts          atomic.Int64
	captureFailures atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Frames          int64 `json:"frames"`
	Detections      int64 `json:"detections"`
	Attendance      int64 `json:"attendance"`
	Debounced       int64 `json:"debounced"`
	Alerts          int64 `json:"alerts"`
	CaptureFailures int64 `json:"capture_failures"`
}

// Snapshot returns the current counter values.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Frames:          c.stats.frames.Load(),
		Detections:      c.stats.detections.Load(),
		Attendance:      c.stats.attendance.Load(),
		Debounced:       c.stats.debounced.Load(),
		Alerts:          c.stats.alerts.Load(),
		CaptureFailures: c.stats.captureFailures.Load(),
	}
}
