// Package profiler records per-stage timings and size metrics of transcodes
// and prints them as a report.
package profiler

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Recorder accumulates operation timings and custom metrics. It is safe for
// concurrent use by many transcodes.
type Recorder struct {
	mu         sync.RWMutex
	startTime  time.Time
	maxSamples int

	customMetrics  map[string]*MetricTracker
	operationTimes map[string]*TimeTracker
}

// MetricTracker tracks statistics for a custom metric.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// MetricStats is a snapshot of one metric.
type MetricStats struct {
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Sum     float64 `json:"sum"`
	Samples int     `json:"samples"`
	Count   int64   `json:"count"`
}

// OperationStats is a snapshot of one operation's timings.
type OperationStats struct {
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Total time.Duration `json:"total"`
	Count int64         `json:"count"`
}

// Snapshot is a point-in-time copy of everything a Recorder holds.
type Snapshot struct {
	Uptime     time.Duration             `json:"uptime"`
	Metrics    map[string]MetricStats    `json:"metrics"`
	Operations map[string]OperationStats `json:"operations"`
}

// NewRecorder creates a recorder that keeps up to maxSamples recent values
// per metric for averaging.
//
// Arguments:
// - maxSamples: Window size; zero or less uses 600.
//
// Returns:
// - A ready Recorder.
func NewRecorder(maxSamples int) *Recorder {
	if maxSamples <= 0 {
		maxSamples = 600
	}
	return &Recorder{
		startTime:      time.Now(),
		maxSamples:     maxSamples,
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (r *Recorder) RecordMetric(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tracker, exists := r.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{min: value, max: value}
		r.customMetrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	tracker.sum += value
	if len(tracker.values) > r.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}
	tracker.count++

	tracker.min = min(tracker.min, value)
	tracker.max = max(tracker.max, value)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
//
// @example
// done := rec.StartOperation("encode")
// defer done()
func (r *Recorder) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		r.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records the completion time of an operation.
func (r *Recorder) RecordDuration(name string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tracker, exists := r.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{minTime: duration, maxTime: duration}
		r.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > r.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++

	tracker.minTime = min(tracker.minTime, duration)
	tracker.maxTime = max(tracker.maxTime, duration)
}

// Snapshot returns the current statistics.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Uptime:     time.Since(r.startTime),
		Metrics:    make(map[string]MetricStats, len(r.customMetrics)),
		Operations: make(map[string]OperationStats, len(r.operationTimes)),
	}

	for name, t := range r.customMetrics {
		if len(t.values) == 0 {
			continue
		}
		snap.Metrics[name] = MetricStats{
			Avg:     t.sum / float64(len(t.values)),
			Min:     t.min,
			Max:     t.max,
			Sum:     t.sum,
			Samples: len(t.values),
			Count:   t.count,
		}
	}

	for name, t := range r.operationTimes {
		if len(t.durations) == 0 {
			continue
		}
		snap.Operations[name] = OperationStats{
			Avg:   t.totalTime / time.Duration(len(t.durations)),
			Min:   t.minTime,
			Max:   t.maxTime,
			Total: t.totalTime,
			Count: t.count,
		}
	}

	return snap
}

// Report writes a human-readable summary to w, sorted by name.
func (r *Recorder) Report(w io.Writer) {
	snap := r.Snapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fmt.Fprintf(w, "TRANSCODE REPORT - %s\n", time.Now().Format("15:04:05.000"))
	fmt.Fprintf(w, "Uptime: %v\n", snap.Uptime.Truncate(time.Millisecond))

	fmt.Fprintf(w, "\nMEMORY USAGE:\n")
	fmt.Fprintf(w, "  Heap Alloc: %s\n", FormatBytes(mem.HeapAlloc))
	fmt.Fprintf(w, "  Total Alloc: %s\n", FormatBytes(mem.TotalAlloc))
	fmt.Fprintf(w, "  GC Cycles: %d\n", mem.NumGC)

	if len(snap.Metrics) > 0 {
		fmt.Fprintf(w, "\nMETRICS:\n")
		for _, name := range sortedKeys(snap.Metrics) {
			m := snap.Metrics[name]
			fmt.Fprintf(w, "  %s: avg=%.2f, min=%.2f, max=%.2f, sum=%.0f, samples=%d\n",
				name, m.Avg, m.Min, m.Max, m.Sum, m.Samples)
		}
	}

	if len(snap.Operations) > 0 {
		fmt.Fprintf(w, "\nOPERATION TIMINGS:\n")
		for _, name := range sortedKeys(snap.Operations) {
			op := snap.Operations[name]
			fmt.Fprintf(w, "  %s: avg=%v, min=%v, max=%v, count=%d\n",
				name,
				op.Avg.Truncate(time.Microsecond),
				op.Min.Truncate(time.Microsecond),
				op.Max.Truncate(time.Microsecond),
				op.Count)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatBytes formats byte counts in human-readable format.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
