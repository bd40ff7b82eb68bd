// Slicer metric definitions
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	goruntime "runtime"
	"sync"
	"time"
)

// SlicerMetrics holds the metrics reported by the slicing pipeline.
// All methods are safe on a nil receiver, so components can run unmetered.
type SlicerMetrics struct {
	TasksTotal    *Counter
	TasksRunning  *Gauge
	GCodeLines    *Counter
	IgnoredTokens *Counter
	LayersPruned  *Counter
	CropSeconds   *Histogram
	Vertices      *Gauge
	Processes     *Gauge

	GoGoroutines *Gauge
	Uptime       *Gauge

	startTime time.Time
	registry  *Registry
}

// NewSlicerMetrics creates and registers all slicer metrics
func NewSlicerMetrics() *SlicerMetrics {
	m := &SlicerMetrics{
		startTime: time.Now(),
		registry:  NewRegistry(),
	}

	m.TasksTotal = NewCounter("fiberslice_tasks_total",
		"Background task runs by terminal state")
	m.TasksRunning = NewGauge("fiberslice_tasks_running",
		"Background tasks currently in flight")
	m.GCodeLines = NewCounter("fiberslice_gcode_lines_total",
		"GCode lines consumed by the parser")
	m.IgnoredTokens = NewCounter("fiberslice_gcode_ignored_tokens_total",
		"GCode tokens skipped by the parser")
	m.LayersPruned = NewCounter("fiberslice_mask_layers_pruned_total",
		"Mask layers dropped by crop pruning")
	m.CropSeconds = NewHistogram("fiberslice_crop_seconds",
		"Time spent cropping one mask", ExponentialBuckets(0.001, 4, 8))
	m.Vertices = NewGauge("fiberslice_toolpath_vertices",
		"Vertices in the most recently built toolpath buffer")
	m.Processes = NewGauge("fiberslice_processes",
		"Processes registered in the tracker by kind")
	m.GoGoroutines = NewGauge("fiberslice_go_goroutines",
		"Number of active goroutines")
	m.Uptime = NewGauge("fiberslice_uptime_seconds",
		"Seconds since startup")

	m.registry.MustRegister(
		m.TasksTotal, m.TasksRunning, m.GCodeLines, m.IgnoredTokens,
		m.LayersPruned, m.CropSeconds, m.Vertices, m.Processes,
		m.GoGoroutines, m.Uptime,
	)
	return m
}

// TaskStarted records a run entering the Running state
func (m *SlicerMetrics) TaskStarted() {
	if m == nil {
		return
	}
	m.TasksRunning.Inc(nil)
}

// TaskFinished records a run leaving the Running state
func (m *SlicerMetrics) TaskFinished(state string) {
	if m == nil {
		return
	}
	m.TasksRunning.Dec(nil)
	m.TasksTotal.Inc(Labels{"state": state})
}

// RecordGCodeLines adds parsed line and ignored token counts
func (m *SlicerMetrics) RecordGCodeLines(lines, ignored int) {
	if m == nil {
		return
	}
	m.GCodeLines.Add(nil, uint64(lines))
	if ignored > 0 {
		m.IgnoredTokens.Add(nil, uint64(ignored))
	}
}

// RecordCrop records one mask crop
func (m *SlicerMetrics) RecordCrop(mask string, pruned int, d time.Duration) {
	if m == nil {
		return
	}
	if pruned > 0 {
		m.LayersPruned.Add(Labels{"mask": mask}, uint64(pruned))
	}
	m.CropSeconds.Observe(nil, d.Seconds())
}

// SetVertices records the size of a built toolpath buffer
func (m *SlicerMetrics) SetVertices(n int) {
	if m == nil {
		return
	}
	m.Vertices.Set(nil, float64(n))
}

// SetProcesses records the tracker population of one kind
func (m *SlicerMetrics) SetProcesses(kind string, n int) {
	if m == nil {
		return
	}
	m.Processes.Set(Labels{"kind": kind}, float64(n))
}

// Gather returns all metrics in Prometheus text format
func (m *SlicerMetrics) Gather() string {
	m.GoGoroutines.Set(nil, float64(goruntime.NumGoroutine()))
	m.Uptime.Set(nil, time.Since(m.startTime).Seconds())
	return m.registry.Gather()
}

// Registry returns the internal registry
func (m *SlicerMetrics) Registry() *Registry {
	return m.registry
}

var (
	globalMetrics     *SlicerMetrics
	globalMetricsOnce sync.Once
)

// Global returns the process-wide slicer metrics
func Global() *SlicerMetrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = NewSlicerMetrics()
	})
	return globalMetrics
}
