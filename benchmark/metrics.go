// Package benchmark - Functionality for running benchmarks.
package benchmark

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario           Scenario       `json:"scenario" yaml:"scenario"`
	Timestamp          time.Time      `json:"timestamp" yaml:"timestamp"`
	Backend            string         `json:"backend" yaml:"backend"`
	Regions            int            `json:"regions" yaml:"regions"`
	TotalDuration      time.Duration  `json:"total_duration" yaml:"total_duration"`
	PreprocessDuration time.Duration  `json:"preprocess_duration" yaml:"preprocess_duration"`
	ClassifyDuration   time.Duration  `json:"classify_duration" yaml:"classify_duration"`
	FramesPerSecond    float64        `json:"frames_per_second" yaml:"frames_per_second"`
	Latency            LatencyMetrics `json:"latency" yaml:"latency"`
	MemoryStats        MemoryMetrics  `json:"memory_stats" yaml:"memory_stats"`
	CPUStats           CPUMetrics     `json:"cpu_stats" yaml:"cpu_stats"`
	// OccupiedCount sums the occupied spaces over every measured frame.
	OccupiedCount int     `json:"occupied_count" yaml:"occupied_count"`
	ErrorRate     float64 `json:"error_rate" yaml:"error_rate"`
}

// LatencyMetrics summarises per-frame processing latency.
type LatencyMetrics struct {
	Mean time.Duration `json:"mean" yaml:"mean"`
	P50  time.Duration `json:"p50" yaml:"p50"`
	P95  time.Duration `json:"p95" yaml:"p95"`
	Max  time.Duration `json:"max" yaml:"max"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes" yaml:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes" yaml:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes" yaml:"sys_bytes"`
	NumGC           uint32 `json:"num_gc" yaml:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes" yaml:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes" yaml:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU     int `json:"num_cpu" yaml:"num_cpu"`
	GOMAXPROCS int `json:"gomaxprocs" yaml:"gomaxprocs"`
}

// summarizeLatency computes the latency figures of the measured frames.
func summarizeLatency(samples []time.Duration) LatencyMetrics {
	if len(samples) == 0 {
		return LatencyMetrics{}
	}
	xs := make([]float64, len(samples))
	for i, d := range samples {
		xs[i] = float64(d)
	}
	sort.Float64s(xs)
	return LatencyMetrics{
		Mean: time.Duration(stat.Mean(xs, nil)),
		P50:  time.Duration(stat.Quantile(0.5, stat.Empirical, xs, nil)),
		P95:  time.Duration(stat.Quantile(0.95, stat.Empirical, xs, nil)),
		Max:  time.Duration(xs[len(xs)-1]),
	}
}
