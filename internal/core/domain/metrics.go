package domain

import "time"

// FrameRecord is the immutable per-frame entry kept in the metrics
// rolling history. Latency components are derived once at record time.
type FrameRecord struct {
	FrameID        string
	CaptureTS      int64
	RecvTS         int64
	InferenceTS    int64
	OverlayTS      int64
	DetectionCount int
	NetworkMs      float64
	InferenceMs    float64
	EndToEndMs     float64
	RecordedAt     time.Time
}

// LatencyStats summarizes one latency category over the rolling window.
// All values are milliseconds; an empty series yields all zeroes.
type LatencyStats struct {
	Median  float64 `json:"median"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// SeriesStats summarizes a sampled series (bandwidth, CPU, memory).
type SeriesStats struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
}

type BandwidthStats struct {
	Uplink   SeriesStats `json:"uplink"`
	Downlink SeriesStats `json:"downlink"`
}

type SystemStats struct {
	CPU    SeriesStats `json:"cpu"`
	Memory SeriesStats `json:"memory"`
}

// MetricsSnapshot is derived from the live rolling buffers at query
// time; it is never persisted.
type MetricsSnapshot struct {
	TotalFrames     int64          `json:"totalFrames"`
	ProcessedFrames int64          `json:"processedFrames"`
	DroppedFrames   int64          `json:"droppedFrames"`
	FPS             float64        `json:"fps"`
	EndToEnd        LatencyStats   `json:"endToEnd"`
	Network         LatencyStats   `json:"network"`
	Inference       LatencyStats   `json:"inference"`
	Bandwidth       BandwidthStats `json:"bandwidth"`
	System          SystemStats    `json:"system"`
	WindowStart     time.Time      `json:"windowStart"`
	Timestamp       time.Time      `json:"timestamp"`
}
