package services

import (
	"math"
	"sort"
	"sync"
	"time"

	"visionrelay/internal/core/domain"
)

type sample struct {
	ts    time.Time
	value float64
}

// MetricsService aggregates pipeline health over rolling buffers. Frame
// records are evicted when they fall outside the time window or when
// the history exceeds the hard cap, whichever binds first. Snapshots
// are derived at query time and never persisted.
type MetricsService struct {
	mu sync.RWMutex

	window     time.Duration
	maxHistory int

	frames   []domain.FrameRecord
	uplink   []sample
	downlink []sample
	cpu      []sample
	memory   []sample

	totalFrames     int64
	processedFrames int64
	droppedFrames   int64

	windowStart time.Time
}

func NewMetricsService(window time.Duration, maxHistory int) *MetricsService {
	if window <= 0 {
		window = 30 * time.Second
	}
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &MetricsService{
		window:      window,
		maxHistory:  maxHistory,
		windowStart: time.Now(),
	}
}

// RecordFrame derives the latency components from the frame's
// timestamps and appends the record to the rolling history.
func (m *MetricsService) RecordFrame(rec domain.FrameRecord) {
	now := time.Now()
	rec.RecordedAt = now
	rec.NetworkMs = float64(rec.RecvTS - rec.CaptureTS)
	rec.InferenceMs = float64(rec.InferenceTS - rec.RecvTS)
	rec.EndToEndMs = float64(now.UnixMilli() - rec.CaptureTS)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalFrames++
	m.processedFrames++

	m.frames = append(m.frames, rec)
	m.frames = evictFrames(m.frames, now.Add(-m.window), m.maxHistory)
}

// RecordDroppedFrame counts a shed frame. No latency data is kept for
// dropped frames.
func (m *MetricsService) RecordDroppedFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalFrames++
	m.droppedFrames++
}

func (m *MetricsService) RecordBandwidth(uplink, downlink float64) {
	now := time.Now()
	cutoff := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.uplink = appendSample(m.uplink, sample{now, uplink}, cutoff, m.maxHistory)
	m.downlink = appendSample(m.downlink, sample{now, downlink}, cutoff, m.maxHistory)
}

func (m *MetricsService) RecordSystemSample(cpu, memory float64) {
	now := time.Now()
	cutoff := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu = appendSample(m.cpu, sample{now, cpu}, cutoff, m.maxHistory)
	m.memory = appendSample(m.memory, sample{now, memory}, cutoff, m.maxHistory)
}

// Snapshot computes the point-in-time aggregate. Read-only: entries
// already past the window are filtered out of the calculation but not
// removed here. Empty series produce zero-valued statistics.
func (m *MetricsService) Snapshot() domain.MetricsSnapshot {
	now := time.Now()
	cutoff := now.Add(-m.window)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var e2e, network, inference []float64
	for _, rec := range m.frames {
		if rec.RecordedAt.Before(cutoff) {
			continue
		}
		e2e = append(e2e, rec.EndToEndMs)
		network = append(network, rec.NetworkMs)
		inference = append(inference, rec.InferenceMs)
	}

	span := now.Sub(m.windowStart)
	if span > m.window {
		span = m.window
	}
	fps := 0.0
	if span > 0 && len(e2e) > 0 {
		fps = float64(len(e2e)) / span.Seconds()
	}

	return domain.MetricsSnapshot{
		TotalFrames:     m.totalFrames,
		ProcessedFrames: m.processedFrames,
		DroppedFrames:   m.droppedFrames,
		FPS:             fps,
		EndToEnd:        latencyStats(e2e),
		Network:         latencyStats(network),
		Inference:       latencyStats(inference),
		Bandwidth: domain.BandwidthStats{
			Uplink:   seriesStats(m.uplink, cutoff),
			Downlink: seriesStats(m.downlink, cutoff),
		},
		System: domain.SystemStats{
			CPU:    seriesStats(m.cpu, cutoff),
			Memory: seriesStats(m.memory, cutoff),
		},
		WindowStart: m.windowStart,
		Timestamp:   now,
	}
}

// Reset clears history, counters and the window start. Samplers feeding
// the service keep running.
func (m *MetricsService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.frames = nil
	m.uplink = nil
	m.downlink = nil
	m.cpu = nil
	m.memory = nil
	m.totalFrames = 0
	m.processedFrames = 0
	m.droppedFrames = 0
	m.windowStart = time.Now()
}

func evictFrames(frames []domain.FrameRecord, cutoff time.Time, maxHistory int) []domain.FrameRecord {
	start := 0
	for start < len(frames) && frames[start].RecordedAt.Before(cutoff) {
		start++
	}
	if over := len(frames) - start - maxHistory; over > 0 {
		start += over
	}
	if start == 0 {
		return frames
	}
	return append(frames[:0], frames[start:]...)
}

func appendSample(series []sample, s sample, cutoff time.Time, maxHistory int) []sample {
	series = append(series, s)
	start := 0
	for start < len(series) && series[start].ts.Before(cutoff) {
		start++
	}
	if over := len(series) - start - maxHistory; over > 0 {
		start += over
	}
	if start == 0 {
		return series
	}
	return append(series[:0], series[start:]...)
}

func latencyStats(values []float64) domain.LatencyStats {
	if len(values) == 0 {
		return domain.LatencyStats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return domain.LatencyStats{
		Median:  nearestRank(sorted, 50),
		P95:     nearestRank(sorted, 95),
		P99:     nearestRank(sorted, 99),
		Average: sum / float64(len(sorted)),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
	}
}

// nearestRank returns the p-th percentile of a sorted ascending series
// using the nearest-rank method: index ceil(p/100*n)-1, clamped.
func nearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100.0*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func seriesStats(series []sample, cutoff time.Time) domain.SeriesStats {
	var stats domain.SeriesStats
	var sum float64
	var n int
	for _, s := range series {
		if s.ts.Before(cutoff) {
			continue
		}
		sum += s.value
		if s.value > stats.Max {
			stats.Max = s.value
		}
		stats.Current = s.value
		n++
	}
	if n > 0 {
		stats.Average = sum / float64(n)
	}
	return stats
}
