package services

import (
	"fmt"
	"testing"
	"time"

	"visionrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestNearestRankPercentiles(t *testing.T) {
	series := []float64{10, 20, 30, 40, 50}

	assert.Equal(t, 30.0, nearestRank(series, 50))
	assert.Equal(t, 50.0, nearestRank(series, 95))
	assert.Equal(t, 50.0, nearestRank(series, 99))
	assert.Equal(t, 10.0, nearestRank(series, 1))
}

func TestLatencyStats(t *testing.T) {
	stats := latencyStats([]float64{50, 10, 30, 20, 40})

	assert.Equal(t, 30.0, stats.Median)
	assert.Equal(t, 50.0, stats.P95)
	assert.Equal(t, 50.0, stats.P99)
	assert.Equal(t, 30.0, stats.Average)
	assert.Equal(t, 10.0, stats.Min)
	assert.Equal(t, 50.0, stats.Max)
}

func TestEmptySnapshotIsAllZeroes(t *testing.T) {
	m := NewMetricsService(30*time.Second, 1000)

	snap := m.Snapshot()

	assert.Zero(t, snap.TotalFrames)
	assert.Zero(t, snap.ProcessedFrames)
	assert.Zero(t, snap.DroppedFrames)
	assert.Zero(t, snap.FPS)
	assert.Equal(t, domain.LatencyStats{}, snap.EndToEnd)
	assert.Equal(t, domain.LatencyStats{}, snap.Network)
	assert.Equal(t, domain.LatencyStats{}, snap.Inference)
	assert.Equal(t, domain.BandwidthStats{}, snap.Bandwidth)
	assert.Equal(t, domain.SystemStats{}, snap.System)
}

func TestRecordFrameDerivesLatencies(t *testing.T) {
	m := NewMetricsService(30*time.Second, 1000)

	now := time.Now().UnixMilli()
	m.RecordFrame(domain.FrameRecord{
		FrameID:     "f1",
		CaptureTS:   now - 100,
		RecvTS:      now - 60,
		InferenceTS: now - 10,
	})

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.TotalFrames)
	assert.EqualValues(t, 1, snap.ProcessedFrames)
	assert.Equal(t, 40.0, snap.Network.Median)
	assert.Equal(t, 50.0, snap.Inference.Median)
	assert.GreaterOrEqual(t, snap.EndToEnd.Median, 100.0)
}

func TestDroppedFramesCountedWithoutHistory(t *testing.T) {
	m := NewMetricsService(30*time.Second, 1000)

	m.RecordDroppedFrame()
	m.RecordDroppedFrame()

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.TotalFrames)
	assert.EqualValues(t, 2, snap.DroppedFrames)
	assert.EqualValues(t, 0, snap.ProcessedFrames)
	assert.Equal(t, domain.LatencyStats{}, snap.EndToEnd)
}

func TestHistoryCapEviction(t *testing.T) {
	m := NewMetricsService(time.Hour, 3)

	now := time.Now().UnixMilli()
	for i := 0; i < 5; i++ {
		m.RecordFrame(domain.FrameRecord{
			FrameID:     fmt.Sprintf("f%d", i),
			CaptureTS:   now,
			RecvTS:      now,
			InferenceTS: now,
		})
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	assert.Len(t, m.frames, 3)
	assert.Equal(t, "f2", m.frames[0].FrameID)

	// Counters keep the full totals even after eviction.
	assert.EqualValues(t, 5, m.totalFrames)
	assert.EqualValues(t, 5, m.processedFrames)
}

func TestBandwidthStats(t *testing.T) {
	m := NewMetricsService(30*time.Second, 1000)

	m.RecordBandwidth(100, 500)
	m.RecordBandwidth(200, 300)

	snap := m.Snapshot()
	assert.Equal(t, 200.0, snap.Bandwidth.Uplink.Current)
	assert.Equal(t, 150.0, snap.Bandwidth.Uplink.Average)
	assert.Equal(t, 200.0, snap.Bandwidth.Uplink.Max)
	assert.Equal(t, 300.0, snap.Bandwidth.Downlink.Current)
	assert.Equal(t, 500.0, snap.Bandwidth.Downlink.Max)
}

func TestSystemSampleStats(t *testing.T) {
	m := NewMetricsService(30*time.Second, 1000)

	m.RecordSystemSample(10, 40)
	m.RecordSystemSample(30, 60)

	snap := m.Snapshot()
	assert.Equal(t, 30.0, snap.System.CPU.Current)
	assert.Equal(t, 20.0, snap.System.CPU.Average)
	assert.Equal(t, 60.0, snap.System.Memory.Max)
}

func TestResetClearsEverything(t *testing.T) {
	m := NewMetricsService(30*time.Second, 1000)

	now := time.Now().UnixMilli()
	m.RecordFrame(domain.FrameRecord{FrameID: "f1", CaptureTS: now, RecvTS: now, InferenceTS: now})
	m.RecordDroppedFrame()
	m.RecordBandwidth(100, 100)
	m.RecordSystemSample(50, 50)

	before := m.Snapshot().WindowStart
	m.Reset()
	snap := m.Snapshot()

	assert.Zero(t, snap.TotalFrames)
	assert.Zero(t, snap.ProcessedFrames)
	assert.Zero(t, snap.DroppedFrames)
	assert.Equal(t, domain.LatencyStats{}, snap.EndToEnd)
	assert.Equal(t, domain.BandwidthStats{}, snap.Bandwidth)
	assert.Equal(t, domain.SystemStats{}, snap.System)
	assert.True(t, !snap.WindowStart.Before(before))

	// Reset twice is safe.
	m.Reset()
}
