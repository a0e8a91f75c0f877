package monitoring

import (
	"context"
	"time"

	"visionrelay/internal/core/ports"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// SystemSampler feeds CPU and memory usage into the metrics recorder on
// a fixed interval, independent of frame traffic. It keeps running
// across metrics resets.
type SystemSampler struct {
	metrics  ports.MetricsRecorder
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewSystemSampler(metrics ports.MetricsRecorder, interval time.Duration, logger *zap.SugaredLogger) *SystemSampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SystemSampler{
		metrics:  metrics,
		interval: interval,
		logger:   logger,
	}
}

// Run samples until ctx is cancelled.
func (s *SystemSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *SystemSampler) sample(ctx context.Context) {
	cpuPct := 0.0
	if usage, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		s.logger.Debugw("cpu sampling failed", "error", err)
	} else if len(usage) > 0 {
		cpuPct = usage[0]
	}

	memPct := 0.0
	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		s.logger.Debugw("memory sampling failed", "error", err)
	} else {
		memPct = vm.UsedPercent
	}

	s.metrics.RecordSystemSample(cpuPct, memPct)
}
