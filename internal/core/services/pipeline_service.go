package services

import (
	"context"
	"sync"
	"time"

	"visionrelay/internal/core/domain"
	"visionrelay/internal/core/ports"

	"go.uber.org/zap"
)

type pendingFrame struct {
	frame  *domain.Frame
	result chan domain.FrameResult
}

// PipelineService is the frame admission queue and inference dispatch.
// Admission is bounded: when the queue is full the oldest queued frame
// is shed to make room, and its caller is resolved with
// ErrFrameEvicted. A single drain goroutine pops frames strictly FIFO
// and runs at most one Detect call at a time; the detector is assumed
// non-reentrant.
type PipelineService struct {
	detector ports.Detector
	metrics  ports.MetricsRecorder

	// mu serializes the evict-then-insert step so depth can never
	// overshoot the queue capacity. The drain side reads the channel
	// directly and never takes the lock.
	mu    sync.Mutex
	queue chan *pendingFrame

	logger *zap.SugaredLogger
}

func NewPipelineService(detector ports.Detector, metrics ports.MetricsRecorder, maxQueueSize int, logger *zap.SugaredLogger) *PipelineService {
	if maxQueueSize <= 0 {
		maxQueueSize = 1
	}
	return &PipelineService{
		detector: detector,
		metrics:  metrics,
		queue:    make(chan *pendingFrame, maxQueueSize),
		logger:   logger,
	}
}

// Submit admits a frame and returns a channel that resolves with the
// frame's result. Submit never blocks: on a full queue it evicts the
// oldest queued frame first. The returned channel is buffered; callers
// that stop listening do not wedge the pipeline.
func (p *PipelineService) Submit(frame *domain.Frame) <-chan domain.FrameResult {
	pf := &pendingFrame{frame: frame, result: make(chan domain.FrameResult, 1)}

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		select {
		case p.queue <- pf:
			return pf.result
		default:
		}

		// Full: shed the oldest queued frame. The drain loop may have
		// raced us and emptied a slot, in which case this misses and
		// the outer loop retries the insert.
		select {
		case old := <-p.queue:
			p.evict(old)
		default:
		}
	}
}

// Run drains the queue until ctx is cancelled. Strict FIFO, one
// in-flight dispatch; the wait on the queue channel is the only
// blocking point. Frames still queued at shutdown are resolved with
// ErrPipelineClosed.
func (p *PipelineService) Run(ctx context.Context) {
	for {
		// Cancellation wins over pending work.
		select {
		case <-ctx.Done():
			p.flush()
			return
		default:
		}

		select {
		case <-ctx.Done():
			p.flush()
			return
		case pf := <-p.queue:
			p.dispatch(ctx, pf)
		}
	}
}

func (p *PipelineService) QueueDepth() int {
	return len(p.queue)
}

// dispatch stamps recv_ts, runs the detector, stamps inference_ts and
// resolves the caller. A detector failure degrades to an empty
// detection list; one bad frame never stalls the pipeline.
func (p *PipelineService) dispatch(ctx context.Context, pf *pendingFrame) {
	frame := pf.frame
	frame.RecvTS = time.Now().UnixMilli()

	detections, err := p.detector.Detect(ctx, frame)
	frame.InferenceTS = time.Now().UnixMilli()

	if err != nil {
		p.logger.Warnw("detector failed, resolving with no detections",
			"frame_id", frame.FrameID, "error", err)
		detections = []domain.Detection{}
	}
	if detections == nil {
		detections = []domain.Detection{}
	}
	frame.Detections = detections

	p.metrics.RecordFrame(domain.FrameRecord{
		FrameID:        frame.FrameID,
		CaptureTS:      frame.CaptureTS,
		RecvTS:         frame.RecvTS,
		InferenceTS:    frame.InferenceTS,
		DetectionCount: len(detections),
	})

	pf.result <- domain.FrameResult{Frame: frame}
}

func (p *PipelineService) evict(pf *pendingFrame) {
	p.metrics.RecordDroppedFrame()
	p.logger.Debugw("frame evicted under backpressure", "frame_id", pf.frame.FrameID)
	pf.result <- domain.FrameResult{Frame: pf.frame, Err: domain.ErrFrameEvicted}
}

func (p *PipelineService) flush() {
	for {
		select {
		case pf := <-p.queue:
			pf.result <- domain.FrameResult{Frame: pf.frame, Err: domain.ErrPipelineClosed}
		default:
			return
		}
	}
}
