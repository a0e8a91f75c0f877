package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"visionrelay/internal/core/domain"
	"visionrelay/internal/core/ports"
	"visionrelay/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// APIHandler exposes the out-of-band surfaces: frame ingest into the
// pipeline and the operator metrics/room queries. Ingest is throttled
// to the configured target FPS; over-rate frames are shed and counted
// exactly like queue evictions.
type APIHandler struct {
	pipeline ports.FramePipeline
	metrics  ports.MetricsRecorder
	broker   ports.RoomBroker

	collector      *monitoring.PrometheusCollector
	limiter        *rate.Limiter
	requestTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewAPIHandler(
	pipeline ports.FramePipeline,
	metrics ports.MetricsRecorder,
	broker ports.RoomBroker,
	collector *monitoring.PrometheusCollector,
	targetFPS int,
	requestTimeout time.Duration,
	logger *zap.SugaredLogger,
) *APIHandler {
	if targetFPS <= 0 {
		targetFPS = 15
	}
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &APIHandler{
		pipeline:       pipeline,
		metrics:        metrics,
		broker:         broker,
		collector:      collector,
		limiter:        rate.NewLimiter(rate.Limit(targetFPS), targetFPS),
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

func (h *APIHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/frames", h.SubmitFrame)
		api.GET("/metrics", h.GetMetrics)
		api.POST("/metrics/reset", h.ResetMetrics)
		api.GET("/rooms/:id", h.GetRoom)
	}
	router.GET("/health", h.Health)
}

type frameRequest struct {
	FrameID   json.RawMessage `json:"frame_id"`
	CaptureTS int64           `json:"capture_ts"`
	Payload   string          `json:"payload"`
	Uplink    *float64        `json:"uplink,omitempty"`
	Downlink  *float64        `json:"downlink,omitempty"`
}

// frameID accepts the caller-supplied id as either a string or a
// number and keeps its textual form.
func (r *frameRequest) frameID() string {
	var s string
	if err := json.Unmarshal(r.FrameID, &s); err == nil {
		return s
	}
	return string(r.FrameID)
}

// SubmitFrame admits one frame into the pipeline and replies with the
// detection result once the dispatch resolves.
func (h *APIHandler) SubmitFrame(c *gin.Context) {
	var req frameRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.FrameID) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame_id is required"})
		return
	}

	if req.Uplink != nil && req.Downlink != nil {
		h.metrics.RecordBandwidth(*req.Uplink, *req.Downlink)
	}

	if !h.limiter.Allow() {
		h.metrics.RecordDroppedFrame()
		h.collector.FrameDropped()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"frame_id":  json.RawMessage(req.FrameID),
			"processed": false,
		})
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		// Not base64; pass the raw bytes through, the payload is opaque.
		payload = []byte(req.Payload)
	}

	frame := &domain.Frame{
		FrameID:   req.frameID(),
		CaptureTS: req.CaptureTS,
		Payload:   payload,
	}

	resultCh := h.pipeline.Submit(frame)

	select {
	case res := <-resultCh:
		if res.Err != nil {
			h.collector.FrameDropped()
			c.JSON(http.StatusOK, gin.H{
				"frame_id":  json.RawMessage(req.FrameID),
				"processed": false,
			})
			return
		}

		done := res.Frame
		h.collector.FrameProcessed(
			float64(done.InferenceTS-done.RecvTS)/1000.0,
			float64(time.Now().UnixMilli()-done.CaptureTS)/1000.0,
		)
		c.JSON(http.StatusOK, gin.H{
			"frame_id":     json.RawMessage(req.FrameID),
			"capture_ts":   done.CaptureTS,
			"recv_ts":      done.RecvTS,
			"inference_ts": done.InferenceTS,
			"detections":   done.Detections,
		})

	case <-time.After(h.requestTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"frame_id":  json.RawMessage(req.FrameID),
			"processed": false,
		})

	case <-c.Request.Context().Done():
		// Caller went away; the pipeline result is abandoned.
	}
}

func (h *APIHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

func (h *APIHandler) ResetMetrics(c *gin.Context) {
	h.metrics.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (h *APIHandler) GetRoom(c *gin.Context) {
	info, ok := h.broker.RoomInfo(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"queue_depth": h.pipeline.QueueDepth(),
	})
}
