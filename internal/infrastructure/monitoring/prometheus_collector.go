package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports broker and pipeline health. All methods
// are nil-safe so wiring can leave the collector out entirely.
type PrometheusCollector struct {
	peersConnected prometheus.Gauge
	roomsActive    prometheus.Gauge

	framesProcessedTotal prometheus.Counter
	framesDroppedTotal   prometheus.Counter
	relayMessagesTotal   *prometheus.CounterVec

	inferenceLatency prometheus.Histogram
	endToEndLatency  prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		peersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "visionrelay_peers_connected",
			Help: "Number of currently connected signaling peers",
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "visionrelay_rooms_active",
			Help: "Number of rooms with at least one member",
		}),

		framesProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visionrelay_frames_processed_total",
			Help: "Total number of frames run through inference",
		}),

		framesDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visionrelay_frames_dropped_total",
			Help: "Total number of frames shed by the admission queue",
		}),

		relayMessagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "visionrelay_relay_messages_total",
			Help: "Signaling messages relayed between peers",
		}, []string{"kind"}),

		inferenceLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "visionrelay_inference_latency_seconds",
			Help:    "Time spent in the detection collaborator per frame",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),

		endToEndLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "visionrelay_end_to_end_latency_seconds",
			Help:    "Capture-to-result latency per frame",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
	}
}

func (p *PrometheusCollector) PeerConnected() {
	if p != nil {
		p.peersConnected.Inc()
	}
}

func (p *PrometheusCollector) PeerDisconnected() {
	if p != nil {
		p.peersConnected.Dec()
	}
}

func (p *PrometheusCollector) SetActiveRooms(n int) {
	if p != nil {
		p.roomsActive.Set(float64(n))
	}
}

func (p *PrometheusCollector) FrameProcessed(inferenceSec, endToEndSec float64) {
	if p != nil {
		p.framesProcessedTotal.Inc()
		p.inferenceLatency.Observe(inferenceSec)
		p.endToEndLatency.Observe(endToEndSec)
	}
}

func (p *PrometheusCollector) FrameDropped() {
	if p != nil {
		p.framesDroppedTotal.Inc()
	}
}

func (p *PrometheusCollector) MessageRelayed(kind string) {
	if p != nil {
		p.relayMessagesTotal.WithLabelValues(kind).Inc()
	}
}
