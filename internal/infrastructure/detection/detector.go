package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"visionrelay/internal/core/domain"
	"visionrelay/internal/core/ports"
	"visionrelay/pkg/circuitbreaker"
)

// NoopDetector resolves every frame with no detections. Used when no
// inference backend is configured; the pipeline still exercises its
// full timestamp and metrics path.
type NoopDetector struct{}

func NewNoopDetector() ports.Detector {
	return NoopDetector{}
}

func (NoopDetector) Detect(ctx context.Context, frame *domain.Frame) ([]domain.Detection, error) {
	return []domain.Detection{}, nil
}

// HTTPDetector forwards frames to an external inference service. The
// service receives the raw payload and replies with the detection list;
// any failure is surfaced to the pipeline, which fails open. A circuit
// breaker sheds calls quickly while the service is down so queued
// frames are not held behind a full client timeout each.
type HTTPDetector struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

func NewHTTPDetector(url string, timeout time.Duration) ports.Detector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDetector{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
	}
}

func (d *HTTPDetector) Detect(ctx context.Context, frame *domain.Frame) ([]domain.Detection, error) {
	var detections []domain.Detection
	err := d.breaker.Execute(func() error {
		var callErr error
		detections, callErr = d.call(ctx, frame)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return detections, nil
}

func (d *HTTPDetector) call(ctx context.Context, frame *domain.Frame) ([]domain.Detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(frame.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Frame-ID", frame.FrameID)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned status %d", resp.StatusCode)
	}

	var out struct {
		Detections []domain.Detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}
	return out.Detections, nil
}
