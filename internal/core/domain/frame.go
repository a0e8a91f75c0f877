package domain

// Detection is one detector output for a frame. Coordinates are
// normalized to [0,1]; the contract is accepted as-is, not enforced.
type Detection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	XMin  float64 `json:"xmin"`
	YMin  float64 `json:"ymin"`
	XMax  float64 `json:"xmax"`
	YMax  float64 `json:"ymax"`
}

// Frame is one unit of captured video data submitted for detection.
// FrameID is caller-supplied and opaque; Payload carries the encoded
// image bytes and is never inspected by the pipeline. Timestamps are
// millisecond epoch values stamped incrementally as the frame moves
// through the pipeline.
type Frame struct {
	FrameID     string      `json:"frame_id"`
	CaptureTS   int64       `json:"capture_ts"`
	RecvTS      int64       `json:"recv_ts"`
	InferenceTS int64       `json:"inference_ts"`
	Payload     []byte      `json:"-"`
	Detections  []Detection `json:"detections"`
}

// FrameResult resolves a submitted frame. Err is set only when the
// frame was evicted before dispatch; detector failures surface as an
// empty detection list, never as an error.
type FrameResult struct {
	Frame *Frame
	Err   error
}
