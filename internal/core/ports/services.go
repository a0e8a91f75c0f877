package ports

import (
	"context"
	"encoding/json"

	"visionrelay/internal/core/domain"
)

// PeerConn is the opaque connection handle held for each connected
// peer. The websocket server provides the live implementation; tests
// substitute mocks.
type PeerConn interface {
	Send(v interface{}) error
	Close() error
}

// SessionRegistry tracks connected peers and their declared role,
// independent of rooms. It owns peer lifecycle exclusively.
type SessionRegistry interface {
	Connect(ctx context.Context, conn PeerConn) (*domain.Peer, error)
	Register(ctx context.Context, peerID domain.PeerID, role domain.PeerRole)
	Lookup(ctx context.Context, peerID domain.PeerID) (*domain.Peer, bool)
	Conn(peerID domain.PeerID) (PeerConn, bool)
	SetRoom(ctx context.Context, peerID domain.PeerID, roomID domain.RoomID)
	Disconnect(ctx context.Context, peerID domain.PeerID) (domain.RoomID, bool)
	Count() int
}

// RoomInfo is the point-in-time view of a room returned by the broker.
type RoomInfo struct {
	RoomID    domain.RoomID   `json:"roomId"`
	Members   []domain.Member `json:"members"`
	CreatedAt int64           `json:"createdAt"`
}

// RoomBroker groups peers into named rooms and relays targeted
// signaling between them.
type RoomBroker interface {
	Join(ctx context.Context, peerID domain.PeerID, roomID domain.RoomID) ([]domain.Member, error)
	Leave(ctx context.Context, peerID domain.PeerID, roomID domain.RoomID)
	RelayTargeted(ctx context.Context, senderID, targetID domain.PeerID, kind domain.MessageKind, payload json.RawMessage)
	RoomInfo(roomID domain.RoomID) (RoomInfo, bool)
	HandleDisconnect(ctx context.Context, peerID domain.PeerID)
	RoomCount() int
}

// Detector is the external detection collaborator. Implementations are
// assumed non-reentrant; the pipeline never invokes Detect concurrently.
type Detector interface {
	Detect(ctx context.Context, frame *domain.Frame) ([]domain.Detection, error)
}

// FramePipeline admits frames into the bounded queue and resolves each
// caller with the frame's result, or ErrFrameEvicted if the frame was
// shed before dispatch.
type FramePipeline interface {
	Submit(frame *domain.Frame) <-chan domain.FrameResult
	Run(ctx context.Context)
	QueueDepth() int
}

// MetricsRecorder accumulates pipeline health data in rolling buffers.
type MetricsRecorder interface {
	RecordFrame(rec domain.FrameRecord)
	RecordDroppedFrame()
	RecordBandwidth(uplink, downlink float64)
	RecordSystemSample(cpu, memory float64)
	Snapshot() domain.MetricsSnapshot
	Reset()
}
