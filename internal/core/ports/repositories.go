package ports

import (
	"context"

	"visionrelay/internal/core/domain"
)

// PeerDirectory persists peer records (role, current room). Connection
// handles never pass through here; they stay with the registry. The
// memory implementation is the default, the redis one allows the peer
// roster to be observed across processes.
type PeerDirectory interface {
	Add(ctx context.Context, peer *domain.Peer) error
	Get(ctx context.Context, id domain.PeerID) (*domain.Peer, error)
	Update(ctx context.Context, peer *domain.Peer) error
	Remove(ctx context.Context, id domain.PeerID) error
}
