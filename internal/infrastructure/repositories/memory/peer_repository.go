package memory

import (
	"context"
	"fmt"
	"sync"

	"visionrelay/internal/core/domain"
	"visionrelay/internal/core/ports"
)

type MemoryPeerDirectory struct {
	peers map[domain.PeerID]*domain.Peer
	mu    sync.RWMutex
}

func NewMemoryPeerDirectory() ports.PeerDirectory {
	return &MemoryPeerDirectory{
		peers: make(map[domain.PeerID]*domain.Peer),
	}
}

func (r *MemoryPeerDirectory) Add(ctx context.Context, peer *domain.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[peer.ID]; exists {
		return fmt.Errorf("peer already exists: %s", peer.ID)
	}

	cp := *peer
	r.peers[peer.ID] = &cp
	return nil
}

func (r *MemoryPeerDirectory) Get(ctx context.Context, id domain.PeerID) (*domain.Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peer, exists := r.peers[id]
	if !exists {
		return nil, domain.ErrPeerNotFound
	}

	cp := *peer
	return &cp, nil
}

func (r *MemoryPeerDirectory) Update(ctx context.Context, peer *domain.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[peer.ID]; !exists {
		return domain.ErrPeerNotFound
	}

	cp := *peer
	r.peers[peer.ID] = &cp
	return nil
}

func (r *MemoryPeerDirectory) Remove(ctx context.Context, id domain.PeerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[id]; !exists {
		return domain.ErrPeerNotFound
	}

	delete(r.peers, id)
	return nil
}
