package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"visionrelay/internal/core/domain"
	"visionrelay/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// peerTTL bounds how long a stale record can outlive its process if
// the server dies without cleaning up.
const peerTTL = 24 * time.Hour

type RedisPeerDirectory struct {
	client *redis.Client
	prefix string
}

func NewRedisPeerDirectory(client *redis.Client) ports.PeerDirectory {
	return &RedisPeerDirectory{
		client: client,
		prefix: "visionrelay:peer:",
	}
}

func (r *RedisPeerDirectory) peerKey(id domain.PeerID) string {
	return r.prefix + string(id)
}

func (r *RedisPeerDirectory) Add(ctx context.Context, peer *domain.Peer) error {
	data, err := json.Marshal(peer)
	if err != nil {
		return fmt.Errorf("failed to marshal peer: %w", err)
	}

	if err := r.client.Set(ctx, r.peerKey(peer.ID), data, peerTTL).Err(); err != nil {
		return fmt.Errorf("failed to set peer in Redis: %w", err)
	}
	return nil
}

func (r *RedisPeerDirectory) Get(ctx context.Context, id domain.PeerID) (*domain.Peer, error) {
	data, err := r.client.Get(ctx, r.peerKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrPeerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get peer from Redis: %w", err)
	}

	var peer domain.Peer
	if err := json.Unmarshal([]byte(data), &peer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal peer: %w", err)
	}
	return &peer, nil
}

func (r *RedisPeerDirectory) Update(ctx context.Context, peer *domain.Peer) error {
	return r.Add(ctx, peer)
}

func (r *RedisPeerDirectory) Remove(ctx context.Context, id domain.PeerID) error {
	if err := r.client.Del(ctx, r.peerKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete peer from Redis: %w", err)
	}
	return nil
}
