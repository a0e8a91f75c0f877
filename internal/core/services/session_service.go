package services

import (
	"context"
	"sync"
	"time"

	"visionrelay/internal/core/domain"
	"visionrelay/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionService is the session registry: it owns peer lifecycle and
// the live connection handles. Room membership is tracked as a plain
// back-reference on the peer record; the room broker owns room state.
type SessionService struct {
	directory ports.PeerDirectory

	mu    sync.RWMutex
	conns map[domain.PeerID]ports.PeerConn

	logger *zap.SugaredLogger
}

func NewSessionService(directory ports.PeerDirectory, logger *zap.SugaredLogger) *SessionService {
	return &SessionService{
		directory: directory,
		conns:     make(map[domain.PeerID]ports.PeerConn),
		logger:    logger,
	}
}

// Connect admits a new connection, assigns a session id and stores the
// peer with role unknown until it registers.
func (s *SessionService) Connect(ctx context.Context, conn ports.PeerConn) (*domain.Peer, error) {
	peer := &domain.Peer{
		ID:          domain.PeerID(uuid.NewString()),
		Role:        domain.RoleUnknown,
		ConnectedAt: time.Now(),
	}

	if err := s.directory.Add(ctx, peer); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.conns[peer.ID] = conn
	s.mu.Unlock()

	s.logger.Infow("peer connected", "peer_id", peer.ID)
	return peer, nil
}

// Register sets the peer's declared role. Idempotent: calling again
// overwrites the role. Unknown peers are a silent no-op, they already
// disconnected.
func (s *SessionService) Register(ctx context.Context, peerID domain.PeerID, role domain.PeerRole) {
	peer, err := s.directory.Get(ctx, peerID)
	if err != nil {
		s.logger.Debugw("register for unknown peer ignored", "peer_id", peerID)
		return
	}

	peer.Role = role
	if err := s.directory.Update(ctx, peer); err != nil {
		s.logger.Warnw("failed to persist peer role", "peer_id", peerID, "error", err)
		return
	}

	s.logger.Infow("peer registered", "peer_id", peerID, "role", role)
}

func (s *SessionService) Lookup(ctx context.Context, peerID domain.PeerID) (*domain.Peer, bool) {
	peer, err := s.directory.Get(ctx, peerID)
	if err != nil {
		return nil, false
	}
	return peer, true
}

func (s *SessionService) Conn(peerID domain.PeerID) (ports.PeerConn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.conns[peerID]
	return conn, ok
}

// SetRoom records the peer's current room back-reference.
func (s *SessionService) SetRoom(ctx context.Context, peerID domain.PeerID, roomID domain.RoomID) {
	peer, err := s.directory.Get(ctx, peerID)
	if err != nil {
		return
	}

	peer.RoomID = roomID
	if err := s.directory.Update(ctx, peer); err != nil {
		s.logger.Warnw("failed to persist peer room", "peer_id", peerID, "error", err)
	}
}

// Disconnect removes the peer and returns its prior room id so the
// caller can trigger room cleanup. Safe to call twice; the second call
// reports ok=false.
func (s *SessionService) Disconnect(ctx context.Context, peerID domain.PeerID) (domain.RoomID, bool) {
	s.mu.Lock()
	delete(s.conns, peerID)
	s.mu.Unlock()

	peer, err := s.directory.Get(ctx, peerID)
	if err != nil {
		return "", false
	}

	if err := s.directory.Remove(ctx, peerID); err != nil {
		s.logger.Warnw("failed to remove peer record", "peer_id", peerID, "error", err)
	}

	s.logger.Infow("peer disconnected", "peer_id", peerID, "room_id", peer.RoomID)
	return peer.RoomID, true
}

func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
