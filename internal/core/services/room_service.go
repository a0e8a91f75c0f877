package services

import (
	"context"
	"encoding/json"
	"sync"

	"visionrelay/internal/core/domain"
	"visionrelay/internal/core/ports"

	"go.uber.org/zap"
)

// RoomService is the room broker. Room state lives here and nowhere
// else; the session registry only carries a room back-reference per
// peer. Membership mutations on a room never interleave: join, leave
// and disconnect cleanup all run under one mutex. Notification fan-out
// happens after the mutation, best effort and unordered across peers.
type RoomService struct {
	registry ports.SessionRegistry

	mu    sync.Mutex
	rooms map[domain.RoomID]*domain.Room

	logger *zap.SugaredLogger
}

func NewRoomService(registry ports.SessionRegistry, logger *zap.SugaredLogger) *RoomService {
	return &RoomService{
		registry: registry,
		rooms:    make(map[domain.RoomID]*domain.Room),
		logger:   logger,
	}
}

// Join adds the peer to the room, creating it if absent. A peer in a
// different room leaves it first; a peer belongs to at most one room.
// Returns the membership list excluding the joiner. Other members are
// notified with a peer-joined event.
func (s *RoomService) Join(ctx context.Context, peerID domain.PeerID, roomID domain.RoomID) ([]domain.Member, error) {
	peer, ok := s.registry.Lookup(ctx, peerID)
	if !ok {
		return nil, domain.ErrPeerNotFound
	}

	s.mu.Lock()

	var leftTargets []domain.PeerID
	var leftRoom domain.RoomID
	if peer.RoomID != "" && peer.RoomID != roomID {
		leftRoom = peer.RoomID
		leftTargets, _ = s.removeLocked(peerID, peer.RoomID)
	}

	room, exists := s.rooms[roomID]
	if !exists {
		room = domain.NewRoom(roomID)
		s.rooms[roomID] = room
		s.logger.Infow("room created", "room_id", roomID)
	}

	// On a rejoin of the current room the peer is already a member;
	// it must not see itself in the list or get its own peer-joined.
	others := make([]domain.PeerID, 0, len(room.Members))
	for _, id := range room.MemberIDs() {
		if id != peerID {
			others = append(others, id)
		}
	}
	room.Add(peerID)

	s.mu.Unlock()

	s.registry.SetRoom(ctx, peerID, roomID)

	if leftRoom != "" {
		s.notifyPeerLeft(leftTargets, peerID)
	}

	members := make([]domain.Member, 0, len(others))
	for _, id := range others {
		member, ok := s.registry.Lookup(ctx, id)
		if !ok {
			continue
		}
		members = append(members, domain.Member{PeerID: member.ID, Role: member.Role})
	}

	joined := map[string]interface{}{
		"type":   "peer-joined",
		"peerId": peerID,
		"role":   peer.Role,
	}
	s.notify(others, joined)

	s.logger.Infow("peer joined room", "peer_id", peerID, "room_id", roomID, "members", len(members)+1)
	return members, nil
}

// Leave removes the peer from the room and deletes the room when it
// becomes empty. Remaining members get a peer-left event.
func (s *RoomService) Leave(ctx context.Context, peerID domain.PeerID, roomID domain.RoomID) {
	s.mu.Lock()
	remaining, removed := s.removeLocked(peerID, roomID)
	s.mu.Unlock()

	// A leave with a stale room id must not clear the peer's actual
	// membership back-reference.
	if !removed {
		return
	}

	s.registry.SetRoom(ctx, peerID, "")
	s.notifyPeerLeft(remaining, peerID)
}

// RelayTargeted forwards the payload verbatim to the target peer,
// tagged with the sender id and message kind. The sender must be in a
// room; stale peers cannot relay. Routing failures are dropped
// silently, signaling is best effort.
func (s *RoomService) RelayTargeted(ctx context.Context, senderID, targetID domain.PeerID, kind domain.MessageKind, payload json.RawMessage) {
	sender, ok := s.registry.Lookup(ctx, senderID)
	if !ok || sender.RoomID == "" {
		s.logger.Debugw("relay from roomless peer dropped", "peer_id", senderID, "kind", kind)
		return
	}

	conn, ok := s.registry.Conn(targetID)
	if !ok {
		s.logger.Debugw("relay to unknown target dropped", "target_id", targetID, "kind", kind)
		return
	}

	msg := map[string]interface{}{
		"type":    kind,
		"fromId":  senderID,
		"payload": payload,
	}
	if err := conn.Send(msg); err != nil {
		s.logger.Debugw("relay send failed", "target_id", targetID, "kind", kind, "error", err)
	}
}

func (s *RoomService) RoomInfo(roomID domain.RoomID) (ports.RoomInfo, bool) {
	s.mu.Lock()
	room, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return ports.RoomInfo{}, false
	}
	ids := room.MemberIDs()
	createdAt := room.CreatedAt
	s.mu.Unlock()

	members := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		peer, ok := s.registry.Lookup(context.Background(), id)
		if !ok {
			continue
		}
		members = append(members, domain.Member{PeerID: peer.ID, Role: peer.Role})
	}

	return ports.RoomInfo{
		RoomID:    roomID,
		Members:   members,
		CreatedAt: createdAt.UnixMilli(),
	}, true
}

// HandleDisconnect tears down the peer's session and its room
// membership. Invoked by the transport when the connection closes;
// safe to call for peers that never joined a room or already left.
func (s *RoomService) HandleDisconnect(ctx context.Context, peerID domain.PeerID) {
	roomID, ok := s.registry.Disconnect(ctx, peerID)
	if !ok || roomID == "" {
		return
	}

	s.mu.Lock()
	remaining, _ := s.removeLocked(peerID, roomID)
	s.mu.Unlock()

	s.notifyPeerLeft(remaining, peerID)
}

func (s *RoomService) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// removeLocked takes the peer out of the room and deletes the room if
// now empty. Returns the remaining member ids to notify and whether
// the peer was actually a member. Caller holds the mutex.
func (s *RoomService) removeLocked(peerID domain.PeerID, roomID domain.RoomID) ([]domain.PeerID, bool) {
	room, ok := s.rooms[roomID]
	if !ok || !room.Has(peerID) {
		return nil, false
	}

	room.Remove(peerID)
	if room.Empty() {
		delete(s.rooms, roomID)
		s.logger.Infow("room deleted", "room_id", roomID)
		return nil, true
	}
	return room.MemberIDs(), true
}

func (s *RoomService) notifyPeerLeft(targets []domain.PeerID, peerID domain.PeerID) {
	if len(targets) == 0 {
		return
	}
	s.notify(targets, map[string]interface{}{
		"type":   "peer-left",
		"peerId": peerID,
	})
}

func (s *RoomService) notify(targets []domain.PeerID, msg interface{}) {
	for _, id := range targets {
		conn, ok := s.registry.Conn(id)
		if !ok {
			continue
		}
		if err := conn.Send(msg); err != nil {
			s.logger.Debugw("notify failed", "peer_id", id, "error", err)
		}
	}
}
