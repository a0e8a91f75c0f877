package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"visionrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokerFixture struct {
	registry *SessionService
	broker   *RoomService
}

func newBrokerFixture() *brokerFixture {
	registry := newTestRegistry()
	return &brokerFixture{
		registry: registry,
		broker:   NewRoomService(registry, zap.NewNop().Sugar()),
	}
}

func (f *brokerFixture) addPeer(t *testing.T, role domain.PeerRole) (domain.PeerID, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	peer, err := f.registry.Connect(context.Background(), conn)
	require.NoError(t, err)
	f.registry.Register(context.Background(), peer.ID, role)
	return peer.ID, conn
}

func sentTypes(conn *fakeConn) []string {
	var types []string
	for _, msg := range conn.sent {
		if m, ok := msg.(map[string]interface{}); ok {
			types = append(types, fmt.Sprint(m["type"]))
		}
	}
	return types
}

func TestJoinCreatesRoomAndReturnsMembers(t *testing.T) {
	f := newBrokerFixture()
	ctx := context.Background()

	camID, camConn := f.addPeer(t, domain.RoleCamera)
	viewerID, _ := f.addPeer(t, domain.RoleViewer)

	members, err := f.broker.Join(ctx, camID, "r1")
	require.NoError(t, err)
	assert.Empty(t, members)

	members, err = f.broker.Join(ctx, viewerID, "r1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, camID, members[0].PeerID)
	assert.Equal(t, domain.RoleCamera, members[0].Role)

	// Camera was notified of the viewer joining.
	require.Contains(t, sentTypes(camConn), "peer-joined")
	joined := camConn.sent[len(camConn.sent)-1].(map[string]interface{})
	assert.Equal(t, viewerID, joined["peerId"])
	assert.Equal(t, domain.RoleViewer, joined["role"])
}

func TestRejoinCurrentRoom(t *testing.T) {
	f := newBrokerFixture()
	ctx := context.Background()

	camID, camConn := f.addPeer(t, domain.RoleCamera)
	viewerID, viewerConn := f.addPeer(t, domain.RoleViewer)

	_, err := f.broker.Join(ctx, camID, "r1")
	require.NoError(t, err)
	_, err = f.broker.Join(ctx, viewerID, "r1")
	require.NoError(t, err)

	sentBefore := len(viewerConn.sent)

	// Rejoining the room the viewer is already in must not list the
	// viewer among the other members or echo peer-joined back to it.
	members, err := f.broker.Join(ctx, viewerID, "r1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, camID, members[0].PeerID)
	assert.Equal(t, sentBefore, len(viewerConn.sent))

	// The camera still hears about the rejoin.
	joined := camConn.sent[len(camConn.sent)-1].(map[string]interface{})
	assert.Equal(t, "peer-joined", fmt.Sprint(joined["type"]))
	assert.Equal(t, viewerID, joined["peerId"])

	// Membership did not duplicate.
	info, ok := f.broker.RoomInfo("r1")
	require.True(t, ok)
	assert.Len(t, info.Members, 2)
}

func TestJoinUnknownPeerFails(t *testing.T) {
	f := newBrokerFixture()

	_, err := f.broker.Join(context.Background(), "ghost", "r1")
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)
	assert.Equal(t, 0, f.broker.RoomCount())
}

func TestSingleRoomInvariant(t *testing.T) {
	f := newBrokerFixture()
	ctx := context.Background()

	peerID, _ := f.addPeer(t, domain.RoleCamera)

	_, err := f.broker.Join(ctx, peerID, "a")
	require.NoError(t, err)
	_, err = f.broker.Join(ctx, peerID, "b")
	require.NoError(t, err)

	// Peer is in exactly room b; room a was deleted when it emptied.
	_, ok := f.broker.RoomInfo("a")
	assert.False(t, ok)

	info, ok := f.broker.RoomInfo("b")
	require.True(t, ok)
	require.Len(t, info.Members, 1)
	assert.Equal(t, peerID, info.Members[0].PeerID)

	peer, ok := f.registry.Lookup(ctx, peerID)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("b"), peer.RoomID)
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	f := newBrokerFixture()
	ctx := context.Background()

	a, _ := f.addPeer(t, domain.RoleCamera)
	b, bConn := f.addPeer(t, domain.RoleViewer)

	_, err := f.broker.Join(ctx, a, "r1")
	require.NoError(t, err)
	_, err = f.broker.Join(ctx, b, "r1")
	require.NoError(t, err)

	f.broker.Leave(ctx, a, "r1")

	// Room survives with one member; the survivor got peer-left.
	info, ok := f.broker.RoomInfo("r1")
	require.True(t, ok)
	assert.Len(t, info.Members, 1)
	assert.Contains(t, sentTypes(bConn), "peer-left")

	f.broker.Leave(ctx, b, "r1")
	_, ok = f.broker.RoomInfo("r1")
	assert.False(t, ok)
	assert.Equal(t, 0, f.broker.RoomCount())
}

func TestLeaveWithStaleRoomIDKeepsMembership(t *testing.T) {
	f := newBrokerFixture()
	ctx := context.Background()

	peerID, _ := f.addPeer(t, domain.RoleCamera)
	_, err := f.broker.Join(ctx, peerID, "r1")
	require.NoError(t, err)

	// Leaving a room the peer is not in must not touch its actual
	// membership or back-reference.
	f.broker.Leave(ctx, peerID, "r2")

	info, ok := f.broker.RoomInfo("r1")
	require.True(t, ok)
	assert.Len(t, info.Members, 1)

	peer, ok := f.registry.Lookup(ctx, peerID)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("r1"), peer.RoomID)
}

func TestRelayTargetedForwardsVerbatim(t *testing.T) {
	f := newBrokerFixture()
	ctx := context.Background()

	sender, _ := f.addPeer(t, domain.RoleViewer)
	target, targetConn := f.addPeer(t, domain.RoleCamera)

	_, err := f.broker.Join(ctx, sender, "r1")
	require.NoError(t, err)

	payload := json.RawMessage(`{"sdp":"v=0..."}`)
	f.broker.RelayTargeted(ctx, sender, target, domain.KindOffer, payload)

	require.Len(t, targetConn.sent, 1)
	msg := targetConn.sent[0].(map[string]interface{})
	assert.Equal(t, domain.KindOffer, msg["type"])
	assert.Equal(t, sender, msg["fromId"])
	assert.Equal(t, payload, msg["payload"])
}

func TestRelayFromRoomlessPeerDropped(t *testing.T) {
	f := newBrokerFixture()
	ctx := context.Background()

	sender, _ := f.addPeer(t, domain.RoleViewer)
	target, targetConn := f.addPeer(t, domain.RoleCamera)

	f.broker.RelayTargeted(ctx, sender, target, domain.KindOffer, json.RawMessage(`{}`))
	assert.Empty(t, targetConn.sent)
}

func TestRelayToUnknownTargetDropped(t *testing.T) {
	f := newBrokerFixture()
	ctx := context.Background()

	sender, _ := f.addPeer(t, domain.RoleViewer)
	_, err := f.broker.Join(ctx, sender, "r1")
	require.NoError(t, err)

	// Must not panic or error.
	f.broker.RelayTargeted(ctx, sender, "ghost", domain.KindICECandidate, json.RawMessage(`{}`))
}

func TestDisconnectCleanup(t *testing.T) {
	f := newBrokerFixture()
	ctx := context.Background()

	a, _ := f.addPeer(t, domain.RoleCamera)
	b, bConn := f.addPeer(t, domain.RoleViewer)

	_, err := f.broker.Join(ctx, a, "r1")
	require.NoError(t, err)
	_, err = f.broker.Join(ctx, b, "r1")
	require.NoError(t, err)

	f.broker.HandleDisconnect(ctx, a)

	// Room retains the survivor and the survivor was notified.
	info, ok := f.broker.RoomInfo("r1")
	require.True(t, ok)
	assert.Len(t, info.Members, 1)
	assert.Contains(t, sentTypes(bConn), "peer-left")

	// Disconnected peer is gone from the registry, cannot relay.
	_, ok = f.registry.Lookup(ctx, a)
	assert.False(t, ok)

	f.broker.HandleDisconnect(ctx, b)
	_, ok = f.broker.RoomInfo("r1")
	assert.False(t, ok)

	// Calling again for an already-disconnected peer is harmless.
	f.broker.HandleDisconnect(ctx, b)
}
