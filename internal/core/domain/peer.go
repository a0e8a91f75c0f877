package domain

import "time"

type PeerID string

type RoomID string

// PeerRole is declared once by the peer during registration.
type PeerRole string

const (
	RoleCamera  PeerRole = "camera"
	RoleViewer  PeerRole = "viewer"
	RoleUnknown PeerRole = "unknown"
)

// ParseRole maps a wire role string to a PeerRole, defaulting to unknown.
func ParseRole(s string) PeerRole {
	switch PeerRole(s) {
	case RoleCamera:
		return RoleCamera
	case RoleViewer:
		return RoleViewer
	default:
		return RoleUnknown
	}
}

type Peer struct {
	ID          PeerID    `json:"peerId"`
	Role        PeerRole  `json:"role"`
	RoomID      RoomID    `json:"roomId,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Member is the peer view exposed in room membership lists and
// peer-joined events.
type Member struct {
	PeerID PeerID   `json:"peerId"`
	Role   PeerRole `json:"role"`
}
