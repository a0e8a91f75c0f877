package domain

import "encoding/json"

// MessageKind tags a signaling message variant. The set is closed; the
// websocket server dispatches over it with a single exhaustive switch.
type MessageKind string

const (
	KindRegister         MessageKind = "register"
	KindJoinRoom         MessageKind = "join-room"
	KindOffer            MessageKind = "offer"
	KindAnswer           MessageKind = "answer"
	KindICECandidate     MessageKind = "ice-candidate"
	KindDataChannelRelay MessageKind = "data-channel-relay"
	KindBandwidthReport  MessageKind = "bandwidth-report"
)

// TargetedKind reports whether messages of this kind carry a targetId
// and are relayed verbatim to another peer.
func (k MessageKind) TargetedKind() bool {
	switch k {
	case KindOffer, KindAnswer, KindICECandidate, KindDataChannelRelay:
		return true
	}
	return false
}

// SignalMessage is the wire envelope for all inbound signaling traffic.
// Payload is opaque to the broker: targeted payloads are forwarded
// verbatim, never inspected or mutated.
type SignalMessage struct {
	Type     MessageKind     `json:"type"`
	Role     string          `json:"role,omitempty"`
	RoomID   RoomID          `json:"roomId,omitempty"`
	TargetID PeerID          `json:"targetId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Uplink   float64         `json:"uplink,omitempty"`
	Downlink float64         `json:"downlink,omitempty"`
}
