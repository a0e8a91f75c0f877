package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"visionrelay/internal/core/domain"
	"visionrelay/internal/core/ports"
	"visionrelay/internal/infrastructure/monitoring"
	"visionrelay/pkg/validation"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketServer is the signaling transport. It owns connection
// mechanics (upgrade, ping/pong, read loop) and translates wire
// messages into registry and broker calls; all routing decisions live
// in the broker.
type WebSocketServer struct {
	registry ports.SessionRegistry
	broker   ports.RoomBroker
	metrics  ports.MetricsRecorder

	iceServers []webrtc.ICEServer
	collector  *monitoring.PrometheusCollector

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewWebSocketServer(
	registry ports.SessionRegistry,
	broker ports.RoomBroker,
	metrics ports.MetricsRecorder,
	iceServers []webrtc.ICEServer,
	collector *monitoring.PrometheusCollector,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	return &WebSocketServer{
		registry:     registry,
		broker:       broker,
		metrics:      metrics,
		iceServers:   iceServers,
		collector:    collector,
		pingInterval: 30 * time.Second,
		pongTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

func (s *WebSocketServer) SetPingInterval(interval time.Duration) { s.pingInterval = interval }
func (s *WebSocketServer) SetPongTimeout(timeout time.Duration)   { s.pongTimeout = timeout }
func (s *WebSocketServer) SetWriteTimeout(timeout time.Duration)  { s.writeTimeout = timeout }

// peerConn adapts a websocket connection to ports.PeerConn. WriteJSON
// is not safe for concurrent use, so sends are serialized here.
type peerConn struct {
	conn         *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
}

func (c *peerConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(v)
}

// Ping shares the write mutex with Send; broker notifies and control
// frames must never hit the conn concurrently.
func (c *peerConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *peerConn) Close() error {
	return c.conn.Close()
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	pc := &peerConn{conn: conn, writeTimeout: s.writeTimeout}

	peer, err := s.registry.Connect(ctx, pc)
	if err != nil {
		s.logger.Errorw("failed to admit peer", "error", err)
		return
	}
	s.collector.PeerConnected()

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan domain.SignalMessage, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg domain.SignalMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
			messageChan <- msg
		}
	}()

	for {
		select {
		case msg := <-messageChan:
			s.handleMessage(context.Background(), peer.ID, pc, msg)

		case <-pingTicker.C:
			if err := pc.Ping(); err != nil {
				s.logger.Infow("error sending ping", "peer_id", peer.ID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading message from peer", "peer_id", peer.ID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.broker.HandleDisconnect(context.Background(), peer.ID)
	s.collector.PeerDisconnected()
	s.collector.SetActiveRooms(s.broker.RoomCount())
	s.logger.Infow("peer connection closed", "peer_id", peer.ID)
}

// handleMessage dispatches over the closed message-kind set. Malformed
// input (missing fields, unknown kinds) is skipped, never an error back
// to the peer; signaling is best effort.
func (s *WebSocketServer) handleMessage(ctx context.Context, peerID domain.PeerID, pc ports.PeerConn, msg domain.SignalMessage) {
	switch msg.Type {
	case domain.KindRegister:
		s.handleRegister(ctx, peerID, pc, msg)

	case domain.KindJoinRoom:
		s.handleJoinRoom(ctx, peerID, pc, msg)

	case domain.KindOffer, domain.KindAnswer, domain.KindICECandidate, domain.KindDataChannelRelay:
		if msg.TargetID == "" {
			s.logger.Debugw("targeted message without targetId skipped", "peer_id", peerID, "kind", msg.Type)
			return
		}
		s.broker.RelayTargeted(ctx, peerID, msg.TargetID, msg.Type, msg.Payload)
		s.collector.MessageRelayed(string(msg.Type))

	case domain.KindBandwidthReport:
		s.metrics.RecordBandwidth(msg.Uplink, msg.Downlink)

	default:
		s.logger.Debugw("unknown message type skipped", "peer_id", peerID, "type", msg.Type)
	}
}

func (s *WebSocketServer) handleRegister(ctx context.Context, peerID domain.PeerID, pc ports.PeerConn, msg domain.SignalMessage) {
	role := domain.ParseRole(msg.Role)
	s.registry.Register(ctx, peerID, role)

	reply := map[string]interface{}{
		"type":   "registered",
		"peerId": peerID,
		"role":   role,
	}
	if len(s.iceServers) > 0 {
		reply["iceServers"] = s.iceServers
	}
	if err := pc.Send(reply); err != nil {
		s.logger.Debugw("failed to send register reply", "peer_id", peerID, "error", err)
	}
}

func (s *WebSocketServer) handleJoinRoom(ctx context.Context, peerID domain.PeerID, pc ports.PeerConn, msg domain.SignalMessage) {
	if err := validation.ValidateRoomID(string(msg.RoomID)); err != nil {
		s.logger.Debugw("join-room with bad roomId skipped", "peer_id", peerID, "error", err)
		return
	}

	members, err := s.broker.Join(ctx, peerID, msg.RoomID)
	if err != nil {
		s.logger.Debugw("join-room failed", "peer_id", peerID, "room_id", msg.RoomID, "error", err)
		return
	}
	s.collector.SetActiveRooms(s.broker.RoomCount())

	reply := map[string]interface{}{
		"type":    "room-joined",
		"roomId":  msg.RoomID,
		"members": members,
	}
	if err := pc.Send(reply); err != nil {
		s.logger.Debugw("failed to send join reply", "peer_id", peerID, "error", err)
	}
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": s.registry.Count(),
		"rooms":       s.broker.RoomCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
