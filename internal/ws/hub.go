// Package ws binds the real-time protocol to session operations: one room
// per game, inbound events dispatched to the session, committed state
// fanned out to the room's subscribers.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/castlebridge/chesslink/internal/game"
	"github.com/castlebridge/chesslink/internal/obslog"
	"github.com/castlebridge/chesslink/pkg/wire"
)

const writeTimeout = 10 * time.Second

// Hub tracks the sockets subscribed to each game room.
type Hub struct {
	registry *game.Registry
	origins  []string

	mu    sync.RWMutex
	rooms map[string]map[*socket]bool
}

func NewHub(registry *game.Registry, allowedOrigins []string) *Hub {
	return &Hub{
		registry: registry,
		origins:  allowedOrigins,
		rooms:    make(map[string]map[*socket]bool),
	}
}

// SessionEnded implements game.Broadcaster for completions the transport
// did not initiate (disconnect-timer abandonment).
func (h *Hub) SessionEnded(gameID string, over *game.Over) {
	h.broadcast(gameID, wire.EventGameOver, gameOverPayload(over), nil)
}

func (h *Hub) subscribe(gameID string, s *socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[gameID] == nil {
		h.rooms[gameID] = make(map[*socket]bool)
	}
	h.rooms[gameID][s] = true
}

func (h *Hub) unsubscribe(gameID string, s *socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[gameID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.rooms, gameID)
		}
	}
}

// broadcast sends an event to every socket in the room, except the one
// given as skip (nil means everyone).
func (h *Hub) broadcast(gameID, event string, payload any, skip *socket) {
	h.mu.RLock()
	subs := make([]*socket, 0, len(h.rooms[gameID]))
	for s := range h.rooms[gameID] {
		if s != skip {
			subs = append(subs, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.send(event, payload)
	}
}

// socket is one websocket subscriber. Writes are serialized by wmu so room
// broadcasts and direct replies never interleave a frame.
type socket struct {
	conn  *websocket.Conn
	wmu   sync.Mutex
	subID string

	// set once by a successful join-game
	gameID   string
	playerID string
}

func (s *socket) send(event string, payload any) {
	env := wire.Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			obslog.L().Error("ws_marshal_error", zap.String("event", event), zap.Error(err))
			return
		}
		env.Data = raw
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.Write(ctx, websocket.MessageText, mustMarshal(env)); err != nil {
		obslog.L().Debug("ws_write_error",
			zap.String("event", event),
			zap.String("sub_id", s.subID),
			zap.Error(err),
		)
	}
}

func (s *socket) sendError(message string) {
	s.send(wire.EventError, wire.ErrorMsg{Message: message})
}

func mustMarshal(env wire.Envelope) []byte {
	raw, err := json.Marshal(env)
	if err != nil {
		return []byte(`{"event":"error-msg"}`)
	}
	return raw
}

// readEnvelope blocks until the next inbound frame.
func readEnvelope(ctx context.Context, conn *websocket.Conn) (*wire.Envelope, error) {
	var env wire.Envelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
