package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/castlebridge/chesslink/internal/game"
	"github.com/castlebridge/chesslink/internal/obslog"
	"github.com/castlebridge/chesslink/internal/rules"
	"github.com/castlebridge/chesslink/pkg/wire"
)

// ServeHTTP upgrades the connection and runs the per-socket event loop.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(h.origins) == 0 {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		obslog.L().Debug("ws_accept_error", zap.Error(err))
		return
	}

	s := &socket{conn: conn, subID: uuid.NewString()}
	defer h.drop(s)
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	for {
		env, err := readEnvelope(ctx, conn)
		if err != nil {
			return
		}
		h.dispatch(ctx, s, env)
	}
}

// drop runs when a socket's read loop exits for any reason. If the socket
// was bound to a color, the session starts the forfeiture grace period and
// the opponent is notified.
func (h *Hub) drop(s *socket) {
	if s.gameID == "" {
		return
	}
	h.unsubscribe(s.gameID, s)

	sess, err := h.registry.Lookup(context.Background(), s.gameID)
	if err != nil {
		return
	}
	if res := sess.Detach(s.subID); res != nil {
		h.broadcast(s.gameID, wire.EventPlayerDisconnected,
			wire.PlayerPresence{Color: string(res.Color)}, nil)
	}
}

func (h *Hub) dispatch(ctx context.Context, s *socket, env *wire.Envelope) {
	switch env.Event {
	case wire.EventJoinGame:
		h.handleJoin(ctx, s, env.Data)
	case wire.EventMakeMove:
		h.handleMove(ctx, s, env.Data)
	case wire.EventResign:
		h.handleResign(ctx, s)
	case wire.EventOfferDraw:
		h.handleOfferDraw(ctx, s)
	case wire.EventAcceptDraw:
		h.handleAcceptDraw(ctx, s)
	case wire.EventDeclineDraw:
		h.handleDeclineDraw(ctx, s)
	default:
		s.sendError("unknown event: " + env.Event)
	}
}

func (h *Hub) handleJoin(ctx context.Context, s *socket, data json.RawMessage) {
	var req wire.JoinGame
	if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		s.sendError("malformed join-game payload")
		return
	}

	sess, err := h.registry.Lookup(ctx, req.SessionID)
	if err != nil {
		s.sendError(game.Kind(err))
		return
	}
	res, err := sess.Attach(ctx, req.PlayerID, s.subID)
	if err != nil {
		s.sendError(game.Kind(err))
		return
	}

	s.gameID = req.SessionID
	s.playerID = req.PlayerID
	h.subscribe(req.SessionID, s)

	snap := sess.State()
	s.send(wire.EventGameState, snapshotPayload(snap, res.Color))
	h.broadcast(req.SessionID, wire.EventPlayerConnected,
		wire.PlayerPresence{Color: string(res.Color)}, s)
	if res.FirstReady {
		h.broadcast(req.SessionID, wire.EventGameReady, nil, nil)
	}

	obslog.L().Info("ws_join",
		zap.String("game_id", req.SessionID),
		zap.String("player_id", req.PlayerID),
		zap.String("color", string(res.Color)),
	)
}

// joined resolves the socket's session, or tells the socket to join first.
func (h *Hub) joined(ctx context.Context, s *socket) *game.Session {
	if s.gameID == "" {
		s.sendError("join a game first")
		return nil
	}
	sess, err := h.registry.Lookup(ctx, s.gameID)
	if err != nil {
		s.sendError(game.Kind(err))
		return nil
	}
	return sess
}

func (h *Hub) handleMove(ctx context.Context, s *socket, data json.RawMessage) {
	sess := h.joined(ctx, s)
	if sess == nil {
		return
	}
	var req wire.MakeMove
	if err := json.Unmarshal(data, &req); err != nil {
		s.send(wire.EventMoveRejected, wire.MoveRejected{Error: "malformed make-move payload"})
		return
	}

	out, err := sess.ApplyMove(ctx, s.playerID, req.From, req.To, req.Promotion)
	if err != nil {
		// Rejections go to the sender only; the room never sees them.
		s.send(wire.EventMoveRejected, wire.MoveRejected{Error: game.Kind(err)})
		return
	}

	h.broadcast(s.gameID, wire.EventMoveMade, wire.MoveMade{
		MoveNumber: out.MoveNumber,
		Color:      string(out.Color),
		From:       out.From,
		To:         out.To,
		SAN:        out.SAN,
		FEN:        out.FEN,
		Turn:       string(out.Turn),
		Check:      out.Check,
		LegalMoves: out.LegalMoves,
	}, nil)
	if out.Over != nil {
		h.broadcast(s.gameID, wire.EventGameOver, gameOverPayload(out.Over), nil)
	}
}

func (h *Hub) handleResign(ctx context.Context, s *socket) {
	sess := h.joined(ctx, s)
	if sess == nil {
		return
	}
	over, err := sess.Resign(ctx, s.playerID)
	if err != nil {
		s.sendError(game.Kind(err))
		return
	}
	h.broadcast(s.gameID, wire.EventGameOver, gameOverPayload(over), nil)
}

func (h *Hub) handleOfferDraw(ctx context.Context, s *socket) {
	sess := h.joined(ctx, s)
	if sess == nil {
		return
	}
	if err := sess.OfferDraw(ctx, s.playerID); err != nil {
		s.sendError(game.Kind(err))
		return
	}
	h.broadcast(s.gameID, wire.EventDrawOffered, nil, s)
}

func (h *Hub) handleAcceptDraw(ctx context.Context, s *socket) {
	sess := h.joined(ctx, s)
	if sess == nil {
		return
	}
	over, err := sess.AcceptDraw(ctx, s.playerID)
	if err != nil {
		s.sendError(game.Kind(err))
		return
	}
	h.broadcast(s.gameID, wire.EventGameOver, gameOverPayload(over), nil)
}

func (h *Hub) handleDeclineDraw(ctx context.Context, s *socket) {
	sess := h.joined(ctx, s)
	if sess == nil {
		return
	}
	if err := sess.DeclineDraw(ctx, s.playerID); err != nil {
		s.sendError(game.Kind(err))
		return
	}
	h.broadcast(s.gameID, wire.EventDrawDeclined, nil, s)
}

func snapshotPayload(snap *game.Snapshot, viewer rules.Color) wire.GameState {
	gs := wire.GameState{
		SessionID:   snap.GameID,
		FEN:         snap.FEN,
		Turn:        string(snap.Turn),
		Status:      snap.Status,
		Check:       snap.Check,
		Finished:    snap.Finished,
		MoveCount:   snap.MoveCount,
		DrawOfferBy: snap.DrawOfferBy,
		White: wire.PlayerInfo{
			ID:        snap.WhiteID,
			Name:      snap.WhiteName,
			Connected: snap.WhiteConnected,
		},
		LegalMoves: snap.LegalMoves,
	}
	gs.Color = string(viewer)
	if snap.BlackID != "" {
		gs.Black = &wire.PlayerInfo{
			ID:        snap.BlackID,
			Name:      snap.BlackName,
			Connected: snap.BlackConnected,
		}
	}
	return gs
}

func gameOverPayload(over *game.Over) wire.GameOver {
	return wire.GameOver{
		Type:   over.Type,
		Winner: string(over.Winner),
		Result: over.Result,
		Reason: over.Detail,
	}
}

var _ game.Broadcaster = (*Hub)(nil)
