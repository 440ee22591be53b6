// Package httpapi exposes the synchronous request interface: game
// creation, join, reconnect, history and the derived aggregates.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/castlebridge/chesslink/internal/game"
	"github.com/castlebridge/chesslink/internal/obslog"
	"github.com/castlebridge/chesslink/internal/store"
	"github.com/castlebridge/chesslink/pkg/wire"
)

type Handler struct {
	registry *game.Registry
	store    store.Gateway
	hub      http.Handler
}

func NewHandler(registry *game.Registry, gw store.Gateway, hub http.Handler) *Handler {
	return &Handler{registry: registry, store: gw, hub: hub}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/games", h.createGame)
	mux.HandleFunc("POST /api/games/{id}/join", h.joinGame)
	mux.HandleFunc("POST /api/games/{id}/reconnect", h.reconnect)
	mux.HandleFunc("GET /api/games/recent", h.recentGames)
	mux.HandleFunc("GET /api/games/{id}", h.gameHistory)
	mux.HandleFunc("GET /api/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /api/stats", h.stats)
	mux.Handle("GET /ws", h.hub)
	return mux
}

func (h *Handler) createGame(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	res, err := h.registry.Create(r.Context(), req.Name)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.CreateGameResponse{
		SessionID: res.GameID,
		PlayerID:  res.PlayerID,
		Color:     string(res.Color),
	})
}

func (h *Handler) joinGame(w http.ResponseWriter, r *http.Request) {
	var req wire.JoinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	res, err := h.registry.Join(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.JoinGameResponse{
		SessionID: res.GameID,
		PlayerID:  res.PlayerID,
		Color:     string(res.Color),
	})
}

func (h *Handler) reconnect(w http.ResponseWriter, r *http.Request) {
	var req wire.ReconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "playerId is required")
		return
	}
	res, err := h.registry.Reconnect(r.Context(), r.PathValue("id"), req.PlayerID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.ReconnectResponse{
		SessionID:   res.GameID,
		PlayerID:    res.PlayerID,
		Color:       string(res.Color),
		Reconnected: res.Reconnected,
		Completed:   res.Completed,
		Result:      res.Result,
		FEN:         res.FEN,
	})
}

func (h *Handler) gameHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.store.GetGame(r.Context(), id)
	if err != nil {
		writeGameError(w, err)
		return
	}
	if rec == nil {
		writeGameError(w, game.ErrGameNotFound)
		return
	}
	moves, err := h.store.MovesByGame(r.Context(), id)
	if err != nil {
		writeGameError(w, err)
		return
	}

	resp := wire.GameHistoryResponse{
		SessionID:   rec.ID,
		Status:      rec.Status,
		Result:      rec.Result,
		Reason:      rec.Reason,
		FEN:         rec.FEN,
		WhiteName:   rec.WhiteName,
		BlackName:   rec.BlackName,
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
		Moves:       make([]wire.MoveHistory, 0, len(moves)),
	}
	for _, m := range moves {
		resp.Moves = append(resp.Moves, wire.MoveHistory{
			MoveNumber: m.MoveNumber,
			PlayerID:   m.PlayerID,
			From:       m.FromSq,
			To:         m.ToSq,
			SAN:        m.SAN,
			FEN:        m.FEN,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Leaderboard(r.Context(), 20)
	if err != nil {
		writeGameError(w, err)
		return
	}
	out := make([]wire.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, wire.LeaderboardEntry{
			PlayerID: e.PlayerID,
			Name:     e.Name,
			Wins:     e.Wins,
			Losses:   e.Losses,
			Draws:    e.Draws,
			Score:    e.Score,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) recentGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.store.RecentGames(r.Context(), 20)
	if err != nil {
		writeGameError(w, err)
		return
	}
	out := make([]wire.RecentGame, 0, len(games))
	for _, g := range games {
		out = append(out, wire.RecentGame{
			SessionID:   g.ID,
			WhiteName:   g.WhiteName,
			BlackName:   g.BlackName,
			Result:      g.Result,
			Reason:      g.Reason,
			CompletedAt: g.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Stats(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.StatsResponse{
		CompletedGames: s.CompletedGames,
		Players:        s.Players,
		LiveGames:      s.LiveGames,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Debug("http_encode_error", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		writeError(w, http.StatusNotFound, game.Kind(err))
	case errors.Is(err, game.ErrNotAPlayer):
		writeError(w, http.StatusForbidden, game.Kind(err))
	case errors.Is(err, game.ErrGameFull),
		errors.Is(err, game.ErrGameAlreadyStarted),
		errors.Is(err, game.ErrGameAlreadyCompleted):
		writeError(w, http.StatusConflict, game.Kind(err))
	case errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrGameNotActive),
		errors.Is(err, game.ErrIllegalMove):
		writeError(w, http.StatusBadRequest, game.Kind(err))
	default:
		obslog.L().Error("http_internal_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
