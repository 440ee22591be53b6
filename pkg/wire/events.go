package wire

import "encoding/json"

// Real-time event names. The inbound set is what clients may send on a game
// socket; the outbound set is what the server emits into a game room.
const (
	EventJoinGame    = "join-game"
	EventMakeMove    = "make-move"
	EventResign      = "resign"
	EventOfferDraw   = "offer-draw"
	EventAcceptDraw  = "accept-draw"
	EventDeclineDraw = "decline-draw"

	EventGameState          = "game-state"
	EventGameReady          = "game-ready"
	EventMoveMade           = "move-made"
	EventMoveRejected       = "move-rejected"
	EventPlayerConnected    = "player-connected"
	EventPlayerDisconnected = "player-disconnected"
	EventDrawOffered        = "draw-offered"
	EventDrawDeclined       = "draw-declined"
	EventGameOver           = "game-over"
	EventError              = "error-msg"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinGame struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
}

type MakeMove struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// GameState is the full snapshot sent to a socket when it joins a room.
type GameState struct {
	SessionID   string              `json:"sessionId"`
	Color       string              `json:"color"`
	FEN         string              `json:"fen"`
	Turn        string              `json:"turn"`
	Status      string              `json:"status"`
	Check       bool                `json:"check"`
	Finished    bool                `json:"finished"`
	MoveCount   int                 `json:"moveCount"`
	DrawOfferBy string              `json:"drawOfferBy,omitempty"`
	White       PlayerInfo          `json:"white"`
	Black       *PlayerInfo         `json:"black,omitempty"`
	LegalMoves  map[string][]string `json:"legalMoves,omitempty"`
}

type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

type MoveMade struct {
	MoveNumber int                 `json:"moveNumber"`
	Color      string              `json:"color"`
	From       string              `json:"from"`
	To         string              `json:"to"`
	SAN        string              `json:"san"`
	FEN        string              `json:"fen"`
	Turn       string              `json:"turn"`
	Check      bool                `json:"check"`
	LegalMoves map[string][]string `json:"legalMoves,omitempty"`
}

type MoveRejected struct {
	Error string `json:"error"`
}

type PlayerPresence struct {
	Color string `json:"color"`
}

type GameOver struct {
	Type   string `json:"type"`
	Winner string `json:"winner,omitempty"`
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}

type ErrorMsg struct {
	Message string `json:"message"`
}
