package wire

import "time"

// Request/response bodies for the synchronous HTTP interface.

type CreateGameRequest struct {
	Name string `json:"name"`
}

type CreateGameResponse struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
	Color     string `json:"color"`
}

type JoinGameRequest struct {
	Name string `json:"name"`
}

type JoinGameResponse struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
	Color     string `json:"color"`
}

type ReconnectRequest struct {
	PlayerID string `json:"playerId"`
}

type ReconnectResponse struct {
	SessionID   string `json:"sessionId"`
	PlayerID    string `json:"playerId"`
	Color       string `json:"color"`
	Reconnected bool   `json:"reconnected"`
	Completed   bool   `json:"completed"`
	Result      string `json:"result,omitempty"`
	FEN         string `json:"fen,omitempty"`
}

type GameHistoryResponse struct {
	SessionID   string         `json:"sessionId"`
	Status      string         `json:"status"`
	Result      string         `json:"result,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	FEN         string         `json:"fen"`
	WhiteName   string         `json:"whiteName"`
	BlackName   string         `json:"blackName,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Moves       []MoveHistory  `json:"moves"`
}

type MoveHistory struct {
	MoveNumber int    `json:"moveNumber"`
	PlayerID   string `json:"playerId"`
	From       string `json:"from"`
	To         string `json:"to"`
	SAN        string `json:"san"`
	FEN        string `json:"fen"`
}

type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
	Score    int    `json:"score"`
}

type RecentGame struct {
	SessionID   string     `json:"sessionId"`
	WhiteName   string     `json:"whiteName"`
	BlackName   string     `json:"blackName,omitempty"`
	Result      string     `json:"result,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type StatsResponse struct {
	CompletedGames int `json:"completedGames"`
	Players        int `json:"players"`
	LiveGames      int `json:"liveGames"`
}
