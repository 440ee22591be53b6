package domain

import "time"

// Game lifecycle states. Completed and abandoned are terminal. Abandoned is
// kept as a value for forward compatibility even though current logic folds
// abandonment into a completed game with a result.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

const (
	ResultWhiteWins = "white_wins"
	ResultBlackWins = "black_wins"
	ResultDraw      = "draw"
)

// Outcome of a finished game from one player's point of view.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// Player is a durable player record with cumulative aggregates.
// Win = +3 score, draw = +1, loss = +0.
type Player struct {
	ID        string
	Name      string
	Wins      int
	Losses    int
	Draws     int
	Score     int
	CreatedAt time.Time
}

// GameRecord is the durable state of one game. FEN tracks the latest
// position snapshot; the full history lives in the move log.
type GameRecord struct {
	ID          string
	WhiteID     string
	WhiteName   string
	BlackID     string
	BlackName   string
	Status      string
	Result      string
	Reason      string
	FEN         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (g *GameRecord) Terminal() bool {
	return g.Status == StatusCompleted || g.Status == StatusAbandoned
}

// MoveRecord is one accepted move. Append-only, written exactly once.
type MoveRecord struct {
	GameID     string
	MoveNumber int
	PlayerID   string
	FromSq     string
	ToSq       string
	SAN        string
	FEN        string
	CreatedAt  time.Time
}

type LeaderboardEntry struct {
	PlayerID string
	Name     string
	Wins     int
	Losses   int
	Draws    int
	Score    int
}

type Stats struct {
	CompletedGames int
	Players        int
	LiveGames      int
}
