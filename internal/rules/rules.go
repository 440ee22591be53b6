// Package rules wraps a chess rules implementation behind the narrow
// capability the session core needs: apply a candidate move, list legal
// moves, and classify terminal positions. The core never derives chess
// legality itself.
package rules

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Move is an accepted move: origin/destination squares, optional promotion
// piece, disambiguated SAN and the FEN of the resulting position.
type Move struct {
	From      string
	To        string
	Promotion string
	SAN       string
	FEN       string
	Check     bool
}

// Verdict classifies the current position.
type Verdict struct {
	Check    bool
	Terminal bool
	Type     string // "checkmate", "stalemate" or "draw" when terminal
	Winner   Color  // set only for checkmate
	Reason   string // draw reason, e.g. "insufficient_material"
}

const (
	VerdictCheckmate = "checkmate"
	VerdictStalemate = "stalemate"
	VerdictDraw      = "draw"
)

// Game is one position plus enough history to auto-detect repetition draws.
// Apply returns a successor game and leaves the receiver untouched, so a
// caller can persist the move before committing it.
type Game interface {
	Apply(from, to, promotion string) (Game, Move, error)
	LegalMoves() map[string][]string
	Classify() Verdict
	Turn() Color
	FEN() string
}

// Engine creates games. One engine instance is shared process-wide; games
// are not safe for concurrent use and belong to exactly one session.
type Engine interface {
	New() Game
	Restore(fen string) (Game, error)
}
