package game

import "github.com/castlebridge/chesslink/internal/rules"

// Game-over cause, carried on the game-over broadcast.
const (
	OverCheckmate   = "checkmate"
	OverStalemate   = "stalemate"
	OverDraw        = "draw"
	OverDrawAgreed  = "draw_agreed"
	OverResignation = "resignation"
	OverAbandonment = "abandonment"
)

// Over describes a completed game: the cause, the winner (empty for draws),
// the recorded result token and an optional detail such as a draw reason.
type Over struct {
	Type   string
	Winner rules.Color
	Result string
	Detail string
}

// MoveOutcome is returned by a successful ApplyMove: the accepted move, the
// committed resulting state and, when the move ended the game, the Over.
type MoveOutcome struct {
	MoveNumber int
	PlayerID   string
	Color      rules.Color
	From       string
	To         string
	SAN        string
	FEN        string
	Check      bool
	Turn       rules.Color
	LegalMoves map[string][]string
	Over       *Over
}

// Snapshot is a full view of session state, safe to hand to transports.
type Snapshot struct {
	GameID      string
	FEN         string
	Turn        rules.Color
	Status      string
	Check       bool
	Finished    bool
	MoveCount   int
	DrawOfferBy string

	WhiteID        string
	WhiteName      string
	WhiteConnected bool
	BlackID        string
	BlackName      string
	BlackConnected bool

	LegalMoves map[string][]string
}

// AttachResult reports the color a transport subscription bound to and
// whether this attach made both colors connected for the first time.
type AttachResult struct {
	Color      rules.Color
	FirstReady bool
}

// DetachResult reports the color a dropped subscription belonged to.
type DetachResult struct {
	Color rules.Color
}

// Broadcaster receives completions the transport did not initiate, i.e.
// disconnect-timer abandonment. Request-driven completions are broadcast by
// the protocol handler itself.
type Broadcaster interface {
	SessionEnded(gameID string, over *Over)
}

type CreateResult struct {
	GameID   string
	PlayerID string
	Color    rules.Color
}

type JoinResult struct {
	GameID   string
	PlayerID string
	Color    rules.Color
}

type ReconnectResult struct {
	GameID      string
	PlayerID    string
	Color       rules.Color
	Reconnected bool

	// Terminal reconnects report the durable outcome without reviving a
	// live session.
	Completed bool
	Result    string
	FEN       string
}
