package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// chessEngine implements Engine on top of corentings/chess.
type chessEngine struct{}

func NewEngine() Engine { return chessEngine{} }

func (chessEngine) New() Game {
	return &chessGame{game: nchess.NewGame()}
}

func (chessEngine) Restore(fen string) (Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &chessGame{game: nchess.NewGame(opt)}, nil
}

type chessGame struct {
	game *nchess.Game
}

func (g *chessGame) Apply(from, to, promotion string) (Game, Move, error) {
	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to) + strings.TrimSpace(promotion))
	if len(uci) < 4 {
		return nil, Move{}, fmt.Errorf("malformed move %q", uci)
	}

	clone := g.game.Clone()
	pos := clone.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return nil, Move{}, fmt.Errorf("decode move %q: %w", uci, err)
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := clone.Move(mv, nil); err != nil {
		return nil, Move{}, fmt.Errorf("apply move %q: %w", uci, err)
	}

	next := &chessGame{game: clone}
	out := Move{
		From:      mv.S1().String(),
		To:        mv.S2().String(),
		Promotion: strings.ToLower(strings.TrimSpace(promotion)),
		SAN:       san,
		FEN:       clone.FEN(),
		Check:     mv.HasTag(nchess.Check),
	}
	return next, out, nil
}

func (g *chessGame) LegalMoves() map[string][]string {
	out := make(map[string][]string)
	for _, mv := range g.game.ValidMoves() {
		from := mv.S1().String()
		to := mv.S2().String()
		if contains(out[from], to) {
			continue // promotion variants share one destination
		}
		out[from] = append(out[from], to)
	}
	return out
}

func (g *chessGame) Classify() Verdict {
	var v Verdict
	if moves := g.game.Moves(); len(moves) > 0 && moves[len(moves)-1].HasTag(nchess.Check) {
		v.Check = true
	}
	switch g.game.Outcome() {
	case nchess.NoOutcome:
		return v
	case nchess.Draw:
		v.Terminal = true
		if g.game.Method() == nchess.Stalemate {
			v.Type = VerdictStalemate
		} else {
			v.Type = VerdictDraw
			v.Reason = drawReason(g.game.Method())
		}
	case nchess.WhiteWon:
		v.Terminal = true
		v.Type = VerdictCheckmate
		v.Winner = White
	case nchess.BlackWon:
		v.Terminal = true
		v.Type = VerdictCheckmate
		v.Winner = Black
	}
	return v
}

func (g *chessGame) Turn() Color {
	if g.game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

func (g *chessGame) FEN() string { return g.game.FEN() }

func drawReason(m nchess.Method) string {
	switch m {
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return "repetition"
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return "move_rule"
	default:
		return strings.ToLower(m.String())
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
