package rules

import (
	"strings"
	"testing"
)

func TestApplyReturnsSuccessor(t *testing.T) {
	g := NewEngine().New()

	next, mv, err := g.Apply("e2", "e4", "")
	if err != nil {
		t.Fatalf("Apply e2e4: %v", err)
	}
	if mv.SAN != "e4" {
		t.Fatalf("unexpected SAN: %q", mv.SAN)
	}
	if mv.From != "e2" || mv.To != "e4" {
		t.Fatalf("unexpected squares: %s %s", mv.From, mv.To)
	}
	if next.Turn() != Black {
		t.Fatalf("successor turn = %s, want black", next.Turn())
	}
	// The receiver is untouched: white is still to move.
	if g.Turn() != White {
		t.Fatalf("receiver mutated: turn = %s", g.Turn())
	}
	if !strings.Contains(mv.FEN, " b ") {
		t.Fatalf("FEN does not show black to move: %q", mv.FEN)
	}
}

func TestApplyRejectsIllegalMove(t *testing.T) {
	g := NewEngine().New()
	if _, _, err := g.Apply("e2", "e5", ""); err == nil {
		t.Fatalf("expected error for e2e5")
	}
	if _, _, err := g.Apply("e7", "e5", ""); err == nil {
		t.Fatalf("expected error for moving the opponent's pawn")
	}
	if _, _, err := g.Apply("e2", "", ""); err == nil {
		t.Fatalf("expected error for malformed move")
	}
}

func TestLegalMovesInitialPosition(t *testing.T) {
	g := NewEngine().New()
	moves := g.LegalMoves()
	// 20 legal moves from 10 origin squares (8 pawns + 2 knights).
	if len(moves) != 10 {
		t.Fatalf("origin squares = %d, want 10", len(moves))
	}
	total := 0
	for _, dests := range moves {
		total += len(dests)
	}
	if total != 20 {
		t.Fatalf("legal moves = %d, want 20", total)
	}
	e2 := moves["e2"]
	if len(e2) != 2 {
		t.Fatalf("e2 destinations = %v", e2)
	}
}

func TestClassifyFoolsMate(t *testing.T) {
	g := NewEngine().New()
	for _, step := range [][2]string{
		{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}, {"d8", "h4"},
	} {
		next, _, err := g.Apply(step[0], step[1], "")
		if err != nil {
			t.Fatalf("Apply %s%s: %v", step[0], step[1], err)
		}
		g = next
	}
	v := g.Classify()
	if !v.Terminal || v.Type != VerdictCheckmate {
		t.Fatalf("verdict = %+v, want checkmate", v)
	}
	if v.Winner != Black {
		t.Fatalf("winner = %s, want black", v.Winner)
	}
}

func TestClassifyNonTerminal(t *testing.T) {
	g := NewEngine().New()
	v := g.Classify()
	if v.Terminal || v.Type != "" {
		t.Fatalf("verdict = %+v, want non-terminal", v)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	eng := NewEngine()
	g := eng.New()
	next, mv, err := g.Apply("d2", "d4", "")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	restored, err := eng.Restore(mv.FEN)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.FEN() != next.FEN() {
		t.Fatalf("restored FEN %q != %q", restored.FEN(), next.FEN())
	}
	if restored.Turn() != Black {
		t.Fatalf("restored turn = %s", restored.Turn())
	}

	if _, err := eng.Restore("not a fen"); err == nil {
		t.Fatalf("expected error for garbage FEN")
	}
}

func TestOpponent(t *testing.T) {
	if White.Opponent() != Black || Black.Opponent() != White {
		t.Fatalf("Opponent is not an involution")
	}
}
