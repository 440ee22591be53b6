package game

import (
	"context"
	"errors"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/castlebridge/chesslink/internal/cache"
	"github.com/castlebridge/chesslink/internal/domain"
	"github.com/castlebridge/chesslink/internal/rules"
	"github.com/castlebridge/chesslink/internal/store"
)

func TestCreateAndJoin(t *testing.T) {
	r, gw := newTestRegistry(t, Options{})
	ctx := context.Background()

	created, err := r.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Color != rules.White || created.GameID == "" || created.PlayerID == "" {
		t.Fatalf("unexpected create result: %+v", created)
	}

	rec, err := gw.GetGame(ctx, created.GameID)
	if err != nil || rec == nil {
		t.Fatalf("GetGame: %v", err)
	}
	if rec.Status != domain.StatusWaiting || rec.WhiteName != "alice" {
		t.Fatalf("record: %+v", rec)
	}

	joined, err := r.Join(ctx, created.GameID, "bob")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.Color != rules.Black {
		t.Fatalf("joiner color = %s", joined.Color)
	}

	rec, _ = gw.GetGame(ctx, created.GameID)
	if rec.Status != domain.StatusActive || rec.BlackName != "bob" {
		t.Fatalf("record after join: %+v", rec)
	}

	// A third player finds no free seat.
	if _, err := r.Join(ctx, created.GameID, "carol"); !errors.Is(err, ErrGameFull) {
		t.Fatalf("third join: err = %v", err)
	}
}

func TestCreateRejectsBlankName(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	ctx := context.Background()
	if _, err := r.Create(ctx, "   "); err == nil {
		t.Fatalf("expected error for blank name")
	}
	if _, err := r.Join(ctx, "whatever", ""); err == nil {
		t.Fatalf("expected error for blank joiner name")
	}
}

func TestJoinUnknownGame(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	if _, err := r.Join(context.Background(), "deadbeef", "bob"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := r.Lookup(context.Background(), "deadbeef"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestReconnectLiveSession(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	s, white, black := newActiveSession(t, r)

	res, err := r.Reconnect(ctx, s.ID(), black)
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if !res.Reconnected || res.Completed || res.Color != rules.Black {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = r.Reconnect(ctx, s.ID(), white)
	if err != nil {
		t.Fatalf("Reconnect white: %v", err)
	}
	if res.Color != rules.White {
		t.Fatalf("color = %s", res.Color)
	}

	if _, err := r.Reconnect(ctx, s.ID(), "stranger"); !errors.Is(err, ErrNotAPlayer) {
		t.Fatalf("stranger reconnect: err = %v", err)
	}
	if _, err := r.Reconnect(ctx, "deadbeef", white); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("unknown game reconnect: err = %v", err)
	}
}

func TestHydrateAfterRestart(t *testing.T) {
	gw := store.NewMemory()
	engine := rules.NewEngine()
	r1 := NewRegistry(gw, nil, engine, Options{})
	ctx := context.Background()

	s, white, black := newActiveSession(t, r1)
	if _, err := s.ApplyMove(ctx, white, "e2", "e4", ""); err != nil {
		t.Fatalf("move 1: %v", err)
	}
	if _, err := s.ApplyMove(ctx, black, "e7", "e5", ""); err != nil {
		t.Fatalf("move 2: %v", err)
	}
	wantFEN := s.State().FEN

	// A fresh registry over the same durable store stands in for a
	// restarted process.
	r2 := NewRegistry(gw, nil, engine, Options{})
	revived, err := r2.Lookup(ctx, s.ID())
	if err != nil {
		t.Fatalf("Lookup after restart: %v", err)
	}
	snap := revived.State()
	if snap.FEN != wantFEN {
		t.Fatalf("hydrated FEN %q, want %q", snap.FEN, wantFEN)
	}
	if snap.MoveCount != 2 {
		t.Fatalf("hydrated move count = %d, want 2", snap.MoveCount)
	}
	if snap.Turn != rules.White {
		t.Fatalf("hydrated turn = %s", snap.Turn)
	}

	// Play continues where it left off.
	if _, err := revived.ApplyMove(ctx, white, "g1", "f3", ""); err != nil {
		t.Fatalf("move after hydrate: %v", err)
	}
}

func TestReconnectCompletedGame(t *testing.T) {
	gw := store.NewMemory()
	engine := rules.NewEngine()
	r1 := NewRegistry(gw, nil, engine, Options{})
	ctx := context.Background()

	s, white, black := newActiveSession(t, r1)
	if _, err := s.Resign(ctx, black); err != nil {
		t.Fatalf("Resign: %v", err)
	}

	// After a restart the terminal record answers without a live session.
	r2 := NewRegistry(gw, nil, engine, Options{})
	res, err := r2.Reconnect(ctx, s.ID(), white)
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if !res.Completed || res.Result != domain.ResultWhiteWins {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Reconnected {
		t.Fatalf("terminal reconnect revived a session")
	}
	if res.FEN == "" {
		t.Fatalf("terminal reconnect missing final position")
	}

	// Lookup refuses to revive terminal games.
	if _, err := r2.Lookup(ctx, s.ID()); !errors.Is(err, ErrGameAlreadyCompleted) {
		t.Fatalf("Lookup terminal: err = %v", err)
	}
}

func TestEvictKeepsLiveSessions(t *testing.T) {
	r, _ := newTestRegistry(t, Options{})
	ctx := context.Background()

	s, _, _ := newActiveSession(t, r)
	r.Evict(s.ID())

	got, err := r.Lookup(ctx, s.ID())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != s {
		t.Fatalf("active session was evicted")
	}
}

func TestRestoreFromSnapshotCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	snaps, err := cache.New(fmt.Sprintf("redis://%s/0", mr.Addr()), 0)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() { snaps.Close() })

	gw := store.NewMemory()
	engine := rules.NewEngine()
	r1 := NewRegistry(gw, snaps, engine, Options{})
	ctx := context.Background()

	created, err := r1.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r1.Join(ctx, created.GameID, "bob"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	s, err := r1.Lookup(ctx, created.GameID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := s.ApplyMove(ctx, created.PlayerID, "e2", "e4", ""); err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	black := s.State().BlackID
	if err := s.OfferDraw(ctx, black); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}

	// The pending draw offer lives only in the snapshot, so seeing it in
	// the revived session proves the cache path was taken.
	r2 := NewRegistry(gw, snaps, engine, Options{})
	revived, err := r2.Lookup(ctx, created.GameID)
	if err != nil {
		t.Fatalf("Lookup from snapshot: %v", err)
	}
	snap := revived.State()
	if snap.DrawOfferBy != black {
		t.Fatalf("draw offer lost across restore: %+v", snap)
	}
	if snap.MoveCount != 1 || snap.Turn != rules.Black {
		t.Fatalf("restored state: %+v", snap)
	}
}

func TestRoundTripReplayMatchesPersistedPosition(t *testing.T) {
	r, gw := newTestRegistry(t, Options{})
	s, white, black := newActiveSession(t, r)
	ctx := context.Background()

	steps := []struct {
		player   string
		from, to string
	}{
		{white, "e2", "e4"}, {black, "c7", "c5"},
		{white, "g1", "f3"}, {black, "d7", "d6"},
		{white, "d2", "d4"}, {black, "c5", "d4"},
		{white, "f3", "d4"}, {black, "g8", "f6"},
	}
	for _, st := range steps {
		if _, err := s.ApplyMove(ctx, st.player, st.from, st.to, ""); err != nil {
			t.Fatalf("ApplyMove %s%s: %v", st.from, st.to, err)
		}
	}

	// Replaying the persisted move log reproduces the persisted position.
	moves, err := gw.MovesByGame(ctx, s.ID())
	if err != nil {
		t.Fatalf("MovesByGame: %v", err)
	}
	replay := rules.NewEngine().New()
	for _, mv := range moves {
		next, _, err := replay.Apply(mv.FromSq, mv.ToSq, "")
		if err != nil {
			t.Fatalf("replay %s%s: %v", mv.FromSq, mv.ToSq, err)
		}
		replay = next
	}
	rec, err := gw.GetGame(ctx, s.ID())
	if err != nil || rec == nil {
		t.Fatalf("GetGame: %v", err)
	}
	if replay.FEN() != rec.FEN {
		t.Fatalf("replayed FEN %q != persisted %q", replay.FEN(), rec.FEN)
	}
}
