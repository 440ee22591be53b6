package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	s, err := New(fmt.Sprintf("redis://%s/0", mr.Addr()), time.Minute)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestSetGetDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	snap := &Snapshot{
		GameID:      "g1",
		WhiteID:     "p1",
		WhiteName:   "alice",
		BlackID:     "p2",
		BlackName:   "bob",
		FEN:         "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		MoveCount:   4,
		Status:      "active",
		DrawOfferBy: "p2",
		UpdatedAt:   time.Now(),
	}
	if err := s.Set(ctx, snap); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.FEN != snap.FEN || got.MoveCount != 4 || got.DrawOfferBy != "p2" {
		t.Fatalf("got: %+v", got)
	}

	if err := s.Delete(ctx, "g1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = s.Get(ctx, "g1")
	if err != nil || got != nil {
		t.Fatalf("after delete: %+v %v", got, err)
	}
}

func TestGetMissReturnsNil(t *testing.T) {
	s, _ := newTestStore(t)
	got, err := s.Get(context.Background(), "never-written")
	if err != nil || got != nil {
		t.Fatalf("miss: %+v %v", got, err)
	}
}

func TestSnapshotExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, &Snapshot{GameID: "g1", FEN: "x", Status: "waiting"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	got, err := s.Get(ctx, "g1")
	if err != nil || got != nil {
		t.Fatalf("expired snapshot still present: %+v %v", got, err)
	}
}

func TestNilStoreIsAlwaysMiss(t *testing.T) {
	var s *Store
	ctx := context.Background()
	if err := s.Set(ctx, &Snapshot{GameID: "g1"}); err != nil {
		t.Fatalf("nil Set: %v", err)
	}
	got, err := s.Get(ctx, "g1")
	if err != nil || got != nil {
		t.Fatalf("nil Get: %+v %v", got, err)
	}
	if err := s.Delete(ctx, "g1"); err != nil {
		t.Fatalf("nil Delete: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://:secret@localhost:6379/2")
	if err != nil {
		t.Fatalf("parseRedisURL: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("opts: %+v", opts)
	}
	if _, err := parseRedisURL("http://localhost"); err == nil {
		t.Fatalf("expected error for non-redis scheme")
	}
}
