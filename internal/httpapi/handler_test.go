package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/castlebridge/chesslink/internal/game"
	"github.com/castlebridge/chesslink/internal/rules"
	"github.com/castlebridge/chesslink/internal/store"
	"github.com/castlebridge/chesslink/internal/ws"
	"github.com/castlebridge/chesslink/pkg/wire"
)

func newTestAPI(t *testing.T) (*game.Registry, store.Gateway, string) {
	t.Helper()
	gw := store.NewMemory()
	registry := game.NewRegistry(gw, nil, rules.NewEngine(), game.Options{})
	hub := ws.NewHub(registry, nil)
	registry.AttachBroadcaster(hub)

	srv := httptest.NewServer(NewHandler(registry, gw, hub).Routes())
	t.Cleanup(srv.Close)
	return registry, gw, srv.URL
}

func postJSON(t *testing.T, url string, body, out any) int {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestCreateJoinReconnect(t *testing.T) {
	_, _, base := newTestAPI(t)

	var created wire.CreateGameResponse
	if code := postJSON(t, base+"/api/games", wire.CreateGameRequest{Name: "alice"}, &created); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if created.Color != "white" || created.SessionID == "" || created.PlayerID == "" {
		t.Fatalf("created: %+v", created)
	}

	// A name is mandatory.
	if code := postJSON(t, base+"/api/games", wire.CreateGameRequest{}, nil); code != http.StatusBadRequest {
		t.Fatalf("blank create status = %d", code)
	}

	var joined wire.JoinGameResponse
	if code := postJSON(t, base+"/api/games/"+created.SessionID+"/join", wire.JoinGameRequest{Name: "bob"}, &joined); code != http.StatusOK {
		t.Fatalf("join status = %d", code)
	}
	if joined.Color != "black" {
		t.Fatalf("joined: %+v", joined)
	}

	// The second seat is taken.
	if code := postJSON(t, base+"/api/games/"+created.SessionID+"/join", wire.JoinGameRequest{Name: "carol"}, nil); code != http.StatusConflict {
		t.Fatalf("full join status = %d", code)
	}
	if code := postJSON(t, base+"/api/games/deadbeef/join", wire.JoinGameRequest{Name: "carol"}, nil); code != http.StatusNotFound {
		t.Fatalf("unknown join status = %d", code)
	}

	var rc wire.ReconnectResponse
	if code := postJSON(t, base+"/api/games/"+created.SessionID+"/reconnect", wire.ReconnectRequest{PlayerID: joined.PlayerID}, &rc); code != http.StatusOK {
		t.Fatalf("reconnect status = %d", code)
	}
	if !rc.Reconnected || rc.Color != "black" {
		t.Fatalf("reconnect: %+v", rc)
	}
	if code := postJSON(t, base+"/api/games/"+created.SessionID+"/reconnect", wire.ReconnectRequest{PlayerID: "stranger"}, nil); code != http.StatusForbidden {
		t.Fatalf("stranger reconnect status = %d", code)
	}
}

func TestGameHistoryAndAggregates(t *testing.T) {
	registry, _, base := newTestAPI(t)
	ctx := context.Background()

	created, err := registry.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	joined, err := registry.Join(ctx, created.GameID, "bob")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	sess, err := registry.Lookup(ctx, created.GameID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := sess.ApplyMove(ctx, created.PlayerID, "e2", "e4", ""); err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if _, err := sess.Resign(ctx, joined.PlayerID); err != nil {
		t.Fatalf("Resign: %v", err)
	}

	var hist wire.GameHistoryResponse
	if code := getJSON(t, base+"/api/games/"+created.GameID, &hist); code != http.StatusOK {
		t.Fatalf("history status = %d", code)
	}
	if hist.Status != "completed" || hist.Result != "white_wins" || hist.Reason != "resignation" {
		t.Fatalf("history: %+v", hist)
	}
	if len(hist.Moves) != 1 || hist.Moves[0].SAN != "e4" {
		t.Fatalf("moves: %+v", hist.Moves)
	}
	if code := getJSON(t, base+"/api/games/deadbeef", nil); code != http.StatusNotFound {
		t.Fatalf("missing history status = %d", code)
	}

	var board []wire.LeaderboardEntry
	if code := getJSON(t, base+"/api/leaderboard", &board); code != http.StatusOK {
		t.Fatalf("leaderboard status = %d", code)
	}
	if len(board) != 2 || board[0].Name != "alice" || board[0].Score != 3 {
		t.Fatalf("leaderboard: %+v", board)
	}

	var recent []wire.RecentGame
	if code := getJSON(t, base+"/api/games/recent", &recent); code != http.StatusOK {
		t.Fatalf("recent status = %d", code)
	}
	if len(recent) != 1 || recent[0].Result != "white_wins" {
		t.Fatalf("recent: %+v", recent)
	}

	var stats wire.StatsResponse
	if code := getJSON(t, base+"/api/stats", &stats); code != http.StatusOK {
		t.Fatalf("stats status = %d", code)
	}
	if stats.CompletedGames != 1 || stats.Players != 2 || stats.LiveGames != 0 {
		t.Fatalf("stats: %+v", stats)
	}
}
