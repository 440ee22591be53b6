package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/castlebridge/chesslink/internal/domain"
)

// memstore is an in-memory gateway used in tests and DB-less development.
type memstore struct {
	mu sync.RWMutex

	players map[string]*domain.Player
	games   map[string]*domain.GameRecord
	moves   map[string][]*domain.MoveRecord
}

func NewMemory() Gateway {
	return &memstore{
		players: make(map[string]*domain.Player),
		games:   make(map[string]*domain.GameRecord),
		moves:   make(map[string][]*domain.MoveRecord),
	}
}

func (m *memstore) CreatePlayer(ctx context.Context, p *domain.Player) error {
	if p == nil {
		return fmt.Errorf("nil player")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.players[p.ID]; exists {
		return fmt.Errorf("player %s already exists", p.ID)
	}
	cp := *p
	m.players[p.ID] = &cp
	return nil
}

func (m *memstore) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memstore) ApplyOutcome(ctx context.Context, playerID string, outcome domain.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return fmt.Errorf("player %s not found", playerID)
	}
	switch outcome {
	case domain.OutcomeWin:
		p.Wins++
		p.Score += 3
	case domain.OutcomeLoss:
		p.Losses++
	case domain.OutcomeDraw:
		p.Draws++
		p.Score++
	default:
		return fmt.Errorf("unknown outcome %q", outcome)
	}
	return nil
}

func (m *memstore) CreateGame(ctx context.Context, g *domain.GameRecord) error {
	if g == nil {
		return fmt.Errorf("nil game record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.games[g.ID]; exists {
		return fmt.Errorf("game %s already exists", g.ID)
	}
	cp := *g
	cp.UpdatedAt = cp.CreatedAt
	m.games[g.ID] = &cp
	return nil
}

func (m *memstore) RecordJoin(ctx context.Context, gameID, blackID, blackName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("game %s not found", gameID)
	}
	g.BlackID = blackID
	g.BlackName = blackName
	g.Status = domain.StatusActive
	g.UpdatedAt = time.Now()
	return nil
}

func (m *memstore) UpdatePosition(ctx context.Context, gameID, fen string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("game %s not found", gameID)
	}
	g.FEN = fen
	g.UpdatedAt = time.Now()
	return nil
}

func (m *memstore) CompleteGame(ctx context.Context, gameID, result, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("game %s not found", gameID)
	}
	now := time.Now()
	g.Status = domain.StatusCompleted
	g.Result = result
	g.Reason = reason
	g.CompletedAt = &now
	g.UpdatedAt = now
	return nil
}

func (m *memstore) GetGame(ctx context.Context, id string) (*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	if g.CompletedAt != nil {
		t := *g.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp, nil
}

func (m *memstore) InsertMove(ctx context.Context, mv *domain.MoveRecord) error {
	if mv == nil {
		return fmt.Errorf("nil move record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.moves[mv.GameID] {
		if existing.MoveNumber == mv.MoveNumber {
			return ErrDuplicateMove
		}
	}
	cp := *mv
	m.moves[mv.GameID] = append(m.moves[mv.GameID], &cp)
	return nil
}

func (m *memstore) MovesByGame(ctx context.Context, gameID string) ([]*domain.MoveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.moves[gameID]
	out := make([]*domain.MoveRecord, 0, len(list))
	for _, mv := range list {
		cp := *mv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MoveNumber < out[j].MoveNumber })
	return out, nil
}

func (m *memstore) Leaderboard(ctx context.Context, limit int) ([]*domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]*domain.LeaderboardEntry, 0, len(m.players))
	for _, p := range m.players {
		entries = append(entries, &domain.LeaderboardEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Wins:     p.Wins,
			Losses:   p.Losses,
			Draws:    p.Draws,
			Score:    p.Score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Wins > entries[j].Wins
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *memstore) RecentGames(ctx context.Context, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var games []*domain.GameRecord
	for _, g := range m.games {
		if g.Status != domain.StatusCompleted {
			continue
		}
		cp := *g
		if g.CompletedAt != nil {
			t := *g.CompletedAt
			cp.CompletedAt = &t
		}
		games = append(games, &cp)
	}
	sort.Slice(games, func(i, j int) bool {
		ti, tj := games[i].CompletedAt, games[j].CompletedAt
		if ti == nil || tj == nil {
			return tj == nil
		}
		return ti.After(*tj)
	})
	if len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func (m *memstore) Stats(ctx context.Context) (*domain.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &domain.Stats{Players: len(m.players)}
	for _, g := range m.games {
		switch g.Status {
		case domain.StatusCompleted:
			s.CompletedGames++
		case domain.StatusActive, domain.StatusWaiting:
			s.LiveGames++
		}
	}
	return s, nil
}
