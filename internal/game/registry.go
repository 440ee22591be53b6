package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castlebridge/chesslink/internal/cache"
	"github.com/castlebridge/chesslink/internal/domain"
	"github.com/castlebridge/chesslink/internal/obslog"
	"github.com/castlebridge/chesslink/internal/rules"
	"github.com/castlebridge/chesslink/internal/store"
)

// Registry is the concurrency-safe map of live sessions. Lookups and
// creation of different sessions run concurrently; per-session exclusivity
// lives inside each Session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store  store.Gateway
	snaps  *cache.Store
	engine rules.Engine

	bmu         sync.RWMutex
	broadcaster Broadcaster

	grace      time.Duration
	evictDelay time.Duration
}

type Options struct {
	DisconnectGrace time.Duration
	EvictDelay      time.Duration
}

func NewRegistry(gw store.Gateway, snaps *cache.Store, engine rules.Engine, opts Options) *Registry {
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = 30 * time.Second
	}
	if opts.EvictDelay <= 0 {
		opts.EvictDelay = 5 * time.Minute
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		store:      gw,
		snaps:      snaps,
		engine:     engine,
		grace:      opts.DisconnectGrace,
		evictDelay: opts.EvictDelay,
	}
}

// AttachBroadcaster wires the transport fanout used for timer-driven
// completions. Sessions created before the attach see it as well.
func (r *Registry) AttachBroadcaster(b Broadcaster) {
	r.bmu.Lock()
	r.broadcaster = b
	r.bmu.Unlock()
}

func (r *Registry) currentBroadcaster() Broadcaster {
	r.bmu.RLock()
	defer r.bmu.RUnlock()
	return r.broadcaster
}

// Create allocates a player and a waiting game with that player as white.
func (r *Registry) Create(ctx context.Context, creatorName string) (*CreateResult, error) {
	name := strings.TrimSpace(creatorName)
	if name == "" {
		return nil, fmt.Errorf("creator name is required")
	}

	player := &domain.Player{ID: uuid.NewString(), Name: name, CreatedAt: time.Now()}
	if err := r.store.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("persist player: %w", err)
	}

	g := r.engine.New()
	id, err := r.newGameID()
	if err != nil {
		return nil, err
	}
	rec := &domain.GameRecord{
		ID:        id,
		WhiteID:   player.ID,
		WhiteName: player.Name,
		Status:    domain.StatusWaiting,
		FEN:       g.FEN(),
		CreatedAt: time.Now(),
	}
	if err := r.store.CreateGame(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist game: %w", err)
	}

	s := r.newSession(id, g)
	s.whiteID = player.ID
	s.whiteName = player.Name
	s.status = domain.StatusWaiting

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	ctxSnap, cancel := context.WithTimeout(ctx, 2*time.Second)
	s.mu.Lock()
	s.saveSnapshotLocked(ctxSnap)
	s.mu.Unlock()
	cancel()

	obslog.L().Info("session_create",
		zap.String("game_id", id),
		zap.String("white_id", player.ID),
	)
	return &CreateResult{GameID: id, PlayerID: player.ID, Color: rules.White}, nil
}

// Join admits a second player as black, activating the game. The session is
// hydrated from durable state when not live.
func (r *Registry) Join(ctx context.Context, gameID, joinerName string) (*JoinResult, error) {
	name := strings.TrimSpace(joinerName)
	if name == "" {
		return nil, fmt.Errorf("joiner name is required")
	}
	s, err := r.Lookup(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := s.CanJoin(); err != nil {
		return nil, err
	}

	player := &domain.Player{ID: uuid.NewString(), Name: name, CreatedAt: time.Now()}
	if err := r.store.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("persist player: %w", err)
	}
	if err := s.AdmitBlack(ctx, player.ID, player.Name); err != nil {
		return nil, err
	}
	return &JoinResult{GameID: s.ID(), PlayerID: player.ID, Color: rules.Black}, nil
}

// Reconnect resolves a returning player. Terminal games produce a terminal
// result from durable state without reviving a live session.
func (r *Registry) Reconnect(ctx context.Context, gameID, playerID string) (*ReconnectResult, error) {
	r.mu.RLock()
	s := r.sessions[gameID]
	r.mu.RUnlock()

	if s == nil {
		rec, err := r.store.GetGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, ErrGameNotFound
		}
		if rec.Terminal() {
			color, err := recordColor(rec, playerID)
			if err != nil {
				return nil, err
			}
			return &ReconnectResult{
				GameID:    rec.ID,
				PlayerID:  playerID,
				Color:     color,
				Completed: true,
				Result:    rec.Result,
				FEN:       rec.FEN,
			}, nil
		}
		s, err = r.hydrate(ctx, rec)
		if err != nil {
			return nil, err
		}
	}

	color, err := s.PlayerColor(playerID)
	if err != nil {
		return nil, err
	}
	return &ReconnectResult{
		GameID:      s.ID(),
		PlayerID:    playerID,
		Color:       color,
		Reconnected: true,
	}, nil
}

// Lookup returns the live session, restoring it from the snapshot cache or
// the durable store when absent. Terminal durable records are not revived.
func (r *Registry) Lookup(ctx context.Context, gameID string) (*Session, error) {
	r.mu.RLock()
	s := r.sessions[gameID]
	r.mu.RUnlock()
	if s != nil {
		return s, nil
	}

	if snap, err := r.snaps.Get(ctx, gameID); err == nil && snap != nil &&
		(snap.Status == domain.StatusWaiting || snap.Status == domain.StatusActive) {
		restored, err := r.restoreFromSnapshot(snap)
		if err == nil {
			return r.adopt(restored), nil
		}
		obslog.L().Warn("session_snapshot_restore_error",
			zap.String("game_id", gameID),
			zap.Error(err),
		)
	}

	rec, err := r.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrGameNotFound
	}
	if rec.Terminal() {
		return nil, ErrGameAlreadyCompleted
	}
	return r.hydrate(ctx, rec)
}

// hydrate rebuilds a live session from a durable record: the latest
// position only, with the move count taken from the move log's length.
func (r *Registry) hydrate(ctx context.Context, rec *domain.GameRecord) (*Session, error) {
	g, err := r.engine.Restore(rec.FEN)
	if err != nil {
		return nil, fmt.Errorf("restore position: %w", err)
	}
	moves, err := r.store.MovesByGame(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("load move log: %w", err)
	}

	s := r.newSession(rec.ID, g)
	s.whiteID = rec.WhiteID
	s.whiteName = rec.WhiteName
	s.blackID = rec.BlackID
	s.blackName = rec.BlackName
	s.status = rec.Status
	s.moveCount = len(moves)

	obslog.L().Info("session_hydrate",
		zap.String("game_id", rec.ID),
		zap.String("status", rec.Status),
		zap.Int("move_count", len(moves)),
	)
	return r.adopt(s), nil
}

func (r *Registry) restoreFromSnapshot(snap *cache.Snapshot) (*Session, error) {
	g, err := r.engine.Restore(snap.FEN)
	if err != nil {
		return nil, fmt.Errorf("restore position: %w", err)
	}
	s := r.newSession(snap.GameID, g)
	s.whiteID = snap.WhiteID
	s.whiteName = snap.WhiteName
	s.blackID = snap.BlackID
	s.blackName = snap.BlackName
	s.status = snap.Status
	s.moveCount = snap.MoveCount
	s.drawOfferBy = snap.DrawOfferBy
	return s, nil
}

// adopt inserts a restored session, keeping an already-adopted instance if
// two restorations raced.
func (r *Registry) adopt(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[s.id]; ok {
		return existing
	}
	r.sessions[s.id] = s
	return s
}

// Evict drops a completed session from the live map. Live games are never
// evicted; durable records are permanent either way.
func (r *Registry) Evict(gameID string) {
	r.mu.Lock()
	s := r.sessions[gameID]
	if s == nil {
		r.mu.Unlock()
		return
	}
	status := s.Status()
	if status == domain.StatusWaiting || status == domain.StatusActive {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, gameID)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.snaps.Delete(ctx, gameID); err != nil {
		obslog.L().Warn("session_snapshot_delete_error",
			zap.String("game_id", gameID),
			zap.Error(err),
		)
	}
	obslog.L().Info("session_evict", zap.String("game_id", gameID))
}

func (r *Registry) scheduleEviction(gameID string) {
	time.AfterFunc(r.evictDelay, func() { r.Evict(gameID) })
}

func (r *Registry) newSession(id string, g rules.Game) *Session {
	return &Session{
		id:          id,
		game:        g,
		timers:      make(map[string]*time.Timer),
		store:       r.store,
		snaps:       r.snaps,
		grace:       r.grace,
		broadcaster: r.currentBroadcaster,
		evict:       r.scheduleEviction,
	}
}

// newGameID allocates a short URL-safe identifier, retrying on the rare
// collision with a live session.
func (r *Registry) newGameID() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		b := make([]byte, 4)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generate game id: %w", err)
		}
		id := hex.EncodeToString(b)
		r.mu.RLock()
		_, taken := r.sessions[id]
		r.mu.RUnlock()
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate game id: exhausted retries")
}

func recordColor(rec *domain.GameRecord, playerID string) (rules.Color, error) {
	switch playerID {
	case "":
		return "", ErrNotAPlayer
	case rec.WhiteID:
		return rules.White, nil
	case rec.BlackID:
		return rules.Black, nil
	}
	return "", ErrNotAPlayer
}
