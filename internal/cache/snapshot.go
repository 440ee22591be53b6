// Package cache keeps JSON snapshots of live sessions in Redis so a
// restarted process can hydrate a session without replaying the durable
// move log. The durable store stays the source of truth; snapshot writes
// are best-effort.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is the minimal state needed to resume a session.
type Snapshot struct {
	GameID      string    `json:"game_id"`
	WhiteID     string    `json:"white_id"`
	WhiteName   string    `json:"white_name"`
	BlackID     string    `json:"black_id,omitempty"`
	BlackName   string    `json:"black_name,omitempty"`
	FEN         string    `json:"fen"`
	MoveCount   int       `json:"move_count"`
	Status      string    `json:"status"`
	DrawOfferBy string    `json:"draw_offer_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is nil-safe: a nil *Store behaves as an always-miss cache so the
// registry does not need to branch on whether Redis is configured.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(redisURL string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for snapshot cache")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) Set(ctx context.Context, snap *Snapshot) error {
	if s == nil || s.rdb == nil || snap == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(snap.GameID), raw, s.ttl).Err()
}

// Get returns nil on a miss.
func (s *Store) Get(ctx context.Context, gameID string) (*Snapshot, error) {
	if s == nil || s.rdb == nil {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, sessionKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) Delete(ctx context.Context, gameID string) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, sessionKey(gameID)).Err()
}

func sessionKey(id string) string { return "chesslink:session:" + strings.TrimSpace(id) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
