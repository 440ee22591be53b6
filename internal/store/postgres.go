package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/castlebridge/chesslink/internal/domain"
)

type postgres struct {
	db *sql.DB
}

// NewPostgres opens a pooled connection and verifies it with a ping.
func NewPostgres(databaseURL string) (Gateway, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &postgres{db: db}, nil
}

// EnsureSchema creates the tables when they are missing.
func EnsureSchema(ctx context.Context, gw Gateway) error {
	p, ok := gw.(*postgres)
	if !ok {
		return nil
	}
	const schema = `
		CREATE TABLE IF NOT EXISTS players (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			wins       INT NOT NULL DEFAULT 0,
			losses     INT NOT NULL DEFAULT 0,
			draws      INT NOT NULL DEFAULT 0,
			score      INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS games (
			id           TEXT PRIMARY KEY,
			white_id     TEXT NOT NULL REFERENCES players(id),
			white_name   TEXT NOT NULL,
			black_id     TEXT,
			black_name   TEXT,
			status       TEXT NOT NULL,
			result       TEXT NOT NULL DEFAULT '',
			reason       TEXT NOT NULL DEFAULT '',
			fen          TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS moves (
			game_id     TEXT NOT NULL REFERENCES games(id),
			move_number INT NOT NULL,
			player_id   TEXT NOT NULL,
			from_sq     TEXT NOT NULL,
			to_sq       TEXT NOT NULL,
			san         TEXT NOT NULL,
			fen         TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (game_id, move_number)
		);`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *postgres) CreatePlayer(ctx context.Context, pl *domain.Player) error {
	if pl == nil {
		return fmt.Errorf("nil player")
	}
	const q = `
		INSERT INTO players (id, name, wins, losses, draws, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.db.ExecContext(ctx, q, pl.ID, pl.Name, pl.Wins, pl.Losses, pl.Draws, pl.Score, pl.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (p *postgres) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	const q = `
		SELECT id, name, wins, losses, draws, score, created_at
		FROM players WHERE id = $1`
	var pl domain.Player
	err := p.db.QueryRowContext(ctx, q, id).Scan(
		&pl.ID, &pl.Name, &pl.Wins, &pl.Losses, &pl.Draws, &pl.Score, &pl.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select player: %w", err)
	}
	return &pl, nil
}

func (p *postgres) ApplyOutcome(ctx context.Context, playerID string, outcome domain.Outcome) error {
	var q string
	switch outcome {
	case domain.OutcomeWin:
		q = `UPDATE players SET wins = wins + 1, score = score + 3 WHERE id = $1`
	case domain.OutcomeLoss:
		q = `UPDATE players SET losses = losses + 1 WHERE id = $1`
	case domain.OutcomeDraw:
		q = `UPDATE players SET draws = draws + 1, score = score + 1 WHERE id = $1`
	default:
		return fmt.Errorf("unknown outcome %q", outcome)
	}
	if _, err := p.db.ExecContext(ctx, q, playerID); err != nil {
		return fmt.Errorf("apply outcome: %w", err)
	}
	return nil
}

func (p *postgres) CreateGame(ctx context.Context, g *domain.GameRecord) error {
	if g == nil {
		return fmt.Errorf("nil game record")
	}
	const q = `
		INSERT INTO games (id, white_id, white_name, black_id, black_name, status, fen, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $8)`
	_, err := p.db.ExecContext(ctx, q,
		g.ID, g.WhiteID, g.WhiteName, g.BlackID, g.BlackName, g.Status, g.FEN, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (p *postgres) RecordJoin(ctx context.Context, gameID, blackID, blackName string) error {
	const q = `
		UPDATE games
		SET black_id = $2, black_name = $3, status = $4, updated_at = NOW()
		WHERE id = $1`
	if _, err := p.db.ExecContext(ctx, q, gameID, blackID, blackName, domain.StatusActive); err != nil {
		return fmt.Errorf("record join: %w", err)
	}
	return nil
}

func (p *postgres) UpdatePosition(ctx context.Context, gameID, fen string) error {
	const q = `UPDATE games SET fen = $2, updated_at = NOW() WHERE id = $1`
	if _, err := p.db.ExecContext(ctx, q, gameID, fen); err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	return nil
}

func (p *postgres) CompleteGame(ctx context.Context, gameID, result, reason string) error {
	const q = `
		UPDATE games
		SET status = $2, result = $3, reason = $4, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	if _, err := p.db.ExecContext(ctx, q, gameID, domain.StatusCompleted, result, reason); err != nil {
		return fmt.Errorf("complete game: %w", err)
	}
	return nil
}

func (p *postgres) GetGame(ctx context.Context, id string) (*domain.GameRecord, error) {
	const q = `
		SELECT id, white_id, white_name, COALESCE(black_id, ''), COALESCE(black_name, ''),
		       status, result, reason, fen, created_at, updated_at, completed_at
		FROM games WHERE id = $1`
	var (
		g           domain.GameRecord
		completedAt sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, q, id).Scan(
		&g.ID, &g.WhiteID, &g.WhiteName, &g.BlackID, &g.BlackName,
		&g.Status, &g.Result, &g.Reason, &g.FEN, &g.CreatedAt, &g.UpdatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		g.CompletedAt = &t
	}
	return &g, nil
}

func (p *postgres) InsertMove(ctx context.Context, m *domain.MoveRecord) error {
	if m == nil {
		return fmt.Errorf("nil move record")
	}
	const q = `
		INSERT INTO moves (game_id, move_number, player_id, from_sq, to_sq, san, fen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id, move_number) DO NOTHING`
	res, err := p.db.ExecContext(ctx, q,
		m.GameID, m.MoveNumber, m.PlayerID, m.FromSq, m.ToSq, m.SAN, m.FEN, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert move: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateMove
	}
	return nil
}

func (p *postgres) MovesByGame(ctx context.Context, gameID string) ([]*domain.MoveRecord, error) {
	const q = `
		SELECT game_id, move_number, player_id, from_sq, to_sq, san, fen, created_at
		FROM moves WHERE game_id = $1
		ORDER BY move_number ASC`
	rows, err := p.db.QueryContext(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("select moves: %w", err)
	}
	defer rows.Close()

	var moves []*domain.MoveRecord
	for rows.Next() {
		var m domain.MoveRecord
		if err := rows.Scan(
			&m.GameID, &m.MoveNumber, &m.PlayerID, &m.FromSq, &m.ToSq, &m.SAN, &m.FEN, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		moves = append(moves, &m)
	}
	return moves, rows.Err()
}

func (p *postgres) Leaderboard(ctx context.Context, limit int) ([]*domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
		SELECT id, name, wins, losses, draws, score
		FROM players
		ORDER BY score DESC, wins DESC
		LIMIT $1`
	rows, err := p.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Name, &e.Wins, &e.Losses, &e.Draws, &e.Score); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (p *postgres) RecentGames(ctx context.Context, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
		SELECT id, white_id, white_name, COALESCE(black_id, ''), COALESCE(black_name, ''),
		       status, result, reason, fen, created_at, updated_at, completed_at
		FROM games
		WHERE status = $1
		ORDER BY completed_at DESC
		LIMIT $2`
	rows, err := p.db.QueryContext(ctx, q, domain.StatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.GameRecord, 0, limit)
	for rows.Next() {
		var (
			g           domain.GameRecord
			completedAt sql.NullTime
		)
		if err := rows.Scan(
			&g.ID, &g.WhiteID, &g.WhiteName, &g.BlackID, &g.BlackName,
			&g.Status, &g.Result, &g.Reason, &g.FEN, &g.CreatedAt, &g.UpdatedAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			g.CompletedAt = &t
		}
		games = append(games, &g)
	}
	return games, rows.Err()
}

func (p *postgres) Stats(ctx context.Context) (*domain.Stats, error) {
	const q = `
		SELECT
			(SELECT COUNT(*) FROM games WHERE status = $1),
			(SELECT COUNT(*) FROM players),
			(SELECT COUNT(*) FROM games WHERE status IN ($2, $3))`
	var s domain.Stats
	err := p.db.QueryRowContext(ctx, q, domain.StatusCompleted, domain.StatusActive, domain.StatusWaiting).
		Scan(&s.CompletedGames, &s.Players, &s.LiveGames)
	if err != nil {
		return nil, fmt.Errorf("select stats: %w", err)
	}
	return &s, nil
}
