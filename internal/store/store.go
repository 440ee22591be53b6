// Package store is the persistence gateway: durable players, games and
// moves plus the derived aggregates. Writes are individually atomic; the
// session core treats them as synchronous write-through operations.
package store

import (
	"context"
	"errors"

	"github.com/castlebridge/chesslink/internal/domain"
)

var ErrDuplicateMove = errors.New("move already recorded")

type Gateway interface {
	CreatePlayer(ctx context.Context, p *domain.Player) error
	GetPlayer(ctx context.Context, id string) (*domain.Player, error)
	// ApplyOutcome bumps one player's aggregates for a finished game.
	ApplyOutcome(ctx context.Context, playerID string, outcome domain.Outcome) error

	CreateGame(ctx context.Context, g *domain.GameRecord) error
	RecordJoin(ctx context.Context, gameID, blackID, blackName string) error
	UpdatePosition(ctx context.Context, gameID, fen string) error
	CompleteGame(ctx context.Context, gameID, result, reason string) error
	GetGame(ctx context.Context, id string) (*domain.GameRecord, error)

	InsertMove(ctx context.Context, m *domain.MoveRecord) error
	MovesByGame(ctx context.Context, gameID string) ([]*domain.MoveRecord, error)

	Leaderboard(ctx context.Context, limit int) ([]*domain.LeaderboardEntry, error)
	RecentGames(ctx context.Context, limit int) ([]*domain.GameRecord, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}
