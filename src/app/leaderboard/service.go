package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/bryanwahyu/tally/src/domain/game"
	domain "github.com/bryanwahyu/tally/src/domain/leaderboard"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

// Service answers standings queries for stored games.
type Service struct {
	Repo  game.Repository
	Clock func() time.Time
}

func NewService(repo game.Repository) *Service {
	return &Service{
		Repo:  repo,
		Clock: func() time.Time { return time.Now().UTC() },
	}
}

// StandingsQuery selects a game. HighScoreWins overrides the game's own
// direction when set.
type StandingsQuery struct {
	GameID        shared.GameID
	HighScoreWins *bool
}

type StandingsResult struct {
	GameID      shared.GameID     `json:"game_id"`
	Round       int               `json:"round"`
	Order       domain.SortOrder  `json:"order"`
	Standings   []domain.Standing `json:"standings"`
	GeneratedAt time.Time         `json:"generated_at"`
}

func (s *Service) Standings(ctx context.Context, q StandingsQuery) (StandingsResult, error) {
	g, err := s.Repo.Get(ctx, q.GameID)
	if err != nil {
		return StandingsResult{}, err
	}
	if g.Ledger == nil {
		return StandingsResult{}, fmt.Errorf("%w: game %s has no players yet", game.ErrInvalidPhase, g.ID)
	}
	highScoreWins := g.Ledger.HighScoreWins
	if q.HighScoreWins != nil {
		highScoreWins = *q.HighScoreWins
	}
	return StandingsResult{
		GameID:      g.ID,
		Round:       g.Ledger.PlayedRounds,
		Order:       domain.OrderFor(highScoreWins),
		Standings:   domain.Standings(g.Ledger.Players, highScoreWins),
		GeneratedAt: s.Clock(),
	}, nil
}
