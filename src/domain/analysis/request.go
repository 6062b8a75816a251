package analysis

import (
	"context"

	"github.com/bryanwahyu/tally/src/domain/ledger"
)

// FallbackText replaces the commentary whenever the generator fails.
const FallbackText = "Great game everyone! The scores speak for themselves."

// PlayerSummary is the per-player part of a Request.
type PlayerSummary struct {
	Name          string    `json:"name"`
	TotalScore    float64   `json:"totalScore"`
	Scores        []float64 `json:"scores"`
	JoinedAtRound int       `json:"joinedAtRound"`
	IsActive      bool      `json:"isActive"`
	GaveUpAtRound *int      `json:"gaveUpAtRound"`
}

// Request is the payload handed to an analysis generator.
type Request struct {
	Players       []PlayerSummary `json:"players"`
	TotalRounds   int             `json:"totalRounds"`
	HighScoreWins bool            `json:"highScoreWins"`
}

// Generator turns a finished game into free-text commentary. The returned
// text is opaque to the caller.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BuildRequest summarises a ledger for a generator.
func BuildRequest(l *ledger.Ledger) Request {
	req := Request{
		Players:       make([]PlayerSummary, 0, len(l.Players)),
		TotalRounds:   l.PlayedRounds,
		HighScoreWins: l.HighScoreWins,
	}
	for _, p := range l.Players {
		s := PlayerSummary{
			Name:          p.Name,
			TotalScore:    p.TotalScore,
			Scores:        p.Scores(),
			JoinedAtRound: p.JoinedAtRound,
			IsActive:      p.IsActive(),
		}
		if p.HasGivenUp() {
			g := p.GaveUpAtRound
			s.GaveUpAtRound = &g
		}
		req.Players = append(req.Players, s)
	}
	return req
}
