package leaderboard

import (
	"cmp"
	"slices"

	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

// SortOrder is the direction totals are ranked in.
type SortOrder string

const (
	SortDescending SortOrder = "desc"
	SortAscending  SortOrder = "asc"
)

// OrderFor maps the win direction to a sort order.
func OrderFor(highScoreWins bool) SortOrder {
	if highScoreWins {
		return SortDescending
	}
	return SortAscending
}

// Rank returns a copy of players sorted by total score. Equal totals keep
// their input order.
func Rank(players []ledger.Player, highScoreWins bool) []ledger.Player {
	out := slices.Clone(players)
	slices.SortStableFunc(out, func(a, b ledger.Player) int {
		if highScoreWins {
			return cmp.Compare(b.TotalScore, a.TotalScore)
		}
		return cmp.Compare(a.TotalScore, b.TotalScore)
	})
	return out
}

// Winner is the first ranked player.
func Winner(players []ledger.Player, highScoreWins bool) (ledger.Player, error) {
	if len(players) == 0 {
		return ledger.Player{}, ErrEmptyPlayerSet
	}
	return Rank(players, highScoreWins)[0], nil
}

// Standing is one row of the results table.
type Standing struct {
	Position   int             `json:"position"`
	PlayerID   shared.PlayerID `json:"player_id"`
	Name       string          `json:"name"`
	TotalScore float64         `json:"total_score"`
	IsActive   bool            `json:"is_active"`
}

// Standings ranks players and numbers them from 1. Tied totals share a
// position and the next distinct total skips ahead.
func Standings(players []ledger.Player, highScoreWins bool) []Standing {
	ranked := Rank(players, highScoreWins)
	out := make([]Standing, 0, len(ranked))
	for i, p := range ranked {
		pos := i + 1
		if i > 0 && p.TotalScore == ranked[i-1].TotalScore {
			pos = out[i-1].Position
		}
		out = append(out, Standing{
			Position:   pos,
			PlayerID:   p.ID,
			Name:       p.Name,
			TotalScore: p.TotalScore,
			IsActive:   p.IsActive(),
		})
	}
	return out
}
