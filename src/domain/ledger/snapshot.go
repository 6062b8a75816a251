package ledger

import "github.com/bryanwahyu/tally/src/domain/shared"

// PlayerRecord is the per-player row handed to the persistence sink.
type PlayerRecord struct {
	PlayerID           shared.PlayerID `json:"player_id"`
	Name               string          `json:"name"`
	Order              int             `json:"order"`
	TotalScore         float64         `json:"total_score"`
	FirstJoinedAtRound int             `json:"first_joined_at_round"`
	JoinedAtRound      int             `json:"joined_at_round"`
	GaveUpAtRound      *int            `json:"gave_up_at_round"`
	IsActive           bool            `json:"is_active"`
}

// RoundRecord is one (player, round) row handed to the persistence sink.
type RoundRecord struct {
	PlayerID        shared.PlayerID `json:"player_id"`
	RoundNumber     int             `json:"round_number"`
	Score           float64         `json:"score"`
	Prediction      *float64        `json:"prediction"`
	CumulativeScore float64         `json:"cumulative_score"`
}

// Snapshot is the full state of a ledger in the flat shape persistence
// expects.
type Snapshot struct {
	CurrentRound  int            `json:"current_round"`
	PlayedRounds  int            `json:"played_rounds"`
	IsDualScoring bool           `json:"is_dual_scoring"`
	HighScoreWins bool           `json:"high_score_wins"`
	IsFinished    bool           `json:"is_finished"`
	Players       []PlayerRecord `json:"players"`
	Rounds        []RoundRecord  `json:"rounds"`
}

// Snapshot flattens the ledger. It performs no I/O.
func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{
		CurrentRound:  l.CurrentRound,
		PlayedRounds:  l.PlayedRounds,
		IsDualScoring: l.IsDualScoring,
		HighScoreWins: l.HighScoreWins,
		IsFinished:    l.IsFinished,
		Players:       make([]PlayerRecord, 0, len(l.Players)),
		Rounds:        make([]RoundRecord, 0),
	}
	for _, p := range l.Players {
		rec := PlayerRecord{
			PlayerID:           p.ID,
			Name:               p.Name,
			Order:              p.Order,
			TotalScore:         p.TotalScore,
			FirstJoinedAtRound: p.FirstJoinedAtRound(),
			JoinedAtRound:      p.JoinedAtRound,
			IsActive:           p.IsActive(),
		}
		if p.HasGivenUp() {
			g := p.GaveUpAtRound
			rec.GaveUpAtRound = &g
		}
		snap.Players = append(snap.Players, rec)

		var cumulative float64
		for _, seg := range p.Segments {
			for i, score := range seg.Scores {
				cumulative += score
				row := RoundRecord{
					PlayerID:        p.ID,
					RoundNumber:     seg.StartRound + i,
					Score:           score,
					CumulativeScore: cumulative,
				}
				if seg.Predictions != nil {
					v := seg.Predictions[i]
					row.Prediction = &v
				}
				snap.Rounds = append(snap.Rounds, row)
			}
		}
	}
	return snap
}
