package ledger

import (
	"fmt"
	"math"
	"slices"

	"github.com/bryanwahyu/tally/src/domain/shared"
)

// Restore rebuilds a ledger from a persisted snapshot. Segment boundaries
// come from the lifecycle flags: slots from the current join round on form
// the live segment, and earlier slots are split wherever rounds are missing.
// Two older segments with no gap between them are merged into one, which
// leaves totals, display and eligibility unchanged.
func Restore(snap Snapshot) (*Ledger, error) {
	if len(snap.Players) == 0 {
		return nil, ErrNoPlayers
	}
	rows := make(map[shared.PlayerID][]RoundRecord, len(snap.Players))
	for _, rec := range snap.Players {
		if _, dup := rows[rec.PlayerID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, rec.PlayerID)
		}
		rows[rec.PlayerID] = nil
	}
	for _, r := range snap.Rounds {
		if _, ok := rows[r.PlayerID]; !ok {
			return nil, fmt.Errorf("%w: round %d for %s", ErrPlayerNotFound, r.RoundNumber, r.PlayerID)
		}
		rows[r.PlayerID] = append(rows[r.PlayerID], r)
	}

	l := &Ledger{
		Players:       make([]Player, 0, len(snap.Players)),
		CurrentRound:  snap.CurrentRound,
		PlayedRounds:  snap.PlayedRounds,
		IsDualScoring: snap.IsDualScoring,
		HighScoreWins: snap.HighScoreWins,
		IsFinished:    snap.IsFinished,
	}
	for _, rec := range snap.Players {
		p, err := restorePlayer(rec, rows[rec.PlayerID], snap.IsDualScoring)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", rec.PlayerID, err)
		}
		l.Players = append(l.Players, p)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	return l, nil
}

func restorePlayer(rec PlayerRecord, rows []RoundRecord, dual bool) (Player, error) {
	if err := rec.PlayerID.Validate(); err != nil {
		return Player{}, err
	}
	gaveUp := 0
	if rec.GaveUpAtRound != nil {
		gaveUp = *rec.GaveUpAtRound
	}
	lc, err := LifecycleFromFlags(rec.IsActive, rec.JoinedAtRound, gaveUp)
	if err != nil {
		return Player{}, err
	}
	if lc.State == StateNeverJoined {
		return Player{}, fmt.Errorf("%w: player was never joined", ErrCorruptSnapshot)
	}
	first := rec.FirstJoinedAtRound
	if first == 0 {
		first = lc.JoinedAtRound
	}
	if first > lc.JoinedAtRound {
		return Player{}, fmt.Errorf("%w: first join round %d after join round %d", ErrCorruptSnapshot, first, lc.JoinedAtRound)
	}

	slices.SortFunc(rows, func(a, b RoundRecord) int { return a.RoundNumber - b.RoundNumber })
	var older, live []RoundRecord
	for i, r := range rows {
		if r.RoundNumber < 1 {
			return Player{}, fmt.Errorf("%w: round %d", ErrOutOfRangeRound, r.RoundNumber)
		}
		if i > 0 && r.RoundNumber == rows[i-1].RoundNumber {
			return Player{}, fmt.Errorf("%w: round %d stored twice", ErrDuplicateEntry, r.RoundNumber)
		}
		if first < lc.JoinedAtRound && r.RoundNumber < lc.JoinedAtRound {
			older = append(older, r)
		} else {
			live = append(live, r)
		}
	}

	p := Player{ID: rec.PlayerID, Name: rec.Name, Order: rec.Order, Lifecycle: lc}
	if first < lc.JoinedAtRound {
		runs := contiguousRuns(older)
		if len(runs) == 0 {
			p.Segments = append(p.Segments, emptySegment(first, dual))
		}
		for i, run := range runs {
			joined := run[0].RoundNumber
			if i == 0 {
				joined = first
			}
			p.Segments = append(p.Segments, segmentFrom(joined, run, dual))
		}
	}

	switch {
	case len(live) == 0:
		p.Segments = append(p.Segments, emptySegment(lc.JoinedAtRound, dual))
	case len(contiguousRuns(live)) > 1:
		return Player{}, fmt.Errorf("%w: missing round inside the live segment", ErrInvalidRoundSequence)
	case first == lc.JoinedAtRound && live[0].RoundNumber > lc.JoinedAtRound:
		return Player{}, fmt.Errorf("%w: first slot at round %d, joined at %d", ErrInconsistentJoinState, live[0].RoundNumber, lc.JoinedAtRound)
	case first < lc.JoinedAtRound && live[0].RoundNumber != lc.JoinedAtRound:
		return Player{}, fmt.Errorf("%w: live segment starts at round %d, rejoined at %d", ErrInconsistentJoinState, live[0].RoundNumber, lc.JoinedAtRound)
	default:
		p.Segments = append(p.Segments, segmentFrom(lc.JoinedAtRound, live, dual))
	}

	p.recomputeTotal()
	if math.Abs(p.TotalScore-rec.TotalScore) > 1e-9 {
		return Player{}, fmt.Errorf("%w: stored total %v, rounds sum to %v", ErrCorruptSnapshot, rec.TotalScore, p.TotalScore)
	}
	return p, nil
}

func contiguousRuns(rows []RoundRecord) [][]RoundRecord {
	var runs [][]RoundRecord
	for i, r := range rows {
		if i == 0 || r.RoundNumber != rows[i-1].RoundNumber+1 {
			runs = append(runs, nil)
		}
		runs[len(runs)-1] = append(runs[len(runs)-1], r)
	}
	return runs
}

func segmentFrom(joinedAt int, rows []RoundRecord, dual bool) Segment {
	seg := Segment{JoinedAtRound: joinedAt, StartRound: rows[0].RoundNumber, Scores: make([]float64, 0, len(rows))}
	if dual {
		seg.Predictions = make([]float64, 0, len(rows))
	}
	for _, r := range rows {
		seg.Scores = append(seg.Scores, r.Score)
		if dual {
			var v float64
			if r.Prediction != nil {
				v = *r.Prediction
			}
			seg.Predictions = append(seg.Predictions, v)
		}
	}
	return seg
}

func emptySegment(round int, dual bool) Segment {
	seg := Segment{JoinedAtRound: round, StartRound: round, Scores: []float64{}}
	if dual {
		seg.Predictions = []float64{}
	}
	return seg
}
