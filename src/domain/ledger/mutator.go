package ledger

import (
	"fmt"

	"github.com/bryanwahyu/tally/src/domain/shared"
)

// Entry is one player's input for a round. Prediction is only read when the
// game uses dual scoring.
type Entry struct {
	PlayerID   shared.PlayerID `json:"player_id"`
	Score      float64         `json:"score"`
	Prediction *float64        `json:"prediction,omitempty"`
}

// ApplyRound records the round being entered and advances the global round
// clock. Every player eligible for the round gets a slot: the exact next slot
// is appended, an existing one (reached by navigating back) is overwritten.
// Eligible players without an entry score 0 on a new slot. Entries for
// ineligible players are ignored.
func (l *Ledger) ApplyRound(round int, entries []Entry) (*Ledger, error) {
	if l.IsFinished {
		return nil, ErrGameFinished
	}
	if round != l.CurrentRound {
		return nil, fmt.Errorf("%w: got round %d, expected %d", ErrInvalidRoundSequence, round, l.CurrentRound)
	}
	byPlayer, err := l.indexEntries(entries)
	if err != nil {
		return nil, err
	}

	next := l.clone()
	for i := range next.Players {
		p := &next.Players[i]
		if !IsEligibleForRound(*p, round) {
			continue
		}
		e, ok := byPlayer[p.ID]
		if !ok {
			if p.HasSlot(round) {
				continue
			}
			e = Entry{PlayerID: p.ID}
		}
		if err := p.record(round, e.Score, e.Prediction, next.IsDualScoring); err != nil {
			return nil, err
		}
	}
	next.CurrentRound = round + 1
	if round > next.PlayedRounds {
		next.PlayedRounds = round
	}
	return next, nil
}

// ReviseRound overwrites existing slots of a completed round without moving
// the round clock. It never inserts: a player with no slot for the round
// fails with ErrOutOfRangeRound.
func (l *Ledger) ReviseRound(round int, entries []Entry) (*Ledger, error) {
	if l.IsFinished {
		return nil, ErrGameFinished
	}
	if round < 1 || round > l.PlayedRounds {
		return nil, fmt.Errorf("%w: round %d not completed (played %d)", ErrOutOfRangeRound, round, l.PlayedRounds)
	}
	if _, err := l.indexEntries(entries); err != nil {
		return nil, err
	}

	next := l.clone()
	for _, e := range entries {
		p := &next.Players[next.indexOf(e.PlayerID)]
		if !p.overwrite(round, e.Score, e.Prediction) {
			return nil, fmt.Errorf("%w: player %s has no slot for round %d", ErrOutOfRangeRound, p.ID, round)
		}
		p.recomputeTotal()
	}
	return next, nil
}

// SetActive gives a player up (active=false) or lets them rejoin
// (active=true) at atRound. Scores are never touched. A give-up may be
// recorded at any round up to CurrentRound; a rejoin opens a new segment and
// is only accepted at FrontierRound, the next round that will be appended.
func (l *Ledger) SetActive(id shared.PlayerID, active bool, atRound int) (*Ledger, error) {
	if l.IsFinished {
		return nil, ErrGameFinished
	}
	idx := l.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	if active {
		if frontier := l.FrontierRound(); atRound != frontier {
			return nil, fmt.Errorf("%w: rejoin at round %d, next unplayed round is %d", ErrInvalidRoundSequence, atRound, frontier)
		}
	} else if atRound < 1 || atRound > l.CurrentRound {
		return nil, fmt.Errorf("%w: give up at round %d, current round %d", ErrInvalidRoundSequence, atRound, l.CurrentRound)
	}

	next := l.clone()
	p := &next.Players[idx]
	if !active {
		if last := p.LastScoredRound(); atRound < last {
			return nil, fmt.Errorf("%w: give up at round %d but scored through round %d", ErrInvalidRoundSequence, atRound, last)
		}
		lc, err := p.Lifecycle.GiveUp(atRound)
		if err != nil {
			return nil, err
		}
		p.Lifecycle = lc
		return next, nil
	}

	lc, err := p.Lifecycle.Rejoin(atRound)
	if err != nil {
		return nil, err
	}
	p.Lifecycle = lc
	seg := Segment{JoinedAtRound: atRound, StartRound: atRound, Scores: []float64{}}
	if next.IsDualScoring {
		seg.Predictions = []float64{}
	}
	p.Segments = append(p.Segments, seg)
	return next, nil
}

// AddPlayer creates a mid-game player joining at FrontierRound, even while
// the cursor is moved back. The fairness starting score is spread evenly over
// the rounds already behind the joiner so that their total lands at the
// field average.
func (l *Ledger) AddPlayer(id shared.PlayerID, name string) (*Ledger, error) {
	if l.IsFinished {
		return nil, ErrGameFinished
	}
	if l.indexOf(id) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, id)
	}
	join := l.FrontierRound()
	start := ComputeStartingScore(l.Players, join)
	slots := join - 1
	if slots == 0 && start != 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidStartingScore, start)
	}

	p, err := newPlayer(id, name, l.nextOrder(), join, backfill(start, slots), l.IsDualScoring)
	if err != nil {
		return nil, err
	}
	next := l.clone()
	next.Players = append(next.Players, p)
	return next, nil
}

// GoToRound moves the round cursor back to a completed round, or forward up
// to the first unplayed one. The next ApplyRound then targets that round.
func (l *Ledger) GoToRound(round int) (*Ledger, error) {
	if l.IsFinished {
		return nil, ErrGameFinished
	}
	if round < 1 || round > l.PlayedRounds+1 {
		return nil, fmt.Errorf("%w: cannot move to round %d (played %d)", ErrInvalidRoundSequence, round, l.PlayedRounds)
	}
	next := l.clone()
	next.CurrentRound = round
	return next, nil
}

// WithHighScoreWins changes the win direction. History is unaffected.
func (l *Ledger) WithHighScoreWins(highScoreWins bool) *Ledger {
	next := l.clone()
	next.HighScoreWins = highScoreWins
	return next
}

// Finish marks the game as over.
func (l *Ledger) Finish() (*Ledger, error) {
	if l.IsFinished {
		return nil, ErrGameFinished
	}
	next := l.clone()
	next.IsFinished = true
	return next, nil
}

// PlayAgain resets every player to a fresh round-1 segment while keeping
// identity, name and order.
func (l *Ledger) PlayAgain() *Ledger {
	next := l.clone()
	for i := range next.Players {
		p := &next.Players[i]
		seg := Segment{JoinedAtRound: 1, StartRound: 1, Scores: []float64{}}
		if next.IsDualScoring {
			seg.Predictions = []float64{}
		}
		p.Lifecycle = Lifecycle{State: StateActive, JoinedAtRound: 1}
		p.Segments = []Segment{seg}
		p.TotalScore = 0
	}
	next.CurrentRound = 1
	next.PlayedRounds = 0
	next.IsFinished = false
	return next
}

func (l *Ledger) indexEntries(entries []Entry) (map[shared.PlayerID]Entry, error) {
	out := make(map[shared.PlayerID]Entry, len(entries))
	for _, e := range entries {
		if l.indexOf(e.PlayerID) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, e.PlayerID)
		}
		if _, dup := out[e.PlayerID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.PlayerID)
		}
		out[e.PlayerID] = e
	}
	return out, nil
}
