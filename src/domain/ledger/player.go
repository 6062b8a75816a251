package ledger

import (
	"fmt"

	"github.com/bryanwahyu/tally/src/domain/shared"
)

// Segment is a contiguous run of score slots. Scores[i] holds the delta for
// round StartRound+i. StartRound is below JoinedAtRound only for a mid-game
// joiner whose catch-up score was backfilled over earlier rounds.
type Segment struct {
	JoinedAtRound int       `json:"joined_at_round"`
	StartRound    int       `json:"start_round"`
	Scores        []float64 `json:"scores"`
	Predictions   []float64 `json:"predictions,omitempty"`
}

// LastRound is the round of the final slot, or StartRound-1 when empty.
func (s Segment) LastRound() int {
	return s.StartRound + len(s.Scores) - 1
}

func (s Segment) covers(round int) bool {
	return round >= s.StartRound && round <= s.LastRound()
}

func (s Segment) clone() Segment {
	out := s
	out.Scores = append([]float64(nil), s.Scores...)
	if s.Predictions != nil {
		out.Predictions = append([]float64(nil), s.Predictions...)
	}
	return out
}

// Player is one participant's round history. Players are values: every ledger
// mutation works on a copy.
type Player struct {
	ID    shared.PlayerID `json:"id"`
	Name  string          `json:"name"`
	Order int             `json:"order"`
	Lifecycle
	Segments   []Segment `json:"segments"`
	TotalScore float64   `json:"total_score"`
}

func newPlayer(id shared.PlayerID, name string, order, joinRound int, backfill []float64, dual bool) (Player, error) {
	if err := id.Validate(); err != nil {
		return Player{}, err
	}
	lc, err := Lifecycle{}.Join(joinRound)
	if err != nil {
		return Player{}, err
	}
	seg := Segment{
		JoinedAtRound: joinRound,
		StartRound:    joinRound - len(backfill),
		Scores:        append([]float64{}, backfill...),
	}
	if dual {
		seg.Predictions = make([]float64, len(backfill))
	}
	p := Player{
		ID:        id,
		Name:      name,
		Order:     order,
		Lifecycle: lc,
		Segments:  []Segment{seg},
	}
	p.recomputeTotal()
	return p, nil
}

// Scores returns every recorded delta in round order across all segments.
func (p Player) Scores() []float64 {
	out := make([]float64, 0)
	for _, seg := range p.Segments {
		out = append(out, seg.Scores...)
	}
	return out
}

// Predictions returns the prediction slots in round order, or nil when the
// game does not use dual scoring.
func (p Player) Predictions() []float64 {
	var out []float64
	for _, seg := range p.Segments {
		if seg.Predictions != nil {
			out = append(out, seg.Predictions...)
		}
	}
	return out
}

// FirstJoinedAtRound is the round the player's first segment went live.
func (p Player) FirstJoinedAtRound() int {
	if len(p.Segments) == 0 {
		return 0
	}
	return p.Segments[0].JoinedAtRound
}

// LastScoredRound is the highest round holding a slot, 0 if none.
func (p Player) LastScoredRound() int {
	last := 0
	for _, seg := range p.Segments {
		if len(seg.Scores) > 0 && seg.LastRound() > last {
			last = seg.LastRound()
		}
	}
	return last
}

// HasSlot reports whether a score is recorded for round.
func (p Player) HasSlot(round int) bool {
	_, _, ok := p.slot(round)
	return ok
}

// ScoreAt returns the delta and prediction recorded for round.
func (p Player) ScoreAt(round int) (score float64, prediction *float64, ok bool) {
	si, idx, ok := p.slot(round)
	if !ok {
		return 0, nil, false
	}
	seg := p.Segments[si]
	if seg.Predictions != nil {
		v := seg.Predictions[idx]
		prediction = &v
	}
	return seg.Scores[idx], prediction, true
}

// CumulativeAt sums every slot up to and including round.
func (p Player) CumulativeAt(round int) float64 {
	var sum float64
	for _, seg := range p.Segments {
		for i, v := range seg.Scores {
			if seg.StartRound+i <= round {
				sum += v
			}
		}
	}
	return sum
}

// Displayable reports whether round has a slot inside a segment the player
// had already joined at that round. Backfilled slots are not displayable.
func (p Player) Displayable(round int) bool {
	for _, seg := range p.Segments {
		if seg.JoinedAtRound <= round && seg.covers(round) {
			return true
		}
	}
	return false
}

// LiveScore is the total of the live scores. For a rejoined player that is
// only the segment opened by the rejoin; history before the give-up is
// excluded.
func (p Player) LiveScore() float64 {
	if p.State != StateRejoined || len(p.Segments) == 0 {
		return p.TotalScore
	}
	var sum float64
	for _, v := range p.Segments[len(p.Segments)-1].Scores {
		sum += v
	}
	return sum
}

// segmentEntries counts slots of the live segment at or after its join round.
func (p Player) segmentEntries() int {
	if len(p.Segments) == 0 {
		return 0
	}
	seg := p.Segments[len(p.Segments)-1]
	n := seg.LastRound() - seg.JoinedAtRound + 1
	if n < 0 {
		return 0
	}
	return n
}

func (p Player) slot(round int) (segment, index int, ok bool) {
	for i, seg := range p.Segments {
		if seg.covers(round) {
			return i, round - seg.StartRound, true
		}
	}
	return 0, 0, false
}

func (p Player) clone() Player {
	out := p
	out.Segments = make([]Segment, len(p.Segments))
	for i, seg := range p.Segments {
		out.Segments[i] = seg.clone()
	}
	return out
}

func (p *Player) recomputeTotal() {
	var sum float64
	for _, seg := range p.Segments {
		for _, v := range seg.Scores {
			sum += v
		}
	}
	p.TotalScore = sum
}

// overwrite replaces an existing slot. A nil prediction keeps the stored one.
func (p *Player) overwrite(round int, score float64, prediction *float64) bool {
	si, idx, ok := p.slot(round)
	if !ok {
		return false
	}
	seg := &p.Segments[si]
	seg.Scores[idx] = score
	if seg.Predictions != nil && prediction != nil {
		seg.Predictions[idx] = *prediction
	}
	return true
}

// record writes round into the live segment: the exact next slot is
// appended, an existing slot is overwritten, anything else is a gap.
func (p *Player) record(round int, score float64, prediction *float64, dual bool) error {
	if p.overwrite(round, score, prediction) {
		p.recomputeTotal()
		return nil
	}
	if len(p.Segments) == 0 {
		return fmt.Errorf("%w: player %s has no segment", ErrInvalidRoundSequence, p.ID)
	}
	seg := &p.Segments[len(p.Segments)-1]
	if round != seg.LastRound()+1 {
		return fmt.Errorf("%w: player %s next slot is round %d, got %d", ErrInvalidRoundSequence, p.ID, seg.LastRound()+1, round)
	}
	seg.Scores = append(seg.Scores, score)
	if dual {
		var v float64
		if prediction != nil {
			v = *prediction
		}
		seg.Predictions = append(seg.Predictions, v)
	}
	p.recomputeTotal()
	return nil
}
