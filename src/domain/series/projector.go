package series

import (
	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

// Row holds every player's point for one round. Round 0 is the baseline.
type Row struct {
	Round  int                       `json:"round"`
	Points map[shared.PlayerID]Point `json:"points"`
}

// Series is the per-round chart data, indexed by round.
type Series []Row

// ValueAt returns the point of a player at round, NoData when absent.
func (s Series) ValueAt(round int, id shared.PlayerID) Point {
	if round < 0 || round >= len(s) {
		return NoData()
	}
	p, ok := s[round].Points[id]
	if !ok {
		return NoData()
	}
	return p
}

type options struct {
	visible func(shared.PlayerID) bool
}

// Option tunes a projection.
type Option func(*options)

// WithVisibility hides every player for which visible returns false.
func WithVisibility(visible func(shared.PlayerID) bool) Option {
	return func(o *options) { o.visible = visible }
}

// WithHidden hides the given players.
func WithHidden(ids ...shared.PlayerID) Option {
	hidden := make(map[shared.PlayerID]struct{}, len(ids))
	for _, id := range ids {
		hidden[id] = struct{}{}
	}
	return WithVisibility(func(id shared.PlayerID) bool {
		_, ok := hidden[id]
		return !ok
	})
}

// Project builds the series for rounds 0 through upTo. A negative upTo
// yields an empty series.
func Project(l *ledger.Ledger, upTo int, opts ...Option) Series {
	if upTo < 0 {
		return Series{}
	}
	o := options{visible: func(shared.PlayerID) bool { return true }}
	for _, opt := range opts {
		opt(&o)
	}

	out := make(Series, 0, upTo+1)
	for r := 0; r <= upTo; r++ {
		row := Row{Round: r, Points: make(map[shared.PlayerID]Point, len(l.Players))}
		for _, p := range l.Players {
			if !o.visible(p.ID) {
				row.Points[p.ID] = NoData()
				continue
			}
			row.Points[p.ID] = pointAt(l, p, r)
		}
		out = append(out, row)
	}
	return out
}

func pointAt(l *ledger.Ledger, p ledger.Player, r int) Point {
	if r == 0 {
		if p.FirstJoinedAtRound() == 1 {
			return Value(0)
		}
		return NoData()
	}
	if r == l.CurrentRound && !p.HasSlot(r) &&
		(ledger.JustJoined(p, r) || ledger.JustRejoined(p, r)) {
		return Value(p.TotalScore)
	}
	if p.Displayable(r) {
		return Value(p.CumulativeAt(r))
	}
	return NoData()
}
