package ledger

import (
	"fmt"
	"math"

	"github.com/bryanwahyu/tally/src/domain/shared"
)

// Settings are fixed when the ledger is created, except HighScoreWins which
// may be toggled later.
type Settings struct {
	DualScoring   bool
	HighScoreWins bool
}

// PlayerSeed names a player created at setup.
type PlayerSeed struct {
	ID   shared.PlayerID
	Name string
}

// Ledger is the immutable score ledger of one game. Every mutation returns a
// new *Ledger; a snapshot held by a reader never changes underneath it.
type Ledger struct {
	Players       []Player `json:"players"`
	CurrentRound  int      `json:"current_round"`
	PlayedRounds  int      `json:"played_rounds"`
	IsDualScoring bool     `json:"is_dual_scoring"`
	HighScoreWins bool     `json:"high_score_wins"`
	IsFinished    bool     `json:"is_finished"`
}

// New creates a ledger at round 1 with every seed active from round 1.
func New(settings Settings, seeds []PlayerSeed) (*Ledger, error) {
	if len(seeds) == 0 {
		return nil, ErrNoPlayers
	}
	l := &Ledger{
		Players:       make([]Player, 0, len(seeds)),
		CurrentRound:  1,
		IsDualScoring: settings.DualScoring,
		HighScoreWins: settings.HighScoreWins,
	}
	for i, seed := range seeds {
		if l.indexOf(seed.ID) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, seed.ID)
		}
		p, err := newPlayer(seed.ID, seed.Name, i, 1, nil, settings.DualScoring)
		if err != nil {
			return nil, err
		}
		l.Players = append(l.Players, p)
	}
	return l, nil
}

// Player looks up a player by ID.
func (l *Ledger) Player(id shared.PlayerID) (Player, bool) {
	if i := l.indexOf(id); i >= 0 {
		return l.Players[i], true
	}
	return Player{}, false
}

// FrontierRound is the first round nobody has played yet. It differs from
// CurrentRound while the cursor is moved back to edit a completed round.
func (l *Ledger) FrontierRound() int {
	return l.PlayedRounds + 1
}

// ActivePlayers returns the players currently taking part in score entry.
func (l *Ledger) ActivePlayers() []Player {
	out := make([]Player, 0, len(l.Players))
	for _, p := range l.Players {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the structural invariants of every player.
func (l *Ledger) Validate() error {
	if l.CurrentRound < 1 {
		return fmt.Errorf("%w: current round %d", ErrInvalidRoundSequence, l.CurrentRound)
	}
	for _, p := range l.Players {
		if err := p.Lifecycle.Validate(); err != nil {
			return fmt.Errorf("player %s: %w", p.ID, err)
		}
		var sum float64
		for _, v := range p.Scores() {
			sum += v
		}
		if math.Abs(sum-p.TotalScore) > 1e-9 {
			return fmt.Errorf("player %s: total score %v does not match scores sum %v", p.ID, p.TotalScore, sum)
		}
	}
	return nil
}

func (l *Ledger) indexOf(id shared.PlayerID) int {
	for i, p := range l.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) nextOrder() int {
	order := 0
	for _, p := range l.Players {
		if p.Order >= order {
			order = p.Order + 1
		}
	}
	return order
}

func (l *Ledger) clone() *Ledger {
	out := *l
	out.Players = make([]Player, len(l.Players))
	for i, p := range l.Players {
		out.Players[i] = p.clone()
	}
	return &out
}
