package game

import (
	"fmt"
	"time"

	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

// Phase is the screen a game is on.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhasePlaying Phase = "playing"
	PhaseResults Phase = "results"
)

// Game aggregate owns the single mutable reference to a ledger. Every ledger
// change swaps in the new snapshot.
type Game struct {
	ID        shared.GameID  `json:"id"`
	Phase     Phase          `json:"phase"`
	Ledger    *ledger.Ledger `json:"ledger,omitempty"`
	Analysis  string         `json:"analysis,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewGame creates a game waiting for its players.
func NewGame(id shared.GameID, now time.Time) (*Game, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return &Game{
		ID:        id,
		Phase:     PhaseSetup,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RestoreGame rebuilds a game around a ledger loaded from storage. A finished
// ledger lands on the results screen, anything else resumes play.
func RestoreGame(id shared.GameID, l *ledger.Ledger, updatedAt time.Time) (*Game, error) {
	g, err := NewGame(id, updatedAt)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return g, nil
	}
	g.Ledger = l
	g.Phase = PhasePlaying
	if l.IsFinished {
		g.Phase = PhaseResults
	}
	return g, nil
}

// Start creates the ledger and moves to playing.
func (g *Game) Start(settings ledger.Settings, seeds []ledger.PlayerSeed, now time.Time) error {
	if err := g.expect(PhaseSetup); err != nil {
		return err
	}
	l, err := ledger.New(settings, seeds)
	if err != nil {
		return err
	}
	g.Ledger = l
	g.Phase = PhasePlaying
	g.UpdatedAt = now
	return nil
}

// Apply runs a ledger mutation and keeps its result. On error the current
// ledger is left in place.
func (g *Game) Apply(mutate func(*ledger.Ledger) (*ledger.Ledger, error), now time.Time) error {
	if err := g.expect(PhasePlaying); err != nil {
		return err
	}
	next, err := mutate(g.Ledger)
	if err != nil {
		return err
	}
	g.Ledger = next
	g.UpdatedAt = now
	return nil
}

// Finish closes the ledger and moves to results.
func (g *Game) Finish(now time.Time) error {
	if err := g.Apply((*ledger.Ledger).Finish, now); err != nil {
		return err
	}
	g.Phase = PhaseResults
	return nil
}

// SetAnalysis stores the commentary shown on the results screen.
func (g *Game) SetAnalysis(text string, now time.Time) error {
	if err := g.expect(PhaseResults); err != nil {
		return err
	}
	g.Analysis = text
	g.UpdatedAt = now
	return nil
}

// PlayAgain restarts the same players from round 1.
func (g *Game) PlayAgain(now time.Time) error {
	if err := g.expect(PhaseResults); err != nil {
		return err
	}
	g.Ledger = g.Ledger.PlayAgain()
	g.Analysis = ""
	g.Phase = PhasePlaying
	g.UpdatedAt = now
	return nil
}

// Reset drops the ledger and returns to setup.
func (g *Game) Reset(now time.Time) error {
	if err := g.expect(PhaseResults); err != nil {
		return err
	}
	g.Ledger = nil
	g.Analysis = ""
	g.Phase = PhaseSetup
	g.UpdatedAt = now
	return nil
}

// Clone returns a copy sharing the immutable ledger snapshot.
func (g *Game) Clone() *Game {
	out := *g
	return &out
}

func (g *Game) expect(phase Phase) error {
	if g.Phase != phase {
		return fmt.Errorf("%w: game %s is in %s, need %s", ErrInvalidPhase, g.ID, g.Phase, phase)
	}
	return nil
}
