package ledger

import "fmt"

// LifecycleState is the activity state of a player within a game.
type LifecycleState string

// StateNeverJoined is the empty string so that a zero Lifecycle can Join.
const (
	StateNeverJoined LifecycleState = ""
	StateActive      LifecycleState = "active"
	StateGaveUp      LifecycleState = "gave_up"
	StateRejoined    LifecycleState = "rejoined"
)

// Lifecycle tracks when a player's current segment started and when the
// player last gave up. The zero value is StateNeverJoined.
//
//	NeverJoined --Join(r)--> Active(r)
//	Active(r) | Rejoined(r, g) --GiveUp(g')--> GaveUp(g')
//	GaveUp(g) --Rejoin(r > g)--> Rejoined(r, g)
type Lifecycle struct {
	State         LifecycleState `json:"state"`
	JoinedAtRound int            `json:"joined_at_round"`
	GaveUpAtRound int            `json:"gave_up_at_round,omitempty"`
}

// IsActive reports whether the player currently takes part in score entry.
func (lc Lifecycle) IsActive() bool {
	return lc.State == StateActive || lc.State == StateRejoined
}

// HasGivenUp reports whether a give-up round is recorded.
func (lc Lifecycle) HasGivenUp() bool {
	return lc.GaveUpAtRound > 0
}

// Join starts the first segment at round.
func (lc Lifecycle) Join(round int) (Lifecycle, error) {
	if lc.State != StateNeverJoined {
		return lc, fmt.Errorf("%w: join from %q", ErrInvalidTransition, lc.State)
	}
	if round < 1 {
		return lc, fmt.Errorf("%w: join at round %d", ErrInvalidRoundSequence, round)
	}
	return Lifecycle{State: StateActive, JoinedAtRound: round}, nil
}

// GiveUp marks the player inactive from round on.
func (lc Lifecycle) GiveUp(round int) (Lifecycle, error) {
	if !lc.IsActive() {
		return lc, fmt.Errorf("%w: give up from %s", ErrInvalidTransition, lc.State)
	}
	if round < lc.JoinedAtRound {
		return lc, fmt.Errorf("%w: give up at round %d before join round %d", ErrInconsistentJoinState, round, lc.JoinedAtRound)
	}
	return Lifecycle{State: StateGaveUp, JoinedAtRound: lc.JoinedAtRound, GaveUpAtRound: round}, nil
}

// Rejoin starts a new segment at round. The give-up round is kept so the gap
// stays visible.
func (lc Lifecycle) Rejoin(round int) (Lifecycle, error) {
	if lc.State != StateGaveUp {
		return lc, fmt.Errorf("%w: rejoin from %s", ErrInvalidTransition, lc.State)
	}
	if round <= lc.GaveUpAtRound {
		return lc, fmt.Errorf("%w: rejoin at round %d not after give up round %d", ErrInconsistentJoinState, round, lc.GaveUpAtRound)
	}
	return Lifecycle{State: StateRejoined, JoinedAtRound: round, GaveUpAtRound: lc.GaveUpAtRound}, nil
}

// Validate checks that the round markers agree with the state.
func (lc Lifecycle) Validate() error {
	ok := false
	switch lc.State {
	case StateNeverJoined:
		ok = lc.JoinedAtRound == 0 && lc.GaveUpAtRound == 0
	case StateActive:
		ok = lc.JoinedAtRound >= 1 && lc.GaveUpAtRound == 0
	case StateGaveUp:
		ok = lc.JoinedAtRound >= 1 && lc.GaveUpAtRound >= lc.JoinedAtRound
	case StateRejoined:
		ok = lc.GaveUpAtRound >= 1 && lc.GaveUpAtRound < lc.JoinedAtRound
	}
	if !ok {
		return fmt.Errorf("%w: state=%s joined=%d gave_up=%d", ErrInconsistentJoinState, lc.State, lc.JoinedAtRound, lc.GaveUpAtRound)
	}
	return nil
}

// LifecycleFromFlags rebuilds a lifecycle from the flat flags stored by
// persistence. gaveUpAtRound of 0 means unset.
func LifecycleFromFlags(isActive bool, joinedAtRound, gaveUpAtRound int) (Lifecycle, error) {
	var lc Lifecycle
	switch {
	case joinedAtRound == 0 && gaveUpAtRound == 0 && !isActive:
		lc = Lifecycle{State: StateNeverJoined}
	case isActive && gaveUpAtRound == 0:
		lc = Lifecycle{State: StateActive, JoinedAtRound: joinedAtRound}
	case isActive:
		lc = Lifecycle{State: StateRejoined, JoinedAtRound: joinedAtRound, GaveUpAtRound: gaveUpAtRound}
	default:
		lc = Lifecycle{State: StateGaveUp, JoinedAtRound: joinedAtRound, GaveUpAtRound: gaveUpAtRound}
	}
	if err := lc.Validate(); err != nil {
		return Lifecycle{}, err
	}
	return lc, nil
}
