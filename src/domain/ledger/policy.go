package ledger

// The predicates below are total over well-formed players and panic on a
// malformed lifecycle.

// IsEligibleForRound reports whether the player takes part in round: the
// current segment must have started and the player must either be active or
// the round must predate the give-up.
func IsEligibleForRound(p Player, round int) bool {
	mustBeWellFormed(p)
	if p.JoinedAtRound > round {
		return false
	}
	if p.IsActive() {
		return true
	}
	return p.HasGivenUp() && round < p.GaveUpAtRound
}

// JustJoined reports whether currentRound is the first scoring opportunity
// of a player who has never given up.
func JustJoined(p Player, currentRound int) bool {
	mustBeWellFormed(p)
	return p.State == StateActive &&
		p.JoinedAtRound == currentRound &&
		p.segmentEntries() == 0
}

// JustRejoined reports whether the player re-enters play at currentRound.
func JustRejoined(p Player, currentRound int) bool {
	mustBeWellFormed(p)
	return p.IsActive() &&
		p.HasGivenUp() &&
		p.GaveUpAtRound < p.JoinedAtRound &&
		p.JoinedAtRound == currentRound
}

func mustBeWellFormed(p Player) {
	if err := p.Lifecycle.Validate(); err != nil {
		panic(err)
	}
}
