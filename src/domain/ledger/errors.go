package ledger

import (
	"errors"
	"fmt"

	"github.com/bryanwahyu/tally/src/domain/shared"
)

var (
	ErrInvalidRoundSequence  = errors.New("invalid round sequence")
	ErrOutOfRangeRound       = errors.New("round out of range for player")
	ErrInconsistentJoinState = errors.New("inconsistent join state")
	ErrInvalidTransition     = errors.New("invalid lifecycle transition")
	ErrPlayerNotFound        = fmt.Errorf("player %w", shared.ErrNotFound)
	ErrDuplicatePlayer       = fmt.Errorf("player %w", shared.ErrConflict)
	ErrDuplicateEntry        = errors.New("duplicate round entry for player")
	ErrInvalidStartingScore  = errors.New("starting score must be zero before the first round")
	ErrGameFinished          = fmt.Errorf("game already finished: %w", shared.ErrInvalidState)
	ErrNoPlayers             = errors.New("at least one player is required")
	ErrCorruptSnapshot       = errors.New("snapshot does not describe a valid ledger")
)
