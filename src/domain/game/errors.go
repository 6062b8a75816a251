package game

import (
	"fmt"

	"github.com/bryanwahyu/tally/src/domain/shared"
)

var (
	ErrGameNotFound      = fmt.Errorf("game %w", shared.ErrNotFound)
	ErrGameAlreadyExists = fmt.Errorf("game %w", shared.ErrConflict)
	ErrInvalidPhase      = fmt.Errorf("operation not allowed in current phase: %w", shared.ErrInvalidState)
)
