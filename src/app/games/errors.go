package games

import (
	"errors"
	"fmt"

	"github.com/bryanwahyu/tally/src/domain/shared"
)

var (
	ErrInvalidName = errors.New("player name must be 1 to 50 characters")
	ErrNameTaken   = fmt.Errorf("player name %w", shared.ErrConflict)
)
