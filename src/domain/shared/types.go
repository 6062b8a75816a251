package shared

import (
	"errors"
	"strings"
)

// ID types keep domain entities distinct while remaining simple strings at runtime.
type (
	PlayerID string
	GameID   string
)

// Validate ensures IDs are not blank and normalized.
func (id PlayerID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return errors.New("player id is required")
	}
	return nil
}

func (id GameID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return errors.New("game id is required")
	}
	return nil
}
