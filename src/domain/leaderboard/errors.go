package leaderboard

import "errors"

var ErrEmptyPlayerSet = errors.New("no players to rank")
