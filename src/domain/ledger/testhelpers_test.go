package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

func newLedger(t *testing.T, dual bool, ids ...shared.PlayerID) *ledger.Ledger {
	t.Helper()
	seeds := make([]ledger.PlayerSeed, 0, len(ids))
	for _, id := range ids {
		seeds = append(seeds, ledger.PlayerSeed{ID: id, Name: "Player " + string(id)})
	}
	l, err := ledger.New(ledger.Settings{DualScoring: dual, HighScoreWins: true}, seeds)
	require.NoError(t, err)
	return l
}

func scores(kv map[shared.PlayerID]float64) []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(kv))
	for id, v := range kv {
		entries = append(entries, ledger.Entry{PlayerID: id, Score: v})
	}
	return entries
}

func apply(t *testing.T, l *ledger.Ledger, kv map[shared.PlayerID]float64) *ledger.Ledger {
	t.Helper()
	next, err := l.ApplyRound(l.CurrentRound, scores(kv))
	require.NoError(t, err)
	require.NoError(t, next.Validate())
	return next
}

func player(t *testing.T, l *ledger.Ledger, id shared.PlayerID) ledger.Player {
	t.Helper()
	p, ok := l.Player(id)
	require.True(t, ok, "player %s not found", id)
	return p
}

func ptr(v float64) *float64 { return &v }
