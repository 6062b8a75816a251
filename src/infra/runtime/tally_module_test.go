package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryanwahyu/tally/src/domain/game"
)

type fakeNakama struct {
	runtime.NakamaModule
	writes     []*runtime.StorageWrite
	storageErr error
}

func (f *fakeNakama) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	if f.storageErr != nil {
		return nil, f.storageErr
	}
	f.writes = append(f.writes, writes...)
	return []*api.StorageObjectAck{}, nil
}

type fakeInitializer struct {
	runtime.Initializer
	rpcs []string
}

func (f *fakeInitializer) RegisterRpc(id string, fn func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)) error {
	f.rpcs = append(f.rpcs, id)
	return nil
}

type fakeLogger struct {
	runtime.Logger
}

func (fakeLogger) Info(format string, v ...interface{}) {}

func startGame(t *testing.T, m *module, nk runtime.NakamaModule, names ...string) string {
	t.Helper()
	payload, err := json.Marshal(startGameRequest{Names: names, HighScoreWins: true})
	require.NoError(t, err)
	out, err := m.rpcStartGame(context.Background(), nil, nil, nk, string(payload))
	require.NoError(t, err)
	var g game.Game
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	return string(g.ID)
}

func TestInitModule_RegistersRPCs(t *testing.T) {
	reg := &fakeInitializer{}
	require.NoError(t, InitModule(context.Background(), fakeLogger{}, nil, &fakeNakama{}, reg))
	assert.ElementsMatch(t, []string{
		"tally_start_game", "tally_submit_round", "tally_revise_round", "tally_add_player",
		"tally_set_active", "tally_go_to_round", "tally_set_direction", "tally_finish",
		"tally_play_again", "tally_reset", "tally_chart", "tally_standings",
	}, reg.rpcs)
}

func TestModule_NavigationAndRestart(t *testing.T) {
	nk := &fakeNakama{}
	m := newModule(nk, zap.NewNop())
	ctx := context.Background()
	id := startGame(t, m, nk, "Ana", "Ben")
	call := func(fn func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error), payload string) game.Game {
		t.Helper()
		out, err := fn(ctx, nil, nil, nk, payload)
		require.NoError(t, err)
		var g game.Game
		require.NoError(t, json.Unmarshal([]byte(out), &g))
		return g
	}

	call(m.rpcSubmitRound, `{"game_id":"`+id+`","round":1}`)
	g := call(m.rpcSubmitRound, `{"game_id":"`+id+`","round":2}`)
	require.Equal(t, 3, g.Ledger.CurrentRound)

	g = call(m.rpcGoToRound, `{"game_id":"`+id+`","round":1}`)
	assert.Equal(t, 1, g.Ledger.CurrentRound)
	ben := g.Ledger.Players[1].ID
	g = call(m.rpcSubmitRound, `{"game_id":"`+id+`","round":1,"entries":[{"player_id":"`+string(ben)+`","score":4}]}`)
	assert.Equal(t, 2, g.Ledger.CurrentRound)
	assert.Equal(t, 2, g.Ledger.PlayedRounds)
	assert.Equal(t, 4.0, g.Ledger.Players[1].TotalScore)

	g = call(m.rpcSetDirection, `{"game_id":"`+id+`","high_score_wins":false}`)
	assert.False(t, g.Ledger.HighScoreWins)

	_, err := m.rpcGoToRound(ctx, nil, nil, nk, `{"game_id":"`+id+`","round":9}`)
	var rerr *runtime.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, codeInvalidArgument, rerr.Code)

	_, err = m.rpcPlayAgain(ctx, nil, nil, nk, `{"game_id":"`+id+`"}`)
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, codeFailedPrecondition, rerr.Code)

	_, err = m.rpcFinish(ctx, nil, nil, nk, `{"game_id":"`+id+`"}`)
	require.NoError(t, err)
	g = call(m.rpcPlayAgain, `{"game_id":"`+id+`"}`)
	assert.Equal(t, game.PhasePlaying, g.Phase)
	assert.Equal(t, 1, g.Ledger.CurrentRound)
	assert.Len(t, g.Ledger.Players, 2)

	_, err = m.rpcFinish(ctx, nil, nil, nk, `{"game_id":"`+id+`"}`)
	require.NoError(t, err)
	g = call(m.rpcReset, `{"game_id":"`+id+`"}`)
	assert.Equal(t, game.PhaseSetup, g.Phase)
	assert.Nil(t, g.Ledger)
}

func TestModule_RoundTrip(t *testing.T) {
	nk := &fakeNakama{}
	m := newModule(nk, zap.NewNop())
	ctx := context.Background()

	out, err := m.rpcStartGame(ctx, nil, nil, nk, `{"names":["Ana","Ben"],"high_score_wins":true}`)
	require.NoError(t, err)
	var g game.Game
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	require.Len(t, g.Ledger.Players, 2)
	ana, ben := g.Ledger.Players[0].ID, g.Ledger.Players[1].ID

	payload, err := json.Marshal(roundRequest{GameID: string(g.ID), Round: 1, Entries: nil})
	require.NoError(t, err)
	_, err = m.rpcSubmitRound(ctx, nil, nil, nk, string(payload))
	require.NoError(t, err)

	require.Len(t, nk.writes, 1)
	assert.Equal(t, snapshotCollection, nk.writes[0].Collection)
	assert.Equal(t, string(g.ID), nk.writes[0].Key)
	var snap game.RoundSnapshot
	require.NoError(t, json.Unmarshal([]byte(nk.writes[0].Value), &snap))
	assert.Equal(t, 1, snap.Round)

	revise := `{"game_id":"` + string(g.ID) + `","round":1,"entries":[{"player_id":"` + string(ben) + `","score":7}]}`
	_, err = m.rpcReviseRound(ctx, nil, nil, nk, revise)
	require.NoError(t, err)

	out, err = m.rpcStandings(ctx, nil, nil, nk, `{"game_id":"`+string(g.ID)+`"}`)
	require.NoError(t, err)
	assert.Contains(t, out, string(ben))

	out, err = m.rpcChart(ctx, nil, nil, nk, `{"game_id":"`+string(g.ID)+`","hidden":["`+string(ana)+`"]}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"`+string(ana)+`":null`)

	out, err = m.rpcFinish(ctx, nil, nil, nk, `{"game_id":"`+string(g.ID)+`"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"winner":"`+string(ben)+`"`)
}

func TestModule_Errors(t *testing.T) {
	nk := &fakeNakama{}
	m := newModule(nk, zap.NewNop())
	ctx := context.Background()
	id := startGame(t, m, nk, "Ana", "Ben")

	tests := []struct {
		name     string
		call     func() (string, error)
		wantCode int
	}{
		{name: "bad json", call: func() (string, error) { return m.rpcStartGame(ctx, nil, nil, nk, `{`) }, wantCode: codeInvalidArgument},
		{name: "no players", call: func() (string, error) { return m.rpcStartGame(ctx, nil, nil, nk, `{"names":[]}`) }, wantCode: codeInvalidArgument},
		{name: "unknown game", call: func() (string, error) { return m.rpcFinish(ctx, nil, nil, nk, `{"game_id":"nope"}`) }, wantCode: codeNotFound},
		{name: "duplicate name", call: func() (string, error) {
			return m.rpcAddPlayer(ctx, nil, nil, nk, `{"game_id":"`+id+`","name":"ana"}`)
		}, wantCode: codeAlreadyExists},
		{name: "unknown player", call: func() (string, error) {
			return m.rpcSetActive(ctx, nil, nil, nk, `{"game_id":"`+id+`","player_id":"nobody","active":false}`)
		}, wantCode: codeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.call()
			var rerr *runtime.Error
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.wantCode, rerr.Code)
		})
	}
}

func TestStorageSink_FailureDoesNotFailRound(t *testing.T) {
	nk := &fakeNakama{storageErr: errors.New("storage unavailable")}
	m := newModule(nk, zap.NewNop())
	ctx := context.Background()

	out, err := m.rpcStartGame(ctx, nil, nil, nk, `{"names":["Ana"]}`)
	require.NoError(t, err)
	var g game.Game
	require.NoError(t, json.Unmarshal([]byte(out), &g))

	out, err = m.rpcSubmitRound(ctx, nil, nil, nk, `{"game_id":"`+string(g.ID)+`","round":1}`)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Equal(t, 2, g.Ledger.CurrentRound)
	assert.Empty(t, nk.writes)
}
