package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"

	"github.com/bryanwahyu/tally/src/app/games"
	leaderboardsvc "github.com/bryanwahyu/tally/src/app/leaderboard"
	"github.com/bryanwahyu/tally/src/domain/game"
	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/shared"
	gameinfra "github.com/bryanwahyu/tally/src/infra/game"
)

// gRPC status codes understood by Nakama.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codeAlreadyExists      = 6
	codeFailedPrecondition = 9
	codeInternal           = 13
)

// InitModule is the entrypoint for the tally Nakama runtime extension.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	zl, err := zap.NewProduction()
	if err != nil {
		return err
	}
	m := newModule(nk, zl)
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		"tally_start_game":    m.rpcStartGame,
		"tally_submit_round":  m.rpcSubmitRound,
		"tally_revise_round":  m.rpcReviseRound,
		"tally_add_player":    m.rpcAddPlayer,
		"tally_set_active":    m.rpcSetActive,
		"tally_go_to_round":   m.rpcGoToRound,
		"tally_set_direction": m.rpcSetDirection,
		"tally_finish":        m.rpcFinish,
		"tally_play_again":    m.rpcPlayAgain,
		"tally_reset":         m.rpcReset,
		"tally_chart":         m.rpcChart,
		"tally_standings":     m.rpcStandings,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	logger.Info("tally runtime module registered")
	return nil
}

type module struct {
	games     *games.Service
	standings *leaderboardsvc.Service
}

func newModule(nk runtime.NakamaModule, logger *zap.Logger) *module {
	repo := gameinfra.NewMemoryRepository()
	return &module{
		games:     games.NewService(repo, &StorageSink{nk: nk}, nil, logger),
		standings: leaderboardsvc.NewService(repo),
	}
}

// StorageSink implements game.SnapshotSink with Nakama storage. Each game
// keeps one system-owned object holding its latest snapshot.
type StorageSink struct {
	nk runtime.NakamaModule
}

const snapshotCollection = "tally_snapshots"

func (s *StorageSink) PersistRound(ctx context.Context, snap game.RoundSnapshot) error {
	value, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      snapshotCollection,
		Key:             string(snap.GameID),
		Value:           string(value),
		PermissionRead:  2,
		PermissionWrite: 0,
	}})
	return err
}

type startGameRequest struct {
	Names         []string `json:"names"`
	DualScoring   bool     `json:"dual_scoring"`
	HighScoreWins bool     `json:"high_score_wins"`
}

type roundRequest struct {
	GameID  string         `json:"game_id"`
	Round   int            `json:"round"`
	Entries []ledger.Entry `json:"entries"`
}

type addPlayerRequest struct {
	GameID string `json:"game_id"`
	Name   string `json:"name"`
}

type setActiveRequest struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
	Active   bool   `json:"active"`
	AtRound  *int   `json:"at_round"`
}

type cursorRequest struct {
	GameID string `json:"game_id"`
	Round  int    `json:"round"`
}

type directionRequest struct {
	GameID        string `json:"game_id"`
	HighScoreWins bool   `json:"high_score_wins"`
}

type gameRequest struct {
	GameID string   `json:"game_id"`
	UpTo   *int     `json:"up_to"`
	Hidden []string `json:"hidden"`
}

func (m *module) rpcStartGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req startGameRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	players := make([]games.PlayerInput, 0, len(req.Names))
	for _, name := range req.Names {
		players = append(players, games.PlayerInput{Name: name})
	}
	res, err := m.games.StartGame(ctx, games.StartGameCommand{Players: players, DualScoring: req.DualScoring, HighScoreWins: req.HighScoreWins})
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res.Game)
}

func (m *module) rpcSubmitRound(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req roundRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	res, err := m.games.SubmitRound(ctx, games.SubmitRoundCommand{GameID: shared.GameID(req.GameID), Round: req.Round, Entries: req.Entries})
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res.Game)
}

func (m *module) rpcReviseRound(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req roundRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	res, err := m.games.ReviseRound(ctx, games.ReviseRoundCommand{GameID: shared.GameID(req.GameID), Round: req.Round, Entries: req.Entries})
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res.Game)
}

func (m *module) rpcAddPlayer(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req addPlayerRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	res, err := m.games.AddPlayer(ctx, games.AddPlayerCommand{GameID: shared.GameID(req.GameID), Name: req.Name})
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res.Game)
}

func (m *module) rpcSetActive(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req setActiveRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	res, err := m.games.SetPlayerActive(ctx, games.SetPlayerActiveCommand{
		GameID:   shared.GameID(req.GameID),
		PlayerID: shared.PlayerID(req.PlayerID),
		Active:   req.Active,
		AtRound:  req.AtRound,
	})
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res.Game)
}

func (m *module) rpcGoToRound(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req cursorRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	res, err := m.games.GoToRound(ctx, games.GoToRoundCommand{GameID: shared.GameID(req.GameID), Round: req.Round})
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res.Game)
}

func (m *module) rpcSetDirection(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req directionRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	res, err := m.games.SetHighScoreWins(ctx, games.SetHighScoreWinsCommand{GameID: shared.GameID(req.GameID), HighScoreWins: req.HighScoreWins})
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res.Game)
}

func (m *module) rpcPlayAgain(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req gameRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	res, err := m.games.PlayAgain(ctx, shared.GameID(req.GameID))
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res.Game)
}

func (m *module) rpcReset(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req gameRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	res, err := m.games.ResetGame(ctx, shared.GameID(req.GameID))
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res.Game)
}

func (m *module) rpcFinish(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req gameRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	res, err := m.games.FinishGame(ctx, shared.GameID(req.GameID))
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(map[string]any{
		"winner":    res.Winner.ID,
		"standings": res.Standings,
		"analysis":  res.Analysis,
	})
}

func (m *module) rpcChart(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req gameRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	hidden := make([]shared.PlayerID, 0, len(req.Hidden))
	for _, id := range req.Hidden {
		hidden = append(hidden, shared.PlayerID(id))
	}
	res, err := m.games.Chart(ctx, games.ChartQuery{GameID: shared.GameID(req.GameID), UpTo: req.UpTo, Hidden: hidden})
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res)
}

func (m *module) rpcStandings(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req gameRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	res, err := m.standings.Standings(ctx, leaderboardsvc.StandingsQuery{GameID: shared.GameID(req.GameID)})
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encode(res)
}

func decode(payload string, v any) error {
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return runtime.NewError("invalid payload: "+err.Error(), codeInvalidArgument)
	}
	return nil
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError(err.Error(), codeInternal)
	}
	return string(data), nil
}

func toRuntimeError(err error) error {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return runtime.NewError(err.Error(), codeNotFound)
	case errors.Is(err, shared.ErrConflict):
		return runtime.NewError(err.Error(), codeAlreadyExists)
	case errors.Is(err, shared.ErrInvalidState):
		return runtime.NewError(err.Error(), codeFailedPrecondition)
	case errors.Is(err, ledger.ErrInvalidRoundSequence),
		errors.Is(err, ledger.ErrOutOfRangeRound),
		errors.Is(err, ledger.ErrDuplicateEntry),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrInconsistentJoinState),
		errors.Is(err, ledger.ErrInvalidStartingScore),
		errors.Is(err, ledger.ErrNoPlayers),
		errors.Is(err, games.ErrInvalidName):
		return runtime.NewError(err.Error(), codeInvalidArgument)
	default:
		return runtime.NewError(err.Error(), codeInternal)
	}
}
