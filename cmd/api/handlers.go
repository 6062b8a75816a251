package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/bryanwahyu/tally/src/app/games"
	leaderboardsvc "github.com/bryanwahyu/tally/src/app/leaderboard"
	"github.com/bryanwahyu/tally/src/domain/game"
	"github.com/bryanwahyu/tally/src/domain/leaderboard"
	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type PlayerRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type StartGameRequest struct {
	Players       []PlayerRequest `json:"players"`
	DualScoring   bool            `json:"dual_scoring"`
	HighScoreWins bool            `json:"high_score_wins"`
}

type RoundRequest struct {
	Round   int            `json:"round"`
	Entries []ledger.Entry `json:"entries"`
}

type CursorRequest struct {
	Round int `json:"round"`
}

type AddPlayerRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AddPlayerResponse struct {
	PlayerID string     `json:"player_id"`
	Game     *game.Game `json:"game"`
}

type SetActiveRequest struct {
	Active  bool `json:"active"`
	AtRound *int `json:"at_round"`
}

type DirectionRequest struct {
	HighScoreWins bool `json:"high_score_wins"`
}

type ListGamesResponse struct {
	Games []*game.Game `json:"games"`
}

type FinishResponse struct {
	Game      *game.Game             `json:"game"`
	Winner    string                 `json:"winner"`
	Standings []leaderboard.Standing `json:"standings"`
	Analysis  string                 `json:"analysis"`
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req StartGameRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.cfg.GameService.StartGame(r.Context(), games.StartGameCommand{
		Players:       playerInputs(req.Players),
		DualScoring:   req.DualScoring,
		HighScoreWins: req.HighScoreWins,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result.Game)
}

func (s *Server) handleRestartGame(w http.ResponseWriter, r *http.Request) {
	var req StartGameRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.cfg.GameService.RestartGame(r.Context(), games.RestartGameCommand{
		GameID:        gameID(r),
		Players:       playerInputs(req.Players),
		DualScoring:   req.DualScoring,
		HighScoreWins: req.HighScoreWins,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Game)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	list, err := s.cfg.GameService.ListGames(r.Context(), limit, offset)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []*game.Game{}
	}
	s.writeJSON(w, http.StatusOK, ListGamesResponse{Games: list})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.GameService.GetGame(r.Context(), gameID(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Game)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.GameService.DeleteGame(r.Context(), gameID(r)); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitRound(w http.ResponseWriter, r *http.Request) {
	var req RoundRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.cfg.GameService.SubmitRound(r.Context(), games.SubmitRoundCommand{
		GameID:  gameID(r),
		Round:   req.Round,
		Entries: req.Entries,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Game)
}

func (s *Server) handleReviseRound(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.Atoi(mux.Vars(r)["round"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req RoundRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.cfg.GameService.ReviseRound(r.Context(), games.ReviseRoundCommand{
		GameID:  gameID(r),
		Round:   round,
		Entries: req.Entries,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Game)
}

func (s *Server) handleGoToRound(w http.ResponseWriter, r *http.Request) {
	var req CursorRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.cfg.GameService.GoToRound(r.Context(), games.GoToRoundCommand{
		GameID: gameID(r),
		Round:  req.Round,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Game)
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	var req AddPlayerRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.cfg.GameService.AddPlayer(r.Context(), games.AddPlayerCommand{
		GameID:   gameID(r),
		PlayerID: shared.PlayerID(req.ID),
		Name:     req.Name,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, AddPlayerResponse{
		PlayerID: string(result.PlayerID),
		Game:     result.Game,
	})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.cfg.GameService.SetPlayerActive(r.Context(), games.SetPlayerActiveCommand{
		GameID:   gameID(r),
		PlayerID: shared.PlayerID(mux.Vars(r)["player"]),
		Active:   req.Active,
		AtRound:  req.AtRound,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Game)
}

func (s *Server) handleSetDirection(w http.ResponseWriter, r *http.Request) {
	var req DirectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.cfg.GameService.SetHighScoreWins(r.Context(), games.SetHighScoreWinsCommand{
		GameID:        gameID(r),
		HighScoreWins: req.HighScoreWins,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Game)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	q := games.ChartQuery{GameID: gameID(r)}
	if raw := r.URL.Query().Get("up_to"); raw != "" {
		upTo, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: up_to must be an integer", errBadRequest))
			return
		}
		q.UpTo = &upTo
	}
	if raw := r.URL.Query().Get("hidden"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.Hidden = append(q.Hidden, shared.PlayerID(id))
			}
		}
	}
	result, err := s.cfg.GameService.Chart(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	q := leaderboardsvc.StandingsQuery{GameID: gameID(r)}
	if raw := r.URL.Query().Get("high_score_wins"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: high_score_wins must be a boolean", errBadRequest))
			return
		}
		q.HighScoreWins = &v
	}
	result, err := s.cfg.LeaderboardService.Standings(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.GameService.FinishGame(r.Context(), gameID(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FinishResponse{
		Game:      result.Game,
		Winner:    string(result.Winner.ID),
		Standings: result.Standings,
		Analysis:  result.Analysis,
	})
}

func (s *Server) handlePlayAgain(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.GameService.PlayAgain(r.Context(), gameID(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Game)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.GameService.ResetGame(r.Context(), gameID(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Game)
}

// decode reads a JSON body and writes a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func gameID(r *http.Request) shared.GameID {
	return shared.GameID(mux.Vars(r)["id"])
}

func playerInputs(reqs []PlayerRequest) []games.PlayerInput {
	out := make([]games.PlayerInput, 0, len(reqs))
	for _, p := range reqs {
		out = append(out, games.PlayerInput{ID: shared.PlayerID(p.ID), Name: p.Name})
	}
	return out
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, key)
	}
	return v, nil
}
