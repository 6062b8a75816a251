package games

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/bryanwahyu/tally/src/domain/analysis"
	"github.com/bryanwahyu/tally/src/domain/game"
	"github.com/bryanwahyu/tally/src/domain/leaderboard"
	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/series"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

// Service sequences ledger operations across the setup, playing and results
// phases. It is the only writer of a game's ledger; collaborators (snapshot
// sink, analysis generator) are called after a mutation has been stored.
type Service struct {
	Repo      game.Repository
	Sink      game.SnapshotSink
	Generator analysis.Generator
	Logger    *zap.Logger
	Clock     func() time.Time
	NewID     func() string

	mu    sync.Mutex
	stats stats
}

type stats struct {
	gamesStarted      atomic.Int64
	roundsCompleted   atomic.Int64
	sinkFailures      atomic.Int64
	analysisFallbacks atomic.Int64
}

// Stats is a point-in-time copy of the service counters.
type Stats struct {
	GamesStarted      int64
	RoundsCompleted   int64
	SinkFailures      int64
	AnalysisFallbacks int64
}

// NewService creates a game service. A nil generator always yields the
// fallback analysis.
func NewService(repo game.Repository, sink game.SnapshotSink, generator analysis.Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Repo:      repo,
		Sink:      sink,
		Generator: generator,
		Logger:    logger,
		Clock:     func() time.Time { return time.Now().UTC() },
		NewID:     func() string { return uuid.Must(uuid.NewV4()).String() },
	}
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	return Stats{
		GamesStarted:      s.stats.gamesStarted.Load(),
		RoundsCompleted:   s.stats.roundsCompleted.Load(),
		SinkFailures:      s.stats.sinkFailures.Load(),
		AnalysisFallbacks: s.stats.analysisFallbacks.Load(),
	}
}

// GameResult carries the stored game after an operation.
type GameResult struct {
	Game *game.Game
}

// PlayerInput names a player at setup. An empty ID is generated.
type PlayerInput struct {
	ID   shared.PlayerID
	Name string
}

// StartGameCommand contains the setup screen choices.
type StartGameCommand struct {
	Players       []PlayerInput
	DualScoring   bool
	HighScoreWins bool
}

// StartGame creates a game and moves it straight to playing.
func (s *Service) StartGame(ctx context.Context, cmd StartGameCommand) (GameResult, error) {
	seeds, err := s.seeds(cmd.Players)
	if err != nil {
		return GameResult{}, err
	}
	now := s.Clock()
	g, err := game.NewGame(shared.GameID(s.NewID()), now)
	if err != nil {
		return GameResult{}, err
	}
	settings := ledger.Settings{DualScoring: cmd.DualScoring, HighScoreWins: cmd.HighScoreWins}
	if err := g.Start(settings, seeds, now); err != nil {
		return GameResult{}, err
	}

	s.mu.Lock()
	err = s.Repo.Create(ctx, g)
	s.mu.Unlock()
	if err != nil {
		return GameResult{}, err
	}

	s.stats.gamesStarted.Inc()
	s.Logger.Info("game started",
		zap.String("game_id", string(g.ID)),
		zap.Int("players", len(seeds)),
		zap.Bool("dual_scoring", cmd.DualScoring),
	)
	return GameResult{Game: g}, nil
}

// RestoreGames loads every stored game from src into the repository and
// returns how many were restored. A snapshot that does not rebuild into a
// valid ledger is logged and skipped.
func (s *Service) RestoreGames(ctx context.Context, src game.SnapshotSource) (int, error) {
	snaps, err := src.LoadSnapshots(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading snapshots: %w", err)
	}
	restored := 0
	for _, snap := range snaps {
		l, err := ledger.Restore(snap.Snapshot)
		if err != nil {
			s.Logger.Warn("stored game skipped", zap.String("game_id", string(snap.GameID)), zap.Error(err))
			continue
		}
		g, err := game.RestoreGame(snap.GameID, l, snap.RecordedAt)
		if err != nil {
			s.Logger.Warn("stored game skipped", zap.String("game_id", string(snap.GameID)), zap.Error(err))
			continue
		}
		s.mu.Lock()
		err = s.Repo.Create(ctx, g)
		s.mu.Unlock()
		if err != nil {
			return restored, err
		}
		restored++
	}
	s.Logger.Info("games restored", zap.Int("restored", restored), zap.Int("stored", len(snaps)))
	return restored, nil
}

// RestartGameCommand starts a new ledger for a game that is back in setup.
type RestartGameCommand struct {
	GameID        shared.GameID
	Players       []PlayerInput
	DualScoring   bool
	HighScoreWins bool
}

// RestartGame configures a game returned to setup by ResetGame.
func (s *Service) RestartGame(ctx context.Context, cmd RestartGameCommand) (GameResult, error) {
	seeds, err := s.seeds(cmd.Players)
	if err != nil {
		return GameResult{}, err
	}
	settings := ledger.Settings{DualScoring: cmd.DualScoring, HighScoreWins: cmd.HighScoreWins}
	g, err := s.mutate(ctx, cmd.GameID, func(g *game.Game, now time.Time) error {
		return g.Start(settings, seeds, now)
	})
	if err != nil {
		return GameResult{}, err
	}
	s.stats.gamesStarted.Inc()
	return GameResult{Game: g}, nil
}

// GetGame loads a game.
func (s *Service) GetGame(ctx context.Context, id shared.GameID) (GameResult, error) {
	g, err := s.Repo.Get(ctx, id)
	if err != nil {
		return GameResult{}, err
	}
	return GameResult{Game: g}, nil
}

// ListGames pages through stored games.
func (s *Service) ListGames(ctx context.Context, limit, offset int) ([]*game.Game, error) {
	return s.Repo.List(ctx, limit, offset)
}

// DeleteGame removes a game.
func (s *Service) DeleteGame(ctx context.Context, id shared.GameID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Repo.Delete(ctx, id)
}

// SubmitRoundCommand enters the scores of the current round.
type SubmitRoundCommand struct {
	GameID  shared.GameID
	Round   int
	Entries []ledger.Entry
}

// SubmitRound applies the round, stores the game and emits a snapshot.
func (s *Service) SubmitRound(ctx context.Context, cmd SubmitRoundCommand) (GameResult, error) {
	g, err := s.mutate(ctx, cmd.GameID, func(g *game.Game, now time.Time) error {
		return g.Apply(func(l *ledger.Ledger) (*ledger.Ledger, error) {
			return l.ApplyRound(cmd.Round, cmd.Entries)
		}, now)
	})
	if err != nil {
		return GameResult{}, err
	}
	s.stats.roundsCompleted.Inc()
	s.persist(ctx, g, cmd.Round)
	return GameResult{Game: g}, nil
}

// ReviseRoundCommand corrects a completed round.
type ReviseRoundCommand struct {
	GameID  shared.GameID
	Round   int
	Entries []ledger.Entry
}

// ReviseRound overwrites existing slots of a completed round.
func (s *Service) ReviseRound(ctx context.Context, cmd ReviseRoundCommand) (GameResult, error) {
	g, err := s.mutate(ctx, cmd.GameID, func(g *game.Game, now time.Time) error {
		return g.Apply(func(l *ledger.Ledger) (*ledger.Ledger, error) {
			return l.ReviseRound(cmd.Round, cmd.Entries)
		}, now)
	})
	if err != nil {
		return GameResult{}, err
	}
	s.persist(ctx, g, cmd.Round)
	return GameResult{Game: g}, nil
}

// GoToRoundCommand moves the round cursor.
type GoToRoundCommand struct {
	GameID shared.GameID
	Round  int
}

// GoToRound navigates to a completed round or the next unplayed one.
func (s *Service) GoToRound(ctx context.Context, cmd GoToRoundCommand) (GameResult, error) {
	g, err := s.mutate(ctx, cmd.GameID, func(g *game.Game, now time.Time) error {
		return g.Apply(func(l *ledger.Ledger) (*ledger.Ledger, error) {
			return l.GoToRound(cmd.Round)
		}, now)
	})
	if err != nil {
		return GameResult{}, err
	}
	return GameResult{Game: g}, nil
}

// AddPlayerCommand adds a mid-game player.
type AddPlayerCommand struct {
	GameID   shared.GameID
	PlayerID shared.PlayerID
	Name     string
}

// AddPlayerResult carries the game and the new player's ID.
type AddPlayerResult struct {
	Game     *game.Game
	PlayerID shared.PlayerID
}

// AddPlayer joins a player at the current round with the fairness start.
func (s *Service) AddPlayer(ctx context.Context, cmd AddPlayerCommand) (AddPlayerResult, error) {
	name, err := SanitizeName(cmd.Name)
	if err != nil {
		return AddPlayerResult{}, err
	}
	id := cmd.PlayerID
	if id == "" {
		id = shared.PlayerID(s.NewID())
	}
	g, err := s.mutate(ctx, cmd.GameID, func(g *game.Game, now time.Time) error {
		if g.Ledger != nil && nameTaken(g.Ledger.Players, name) {
			return fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
		return g.Apply(func(l *ledger.Ledger) (*ledger.Ledger, error) {
			return l.AddPlayer(id, name)
		}, now)
	})
	if err != nil {
		return AddPlayerResult{}, err
	}
	p, _ := g.Ledger.Player(id)
	s.Logger.Info("player added",
		zap.String("game_id", string(g.ID)),
		zap.String("player_id", string(id)),
		zap.Int("round", p.JoinedAtRound),
		zap.Float64("starting_score", p.TotalScore),
	)
	return AddPlayerResult{Game: g, PlayerID: id}, nil
}

// SetPlayerActiveCommand gives a player up or lets them rejoin. A nil
// AtRound means the current round for a give-up and the next unplayed round
// for a rejoin.
type SetPlayerActiveCommand struct {
	GameID   shared.GameID
	PlayerID shared.PlayerID
	Active   bool
	AtRound  *int
}

// SetPlayerActive toggles a player's participation.
func (s *Service) SetPlayerActive(ctx context.Context, cmd SetPlayerActiveCommand) (GameResult, error) {
	g, err := s.mutate(ctx, cmd.GameID, func(g *game.Game, now time.Time) error {
		return g.Apply(func(l *ledger.Ledger) (*ledger.Ledger, error) {
			round := l.CurrentRound
			if cmd.Active {
				round = l.FrontierRound()
			}
			if cmd.AtRound != nil {
				round = *cmd.AtRound
			}
			return l.SetActive(cmd.PlayerID, cmd.Active, round)
		}, now)
	})
	if err != nil {
		return GameResult{}, err
	}
	return GameResult{Game: g}, nil
}

// SetHighScoreWinsCommand changes the win direction.
type SetHighScoreWinsCommand struct {
	GameID        shared.GameID
	HighScoreWins bool
}

// SetHighScoreWins flips the ranking direction without touching history.
func (s *Service) SetHighScoreWins(ctx context.Context, cmd SetHighScoreWinsCommand) (GameResult, error) {
	g, err := s.mutate(ctx, cmd.GameID, func(g *game.Game, now time.Time) error {
		return g.Apply(func(l *ledger.Ledger) (*ledger.Ledger, error) {
			return l.WithHighScoreWins(cmd.HighScoreWins), nil
		}, now)
	})
	if err != nil {
		return GameResult{}, err
	}
	return GameResult{Game: g}, nil
}

// FinishResult is the results screen.
type FinishResult struct {
	Game      *game.Game
	Standings []leaderboard.Standing
	Winner    ledger.Player
	Analysis  string
}

// FinishGame ends the game, ranks the players and attaches the analysis. A
// failing generator is replaced by analysis.FallbackText.
func (s *Service) FinishGame(ctx context.Context, id shared.GameID) (FinishResult, error) {
	g, err := s.mutate(ctx, id, func(g *game.Game, now time.Time) error {
		return g.Finish(now)
	})
	if err != nil {
		return FinishResult{}, err
	}
	s.persist(ctx, g, g.Ledger.PlayedRounds)

	winner, err := leaderboard.Winner(g.Ledger.Players, g.Ledger.HighScoreWins)
	if err != nil {
		return FinishResult{}, err
	}
	standings := leaderboard.Standings(g.Ledger.Players, g.Ledger.HighScoreWins)
	text := s.generate(ctx, g)

	stored, err := s.mutate(ctx, id, func(g *game.Game, now time.Time) error {
		return g.SetAnalysis(text, now)
	})
	if err != nil {
		s.Logger.Warn("analysis not stored", zap.String("game_id", string(id)), zap.Error(err))
	} else {
		g = stored
	}

	return FinishResult{
		Game:      g,
		Standings: standings,
		Winner:    winner,
		Analysis:  text,
	}, nil
}

// PlayAgain restarts a finished game with the same players.
func (s *Service) PlayAgain(ctx context.Context, id shared.GameID) (GameResult, error) {
	g, err := s.mutate(ctx, id, func(g *game.Game, now time.Time) error {
		return g.PlayAgain(now)
	})
	if err != nil {
		return GameResult{}, err
	}
	s.stats.gamesStarted.Inc()
	return GameResult{Game: g}, nil
}

// ResetGame sends a finished game back to setup.
func (s *Service) ResetGame(ctx context.Context, id shared.GameID) (GameResult, error) {
	g, err := s.mutate(ctx, id, func(g *game.Game, now time.Time) error {
		return g.Reset(now)
	})
	if err != nil {
		return GameResult{}, err
	}
	return GameResult{Game: g}, nil
}

// ChartQuery selects the chart data. A nil UpTo means the current round.
type ChartQuery struct {
	GameID shared.GameID
	UpTo   *int
	Hidden []shared.PlayerID
}

// ChartLine describes one player's line.
type ChartLine struct {
	PlayerID shared.PlayerID `json:"player_id"`
	Name     string          `json:"name"`
	Color    string          `json:"color"`
	Hidden   bool            `json:"hidden"`
}

// ChartResult is the series plus the legend.
type ChartResult struct {
	Series series.Series `json:"series"`
	Lines  []ChartLine   `json:"lines"`
}

// Chart projects the ledger for rendering.
func (s *Service) Chart(ctx context.Context, q ChartQuery) (ChartResult, error) {
	g, err := s.Repo.Get(ctx, q.GameID)
	if err != nil {
		return ChartResult{}, err
	}
	if g.Ledger == nil {
		return ChartResult{}, fmt.Errorf("%w: game %s has no ledger", game.ErrInvalidPhase, g.ID)
	}
	l := g.Ledger
	upTo := l.CurrentRound
	if l.IsFinished {
		upTo = l.PlayedRounds
	}
	if q.UpTo != nil {
		upTo = *q.UpTo
	}

	hidden := make(map[shared.PlayerID]bool, len(q.Hidden))
	for _, id := range q.Hidden {
		hidden[id] = true
	}
	lines := make([]ChartLine, 0, len(l.Players))
	for _, p := range l.Players {
		lines = append(lines, ChartLine{
			PlayerID: p.ID,
			Name:     p.Name,
			Color:    series.ColorFor(p.Order),
			Hidden:   hidden[p.ID],
		})
	}
	return ChartResult{
		Series: series.Project(l, upTo, series.WithHidden(q.Hidden...)),
		Lines:  lines,
	}, nil
}

func (s *Service) mutate(ctx context.Context, id shared.GameID, fn func(*game.Game, time.Time) error) (*game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(g, s.Clock()); err != nil {
		return nil, err
	}
	if err := s.Repo.Save(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) persist(ctx context.Context, g *game.Game, round int) {
	if s.Sink == nil {
		return
	}
	snap := game.RoundSnapshot{
		GameID:     g.ID,
		Round:      round,
		Snapshot:   g.Ledger.Snapshot(),
		RecordedAt: s.Clock(),
	}
	if err := s.Sink.PersistRound(ctx, snap); err != nil {
		s.stats.sinkFailures.Inc()
		s.Logger.Warn("snapshot not persisted",
			zap.String("game_id", string(g.ID)),
			zap.Int("round", round),
			zap.Error(err),
		)
	}
}

func (s *Service) generate(ctx context.Context, g *game.Game) string {
	if s.Generator == nil {
		s.stats.analysisFallbacks.Inc()
		return analysis.FallbackText
	}
	text, err := s.Generator.Generate(ctx, analysis.BuildRequest(g.Ledger))
	if err != nil {
		s.stats.analysisFallbacks.Inc()
		s.Logger.Warn("analysis generation failed",
			zap.String("game_id", string(g.ID)),
			zap.Error(err),
		)
		return analysis.FallbackText
	}
	return text
}

func (s *Service) seeds(players []PlayerInput) ([]ledger.PlayerSeed, error) {
	seeds := make([]ledger.PlayerSeed, 0, len(players))
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		name, err := SanitizeName(p.Name)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
		seen[key] = true
		id := p.ID
		if id == "" {
			id = shared.PlayerID(s.NewID())
		}
		seeds = append(seeds, ledger.PlayerSeed{ID: id, Name: name})
	}
	return seeds, nil
}

func nameTaken(players []ledger.Player, name string) bool {
	for _, p := range players {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}
