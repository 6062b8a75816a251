package game

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bryanwahyu/tally/src/domain/game"
	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const maxPersistAttempts = 3

// PostgresSink implements game.SnapshotSink on PostgreSQL. Each snapshot
// replaces the stored state of its game in one transaction.
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresSink connects to dsn and verifies the connection.
func NewPostgresSink(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	logger.Info("connected to postgres")
	return &PostgresSink{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}

// Migrate applies the embedded schema files in name order. Every file is
// idempotent.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}

	for _, entry := range entries {
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", entry.Name(), err)
		}
		s.logger.Info("applied migration", zap.String("name", entry.Name()))
	}
	return nil
}

// PersistRound stores the snapshot, retrying serialization failures and
// deadlocks.
func (s *PostgresSink) PersistRound(ctx context.Context, snap game.RoundSnapshot) error {
	var err error
	for attempt := 1; attempt <= maxPersistAttempts; attempt++ {
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			return writeSnapshot(ctx, tx, snap)
		})
		if err == nil || !isRetryable(err) {
			break
		}
		s.logger.Debug("retrying snapshot write",
			zap.String("game_id", string(snap.GameID)),
			zap.Int("round", snap.Round),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	if err != nil {
		return fmt.Errorf("persisting game %s round %d: %w", snap.GameID, snap.Round, err)
	}
	return nil
}

func writeSnapshot(ctx context.Context, tx pgx.Tx, snap game.RoundSnapshot) error {
	st := snap.Snapshot
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO games (id, current_round, played_rounds, is_dual_scoring, high_score_wins, is_finished, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			current_round = EXCLUDED.current_round,
			played_rounds = EXCLUDED.played_rounds,
			is_dual_scoring = EXCLUDED.is_dual_scoring,
			high_score_wins = EXCLUDED.high_score_wins,
			is_finished = EXCLUDED.is_finished,
			updated_at = EXCLUDED.updated_at`,
		string(snap.GameID), st.CurrentRound, st.PlayedRounds, st.IsDualScoring, st.HighScoreWins, st.IsFinished, snap.RecordedAt,
	)
	batch.Queue(`DELETE FROM game_rounds WHERE game_id = $1`, string(snap.GameID))
	for _, p := range st.Players {
		batch.Queue(`
			INSERT INTO game_players (game_id, player_id, name, player_order, total_score, first_joined_at_round, joined_at_round, gave_up_at_round, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (game_id, player_id) DO UPDATE SET
				name = EXCLUDED.name,
				player_order = EXCLUDED.player_order,
				total_score = EXCLUDED.total_score,
				first_joined_at_round = EXCLUDED.first_joined_at_round,
				joined_at_round = EXCLUDED.joined_at_round,
				gave_up_at_round = EXCLUDED.gave_up_at_round,
				is_active = EXCLUDED.is_active`,
			string(snap.GameID), string(p.PlayerID), p.Name, p.Order, p.TotalScore, p.FirstJoinedAtRound, p.JoinedAtRound, p.GaveUpAtRound, p.IsActive,
		)
	}
	for _, r := range st.Rounds {
		batch.Queue(`
			INSERT INTO game_rounds (game_id, player_id, round_number, score, prediction, cumulative_score)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			string(snap.GameID), string(r.PlayerID), r.RoundNumber, r.Score, r.Prediction, r.CumulativeScore,
		)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// LoadSnapshots reads the stored state of every game, ordered by game ID.
func (s *PostgresSink) LoadSnapshots(ctx context.Context) ([]game.RoundSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, current_round, played_rounds, is_dual_scoring, high_score_wins, is_finished, updated_at
		FROM games ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.RoundSnapshot, error) {
		var (
			snap game.RoundSnapshot
			id   string
		)
		st := &snap.Snapshot
		err := row.Scan(&id, &st.CurrentRound, &st.PlayedRounds, &st.IsDualScoring, &st.HighScoreWins, &st.IsFinished, &snap.RecordedAt)
		snap.GameID = shared.GameID(id)
		snap.Round = st.PlayedRounds
		return snap, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning games: %w", err)
	}
	index := make(map[shared.GameID]int, len(snaps))
	for i := range snaps {
		index[snaps[i].GameID] = i
	}

	rows, err = s.pool.Query(ctx, `
		SELECT game_id, player_id, name, player_order, total_score, first_joined_at_round, joined_at_round, gave_up_at_round, is_active
		FROM game_players ORDER BY game_id, player_order`)
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}
	var (
		gameID, playerID string
		p                ledger.PlayerRecord
	)
	_, err = pgx.ForEachRow(rows, []any{&gameID, &playerID, &p.Name, &p.Order, &p.TotalScore, &p.FirstJoinedAtRound, &p.JoinedAtRound, &p.GaveUpAtRound, &p.IsActive}, func() error {
		i, ok := index[shared.GameID(gameID)]
		if !ok {
			return nil
		}
		rec := p
		rec.PlayerID = shared.PlayerID(playerID)
		if p.GaveUpAtRound != nil {
			g := *p.GaveUpAtRound
			rec.GaveUpAtRound = &g
		}
		snaps[i].Snapshot.Players = append(snaps[i].Snapshot.Players, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning players: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT game_id, player_id, round_number, score, prediction, cumulative_score
		FROM game_rounds ORDER BY game_id, player_id, round_number`)
	if err != nil {
		return nil, fmt.Errorf("querying rounds: %w", err)
	}
	var r ledger.RoundRecord
	_, err = pgx.ForEachRow(rows, []any{&gameID, &playerID, &r.RoundNumber, &r.Score, &r.Prediction, &r.CumulativeScore}, func() error {
		i, ok := index[shared.GameID(gameID)]
		if !ok {
			return nil
		}
		rec := r
		rec.PlayerID = shared.PlayerID(playerID)
		if r.Prediction != nil {
			v := *r.Prediction
			rec.Prediction = &v
		}
		snaps[i].Snapshot.Rounds = append(snaps[i].Snapshot.Rounds, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning rounds: %w", err)
	}
	return snaps, nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsTransactionRollback(pgErr.Code)
	}
	return false
}
