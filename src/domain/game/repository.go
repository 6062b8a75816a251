package game

import (
	"context"
	"time"

	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

// Repository manages game persistence.
type Repository interface {
	// Create stores a new game and fails with ErrGameAlreadyExists when the
	// ID is in use.
	Create(ctx context.Context, game *Game) error
	Save(ctx context.Context, game *Game) error
	Get(ctx context.Context, id shared.GameID) (*Game, error)
	Delete(ctx context.Context, id shared.GameID) error
	List(ctx context.Context, limit, offset int) ([]*Game, error)
}

// RoundSnapshot is emitted after every completed round.
type RoundSnapshot struct {
	GameID     shared.GameID   `json:"game_id"`
	Round      int             `json:"round"`
	Snapshot   ledger.Snapshot `json:"snapshot"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// SnapshotSink receives round snapshots for durable storage. Failures are
// reported to the caller but never roll back the ledger.
type SnapshotSink interface {
	PersistRound(ctx context.Context, snap RoundSnapshot) error
}

// SnapshotSource loads the latest stored snapshot of every game.
type SnapshotSource interface {
	LoadSnapshots(ctx context.Context) ([]RoundSnapshot, error)
}
