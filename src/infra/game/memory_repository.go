package game

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bryanwahyu/tally/src/domain/game"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

// MemoryRepository implements game.Repository using in-memory storage.
type MemoryRepository struct {
	mu    sync.RWMutex
	games map[shared.GameID]*game.Game
}

// NewMemoryRepository creates a new in-memory game repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		games: make(map[shared.GameID]*game.Game),
	}
}

// Create stores a copy of a game whose ID is not yet in use.
func (r *MemoryRepository) Create(ctx context.Context, g *game.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.games[g.ID]; exists {
		return fmt.Errorf("%w: %s", game.ErrGameAlreadyExists, g.ID)
	}
	r.games[g.ID] = g.Clone()
	return nil
}

// Save stores a copy of the game.
func (r *MemoryRepository) Save(ctx context.Context, g *game.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.games[g.ID] = g.Clone()
	return nil
}

// Get retrieves a game by ID.
func (r *MemoryRepository) Get(ctx context.Context, id shared.GameID) (*game.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, exists := r.games[id]
	if !exists {
		return nil, game.ErrGameNotFound
	}

	return g.Clone(), nil
}

// Delete removes a game.
func (r *MemoryRepository) Delete(ctx context.Context, id shared.GameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.games[id]; !exists {
		return game.ErrGameNotFound
	}
	delete(r.games, id)
	return nil
}

// List retrieves games ordered by creation time.
func (r *MemoryRepository) List(ctx context.Context, limit, offset int) ([]*game.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]*game.Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g.Clone())
	}
	slices.SortFunc(games, func(a, b *game.Game) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})

	start := offset
	if start > len(games) {
		return []*game.Game{}, nil
	}

	end := start + limit
	if limit <= 0 || end > len(games) {
		end = len(games)
	}

	return games[start:end], nil
}
