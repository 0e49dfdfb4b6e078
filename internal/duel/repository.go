package duel

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by repository implementations. The session
// controller owns the user-facing messages; these only carry intent.
var (
	ErrEmailTaken       = errors.New("email already registered")
	ErrNicknameTaken    = errors.New("nickname already registered")
	ErrActiveGameExists = errors.New("active game already exists for pair")
	ErrStaleGame        = errors.New("game was modified concurrently")
)

// Repository persists users and games. Lookups return (nil, nil) when
// nothing matches. SaveGame is a full replace conditional on the
// version stamp the caller read; a lost race yields ErrStaleGame and
// the caller re-reads and re-validates, never overwrites blindly.
type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	UserByNickname(ctx context.Context, nickname string) (*User, error)
	// SearchNicknames returns nicknames containing substr, case
	// sensitive, ordered by nickname.
	SearchNicknames(ctx context.Context, substr string) ([]string, error)

	// CreateGame fails with ErrActiveGameExists when a non-terminated
	// game already exists for the unordered participant pair.
	CreateGame(ctx context.Context, g *Game) error
	GameByID(ctx context.Context, id string) (*Game, error)
	ActiveGameBetween(ctx context.Context, a, b string) (*Game, error)
	// GamesForUser returns every game the nickname participates in,
	// ordered by creation.
	GamesForUser(ctx context.Context, nickname string) ([]*Game, error)
	SaveGame(ctx context.Context, g *Game) error
}
