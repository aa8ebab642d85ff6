// Package users declares the identity store contract and its PostgreSQL,
// Redis and in-memory implementations.
//
// The stored refresh token is the single piece of shared mutable session
// state. Implementations must make SwapRefreshToken atomic: of two callers
// presenting the same expected value, at most one succeeds.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user and returns it with ID and timestamps populated.
	// A username or email already in use yields common.ErrorConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID returns common.ErrorNotFound when absent.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByLogin matches username OR email; empty arguments never match.
	GetByLogin(ctx context.Context, username, email string) (*models.User, error)

	// SetRefreshToken unconditionally replaces the stored refresh token and
	// touches nothing else on the record.
	SetRefreshToken(ctx context.Context, id, token string) error

	// SwapRefreshToken replaces the stored token with next only if it still
	// equals expected. A mismatch yields common.ErrorStaleToken; an unknown
	// id yields common.ErrorNotFound.
	SwapRefreshToken(ctx context.Context, id, expected, next string) error

	// ClearRefreshToken removes the stored token. Clearing an already empty
	// token is not an error.
	ClearRefreshToken(ctx context.Context, id string) error
}
