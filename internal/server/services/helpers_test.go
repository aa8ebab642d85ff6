package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

var cheapParams = cryptox.Argon2Params{Memory: 8, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

// faultyRepo wraps the memory store and fails selected calls.
type faultyRepo struct {
	*users.MemoryRepository
	getErr    error
	loginErr  error
	createErr error
	setErr    error
	swapErr   error
	clearErr  error
}

func newFaultyRepo() *faultyRepo {
	return &faultyRepo{MemoryRepository: users.NewMemoryRepository()}
}

func (r *faultyRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.MemoryRepository.GetByID(ctx, id)
}

func (r *faultyRepo) GetByLogin(ctx context.Context, username, email string) (*models.User, error) {
	if r.loginErr != nil {
		return nil, r.loginErr
	}
	return r.MemoryRepository.GetByLogin(ctx, username, email)
}

func (r *faultyRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	return r.MemoryRepository.Create(ctx, u)
}

func (r *faultyRepo) SetRefreshToken(ctx context.Context, id, token string) error {
	if r.setErr != nil {
		return r.setErr
	}
	return r.MemoryRepository.SetRefreshToken(ctx, id, token)
}

func (r *faultyRepo) SwapRefreshToken(ctx context.Context, id, expected, next string) error {
	if r.swapErr != nil {
		return r.swapErr
	}
	return r.MemoryRepository.SwapRefreshToken(ctx, id, expected, next)
}

func (r *faultyRepo) ClearRefreshToken(ctx context.Context, id string) error {
	if r.clearErr != nil {
		return r.clearErr
	}
	return r.MemoryRepository.ClearRefreshToken(ctx, id)
}

func newCodec(t *testing.T) *auth.TokenCodec {
	t.Helper()
	c, err := auth.NewTokenCodec([]byte("access-secret"), []byte("refresh-secret"), 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return c
}

type fixture struct {
	repo     *faultyRepo
	codec    *auth.TokenCodec
	sessions *SessionService
	user     *models.User
}

// newFixture seeds one user whose password is "correct".
func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFaultyRepo()
	codec := newCodec(t)

	hash, err := cryptox.HashPassword("correct", cheapParams)
	require.NoError(t, err)
	u, err := repo.Create(context.Background(), &models.User{
		UserName:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice A",
		Avatar:       "https://cdn/a.png",
		PasswordHash: hash,
	})
	require.NoError(t, err)

	return &fixture{
		repo:     repo,
		codec:    codec,
		sessions: NewSessionService(repo, codec, logging.Discard()),
		user:     u,
	}
}

func (f *fixture) storedToken(t *testing.T) string {
	t.Helper()
	u, err := f.repo.MemoryRepository.GetByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	return u.RefreshToken
}
