package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. It is meant for local runs
// and tests; nothing survives a restart.
type MemoryRepository struct {
	mu         sync.Mutex
	byID       map[string]*models.User
	byUserName map[string]string
	byEmail    map[string]string
	now        func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*models.User),
		byUserName: make(map[string]string),
		byEmail:    make(map[string]string),
		now:        time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUserName[user.UserName]; ok {
		return nil, common.ErrorConflict
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return nil, common.ErrorConflict
	}

	now := r.now().UTC()
	user.ID = uuid.NewString()
	user.RefreshToken = ""
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.byID[stored.ID] = &stored
	r.byUserName[stored.UserName] = stored.ID
	r.byEmail[stored.Email] = stored.ID
	return user, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetByLogin(ctx context.Context, username, email string) (*models.User, error) {
	r.mu.Lock()
	id, ok := "", false
	if username != "" {
		id, ok = r.byUserName[username]
	}
	if !ok && email != "" {
		id, ok = r.byEmail[email]
	}
	r.mu.Unlock()

	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) SetRefreshToken(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshToken = token
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *MemoryRepository) SwapRefreshToken(_ context.Context, id, expected, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if u.RefreshToken != expected {
		return common.ErrorStaleToken
	}
	u.RefreshToken = next
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *MemoryRepository) ClearRefreshToken(ctx context.Context, id string) error {
	return r.SetRefreshToken(ctx, id, "")
}
