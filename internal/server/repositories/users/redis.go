package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Every user is a hash at <prefix>:user:<id>. Username and email each own an
// index key pointing back at the id.
const (
	fieldID           = "id"
	fieldUserName     = "username"
	fieldEmail        = "email"
	fieldFullName     = "full_name"
	fieldAvatar       = "avatar"
	fieldCoverImage   = "cover_image"
	fieldPasswordHash = "password_hash"
	fieldRefreshToken = "refresh_token"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"
)

// KEYS[1] user hash, KEYS[2] username index, KEYS[3] email index.
// ARGV[1] id followed by field/value pairs.
const createUserScript = `
if redis.call("EXISTS", KEYS[2]) == 1 or redis.call("EXISTS", KEYS[3]) == 1 then
  return 0
end
redis.call("SET", KEYS[2], ARGV[1])
redis.call("SET", KEYS[3], ARGV[1])
local fields = {}
for i = 2, #ARGV do
  fields[#fields + 1] = ARGV[i]
end
redis.call("HSET", KEYS[1], unpack(fields))
return 1
`

// KEYS[1] user hash. ARGV[1] expected, ARGV[2] next, ARGV[3] updated_at.
// Returns 1 on swap, 0 for a missing user, -1 when the stored token differs.
const swapRefreshScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local current = redis.call("HGET", KEYS[1], "refresh_token")
if not current or current ~= ARGV[1] then
  return -1
end
redis.call("HSET", KEYS[1], "refresh_token", ARGV[2], "updated_at", ARGV[3])
return 1
`

// KEYS[1] user hash. ARGV[1] token, ARGV[2] updated_at.
const setRefreshScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "refresh_token", ARGV[1], "updated_at", ARGV[2])
return 1
`

var (
	createUserLua  = redis.NewScript(createUserScript)
	swapRefreshLua = redis.NewScript(swapRefreshScript)
	setRefreshLua  = redis.NewScript(setRefreshScript)
)

// RedisRepository stores users in Redis hashes. Compare-and-swap on the
// refresh token runs as a Lua script so it is atomic on the server.
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRepository(rdb redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "authkeeper"
	}
	return &RedisRepository{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *RedisRepository) userKey(id string) string { return r.prefix + ":user:" + id }
func (r *RedisRepository) userNameKey(name string) string {
	return r.prefix + ":username:" + name
}
func (r *RedisRepository) emailKey(email string) string { return r.prefix + ":email:" + email }

func (r *RedisRepository) stamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func (r *RedisRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	id := uuid.NewString()
	now := r.now().UTC()
	ts := now.Format(time.RFC3339Nano)

	args := []any{id,
		fieldID, id,
		fieldUserName, user.UserName,
		fieldEmail, user.Email,
		fieldFullName, user.FullName,
		fieldAvatar, user.Avatar,
		fieldCoverImage, user.CoverImage,
		fieldPasswordHash, user.PasswordHash,
		fieldRefreshToken, "",
		fieldCreatedAt, ts,
		fieldUpdatedAt, ts,
	}
	keys := []string{r.userKey(id), r.userNameKey(user.UserName), r.emailKey(user.Email)}

	n, err := createUserLua.Run(ctx, r.rdb, keys, args...).Int()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if n == 0 {
		return nil, common.ErrorConflict
	}

	user.ID = id
	user.RefreshToken = ""
	user.CreatedAt = now
	user.UpdatedAt = now
	return user, nil
}

func (r *RedisRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	vals, err := r.rdb.HGetAll(ctx, r.userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(vals) == 0 {
		return nil, common.ErrorNotFound
	}
	return decodeUser(vals)
}

func (r *RedisRepository) GetByLogin(ctx context.Context, username, email string) (*models.User, error) {
	var indexKeys []string
	if username != "" {
		indexKeys = append(indexKeys, r.userNameKey(username))
	}
	if email != "" {
		indexKeys = append(indexKeys, r.emailKey(email))
	}

	for _, key := range indexKeys {
		id, err := r.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis error: %w", err)
		}
		return r.GetByID(ctx, id)
	}
	return nil, common.ErrorNotFound
}

func (r *RedisRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	n, err := setRefreshLua.Run(ctx, r.rdb, []string{r.userKey(id)}, token, r.stamp()).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *RedisRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) error {
	n, err := swapRefreshLua.Run(ctx, r.rdb, []string{r.userKey(id)}, expected, next, r.stamp()).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return common.ErrorStaleToken
	}
}

func (r *RedisRepository) ClearRefreshToken(ctx context.Context, id string) error {
	return r.SetRefreshToken(ctx, id, "")
}

func decodeUser(vals map[string]string) (*models.User, error) {
	u := &models.User{
		ID:           vals[fieldID],
		UserName:     vals[fieldUserName],
		Email:        vals[fieldEmail],
		FullName:     vals[fieldFullName],
		Avatar:       vals[fieldAvatar],
		CoverImage:   vals[fieldCoverImage],
		PasswordHash: vals[fieldPasswordHash],
		RefreshToken: vals[fieldRefreshToken],
	}
	var err error
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, vals[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fieldCreatedAt, err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339Nano, vals[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fieldUpdatedAt, err)
	}
	return u, nil
}
