package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/internal/model"
)

const (
	// identityCachePrefix is the Redis key prefix for resolved users.
	identityCachePrefix = "identity:user:"
	// identityCacheTTL bounds how long a deleted or changed user can
	// still be served from cache.
	identityCacheTTL = 5 * time.Minute
)

// cachedUser is the Redis representation of a resolved user.
// The password hash is deliberately not cached.
type cachedUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// GetUser retrieves a cached user by username.
// Returns nil on a cache miss or a corrupted entry.
func (c *Cache) GetUser(ctx context.Context, username string) (*model.User, error) {
	key := identityCachePrefix + username

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var cached cachedUser
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.User{
		ID:       cached.ID,
		Username: cached.Username,
		Email:    cached.Email,
	}, nil
}

// SetUser caches a resolved user under their username.
func (c *Cache) SetUser(ctx context.Context, user *model.User) error {
	key := identityCachePrefix + user.Username

	data, err := json.Marshal(cachedUser{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		return fmt.Errorf("marshal cached user: %w", err)
	}

	return c.client.Set(ctx, key, data, identityCacheTTL).Err()
}

// DeleteUser removes a cached user. Called when an account is deleted
// so a stale token stops resolving as soon as possible.
func (c *Cache) DeleteUser(ctx context.Context, username string) error {
	key := identityCachePrefix + username
	return c.client.Del(ctx, key).Err()
}
