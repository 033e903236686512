package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshTokenStore registra el jti de cada refresh token emitido junto con su
// dueño. Consume es de un solo uso: devuelve found=false si el jti no existe,
// venció o ya fue consumido.
type RefreshTokenStore interface {
	Store(ctx context.Context, jti, userID string, ttl time.Duration) error
	Consume(ctx context.Context, jti string) (userID string, found bool, err error)
	Revoke(ctx context.Context, jti string) error
}

const defaultRefreshTTL = 30 * 24 * time.Hour

type refreshEntry struct {
	userID    string
	expiresAt time.Time
}

type memoryRefreshTokenStore struct {
	mu      sync.Mutex
	entries map[string]refreshEntry
	now     func() time.Time
}

func NewMemoryRefreshTokenStore() RefreshTokenStore {
	return &memoryRefreshTokenStore{
		entries: make(map[string]refreshEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryRefreshTokenStore) Store(_ context.Context, jti, userID string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultRefreshTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = refreshEntry{userID: userID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *memoryRefreshTokenStore) Consume(_ context.Context, jti string) (string, bool, error) {
	jti = strings.TrimSpace(jti)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[jti]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, jti)
	if s.now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.userID, true, nil
}

func (s *memoryRefreshTokenStore) Revoke(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, strings.TrimSpace(jti))
	return nil
}

func (s *memoryRefreshTokenStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for jti, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, jti)
			removed++
		}
	}
	return removed
}

// redisRefreshClient es el subconjunto de *redis.Client que usa el store.
type redisRefreshClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisRefreshTokenStore struct {
	client  redisRefreshClient
	prefix  string
	timeout time.Duration
}

func NewRedisRefreshTokenStore(client *redis.Client) RefreshTokenStore {
	if client == nil {
		return nil
	}
	return &redisRefreshTokenStore{
		client:  client,
		prefix:  "auth:refresh:",
		timeout: 500 * time.Millisecond,
	}
}

func (s *redisRefreshTokenStore) key(jti string) string {
	return s.prefix + jti
}

func (s *redisRefreshTokenStore) Store(ctx context.Context, jti, userID string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultRefreshTTL
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Set(ctx, s.key(jti), userID, ttl).Err()
}

// Consume usa GETDEL para que dos rotaciones concurrentes no reciban el mismo jti.
func (s *redisRefreshTokenStore) Consume(ctx context.Context, jti string) (string, bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	userID, err := s.client.GetDel(ctx, s.key(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

func (s *redisRefreshTokenStore) Revoke(ctx context.Context, jti string) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Del(ctx, s.key(jti)).Err()
}
