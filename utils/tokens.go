package utils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTokenUnknown is returned when a bearer token does not resolve to an
// identity (never issued, expired, or revoked).
var ErrTokenUnknown = errors.New("unknown or expired token")

const tokenKeyPrefix = "auth:token:"

// TokenStore maps opaque bearer tokens to psychologist identities.
type TokenStore interface {
	Issue(ctx context.Context, psychologistID string) (string, error)
	Resolve(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

type redisTokenStore struct {
	cache RedisClient
	ttl   time.Duration
}

// NewRedisTokenStore keeps tokens in Redis so they expire server-side and
// survive process restarts.
func NewRedisTokenStore(cache RedisClient, ttl time.Duration) TokenStore {
	return &redisTokenStore{cache: cache, ttl: ttl}
}

func (s *redisTokenStore) Issue(ctx context.Context, psychologistID string) (string, error) {
	token := uuid.NewString()
	if err := s.cache.SetToCache(ctx, tokenKeyPrefix+token, psychologistID, s.ttl); err != nil {
		return "", err
	}
	return token, nil
}

func (s *redisTokenStore) Resolve(ctx context.Context, token string) (string, error) {
	id, err := s.cache.GetFromCache(ctx, tokenKeyPrefix+token)
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenUnknown
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *redisTokenStore) Revoke(ctx context.Context, token string) error {
	return s.cache.DeleteFromCache(ctx, tokenKeyPrefix+token)
}

type memoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryTokenStore backs tests and development runs without Redis.
// Tokens never expire; Revoke is the only way out.
func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{tokens: make(map[string]string)}
}

func (s *memoryTokenStore) Issue(ctx context.Context, psychologistID string) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = psychologistID
	s.mu.Unlock()
	return token, nil
}

func (s *memoryTokenStore) Resolve(ctx context.Context, token string) (string, error) {
	s.mu.RLock()
	id, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return "", ErrTokenUnknown
	}
	return id, nil
}

func (s *memoryTokenStore) Revoke(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	return nil
}
