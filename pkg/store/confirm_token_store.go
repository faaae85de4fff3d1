package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidConfirmToken indicates an unknown, expired, or already used
// confirmation token.
var ErrInvalidConfirmToken = errors.New("invalid confirmation token")

const defaultConfirmTTL = 48 * time.Hour

// RedisConfirmTokenStore keeps single-use email confirmation tokens in
// Redis. Creating a new token replaces any outstanding one for the user;
// consuming deletes it, so a second consume fails.
type RedisConfirmTokenStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisConfirmTokenStore builds a Redis-backed confirmation token store.
func NewRedisConfirmTokenStore(addr, password string) *RedisConfirmTokenStore {
	return &RedisConfirmTokenStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		keyPrefix: "soc:confirm",
	}
}

// Create issues a confirmation token for the user.
func (s *RedisConfirmTokenStore) Create(userID string, ttl time.Duration) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = defaultConfirmTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, s.key(userID), refreshTokenHash(token), ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume validates and invalidates the token in one step.
func (s *RedisConfirmTokenStore) Consume(userID, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stored, err := s.client.GetDel(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidConfirmToken
	}
	if err != nil {
		return err
	}
	if stored != refreshTokenHash(token) {
		return ErrInvalidConfirmToken
	}
	return nil
}

func (s *RedisConfirmTokenStore) key(userID string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, userID)
}

// MemoryConfirmTokenStore is the in-memory equivalent for tests.
type MemoryConfirmTokenStore struct {
	mu     sync.Mutex
	tokens map[string]confirmEntry
}

type confirmEntry struct {
	hash   string
	expiry time.Time
}

// NewMemoryConfirmTokenStore builds an in-memory confirmation token store.
func NewMemoryConfirmTokenStore() *MemoryConfirmTokenStore {
	return &MemoryConfirmTokenStore{tokens: make(map[string]confirmEntry)}
}

// Create issues a confirmation token for the user.
func (s *MemoryConfirmTokenStore) Create(userID string, ttl time.Duration) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = defaultConfirmTTL
	}
	s.mu.Lock()
	s.tokens[userID] = confirmEntry{hash: refreshTokenHash(token), expiry: time.Now().Add(ttl)}
	s.mu.Unlock()
	return token, nil
}

// Consume validates and invalidates the token in one step.
func (s *MemoryConfirmTokenStore) Consume(userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[userID]
	if !ok || time.Now().After(entry.expiry) {
		delete(s.tokens, userID)
		return ErrInvalidConfirmToken
	}
	if entry.hash != refreshTokenHash(token) {
		return ErrInvalidConfirmToken
	}
	delete(s.tokens, userID)
	return nil
}
