package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
)

var (
	// ErrInvalidRefreshToken indicates token not found, expired, or revoked.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReplay indicates an already-rotated token was presented again.
	ErrRefreshTokenReplay = errors.New("refresh token replay detected")
)

const (
	reasonRotated  = "rotated"
	reasonReplayed = "replay detected"
)

// GormRefreshTokenStore persists refresh tokens in the relational store.
// Only token hashes are written; rotation links the old row to its
// replacement so replay can be detected and the chain revoked.
type GormRefreshTokenStore struct {
	db *gorm.DB
}

// NewGormRefreshTokenStore builds a refresh token store on an open GormStore.
func NewGormRefreshTokenStore(s *GormStore) *GormRefreshTokenStore {
	return &GormRefreshTokenStore{db: s.db}
}

// Issue creates and stores a new refresh token for the user.
func (s *GormRefreshTokenStore) Issue(userID string, ttl time.Duration) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	model := RefreshTokenModel{
		TokenHash: refreshTokenHash(token),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// Rotate exchanges an active token for a new one. Presenting a token that
// was already rotated revokes every descendant in its chain and fails.
func (s *GormRefreshTokenStore) Rotate(token string, ttl time.Duration) (string, string, error) {
	tokenHash := refreshTokenHash(token)
	now := time.Now().UTC()

	var userID, newToken, replayedChain string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var current RefreshTokenModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, "token_hash = ?", tokenHash).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrInvalidRefreshToken
			}
			return err
		}
		if current.RevokedAt != nil {
			if current.ReplacedBy != "" {
				// Reuse of a rotated token. Returning the sentinel here
				// would roll back the chain revocation, so record the
				// chain head and revoke after this transaction commits.
				replayedChain = current.ReplacedBy
				return nil
			}
			return ErrInvalidRefreshToken
		}
		if now.After(current.ExpiresAt) {
			return ErrInvalidRefreshToken
		}

		next, err := generateRefreshToken()
		if err != nil {
			return err
		}
		nextHash := refreshTokenHash(next)
		replacement := RefreshTokenModel{
			TokenHash: nextHash,
			UserID:    current.UserID,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		}
		if err := tx.Create(&replacement).Error; err != nil {
			return err
		}
		updates := map[string]any{
			"revoked_at":     now,
			"revoked_reason": reasonRotated,
			"replaced_by":    nextHash,
		}
		if err := tx.Model(&RefreshTokenModel{}).Where("token_hash = ?", tokenHash).Updates(updates).Error; err != nil {
			return err
		}
		userID = current.UserID
		newToken = next
		return nil
	})
	if err != nil {
		return "", "", err
	}
	if replayedChain != "" {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			return revokeChain(tx, replayedChain, now, reasonReplayed)
		})
		if err != nil {
			return "", "", fmt.Errorf("revoke replayed chain: %w", err)
		}
		return "", "", ErrRefreshTokenReplay
	}
	return userID, newToken, nil
}

// Revoke marks a token revoked with the given reason.
func (s *GormRefreshTokenStore) Revoke(token, reason string) error {
	now := time.Now().UTC()
	return s.db.Model(&RefreshTokenModel{}).
		Where("token_hash = ? AND revoked_at IS NULL", refreshTokenHash(token)).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason}).Error
}

// RevokeUser revokes every active token belonging to a user.
func (s *GormRefreshTokenStore) RevokeUser(userID, reason string) error {
	now := time.Now().UTC()
	return s.db.Model(&RefreshTokenModel{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason}).Error
}

func revokeChain(tx *gorm.DB, tokenHash string, now time.Time, reason string) error {
	for tokenHash != "" {
		var row RefreshTokenModel
		if err := tx.First(&row, "token_hash = ?", tokenHash).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		if row.RevokedAt == nil {
			updates := map[string]any{"revoked_at": now, "revoked_reason": reason}
			if err := tx.Model(&RefreshTokenModel{}).Where("token_hash = ?", tokenHash).Updates(updates).Error; err != nil {
				return err
			}
		}
		tokenHash = row.ReplacedBy
	}
	return nil
}

// MemoryRefreshTokenStore keeps refresh token chains in memory. It mirrors
// the relational store's semantics and exists for tests and local runs.
type MemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshToken // tokenHash -> token
}

// NewMemoryRefreshTokenStore constructs an in-memory refresh token store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{tokens: make(map[string]domain.RefreshToken)}
}

// Issue creates and stores a new refresh token for the user.
func (s *MemoryRefreshTokenStore) Issue(userID string, ttl time.Duration) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	s.tokens[refreshTokenHash(token)] = domain.RefreshToken{
		TokenHash: refreshTokenHash(token),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	s.mu.Unlock()
	return token, nil
}

// Rotate exchanges an active token for a new one, detecting replay.
func (s *MemoryRefreshTokenStore) Rotate(token string, ttl time.Duration) (string, string, error) {
	tokenHash := refreshTokenHash(token)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tokens[tokenHash]
	if !ok {
		return "", "", ErrInvalidRefreshToken
	}
	if current.IsRevoked() {
		if current.ReplacedBy != "" {
			s.revokeChainLocked(current.ReplacedBy, now, reasonReplayed)
			return "", "", ErrRefreshTokenReplay
		}
		return "", "", ErrInvalidRefreshToken
	}
	if current.IsExpired() {
		return "", "", ErrInvalidRefreshToken
	}

	next, err := generateRefreshToken()
	if err != nil {
		return "", "", err
	}
	nextHash := refreshTokenHash(next)
	s.tokens[nextHash] = domain.RefreshToken{
		TokenHash: nextHash,
		UserID:    current.UserID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	current.RevokedAt = &now
	current.RevokedReason = reasonRotated
	current.ReplacedBy = nextHash
	s.tokens[tokenHash] = current
	return current.UserID, next, nil
}

// Revoke marks a token revoked with the given reason.
func (s *MemoryRefreshTokenStore) Revoke(token, reason string) error {
	now := time.Now().UTC()
	s.mu.Lock()
	if t, ok := s.tokens[refreshTokenHash(token)]; ok && !t.IsRevoked() {
		t.RevokedAt = &now
		t.RevokedReason = reason
		s.tokens[t.TokenHash] = t
	}
	s.mu.Unlock()
	return nil
}

// RevokeUser revokes every active token belonging to a user.
func (s *MemoryRefreshTokenStore) RevokeUser(userID, reason string) error {
	now := time.Now().UTC()
	s.mu.Lock()
	for hash, t := range s.tokens {
		if t.UserID == userID && !t.IsRevoked() {
			t.RevokedAt = &now
			t.RevokedReason = reason
			s.tokens[hash] = t
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryRefreshTokenStore) revokeChainLocked(tokenHash string, now time.Time, reason string) {
	for tokenHash != "" {
		t, ok := s.tokens[tokenHash]
		if !ok {
			return
		}
		if !t.IsRevoked() {
			t.RevokedAt = &now
			t.RevokedReason = reason
			s.tokens[tokenHash] = t
		}
		tokenHash = t.ReplacedBy
	}
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func refreshTokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
