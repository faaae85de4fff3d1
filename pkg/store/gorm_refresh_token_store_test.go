package store

import (
	"errors"
	"os"
	"testing"
	"time"
)

// newTestGormRefreshStore opens the database named by SOC_TEST_DATABASE_URL
// and returns a refresh token store on a clean table. Skipped when the
// variable is unset.
func newTestGormRefreshStore(t *testing.T) *GormRefreshTokenStore {
	t.Helper()
	dsn := os.Getenv("SOC_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SOC_TEST_DATABASE_URL not set")
	}
	gs, err := NewGormStore(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := gs.db.Exec("DELETE FROM refresh_token_models").Error; err != nil {
		t.Fatalf("clean table: %v", err)
	}
	return NewGormRefreshTokenStore(gs)
}

func TestGormRotateReplayRevokesChainDurably(t *testing.T) {
	s := newTestGormRefreshStore(t)

	first, err := s.Issue("user-1", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, second, err := s.Rotate(first, time.Minute)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, _, err := s.Rotate(first, time.Minute); !errors.Is(err, ErrRefreshTokenReplay) {
		t.Fatalf("replayed rotate: %v, want ErrRefreshTokenReplay", err)
	}

	// The chain revocation must survive the failed exchange: a later call
	// with the replacement token has to see the revoked row.
	if _, _, err := s.Rotate(second, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("rotate after replay: %v, want ErrInvalidRefreshToken", err)
	}

	var row RefreshTokenModel
	if err := s.db.First(&row, "token_hash = ?", refreshTokenHash(second)).Error; err != nil {
		t.Fatalf("fetch replacement row: %v", err)
	}
	if row.RevokedAt == nil || row.RevokedReason != reasonReplayed {
		t.Fatalf("replacement not revoked durably: revokedAt=%v reason=%q", row.RevokedAt, row.RevokedReason)
	}
}

func TestGormRotateUnknownAndRevokedTokens(t *testing.T) {
	s := newTestGormRefreshStore(t)

	if _, _, err := s.Rotate("never-issued", time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("unknown rotate: %v, want ErrInvalidRefreshToken", err)
	}

	token, err := s.Issue("user-2", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := s.Revoke(token, "logout"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// Revoked without a replacement is invalid, not a replay.
	if _, _, err := s.Rotate(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("revoked rotate: %v, want ErrInvalidRefreshToken", err)
	}
}
