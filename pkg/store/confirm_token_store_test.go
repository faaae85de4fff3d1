package store

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryConfirmTokenSingleUse(t *testing.T) {
	s := NewMemoryConfirmTokenStore()

	token, err := s.Create("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Consume("user-1", token); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if err := s.Consume("user-1", token); !errors.Is(err, ErrInvalidConfirmToken) {
		t.Fatalf("second Consume err = %v, want ErrInvalidConfirmToken", err)
	}
}

func TestMemoryConfirmTokenWrongToken(t *testing.T) {
	s := NewMemoryConfirmTokenStore()

	if _, err := s.Create("user-1", time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Consume("user-1", "bogus"); !errors.Is(err, ErrInvalidConfirmToken) {
		t.Fatalf("Consume wrong token err = %v, want ErrInvalidConfirmToken", err)
	}
	if err := s.Consume("user-2", "bogus"); !errors.Is(err, ErrInvalidConfirmToken) {
		t.Fatalf("Consume unknown user err = %v, want ErrInvalidConfirmToken", err)
	}
}

func TestMemoryConfirmTokenReplacement(t *testing.T) {
	s := NewMemoryConfirmTokenStore()

	first, err := s.Create("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Create first: %v", err)
	}
	second, err := s.Create("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}

	// Re-issuing invalidates the earlier token.
	if err := s.Consume("user-1", first); !errors.Is(err, ErrInvalidConfirmToken) {
		t.Fatalf("Consume replaced token err = %v, want ErrInvalidConfirmToken", err)
	}
	if err := s.Consume("user-1", second); err != nil {
		t.Fatalf("Consume latest token: %v", err)
	}
}

func TestMemoryConfirmTokenExpiry(t *testing.T) {
	s := NewMemoryConfirmTokenStore()

	token, err := s.Create("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Consume("user-1", token); !errors.Is(err, ErrInvalidConfirmToken) {
		t.Fatalf("Consume expired token err = %v, want ErrInvalidConfirmToken", err)
	}
}

func TestRedisConfirmTokenSingleUse(t *testing.T) {
	srv := miniredis.RunT(t)
	s := NewRedisConfirmTokenStore(srv.Addr(), "")

	token, err := s.Create("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Consume("user-1", token); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if err := s.Consume("user-1", token); !errors.Is(err, ErrInvalidConfirmToken) {
		t.Fatalf("second Consume err = %v, want ErrInvalidConfirmToken", err)
	}
}

func TestRedisConfirmTokenExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	s := NewRedisConfirmTokenStore(srv.Addr(), "")

	token, err := s.Create("user-1", time.Minute)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	srv.FastForward(2 * time.Minute)
	if err := s.Consume("user-1", token); !errors.Is(err, ErrInvalidConfirmToken) {
		t.Fatalf("Consume expired token err = %v, want ErrInvalidConfirmToken", err)
	}
}
