package store

import (
	"time"

	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
)

// Store defines persistence operations for users, roles, books, and the
// library containment hierarchy.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)

	// roles
	EnsureRole(domain.Role) error
	ListRoles() ([]domain.Role, error)

	// books
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooks() ([]domain.Book, error)
	ListBooksByOwner(ownerID string) ([]domain.Book, error)
	DeleteBook(id string) (bool, error)
	CountBooksOnShelf(shelfID string) (int, error)

	// catalog hierarchy
	SaveLibrary(domain.Library) error
	GetLibrary(id string) (domain.Library, bool, error)
	ListLibrariesByOwner(ownerID string) ([]domain.Library, error)
	DeleteLibrary(id string) (bool, error)
	SaveLocation(domain.Location) error
	GetLocation(id string) (domain.Location, bool, error)
	ListLocationsByLibrary(libraryID string) ([]domain.Location, error)
	SaveShelf(domain.Shelf) error
	GetShelf(id string) (domain.Shelf, bool, error)
	ListShelvesByLocation(locationID string) ([]domain.Shelf, error)
}

// SessionStore issues and validates short-lived access tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	UserIDFromToken(token string) (string, error)
	DeleteSession(token string) error
}

// RefreshTokenStore persists refresh tokens for rotation with replay
// detection: exchanging an already-rotated token revokes its whole chain.
type RefreshTokenStore interface {
	Issue(userID string, ttl time.Duration) (string, error)
	Rotate(token string, ttl time.Duration) (userID string, newToken string, err error)
	Revoke(token, reason string) error
	RevokeUser(userID, reason string) error
}

// ConfirmTokenStore hands out single-use email confirmation tokens.
// Consuming a token invalidates it; a second consume fails.
type ConfirmTokenStore interface {
	Create(userID string, ttl time.Duration) (string, error)
	Consume(userID, token string) error
}
