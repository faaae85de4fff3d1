package domain

import "time"

type BookCondition string

const (
	ConditionNew  BookCondition = "new"
	ConditionGood BookCondition = "good"
	ConditionFair BookCondition = "fair"
	ConditionPoor BookCondition = "poor"
)

// Valid reports whether the condition is one of the known values.
func (c BookCondition) Valid() bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

type BookStatus string

const (
	StatusAvailable BookStatus = "available"
	StatusLoaned    BookStatus = "loaned"
	StatusArchived  BookStatus = "archived"
)

// Valid reports whether the status is one of the known values.
func (s BookStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusLoaned, StatusArchived:
		return true
	}
	return false
}

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	FirstName         string    `json:"firstName,omitempty"`
	LastName          string    `json:"lastName,omitempty"`
	EmailConfirmed    bool      `json:"emailConfirmed"`
	Bio               string    `json:"bio,omitempty"`
	ProfilePictureURL string    `json:"profilePictureUrl,omitempty"`
	Role              UserRole  `json:"role"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Role is a named permission group. Users reference roles by name.
type Role struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// RefreshToken tracks one long-lived credential in a rotation chain.
// The token value itself is never stored; only its hash is.
type RefreshToken struct {
	TokenHash     string     `json:"-"`
	UserID        string     `json:"userId"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	RevokedAt     *time.Time `json:"revokedAt,omitempty"`
	RevokedReason string     `json:"revokedReason,omitempty"`
	ReplacedBy    string     `json:"-"`
}

// IsExpired reports whether the token lifetime has passed.
func (t RefreshToken) IsExpired() bool {
	return time.Now().UTC().After(t.ExpiresAt)
}

// IsRevoked reports whether the token was explicitly revoked.
func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive reports whether the token can still be exchanged.
func (t RefreshToken) IsActive() bool {
	return !t.IsRevoked() && !t.IsExpired()
}

type Book struct {
	ID            string            `json:"id"`
	OwnerID       string            `json:"ownerId"`
	ShelfID       string            `json:"shelfId,omitempty"`
	Title         string            `json:"title"`
	Author        string            `json:"author"`
	Genre         string            `json:"genre,omitempty"`
	ISBN          string            `json:"isbn,omitempty"`
	YearPublished *int              `json:"yearPublished,omitempty"`
	Description   string            `json:"description,omitempty"`
	CoverURL      string            `json:"coverUrl,omitempty"`
	Publisher     string            `json:"publisher,omitempty"`
	PageCount     int               `json:"pageCount,omitempty"`
	Language      string            `json:"language,omitempty"`
	Price         float64           `json:"price,omitempty"`
	Condition     BookCondition     `json:"condition,omitempty"`
	Status        BookStatus        `json:"status"`
	Active        bool              `json:"active"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Library > Location > Shelf is a strict containment hierarchy for the
// physical organization of cataloged books.
type Library struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Location struct {
	ID        string    `json:"id"`
	LibraryID string    `json:"libraryId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Shelf struct {
	ID         string    `json:"id"`
	LocationID string    `json:"locationId"`
	Name       string    `json:"name"`
	Capacity   *int      `json:"capacity,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CanAddBook reports whether a shelf with the given current book count has
// room for one more. Capacity is a soft constraint; nil means unbounded.
func (s Shelf) CanAddBook(current int) bool {
	if s.Capacity == nil {
		return true
	}
	return current < *s.Capacity
}
