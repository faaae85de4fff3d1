package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID                string `gorm:"primaryKey"`
	Email             string `gorm:"uniqueIndex;not null"`
	PasswordHash      string
	FirstName         string
	LastName          string
	EmailConfirmed    bool `gorm:"not null"`
	Bio               string
	ProfilePictureURL string
	Role              string    `gorm:"not null"`
	Active            bool      `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time
}

type RoleModel struct {
	Name        string `gorm:"primaryKey"`
	Description string
	Active      bool `gorm:"not null"`
}

type BookModel struct {
	ID            string `gorm:"primaryKey"`
	OwnerID       string `gorm:"not null;index"`
	ShelfID       string `gorm:"index"`
	Title         string `gorm:"not null"`
	Author        string `gorm:"not null"`
	Genre         string
	ISBN          string
	YearPublished *int
	Description   string `gorm:"type:text"`
	CoverURL      string
	Publisher     string
	PageCount     int
	Language      string
	Price         float64
	Condition     string
	Status        string `gorm:"not null"`
	Active        bool   `gorm:"not null"`
	Metadata      datatypes.JSON
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type LibraryModel struct {
	ID        string    `gorm:"primaryKey"`
	OwnerID   string    `gorm:"not null;index"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type LocationModel struct {
	ID        string    `gorm:"primaryKey"`
	LibraryID string    `gorm:"not null;index"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type ShelfModel struct {
	ID         string `gorm:"primaryKey"`
	LocationID string `gorm:"not null;index"`
	Name       string `gorm:"not null"`
	Capacity   *int
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time
}

type RefreshTokenModel struct {
	TokenHash     string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;index"`
	ExpiresAt     time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	RevokedAt     *time.Time
	RevokedReason string
	ReplacedBy    string
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:                u.ID,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		EmailConfirmed:    u.EmailConfirmed,
		Bio:               u.Bio,
		ProfilePictureURL: u.ProfilePictureURL,
		Role:              string(u.Role),
		Active:            u.Active,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:                m.ID,
		Email:             m.Email,
		PasswordHash:      m.PasswordHash,
		FirstName:         m.FirstName,
		LastName:          m.LastName,
		EmailConfirmed:    m.EmailConfirmed,
		Bio:               m.Bio,
		ProfilePictureURL: m.ProfilePictureURL,
		Role:              domain.UserRole(m.Role),
		Active:            m.Active,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) (BookModel, error) {
	var metadata datatypes.JSON
	if len(b.Metadata) > 0 {
		raw, err := json.Marshal(b.Metadata)
		if err != nil {
			return BookModel{}, err
		}
		metadata = raw
	}
	return BookModel{
		ID:            b.ID,
		OwnerID:       b.OwnerID,
		ShelfID:       b.ShelfID,
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		ISBN:          b.ISBN,
		YearPublished: b.YearPublished,
		Description:   b.Description,
		CoverURL:      b.CoverURL,
		Publisher:     b.Publisher,
		PageCount:     b.PageCount,
		Language:      b.Language,
		Price:         b.Price,
		Condition:     string(b.Condition),
		Status:        string(b.Status),
		Active:        b.Active,
		Metadata:      metadata,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}, nil
}

func bookFromModel(m BookModel) domain.Book {
	var metadata map[string]string
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &metadata)
	}
	return domain.Book{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		ShelfID:       m.ShelfID,
		Title:         m.Title,
		Author:        m.Author,
		Genre:         m.Genre,
		ISBN:          m.ISBN,
		YearPublished: m.YearPublished,
		Description:   m.Description,
		CoverURL:      m.CoverURL,
		Publisher:     m.Publisher,
		PageCount:     m.PageCount,
		Language:      m.Language,
		Price:         m.Price,
		Condition:     domain.BookCondition(m.Condition),
		Status:        domain.BookStatus(m.Status),
		Active:        m.Active,
		Metadata:      metadata,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
