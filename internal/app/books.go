package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/validate"
)

const coverURLExpiry = 7 * 24 * time.Hour

// BookInput carries the writable book fields.
type BookInput struct {
	Title         string
	Author        string
	Genre         string
	ISBN          string
	YearPublished *int
	Description   string
	Publisher     string
	PageCount     int
	Language      string
	Price         float64
	Condition     string
	Status        string
	Metadata      map[string]string
}

func (in BookInput) violations() []string {
	var v []string
	if strings.TrimSpace(in.Title) == "" {
		v = append(v, "title is required")
	}
	if strings.TrimSpace(in.Author) == "" {
		v = append(v, "author is required")
	}
	if in.ISBN != "" && !validate.ISBN(in.ISBN) {
		v = append(v, "isbn must contain exactly 10 or 13 digits")
	}
	if !validate.YearPublished(in.YearPublished) {
		v = append(v, "yearPublished is out of range")
	}
	if in.PageCount < 0 {
		v = append(v, "pageCount cannot be negative")
	}
	if in.Price < 0 {
		v = append(v, "price cannot be negative")
	}
	if in.Condition != "" && !domain.BookCondition(in.Condition).Valid() {
		v = append(v, "unknown condition")
	}
	if in.Status != "" && !domain.BookStatus(in.Status).Valid() {
		v = append(v, "unknown status")
	}
	return v
}

func (in BookInput) apply(b *domain.Book) {
	b.Title = strings.TrimSpace(in.Title)
	b.Author = strings.TrimSpace(in.Author)
	b.Genre = strings.TrimSpace(in.Genre)
	b.ISBN = strings.TrimSpace(in.ISBN)
	b.YearPublished = in.YearPublished
	b.Description = in.Description
	b.Publisher = strings.TrimSpace(in.Publisher)
	b.PageCount = in.PageCount
	b.Language = strings.TrimSpace(in.Language)
	b.Price = in.Price
	b.Metadata = in.Metadata
	if in.Condition != "" {
		b.Condition = domain.BookCondition(in.Condition)
	}
	if in.Status != "" {
		b.Status = domain.BookStatus(in.Status)
	}
}

// CreateBook validates and persists a new book for the owner.
func (a *App) CreateBook(ownerID string, in BookInput) (domain.Book, error) {
	if strings.TrimSpace(ownerID) == "" {
		return domain.Book{}, NewValidationError("owner is required")
	}
	if v := in.violations(); len(v) > 0 {
		return domain.Book{}, NewValidationError(v...)
	}
	now := time.Now().UTC()
	book := domain.Book{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Condition: domain.ConditionGood,
		Status:    domain.StatusAvailable,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(&book)
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// GetBook returns a book by ID.
func (a *App) GetBook(id string) (domain.Book, error) {
	book, found, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !found {
		return domain.Book{}, ErrNotFound
	}
	return book, nil
}

// ListBooks returns every book. The result is never nil.
func (a *App) ListBooks() ([]domain.Book, error) {
	books, err := a.store.ListBooks()
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, nil
}

// ListBooksByOwner returns the owner's books. The result is never nil.
func (a *App) ListBooksByOwner(ownerID string) ([]domain.Book, error) {
	books, err := a.store.ListBooksByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, nil
}

// UpdateBook replaces the writable fields of an existing book. The path id
// must match the body id.
func (a *App) UpdateBook(pathID, bodyID string, in BookInput) (domain.Book, error) {
	if pathID != bodyID {
		return domain.Book{}, ErrIDMismatch
	}
	book, err := a.GetBook(pathID)
	if err != nil {
		return domain.Book{}, err
	}
	if v := in.violations(); len(v) > 0 {
		return domain.Book{}, NewValidationError(v...)
	}
	in.apply(&book)
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// DeleteBook removes a book. Unknown IDs report not-found.
func (a *App) DeleteBook(id string) error {
	deleted, err := a.store.DeleteBook(id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// PlaceOnShelf moves a book onto a shelf, honoring the shelf's soft
// capacity. An empty shelfID takes the book off its shelf.
func (a *App) PlaceOnShelf(bookID, shelfID string) (domain.Book, error) {
	book, err := a.GetBook(bookID)
	if err != nil {
		return domain.Book{}, err
	}
	if shelfID == "" {
		book.ShelfID = ""
		book.UpdatedAt = time.Now().UTC()
		if err := a.store.SaveBook(book); err != nil {
			return domain.Book{}, fmt.Errorf("save book: %w", err)
		}
		return book, nil
	}
	shelf, found, err := a.store.GetShelf(shelfID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch shelf: %w", err)
	}
	if !found {
		return domain.Book{}, ErrNotFound
	}
	if book.ShelfID != shelfID {
		current, err := a.store.CountBooksOnShelf(shelfID)
		if err != nil {
			return domain.Book{}, fmt.Errorf("count shelf books: %w", err)
		}
		if !shelf.CanAddBook(current) {
			return domain.Book{}, ErrShelfFull
		}
	}
	book.ShelfID = shelfID
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// UploadCover stores a cover image and records a presigned URL on the book.
func (a *App) UploadCover(ctx context.Context, bookID string, r io.Reader, size int64, contentType string) (domain.Book, error) {
	if a.covers == nil {
		return domain.Book{}, fmt.Errorf("cover storage not configured")
	}
	book, err := a.GetBook(bookID)
	if err != nil {
		return domain.Book{}, err
	}
	key := "covers/" + bookID
	if err := a.covers.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Book{}, fmt.Errorf("store cover: %w", err)
	}
	coverURL, err := a.covers.PresignGet(ctx, key, coverURLExpiry)
	if err != nil {
		return domain.Book{}, fmt.Errorf("presign cover: %w", err)
	}
	book.CoverURL = coverURL
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}
