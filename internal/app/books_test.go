package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func newBookInput() BookInput {
	year := 1965
	return BookInput{
		Title:         "Dune",
		Author:        "Frank Herbert",
		Genre:         "Science Fiction",
		ISBN:          "978-0-441-01359-3",
		YearPublished: &year,
		Publisher:     "Chilton Books",
		PageCount:     412,
		Language:      "en",
		Price:         9.99,
		Metadata:      map[string]string{"openlibrary": "OL893415W"},
	}
}

func TestCreateBook(t *testing.T) {
	env := newTestEnv(t)
	ownerID := registerTestUser(t, env, "ada@example.com")

	book, err := env.app.CreateBook(ownerID, newBookInput())
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if book.ID == "" || book.OwnerID != ownerID {
		t.Fatalf("unexpected book: %+v", book)
	}
	if book.Condition != "good" || book.Status != "available" {
		t.Fatalf("defaults not applied: %+v", book)
	}
	if book.Metadata["openlibrary"] != "OL893415W" {
		t.Fatalf("metadata lost: %v", book.Metadata)
	}
}

func TestCreateBookValidation(t *testing.T) {
	env := newTestEnv(t)
	ownerID := registerTestUser(t, env, "ada@example.com")

	tests := []struct {
		name   string
		mutate func(*BookInput)
	}{
		{"missing title", func(in *BookInput) { in.Title = " " }},
		{"missing author", func(in *BookInput) { in.Author = "" }},
		{"bad isbn", func(in *BookInput) { in.ISBN = "12345" }},
		{"isbn with check X", func(in *BookInput) { in.ISBN = "097522980X" }},
		{"year too old", func(in *BookInput) { y := 999; in.YearPublished = &y }},
		{"year too new", func(in *BookInput) { y := 3000; in.YearPublished = &y }},
		{"negative price", func(in *BookInput) { in.Price = -1 }},
		{"unknown condition", func(in *BookInput) { in.Condition = "mint" }},
		{"unknown status", func(in *BookInput) { in.Status = "burned" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := newBookInput()
			tc.mutate(&in)
			_, err := env.app.CreateBook(ownerID, in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}

	// nil year is explicitly allowed.
	in := newBookInput()
	in.YearPublished = nil
	if _, err := env.app.CreateBook(ownerID, in); err != nil {
		t.Fatalf("nil year should pass: %v", err)
	}
}

func TestListBooksNeverNil(t *testing.T) {
	env := newTestEnv(t)

	books, err := env.app.ListBooks()
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if books == nil {
		t.Fatal("empty list must be non-nil")
	}
	if len(books) != 0 {
		t.Fatalf("len = %d, want 0", len(books))
	}
}

func TestUpdateBook(t *testing.T) {
	env := newTestEnv(t)
	ownerID := registerTestUser(t, env, "ada@example.com")
	book, err := env.app.CreateBook(ownerID, newBookInput())
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	in := newBookInput()
	in.Title = "Dune Messiah"
	updated, err := env.app.UpdateBook(book.ID, book.ID, in)
	if err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
	if updated.Title != "Dune Messiah" {
		t.Fatalf("title = %q", updated.Title)
	}

	if _, err := env.app.UpdateBook(book.ID, "other-id", in); !errors.Is(err, ErrIDMismatch) {
		t.Fatalf("mismatch err = %v, want ErrIDMismatch", err)
	}
	if _, err := env.app.UpdateBook("ghost", "ghost", in); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestDeleteBook(t *testing.T) {
	env := newTestEnv(t)
	ownerID := registerTestUser(t, env, "ada@example.com")
	book, err := env.app.CreateBook(ownerID, newBookInput())
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	if err := env.app.DeleteBook(book.ID); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if err := env.app.DeleteBook(book.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
	books, err := env.app.ListBooks()
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("deleted book still listed: %+v", books)
	}
}

func TestPlaceOnShelfCapacity(t *testing.T) {
	env := newTestEnv(t)
	ownerID := registerTestUser(t, env, "ada@example.com")

	lib, err := env.app.CreateLibrary(ownerID, "Home")
	if err != nil {
		t.Fatalf("CreateLibrary: %v", err)
	}
	loc, err := env.app.CreateLocation(ownerID, lib.ID, "Study")
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	capacity := 1
	shelf, err := env.app.CreateShelf(ownerID, lib.ID, loc.ID, "Top", &capacity)
	if err != nil {
		t.Fatalf("CreateShelf: %v", err)
	}

	first, err := env.app.CreateBook(ownerID, newBookInput())
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	second, err := env.app.CreateBook(ownerID, newBookInput())
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	if _, err := env.app.PlaceOnShelf(first.ID, shelf.ID); err != nil {
		t.Fatalf("PlaceOnShelf first: %v", err)
	}
	if _, err := env.app.PlaceOnShelf(second.ID, shelf.ID); !errors.Is(err, ErrShelfFull) {
		t.Fatalf("full shelf err = %v, want ErrShelfFull", err)
	}

	// Re-placing a book already on the shelf is not a capacity change.
	if _, err := env.app.PlaceOnShelf(first.ID, shelf.ID); err != nil {
		t.Fatalf("re-place same book: %v", err)
	}

	// Taking the book off frees the slot.
	if _, err := env.app.PlaceOnShelf(first.ID, ""); err != nil {
		t.Fatalf("unshelve: %v", err)
	}
	if _, err := env.app.PlaceOnShelf(second.ID, shelf.ID); err != nil {
		t.Fatalf("place after free: %v", err)
	}

	if _, err := env.app.PlaceOnShelf(second.ID, "ghost-shelf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown shelf err = %v, want ErrNotFound", err)
	}
}

func TestUploadCover(t *testing.T) {
	env := newTestEnv(t)
	ownerID := registerTestUser(t, env, "ada@example.com")
	book, err := env.app.CreateBook(ownerID, newBookInput())
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	img := bytes.Repeat([]byte{0xFF}, 64)
	updated, err := env.app.UploadCover(context.Background(), book.ID, bytes.NewReader(img), int64(len(img)), "image/jpeg")
	if err != nil {
		t.Fatalf("UploadCover: %v", err)
	}
	if !strings.Contains(updated.CoverURL, book.ID) {
		t.Fatalf("cover url = %q", updated.CoverURL)
	}

	stored, err := env.app.GetBook(book.ID)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if stored.CoverURL != updated.CoverURL {
		t.Fatal("cover url not persisted")
	}
}
