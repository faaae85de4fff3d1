package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/darthVad3r/StacksOfChaos-sub000/internal/app"
)

type bookRequest struct {
	ID            string            `json:"id,omitempty"`
	OwnerID       string            `json:"ownerId,omitempty"`
	Title         string            `json:"title"`
	Author        string            `json:"author"`
	Genre         string            `json:"genre,omitempty"`
	ISBN          string            `json:"isbn,omitempty"`
	YearPublished *int              `json:"yearPublished,omitempty"`
	Description   string            `json:"description,omitempty"`
	Publisher     string            `json:"publisher,omitempty"`
	PageCount     int               `json:"pageCount,omitempty"`
	Language      string            `json:"language,omitempty"`
	Price         float64           `json:"price,omitempty"`
	Condition     string            `json:"condition,omitempty"`
	Status        string            `json:"status,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (req bookRequest) input() app.BookInput {
	return app.BookInput{
		Title:         req.Title,
		Author:        req.Author,
		Genre:         req.Genre,
		ISBN:          req.ISBN,
		YearPublished: req.YearPublished,
		Description:   req.Description,
		Publisher:     req.Publisher,
		PageCount:     req.PageCount,
		Language:      req.Language,
		Price:         req.Price,
		Condition:     req.Condition,
		Status:        req.Status,
		Metadata:      req.Metadata,
	}
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Listing the whole catalog requires a signed-in user; the
		// per-book routes do not.
		if _, ok := s.authorize(r); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		books, err := s.app.ListBooks()
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, books)
	case http.MethodPost:
		s.handleCreateBook(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ownerID := req.OwnerID
	if user, ok := s.authorize(r); ok {
		ownerID = user.ID
	}
	book, err := s.app.CreateBook(ownerID, req.input())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// /api/books/{id}, /api/books/{id}/shelf, /api/books/{id}/cover
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/books/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "shelf":
			s.handleBookShelf(w, r, id)
		case "cover":
			s.handleBookCover(w, r, id)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		book, err := s.app.GetBook(id)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodPut:
		var req bookRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		book, err := s.app.UpdateBook(id, req.ID, req.input())
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.app.DeleteBook(id); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

type shelfPlacementRequest struct {
	ShelfID string `json:"shelfId"`
}

func (s *Server) handleBookShelf(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req shelfPlacementRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	book, err := s.app.PlaceOnShelf(id, req.ShelfID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleBookCover(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "cover must be an image")
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxCoverBytes)
	book, err := s.app.UploadCover(r.Context(), id, body, r.ContentLength, contentType)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}
