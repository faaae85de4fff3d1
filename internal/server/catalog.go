package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
)

type libraryRequest struct {
	Name string `json:"name"`
}

type locationRequest struct {
	Name string `json:"name"`
}

type shelfRequest struct {
	Name     string `json:"name"`
	Capacity *int   `json:"capacity,omitempty"`
}

func (s *Server) handleLibraries(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		libs, err := s.app.ListLibraries(user.ID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, libs)
	case http.MethodPost:
		var req libraryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		lib, err := s.app.CreateLibrary(user.ID, req.Name)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, lib)
	default:
		methodNotAllowed(w)
	}
}

// /api/libraries/{id}
// /api/libraries/{id}/locations
// /api/libraries/{id}/locations/{locID}/shelves
func (s *Server) handleLibrarySubtree(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/libraries/")
	parts := strings.Split(path, "/")
	libID := parts[0]
	if libID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case len(parts) == 1:
		s.handleLibraryByID(w, r, user, libID)
	case len(parts) == 2 && parts[1] == "locations":
		s.handleLocations(w, r, user, libID)
	case len(parts) == 4 && parts[1] == "locations" && parts[3] == "shelves":
		s.handleShelves(w, r, user, libID, parts[2])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleLibraryByID(w http.ResponseWriter, r *http.Request, user domain.User, libID string) {
	switch r.Method {
	case http.MethodGet:
		lib, err := s.app.GetLibrary(user.ID, libID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, lib)
	case http.MethodDelete:
		if err := s.app.DeleteLibrary(user.ID, libID); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request, user domain.User, libID string) {
	switch r.Method {
	case http.MethodGet:
		locs, err := s.app.ListLocations(user.ID, libID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, locs)
	case http.MethodPost:
		var req locationRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		loc, err := s.app.CreateLocation(user.ID, libID, req.Name)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, loc)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleShelves(w http.ResponseWriter, r *http.Request, user domain.User, libraryID, locationID string) {
	switch r.Method {
	case http.MethodGet:
		shelves, err := s.app.ListShelves(user.ID, libraryID, locationID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, shelves)
	case http.MethodPost:
		var req shelfRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		shelf, err := s.app.CreateShelf(user.ID, libraryID, locationID, req.Name, req.Capacity)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, shelf)
	default:
		methodNotAllowed(w)
	}
}
