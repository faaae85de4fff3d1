package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
)

// CreateLibrary adds a library owned by the user.
func (a *App) CreateLibrary(ownerID, name string) (domain.Library, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Library{}, NewValidationError("library name is required")
	}
	now := time.Now().UTC()
	lib := domain.Library{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveLibrary(lib); err != nil {
		return domain.Library{}, fmt.Errorf("save library: %w", err)
	}
	return lib, nil
}

// GetLibrary returns a library owned by the user.
func (a *App) GetLibrary(ownerID, id string) (domain.Library, error) {
	lib, found, err := a.store.GetLibrary(id)
	if err != nil {
		return domain.Library{}, fmt.Errorf("fetch library: %w", err)
	}
	if !found {
		return domain.Library{}, ErrNotFound
	}
	if lib.OwnerID != ownerID {
		return domain.Library{}, ErrForbidden
	}
	return lib, nil
}

// ListLibraries returns the user's libraries. Never nil.
func (a *App) ListLibraries(ownerID string) ([]domain.Library, error) {
	libs, err := a.store.ListLibrariesByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	if libs == nil {
		libs = []domain.Library{}
	}
	return libs, nil
}

// DeleteLibrary removes a library owned by the user.
func (a *App) DeleteLibrary(ownerID, id string) error {
	if _, err := a.GetLibrary(ownerID, id); err != nil {
		return err
	}
	deleted, err := a.store.DeleteLibrary(id)
	if err != nil {
		return fmt.Errorf("delete library: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// CreateLocation adds a location inside one of the user's libraries.
func (a *App) CreateLocation(ownerID, libraryID, name string) (domain.Location, error) {
	if _, err := a.GetLibrary(ownerID, libraryID); err != nil {
		return domain.Location{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Location{}, NewValidationError("location name is required")
	}
	now := time.Now().UTC()
	loc := domain.Location{
		ID:        uuid.NewString(),
		LibraryID: libraryID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveLocation(loc); err != nil {
		return domain.Location{}, fmt.Errorf("save location: %w", err)
	}
	return loc, nil
}

// ListLocations returns the locations of one of the user's libraries. Never nil.
func (a *App) ListLocations(ownerID, libraryID string) ([]domain.Location, error) {
	if _, err := a.GetLibrary(ownerID, libraryID); err != nil {
		return nil, err
	}
	locs, err := a.store.ListLocationsByLibrary(libraryID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	if locs == nil {
		locs = []domain.Location{}
	}
	return locs, nil
}

// getOwnedLocation resolves a location, requires it to sit in the named
// library, and checks the containment chain up to the owning library.
func (a *App) getOwnedLocation(ownerID, libraryID, locationID string) (domain.Location, error) {
	loc, found, err := a.store.GetLocation(locationID)
	if err != nil {
		return domain.Location{}, fmt.Errorf("fetch location: %w", err)
	}
	if !found || loc.LibraryID != libraryID {
		return domain.Location{}, ErrNotFound
	}
	if _, err := a.GetLibrary(ownerID, loc.LibraryID); err != nil {
		return domain.Location{}, err
	}
	return loc, nil
}

// CreateShelf adds a shelf to a location. A nil capacity means unbounded.
func (a *App) CreateShelf(ownerID, libraryID, locationID, name string, capacity *int) (domain.Shelf, error) {
	if _, err := a.getOwnedLocation(ownerID, libraryID, locationID); err != nil {
		return domain.Shelf{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Shelf{}, NewValidationError("shelf name is required")
	}
	if capacity != nil && *capacity < 0 {
		return domain.Shelf{}, NewValidationError("shelf capacity cannot be negative")
	}
	now := time.Now().UTC()
	shelf := domain.Shelf{
		ID:         uuid.NewString(),
		LocationID: locationID,
		Name:       name,
		Capacity:   capacity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.SaveShelf(shelf); err != nil {
		return domain.Shelf{}, fmt.Errorf("save shelf: %w", err)
	}
	return shelf, nil
}

// ListShelves returns the shelves of a location the user owns. Never nil.
func (a *App) ListShelves(ownerID, libraryID, locationID string) ([]domain.Shelf, error) {
	if _, err := a.getOwnedLocation(ownerID, libraryID, locationID); err != nil {
		return nil, err
	}
	shelves, err := a.store.ListShelvesByLocation(locationID)
	if err != nil {
		return nil, fmt.Errorf("list shelves: %w", err)
	}
	if shelves == nil {
		shelves = []domain.Shelf{}
	}
	return shelves, nil
}
