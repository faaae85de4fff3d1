package store

import (
	"sync"

	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
)

// MemoryStore keeps catalog data in-process. It implements Store with the
// same semantics as GormStore and backs tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	emails     map[string]string // email -> user ID
	roles      map[string]domain.Role
	books      map[string]domain.Book
	bookOrder  []string
	libraries  map[string]domain.Library
	locations  map[string]domain.Location
	shelves    map[string]domain.Shelf
	userOrder  []string
	libOrder   []string
	locOrder   []string
	shelfOrder []string
}

// NewMemoryStore initializes an empty in-memory store with default roles.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		users:     make(map[string]domain.User),
		emails:    make(map[string]string),
		roles:     make(map[string]domain.Role),
		books:     make(map[string]domain.Book),
		libraries: make(map[string]domain.Library),
		locations: make(map[string]domain.Location),
		shelves:   make(map[string]domain.Shelf),
	}
	_ = m.EnsureRole(domain.Role{Name: string(domain.RoleUser), Description: "Default member role", Active: true})
	_ = m.EnsureRole(domain.Role{Name: string(domain.RoleAdmin), Description: "Catalog administrator", Active: true})
	return m
}

// SaveUser stores or replaces a user record.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, exists := m.users[u.ID]; exists {
		delete(m.emails, prev.Email)
	} else {
		m.userOrder = append(m.userOrder, u.ID)
	}
	m.users[u.ID] = u
	m.emails[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.emails[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns users in insertion order.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.userOrder))
	for _, id := range m.userOrder {
		if u, ok := m.users[id]; ok {
			res = append(res, u)
		}
	}
	return res, nil
}

// EnsureRole inserts a role if absent.
func (m *MemoryStore) EnsureRole(role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.roles[role.Name]; !exists {
		m.roles[role.Name] = role
	}
	return nil
}

// ListRoles returns all roles.
func (m *MemoryStore) ListRoles() ([]domain.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Role, 0, len(m.roles))
	for _, r := range m.roles {
		res = append(res, r)
	}
	return res, nil
}

// SaveBook stores or replaces a book record and tracks insertion order.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.ID]; !exists {
		m.bookOrder = append(m.bookOrder, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

// GetBook returns a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks returns books in insertion order.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.bookOrder))
	for _, id := range m.bookOrder {
		if b, ok := m.books[id]; ok {
			res = append(res, b)
		}
	}
	return res, nil
}

// ListBooksByOwner returns books filtered by owner ID.
func (m *MemoryStore) ListBooksByOwner(ownerID string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.bookOrder))
	for _, id := range m.bookOrder {
		if b, ok := m.books[id]; ok && b.OwnerID == ownerID {
			res = append(res, b)
		}
	}
	return res, nil
}

// DeleteBook removes a book and reports whether it existed.
func (m *MemoryStore) DeleteBook(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return false, nil
	}
	delete(m.books, id)
	return true, nil
}

// CountBooksOnShelf returns the number of books placed on a shelf.
func (m *MemoryStore) CountBooksOnShelf(shelfID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, b := range m.books {
		if b.ShelfID == shelfID {
			count++
		}
	}
	return count, nil
}

// SaveLibrary stores or replaces a library record.
func (m *MemoryStore) SaveLibrary(l domain.Library) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.libraries[l.ID]; !exists {
		m.libOrder = append(m.libOrder, l.ID)
	}
	m.libraries[l.ID] = l
	return nil
}

// GetLibrary returns a library by ID.
func (m *MemoryStore) GetLibrary(id string) (domain.Library, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.libraries[id]
	return l, ok, nil
}

// ListLibrariesByOwner returns libraries owned by a user.
func (m *MemoryStore) ListLibrariesByOwner(ownerID string) ([]domain.Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Library, 0, len(m.libOrder))
	for _, id := range m.libOrder {
		if l, ok := m.libraries[id]; ok && l.OwnerID == ownerID {
			res = append(res, l)
		}
	}
	return res, nil
}

// DeleteLibrary removes a library and reports whether it existed.
func (m *MemoryStore) DeleteLibrary(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.libraries[id]; !ok {
		return false, nil
	}
	delete(m.libraries, id)
	return true, nil
}

// SaveLocation stores or replaces a location record.
func (m *MemoryStore) SaveLocation(l domain.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.locations[l.ID]; !exists {
		m.locOrder = append(m.locOrder, l.ID)
	}
	m.locations[l.ID] = l
	return nil
}

// GetLocation returns a location by ID.
func (m *MemoryStore) GetLocation(id string) (domain.Location, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locations[id]
	return l, ok, nil
}

// ListLocationsByLibrary returns locations belonging to a library.
func (m *MemoryStore) ListLocationsByLibrary(libraryID string) ([]domain.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Location, 0, len(m.locOrder))
	for _, id := range m.locOrder {
		if l, ok := m.locations[id]; ok && l.LibraryID == libraryID {
			res = append(res, l)
		}
	}
	return res, nil
}

// SaveShelf stores or replaces a shelf record.
func (m *MemoryStore) SaveShelf(s domain.Shelf) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.shelves[s.ID]; !exists {
		m.shelfOrder = append(m.shelfOrder, s.ID)
	}
	m.shelves[s.ID] = s
	return nil
}

// GetShelf returns a shelf by ID.
func (m *MemoryStore) GetShelf(id string) (domain.Shelf, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shelves[id]
	return s, ok, nil
}

// ListShelvesByLocation returns shelves belonging to a location.
func (m *MemoryStore) ListShelvesByLocation(locationID string) ([]domain.Shelf, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Shelf, 0, len(m.shelfOrder))
	for _, id := range m.shelfOrder {
		if s, ok := m.shelves[id]; ok && s.LocationID == locationID {
			res = append(res, s)
		}
	}
	return res, nil
}
