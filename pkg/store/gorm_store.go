package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
)

const migrateLockID int64 = 80080021

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, runs auto-migrations under an advisory lock,
// and seeds the default roles.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&RoleModel{},
			&BookModel{},
			&LibraryModel{},
			&LocationModel{},
			&ShelfModel{},
			&RefreshTokenModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	s := &GormStore{db: db}
	for _, role := range []domain.Role{
		{Name: string(domain.RoleUser), Description: "Default member role", Active: true},
		{Name: string(domain.RoleAdmin), Description: "Catalog administrator", Active: true},
	} {
		if err := s.EnsureRole(role); err != nil {
			return nil, fmt.Errorf("seed role %q: %w", role.Name, err)
		}
	}
	return s, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "password_hash", "first_name", "last_name", "email_confirmed",
			"bio", "profile_picture_url", "role", "active", "updated_at",
		}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// EnsureRole inserts a role if absent.
func (s *GormStore) EnsureRole(role domain.Role) error {
	model := RoleModel{Name: role.Name, Description: role.Description, Active: role.Active}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// ListRoles returns all roles.
func (s *GormStore) ListRoles() ([]domain.Role, error) {
	var models []RoleModel
	if err := s.db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Role, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Role{Name: m.Name, Description: m.Description, Active: m.Active})
	}
	return res, nil
}

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model, err := bookToModel(b)
	if err != nil {
		return fmt.Errorf("encode book metadata: %w", err)
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"owner_id", "shelf_id", "title", "author", "genre", "isbn", "year_published",
			"description", "cover_url", "publisher", "page_count", "language", "price",
			"condition", "status", "active", "metadata", "updated_at",
		}),
	}).Create(&model).Error
}

// GetBook returns a book by ID.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns all books ordered by created_at.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	return s.listBooks("created_at ASC")
}

// ListBooksByOwner returns books filtered by owner.
func (s *GormStore) ListBooksByOwner(ownerID string) ([]domain.Book, error) {
	return s.listBooks("created_at ASC", "owner_id = ?", ownerID)
}

func (s *GormStore) listBooks(order string, conds ...any) ([]domain.Book, error) {
	var models []BookModel
	tx := s.db.Order(order)
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// DeleteBook removes a book and reports whether it existed.
func (s *GormStore) DeleteBook(id string) (bool, error) {
	res := s.db.Delete(&BookModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountBooksOnShelf returns the number of books placed on a shelf.
func (s *GormStore) CountBooksOnShelf(shelfID string) (int, error) {
	var count int64
	if err := s.db.Model(&BookModel{}).Where("shelf_id = ?", shelfID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveLibrary stores or updates a library.
func (s *GormStore) SaveLibrary(l domain.Library) error {
	model := LibraryModel{ID: l.ID, OwnerID: l.OwnerID, Name: l.Name, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "name", "updated_at"}),
	}).Create(&model).Error
}

// GetLibrary returns a library by ID.
func (s *GormStore) GetLibrary(id string) (domain.Library, bool, error) {
	var model LibraryModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Library{}, false, nil
		}
		return domain.Library{}, false, err
	}
	return domain.Library(model), true, nil
}

// ListLibrariesByOwner returns libraries owned by a user.
func (s *GormStore) ListLibrariesByOwner(ownerID string) ([]domain.Library, error) {
	var models []LibraryModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Library, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Library(m))
	}
	return res, nil
}

// DeleteLibrary removes a library and reports whether it existed.
func (s *GormStore) DeleteLibrary(id string) (bool, error) {
	res := s.db.Delete(&LibraryModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SaveLocation stores or updates a location.
func (s *GormStore) SaveLocation(l domain.Location) error {
	model := LocationModel{ID: l.ID, LibraryID: l.LibraryID, Name: l.Name, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"library_id", "name", "updated_at"}),
	}).Create(&model).Error
}

// GetLocation returns a location by ID.
func (s *GormStore) GetLocation(id string) (domain.Location, bool, error) {
	var model LocationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Location{}, false, nil
		}
		return domain.Location{}, false, err
	}
	return domain.Location(model), true, nil
}

// ListLocationsByLibrary returns locations belonging to a library.
func (s *GormStore) ListLocationsByLibrary(libraryID string) ([]domain.Location, error) {
	var models []LocationModel
	if err := s.db.Where("library_id = ?", libraryID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Location, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Location(m))
	}
	return res, nil
}

// SaveShelf stores or updates a shelf.
func (s *GormStore) SaveShelf(sh domain.Shelf) error {
	model := ShelfModel{ID: sh.ID, LocationID: sh.LocationID, Name: sh.Name, Capacity: sh.Capacity, CreatedAt: sh.CreatedAt, UpdatedAt: sh.UpdatedAt}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"location_id", "name", "capacity", "updated_at"}),
	}).Create(&model).Error
}

// GetShelf returns a shelf by ID.
func (s *GormStore) GetShelf(id string) (domain.Shelf, bool, error) {
	var model ShelfModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Shelf{}, false, nil
		}
		return domain.Shelf{}, false, err
	}
	return domain.Shelf(model), true, nil
}

// ListShelvesByLocation returns shelves belonging to a location.
func (s *GormStore) ListShelvesByLocation(locationID string) ([]domain.Shelf, error) {
	var models []ShelfModel
	if err := s.db.Where("location_id = ?", locationID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Shelf, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Shelf(m))
	}
	return res, nil
}
