package users

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate user schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, store UserStore) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Store:  store,
		Hasher: NewBcryptHasher(bcrypt.MinCost),
		Clock: func() time.Time {
			return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func mustStore(t *testing.T, db *gorm.DB) *Store {
	t.Helper()
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

type stubUserStore struct {
	findByEmailUser  User
	findByEmailFound bool
	findByEmailErr   error
	createErr        error
	created          []User
}

func (s *stubUserStore) FindByEmail(context.Context, string) (User, bool, error) {
	return s.findByEmailUser, s.findByEmailFound, s.findByEmailErr
}

func (s *stubUserStore) FindByID(context.Context, string) (User, bool, error) {
	return User{}, false, nil
}

func (s *stubUserStore) Create(_ context.Context, user *User) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, *user)
	return nil
}

func (s *stubUserStore) UpdateProfile(context.Context, string, ProfileUpdate, time.Time) (User, error) {
	return User{}, ErrUserNotFound
}

func (s *stubUserStore) Deactivate(context.Context, string, time.Time) error {
	return ErrUserNotFound
}

// blindLookupStore hides existing users from FindByEmail so the insert races
// into the unique index.
type blindLookupStore struct {
	*Store
}

func (s blindLookupStore) FindByEmail(context.Context, string) (User, bool, error) {
	return User{}, false, nil
}
