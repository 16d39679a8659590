package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geko-labs/gateway/internal/apperr"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("users: database connection required")
	// ErrDuplicateEmail is returned by Store.Create when the email is already taken.
	ErrDuplicateEmail = errors.New("users: email already registered")
	// ErrUserNotFound is returned by updates addressing an unknown user.
	ErrUserNotFound = errors.New("users: user not found")
)

// ProfileUpdate carries optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	FullName  *string
	AvatarURL *string
}

// Store persists users in the relational store.
type Store struct {
	db *gorm.DB
}

// NewStore wraps a gorm connection.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Store{db: db}, nil
}

// FindByEmail looks a user up by normalized email. The boolean is false when
// no user exists.
func (s *Store) FindByEmail(ctx context.Context, email string) (User, bool, error) {
	return s.take(ctx, "email = ?", NormalizeEmail(email))
}

// FindByID looks a user up by id.
func (s *Store) FindByID(ctx context.Context, userID string) (User, bool, error) {
	return s.take(ctx, "id = ?", normalize(userID))
}

func (s *Store) take(ctx context.Context, query string, arg string) (User, bool, error) {
	var user User
	err := s.db.WithContext(ctx).Where(query, arg).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

// Create inserts a new user. The unique index on email is the authoritative
// guard; its violation surfaces as ErrDuplicateEmail. Other constraint
// violations, such as an id collision, are returned marked but unclassified.
func (s *Store) Create(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("users: user required")
	}
	user.Email = NormalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Create(user).Error
	if err == nil || !apperr.IsConstraintViolation(err) {
		return err
	}
	marked := apperr.MarkConstraint(err)
	if _, taken, lookupErr := s.FindByEmail(ctx, user.Email); lookupErr == nil && taken {
		return fmt.Errorf("%w: %w", ErrDuplicateEmail, marked)
	}
	return marked
}

// UpdateProfile applies the non-nil fields of the update and returns the
// stored record.
func (s *Store) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate, now time.Time) (User, error) {
	updates := map[string]interface{}{}
	if update.FullName != nil {
		updates["full_name"] = normalize(*update.FullName)
	}
	if update.AvatarURL != nil {
		avatar := normalize(*update.AvatarURL)
		if avatar == "" {
			updates["avatar_url"] = nil
		} else {
			updates["avatar_url"] = avatar
		}
	}
	if len(updates) > 0 {
		updates["updated_at"] = now
		result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(updates)
		if result.Error != nil {
			return User{}, result.Error
		}
		if result.RowsAffected == 0 {
			return User{}, ErrUserNotFound
		}
	}
	user, found, err := s.FindByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// Deactivate clears the active flag. Users are never hard-deleted.
func (s *Store) Deactivate(ctx context.Context, userID string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"is_active": false, "updated_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
