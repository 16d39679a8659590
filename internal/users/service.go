package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geko-labs/gateway/internal/apperr"
	"github.com/geko-labs/gateway/internal/ids"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	opRegister      = "users.register"
	opAuthenticate  = "users.authenticate"
	opProfile       = "users.profile"
	opUpdateProfile = "users.update_profile"
	opDeactivate    = "users.deactivate"
	opAccountStatus = "users.account_status"
)

var (
	errMissingStore = errors.New("users: store required")
	noOpLogger      = zap.NewNop()
)

// UserStore is the persistence surface the service needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (User, bool, error)
	FindByID(ctx context.Context, userID string) (User, bool, error)
	Create(ctx context.Context, user *User) error
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate, now time.Time) (User, error)
	Deactivate(ctx context.Context, userID string, now time.Time) error
}

// ServiceConfig describes the dependencies required for registration.
type ServiceConfig struct {
	Store      UserStore
	Hasher     PasswordHasher
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service registers and authenticates users.
type Service struct {
	store      UserStore
	hasher     PasswordHasher
	idProvider ids.Provider
	now        func() time.Time
	logger     *zap.Logger
}

// NewService constructs the registration service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = NewBcryptHasher(bcrypt.DefaultCost)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = ids.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:      cfg.Store,
		hasher:     hasher,
		idProvider: idProvider,
		now:        clock,
		logger:     logger,
	}, nil
}

// RegisterInput is a validated registration request.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// Register creates an EMAIL user. An existing federated account yields
// ProviderConflict and an existing EMAIL account yields UserAlreadyExists.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	email := NormalizeEmail(input.Email)
	s.logger.Info("attempting user registration", zap.String("email", email))

	existing, found, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		s.logError(opRegister, "lookup_failed", err, zap.String("email", email))
		return User{}, apperr.New(apperr.KindStoreUnavailable, opRegister, "lookup_failed", "", err)
	}
	if found {
		if existing.AuthProvider != ProviderEmail {
			return User{}, providerConflict(opRegister, existing.AuthProvider)
		}
		s.logger.Warn("registration failed: user already exists", zap.String("email", email))
		return User{}, apperr.New(apperr.KindUserAlreadyExists, opRegister, "duplicate_email", "", nil)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return User{}, apperr.New(apperr.KindValidationFailed, opRegister, "password_too_long", "Password must be at most 72 bytes", err)
		}
		s.logError(opRegister, "hash_failed", err)
		return User{}, apperr.New(apperr.KindInternal, opRegister, "hash_failed", "", err)
	}

	userID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRegister, "id_generation_failed", err)
		return User{}, apperr.New(apperr.KindInternal, opRegister, "id_generation_failed", "", err)
	}

	now := s.now().UTC()
	user := User{
		ID:           userID,
		Email:        email,
		PasswordHash: &hash,
		FullName:     normalize(input.FullName),
		AuthProvider: ProviderEmail,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, &user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			s.logger.Warn("registration lost uniqueness race", zap.String("email", email))
			return User{}, apperr.New(apperr.KindUserAlreadyExists, opRegister, "duplicate_email", "", err)
		}
		s.logError(opRegister, "insert_failed", err, zap.String("email", email))
		return User{}, apperr.New(apperr.KindStoreUnavailable, opRegister, "insert_failed", "", err)
	}

	s.logger.Info("user registered successfully", zap.String("user_id", user.ID))
	return user, nil
}

// Authenticate verifies an EMAIL user's password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	normalized := NormalizeEmail(email)
	user, found, err := s.store.FindByEmail(ctx, normalized)
	if err != nil {
		s.logError(opAuthenticate, "lookup_failed", err, zap.String("email", normalized))
		return User{}, apperr.New(apperr.KindStoreUnavailable, opAuthenticate, "lookup_failed", "", err)
	}
	if !found {
		return User{}, apperr.New(apperr.KindInvalidCredentials, opAuthenticate, "unknown_email", "", nil)
	}
	if user.AuthProvider != ProviderEmail {
		return User{}, providerConflict(opAuthenticate, user.AuthProvider)
	}
	if !user.IsActive {
		return User{}, apperr.New(apperr.KindInvalidCredentials, opAuthenticate, "inactive_user", "", nil)
	}
	if !user.HasPassword() {
		return User{}, apperr.New(apperr.KindInvalidCredentials, opAuthenticate, "missing_credential", "", nil)
	}
	if err := s.hasher.Compare(*user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return User{}, apperr.New(apperr.KindInvalidCredentials, opAuthenticate, "password_mismatch", "", err)
		}
		s.logError(opAuthenticate, "compare_failed", err, zap.String("user_id", user.ID))
		return User{}, apperr.New(apperr.KindInternal, opAuthenticate, "compare_failed", "", err)
	}
	return user, nil
}

// Profile returns the user addressed by id.
func (s *Service) Profile(ctx context.Context, userID string) (User, error) {
	user, found, err := s.store.FindByID(ctx, userID)
	if err != nil {
		s.logError(opProfile, "lookup_failed", err, zap.String("user_id", userID))
		return User{}, apperr.New(apperr.KindStoreUnavailable, opProfile, "lookup_failed", "", err)
	}
	if !found {
		return User{}, apperr.New(apperr.KindNotFound, opProfile, "unknown_user", "User not found", nil)
	}
	return user, nil
}

// UpdateProfile changes display attributes of a user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	user, err := s.store.UpdateProfile(ctx, userID, update, s.now().UTC())
	if errors.Is(err, ErrUserNotFound) {
		return User{}, apperr.New(apperr.KindNotFound, opUpdateProfile, "unknown_user", "User not found", err)
	}
	if err != nil {
		s.logError(opUpdateProfile, "update_failed", err, zap.String("user_id", userID))
		return User{}, apperr.New(apperr.KindStoreUnavailable, opUpdateProfile, "update_failed", "", err)
	}
	return user, nil
}

// Deactivate soft-deletes a user by clearing its active flag.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	err := s.store.Deactivate(ctx, userID, s.now().UTC())
	if errors.Is(err, ErrUserNotFound) {
		return apperr.New(apperr.KindNotFound, opDeactivate, "unknown_user", "User not found", err)
	}
	if err != nil {
		s.logError(opDeactivate, "update_failed", err, zap.String("user_id", userID))
		return apperr.New(apperr.KindStoreUnavailable, opDeactivate, "update_failed", "", err)
	}
	s.logger.Info("user deactivated", zap.String("user_id", userID))
	return nil
}

// IsDeactivated reports whether userID names a user whose active flag was
// cleared. Unknown ids are reported as not deactivated.
func (s *Service) IsDeactivated(ctx context.Context, userID string) (bool, error) {
	user, found, err := s.store.FindByID(ctx, userID)
	if err != nil {
		s.logError(opAccountStatus, "lookup_failed", err, zap.String("user_id", userID))
		return false, apperr.New(apperr.KindStoreUnavailable, opAccountStatus, "lookup_failed", "", err)
	}
	return found && !user.IsActive, nil
}

func providerConflict(operation string, provider Provider) error {
	message := fmt.Sprintf("This email is linked to %s. Please login with that provider.", provider)
	return apperr.New(apperr.KindProviderConflict, operation, "provider_conflict", message, nil)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("users service error", attrs...)
}
