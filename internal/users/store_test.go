package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geko-labs/gateway/internal/apperr"
)

func newEmailUser(id, email string) *User {
	hash := "$2a$04$placeholderplaceholderplaceholderplaceholderplace"
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return &User{
		ID:           id,
		Email:        email,
		PasswordHash: &hash,
		FullName:     "Test User",
		AuthProvider: ProviderEmail,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStoreCreateClassifiesConstraintViolations(t *testing.T) {
	store := mustStore(t, openTestDatabase(t))
	ctx := context.Background()

	if err := store.Create(ctx, newEmailUser("user-1", "alice@x.com")); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	err := store.Create(ctx, newEmailUser("user-2", "ALICE@x.com"))
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail for a taken email, got %v", err)
	}

	err = store.Create(ctx, newEmailUser("user-1", "bob@x.com"))
	if err == nil {
		t.Fatalf("expected an id collision to fail")
	}
	if errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("id collision must not be reported as a duplicate email: %v", err)
	}
	if !errors.Is(err, apperr.ErrConstraintViolation) {
		t.Fatalf("expected the constraint violation to stay marked, got %v", err)
	}
}

func TestRegisterReportsIDCollisionAsStoreFailure(t *testing.T) {
	db := openTestDatabase(t)
	store := mustStore(t, db)
	if err := store.Create(context.Background(), newEmailUser("fixed-id", "first@x.com")); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Store:      store,
		Hasher:     NewBcryptHasher(4),
		IDProvider: fixedIDProvider("fixed-id"),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	_, err = service.Register(context.Background(), RegisterInput{Email: "second@x.com", Password: "password123", FullName: "Second"})
	if !apperr.Is(err, apperr.KindStoreUnavailable) {
		t.Fatalf("expected StoreUnavailable for an id collision, got %v", err)
	}
}

func TestIsDeactivated(t *testing.T) {
	store := mustStore(t, openTestDatabase(t))
	service := newTestService(t, store)
	ctx := context.Background()

	user, err := service.Register(ctx, RegisterInput{Email: "alice@x.com", Password: "password123", FullName: "Alice A"})
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	deactivated, err := service.IsDeactivated(ctx, user.ID)
	if err != nil || deactivated {
		t.Fatalf("expected an active user, got %v %v", deactivated, err)
	}
	if err := service.Deactivate(ctx, user.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	deactivated, err = service.IsDeactivated(ctx, user.ID)
	if err != nil || !deactivated {
		t.Fatalf("expected a deactivated user, got %v %v", deactivated, err)
	}
	deactivated, err = service.IsDeactivated(ctx, "ghost")
	if err != nil || deactivated {
		t.Fatalf("unknown ids are not deactivated, got %v %v", deactivated, err)
	}
}

type fixedIDProvider string

func (p fixedIDProvider) NewID() (string, error) {
	return string(p), nil
}
