package users

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider identifies the authentication method that created a user.
type Provider string

const (
	ProviderEmail  Provider = "EMAIL"
	ProviderGoogle Provider = "GOOGLE"
	ProviderGithub Provider = "GITHUB"
)

var (
	// ErrInvalidProvider indicates an unknown authentication provider.
	ErrInvalidProvider = errors.New("users: invalid provider")
	// ErrCredentialMismatch indicates a user whose password credential does not match its provider.
	ErrCredentialMismatch = errors.New("users: credential does not match provider")
)

// ParseProvider validates a raw provider name.
func ParseProvider(raw string) (Provider, error) {
	switch Provider(strings.ToUpper(strings.TrimSpace(raw))) {
	case ProviderEmail:
		return ProviderEmail, nil
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderGithub:
		return ProviderGithub, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, raw)
	}
}

// User is the durable identity record. The password hash never leaves the
// store through JSON.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Email        string    `gorm:"column:email;size:255;not null;uniqueIndex:idx_users_email" json:"email"`
	PasswordHash *string   `gorm:"column:password_hash;size:255" json:"-"`
	FullName     string    `gorm:"column:full_name;size:100;not null" json:"fullName"`
	AvatarURL    *string   `gorm:"column:avatar_url;type:text" json:"avatarUrl,omitempty"`
	AuthProvider Provider  `gorm:"column:auth_provider;size:16;not null;default:EMAIL" json:"authProvider"`
	ProviderID   *string   `gorm:"column:provider_id;size:255" json:"providerId,omitempty"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// HasPassword reports whether the user carries a usable password credential.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Validate enforces the provider/credential invariant: EMAIL users carry a
// password hash and federated users never do.
func (u User) Validate() error {
	if _, err := ParseProvider(string(u.AuthProvider)); err != nil {
		return err
	}
	if u.AuthProvider == ProviderEmail && !u.HasPassword() {
		return fmt.Errorf("%w: %s user without password", ErrCredentialMismatch, u.AuthProvider)
	}
	if u.AuthProvider != ProviderEmail && u.HasPassword() {
		return fmt.Errorf("%w: %s user with password", ErrCredentialMismatch, u.AuthProvider)
	}
	return nil
}

// NormalizeEmail canonicalizes an address for storage and lookup.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
