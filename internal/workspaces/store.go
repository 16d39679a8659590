package workspaces

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geko-labs/gateway/internal/apperr"
	"gorm.io/gorm"
)

// Steps of the workspace creation transaction.
const (
	StepInsertWorkspace        = "insert_workspace"
	StepInsertOwnerMembership  = "insert_owner_membership"
	StepInsertExternalIdentity = "insert_external_identity"
)

var (
	errMissingDatabase = errors.New("workspaces: database connection required")
	// ErrUnknownUser indicates a membership addressed a user that does not exist.
	ErrUnknownUser = errors.New("workspaces: unknown user")
	// ErrMembershipExists indicates the user already belongs to the workspace.
	ErrMembershipExists = errors.New("workspaces: membership already exists")
)

// StepError reports which step of the creation transaction failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("workspaces: %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Store persists workspaces, memberships and external identity mappings.
// Every query is filtered by workspace id or user id.
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

// CreateWithOwner inserts the workspace, the OWNER membership of ownerUserID
// and the external identity mapping in one transaction. Nothing persists
// unless all three inserts succeed.
func (s *Store) CreateWithOwner(ctx context.Context, workspace *Workspace, ownerUserID string, now time.Time) (ExternalIdentity, error) {
	var mapping ExternalIdentity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workspace).Error; err != nil {
			return &StepError{Step: StepInsertWorkspace, Err: apperr.MarkConstraint(err)}
		}

		owner := Member{
			WorkspaceID: workspace.ID,
			UserID:      ownerUserID,
			Role:        RoleOwner,
			JoinedAt:    now,
		}
		if err := tx.Create(&owner).Error; err != nil {
			return &StepError{Step: StepInsertOwnerMembership, Err: apperr.MarkConstraint(err)}
		}

		mapping = ExternalIdentity{
			WorkspaceID:   workspace.ID,
			VirtualUserID: VirtualUserID(workspace.ID),
			CreatedAt:     now,
		}
		if err := tx.Create(&mapping).Error; err != nil {
			return &StepError{Step: StepInsertExternalIdentity, Err: apperr.MarkConstraint(err)}
		}
		return nil
	})
	if err != nil {
		return ExternalIdentity{}, err
	}
	return mapping, nil
}

// ListForUser returns one row per membership of userID ordered by join time.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]Summary, error) {
	rows := make([]Summary, 0)
	err := s.db.WithContext(ctx).
		Table("workspace_members AS m").
		Select("w.id AS id, w.name AS name, w.type AS type, m.role AS role, w.credit_balance AS credit_balance").
		Joins("JOIN workspaces AS w ON w.id = m.workspace_id").
		Where("m.user_id = ?", userID).
		Order("m.joined_at ASC").
		Order("w.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindMembership looks up the (workspaceID, userID) relation.
func (s *Store) FindMembership(ctx context.Context, userID, workspaceID string) (Member, bool, error) {
	var member Member
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Member{}, false, nil
	}
	if err != nil {
		return Member{}, false, err
	}
	return member, true, nil
}

// FindWorkspace loads a workspace by id.
func (s *Store) FindWorkspace(ctx context.Context, workspaceID string) (Workspace, bool, error) {
	var workspace Workspace
	err := s.db.WithContext(ctx).Where("id = ?", workspaceID).Take(&workspace).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Workspace{}, false, nil
	}
	if err != nil {
		return Workspace{}, false, err
	}
	return workspace, true, nil
}

// FindExternalIdentity loads the mapping of a workspace.
func (s *Store) FindExternalIdentity(ctx context.Context, workspaceID string) (ExternalIdentity, bool, error) {
	var mapping ExternalIdentity
	err := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).Take(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ExternalIdentity{}, false, nil
	}
	if err != nil {
		return ExternalIdentity{}, false, err
	}
	return mapping, true, nil
}

// ListMembers returns the members of a workspace ordered by join time.
func (s *Store) ListMembers(ctx context.Context, workspaceID string) ([]MemberView, error) {
	rows := make([]MemberView, 0)
	err := s.db.WithContext(ctx).
		Table("workspace_members AS m").
		Select("m.user_id AS user_id, u.email AS email, u.full_name AS full_name, m.role AS role, m.joined_at AS joined_at").
		Joins("JOIN users AS u ON u.id = m.user_id").
		Where("m.workspace_id = ?", workspaceID).
		Order("m.joined_at ASC").
		Order("m.user_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AddMember inserts a membership for an existing user.
func (s *Store) AddMember(ctx context.Context, member *Member) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var userCount int64
		if err := tx.Table("users").Where("id = ?", member.UserID).Count(&userCount).Error; err != nil {
			return err
		}
		if userCount == 0 {
			return ErrUnknownUser
		}

		var memberCount int64
		if err := tx.Model(&Member{}).
			Where("workspace_id = ? AND user_id = ?", member.WorkspaceID, member.UserID).
			Count(&memberCount).Error; err != nil {
			return err
		}
		if memberCount > 0 {
			return ErrMembershipExists
		}

		if err := tx.Create(member).Error; err != nil {
			if apperr.IsConstraintViolation(err) {
				return fmt.Errorf("%w: %w", ErrMembershipExists, apperr.MarkConstraint(err))
			}
			return err
		}
		return nil
	})
}
