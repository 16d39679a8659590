package workspaces

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geko-labs/gateway/internal/apperr"
	"github.com/geko-labs/gateway/internal/ids"
	"go.uber.org/zap"
)

const (
	opCreate           = "workspaces.create"
	opListForUser      = "workspaces.list_for_user"
	opCheckPermission  = "workspaces.check_permission"
	opWorkspace        = "workspaces.get"
	opExternalIdentity = "workspaces.external_identity"
	opListMembers      = "workspaces.list_members"
	opAddMember        = "workspaces.add_member"
)

var (
	errMissingStore = errors.New("workspaces: store required")
	noOpLogger      = zap.NewNop()
)

// WorkspaceStore is the persistence surface the service needs.
type WorkspaceStore interface {
	CreateWithOwner(ctx context.Context, workspace *Workspace, ownerUserID string, now time.Time) (ExternalIdentity, error)
	ListForUser(ctx context.Context, userID string) ([]Summary, error)
	FindMembership(ctx context.Context, userID, workspaceID string) (Member, bool, error)
	FindWorkspace(ctx context.Context, workspaceID string) (Workspace, bool, error)
	FindExternalIdentity(ctx context.Context, workspaceID string) (ExternalIdentity, bool, error)
	ListMembers(ctx context.Context, workspaceID string) ([]MemberView, error)
	AddMember(ctx context.Context, member *Member) error
}

// ServiceConfig describes the dependencies of the workspace service.
type ServiceConfig struct {
	Store      WorkspaceStore
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service creates workspaces and answers membership questions.
type Service struct {
	store      WorkspaceStore
	idProvider ids.Provider
	now        func() time.Time
	logger     *zap.Logger
}

// NewService constructs the workspace service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
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
		idProvider: idProvider,
		now:        clock,
		logger:     logger,
	}, nil
}

// CreateInput is a validated workspace creation request.
type CreateInput struct {
	CreatorUserID string
	Name          string
	Type          string
}

// CreateWorkspace creates a workspace owned by the creator together with its
// external identity mapping.
func (s *Service) CreateWorkspace(ctx context.Context, input CreateInput) (Workspace, error) {
	creatorID := strings.TrimSpace(input.CreatorUserID)
	if creatorID == "" {
		return Workspace{}, apperr.New(apperr.KindUnauthenticated, opCreate, "missing_creator", "", nil)
	}
	name, err := ValidateName(input.Name)
	if err != nil {
		return Workspace{}, apperr.New(apperr.KindValidationFailed, opCreate, "invalid_name", "Workspace name must be at least 3 characters", err)
	}
	workspaceType, err := ParseType(input.Type)
	if err != nil {
		return Workspace{}, apperr.New(apperr.KindValidationFailed, opCreate, "invalid_type", "Workspace type must be PERSONAL or TEAM", err)
	}

	workspaceID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Workspace{}, apperr.New(apperr.KindWorkspaceCreationFailed, opCreate, "id_generation_failed", "", err)
	}

	now := s.now().UTC()
	workspace := Workspace{
		ID:        workspaceID,
		Name:      name,
		Type:      workspaceType,
		Plan:      PlanFree,
		CreatedAt: now,
	}
	s.logger.Info("creating workspace", zap.String("name", name), zap.String("user_id", creatorID))

	mapping, err := s.store.CreateWithOwner(ctx, &workspace, creatorID, now)
	if err != nil {
		reason := "transaction_failed"
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			reason = stepErr.Step + "_failed"
		}
		s.logError(opCreate, reason, err, zap.String("workspace_id", workspaceID), zap.String("user_id", creatorID))
		return Workspace{}, apperr.New(apperr.KindWorkspaceCreationFailed, opCreate, reason, "", err)
	}

	s.logger.Info("workspace created successfully",
		zap.String("workspace_id", workspace.ID),
		zap.String("virtual_user_id", mapping.VirtualUserID))
	return workspace, nil
}

// ListUserWorkspaces returns the workspaces userID belongs to with the user's
// own role in each. The credit balance is returned unredacted.
func (s *Service) ListUserWorkspaces(ctx context.Context, userID string) ([]Summary, error) {
	rows, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		s.logError(opListForUser, "query_failed", err, zap.String("user_id", userID))
		return nil, apperr.New(apperr.KindStoreUnavailable, opListForUser, "query_failed", "", err)
	}
	return rows, nil
}

// CheckPermission returns the membership binding userID to workspaceID. A
// false result means there is no relation and is not an error.
func (s *Service) CheckPermission(ctx context.Context, userID, workspaceID string) (Member, bool, error) {
	member, found, err := s.store.FindMembership(ctx, userID, workspaceID)
	if err != nil {
		s.logError(opCheckPermission, "query_failed", err,
			zap.String("user_id", userID),
			zap.String("workspace_id", workspaceID))
		return Member{}, false, apperr.New(apperr.KindStoreUnavailable, opCheckPermission, "query_failed", "", err)
	}
	return member, found, nil
}

// Workspace loads a workspace by id.
func (s *Service) Workspace(ctx context.Context, workspaceID string) (Workspace, error) {
	workspace, found, err := s.store.FindWorkspace(ctx, workspaceID)
	if err != nil {
		s.logError(opWorkspace, "query_failed", err, zap.String("workspace_id", workspaceID))
		return Workspace{}, apperr.New(apperr.KindStoreUnavailable, opWorkspace, "query_failed", "", err)
	}
	if !found {
		return Workspace{}, apperr.New(apperr.KindNotFound, opWorkspace, "unknown_workspace", "Workspace not found", nil)
	}
	return workspace, nil
}

// ExternalIdentity returns the virtual user mapping of a workspace.
func (s *Service) ExternalIdentity(ctx context.Context, workspaceID string) (ExternalIdentity, error) {
	mapping, found, err := s.store.FindExternalIdentity(ctx, workspaceID)
	if err != nil {
		s.logError(opExternalIdentity, "query_failed", err, zap.String("workspace_id", workspaceID))
		return ExternalIdentity{}, apperr.New(apperr.KindStoreUnavailable, opExternalIdentity, "query_failed", "", err)
	}
	if !found {
		return ExternalIdentity{}, apperr.New(apperr.KindNotFound, opExternalIdentity, "missing_mapping", "External identity not found", nil)
	}
	return mapping, nil
}

// ListMembers returns the members of a workspace.
func (s *Service) ListMembers(ctx context.Context, workspaceID string) ([]MemberView, error) {
	rows, err := s.store.ListMembers(ctx, workspaceID)
	if err != nil {
		s.logError(opListMembers, "query_failed", err, zap.String("workspace_id", workspaceID))
		return nil, apperr.New(apperr.KindStoreUnavailable, opListMembers, "query_failed", "", err)
	}
	return rows, nil
}

// AddMemberInput describes a membership grant. ActorRole is the role the gate
// resolved for the caller in the same workspace.
type AddMemberInput struct {
	WorkspaceID string
	ActorRole   Role
	UserID      string
	Role        string
}

// AddMember grants a role in a workspace. Only owners and admins may grant,
// ownership is never granted, and admins may grant only roles below their own.
func (s *Service) AddMember(ctx context.Context, input AddMemberInput) (Member, error) {
	role, err := ParseRole(input.Role)
	if err != nil {
		return Member{}, apperr.New(apperr.KindValidationFailed, opAddMember, "invalid_role", "Role must be ADMIN, MEMBER or VIEWER", err)
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return Member{}, apperr.New(apperr.KindValidationFailed, opAddMember, "missing_user", "userId is required", nil)
	}
	if !input.ActorRole.CanManageMembers() {
		return Member{}, apperr.New(apperr.KindRoleNotAllowed, opAddMember, "actor_cannot_manage", "Only owners and admins can add members", nil)
	}
	if role == RoleOwner {
		return Member{}, apperr.New(apperr.KindRoleNotAllowed, opAddMember, "owner_not_grantable", "The OWNER role cannot be granted", nil)
	}
	if !input.ActorRole.Outranks(role) {
		return Member{}, apperr.New(apperr.KindRoleNotAllowed, opAddMember, "role_above_actor", "Admins can only grant MEMBER or VIEWER", nil)
	}

	member := Member{
		WorkspaceID: input.WorkspaceID,
		UserID:      userID,
		Role:        role,
		JoinedAt:    s.now().UTC(),
	}
	if err := s.store.AddMember(ctx, &member); err != nil {
		switch {
		case errors.Is(err, ErrUnknownUser):
			return Member{}, apperr.New(apperr.KindNotFound, opAddMember, "unknown_user", "User not found", err)
		case errors.Is(err, ErrMembershipExists):
			return Member{}, apperr.New(apperr.KindMembershipExists, opAddMember, "duplicate_membership", "", err)
		default:
			s.logError(opAddMember, "insert_failed", err,
				zap.String("workspace_id", input.WorkspaceID),
				zap.String("user_id", userID))
			return Member{}, apperr.New(apperr.KindStoreUnavailable, opAddMember, "insert_failed", "", err)
		}
	}

	s.logger.Info("workspace member added",
		zap.String("workspace_id", member.WorkspaceID),
		zap.String("user_id", member.UserID),
		zap.String("role", string(member.Role)))
	return member, nil
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
	s.logger.Error("workspaces service error", attrs...)
}
