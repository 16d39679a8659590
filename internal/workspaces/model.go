package workspaces

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geko-labs/gateway/internal/users"
)

// Type distinguishes single-user from shared workspaces.
type Type string

const (
	TypePersonal Type = "PERSONAL"
	TypeTeam     Type = "TEAM"
)

// Plan is the billing plan of a workspace.
type Plan string

const (
	PlanFree       Plan = "FREE"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

// Role binds a user to a workspace with a level of authority.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

const (
	// MinNameLength is the shortest accepted workspace name.
	MinNameLength       = 3
	maxNameLength       = 100
	virtualUserIDPrefix = "ws_"
)

var (
	ErrInvalidName = errors.New("workspaces: invalid name")
	ErrInvalidType = errors.New("workspaces: invalid type")
	ErrInvalidRole = errors.New("workspaces: invalid role")
)

// ParseType validates a workspace type; empty input selects TEAM.
func ParseType(raw string) (Type, error) {
	switch Type(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", TypeTeam:
		return TypeTeam, nil
	case TypePersonal:
		return TypePersonal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, raw)
	}
}

// ParseRole validates a membership role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := roleRank[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
	return role, nil
}

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// Outranks reports whether r carries strictly more authority than other.
func (r Role) Outranks(other Role) bool {
	return roleRank[r] > roleRank[other]
}

// CanViewBilling reports whether the role may see the credit balance.
func (r Role) CanViewBilling() bool {
	return r == RoleOwner || r == RoleAdmin
}

// CanManageMembers reports whether the role may add members.
func (r Role) CanManageMembers() bool {
	return r == RoleOwner || r == RoleAdmin
}

// ValidateName trims and checks a workspace name.
func ValidateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len([]rune(name)) < MinNameLength {
		return "", fmt.Errorf("%w: shorter than %d characters", ErrInvalidName, MinNameLength)
	}
	if len([]rune(name)) > maxNameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return name, nil
}

// VirtualUserID derives the external identity of a workspace.
func VirtualUserID(workspaceID string) string {
	return virtualUserIDPrefix + workspaceID
}

// Workspace is a tenant container.
type Workspace struct {
	ID            string    `gorm:"column:id;primaryKey;size:36"`
	Name          string    `gorm:"column:name;size:100;not null"`
	Type          Type      `gorm:"column:type;size:16;not null;default:TEAM"`
	Plan          Plan      `gorm:"column:plan;size:16;not null;default:FREE"`
	CreditBalance int64     `gorm:"column:credit_balance;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing workspaces.
func (Workspace) TableName() string {
	return "workspaces"
}

// Member binds one user to one workspace with exactly one role.
type Member struct {
	WorkspaceID string      `gorm:"column:workspace_id;primaryKey;size:36"`
	UserID      string      `gorm:"column:user_id;primaryKey;size:36;index:idx_workspace_members_user"`
	Role        Role        `gorm:"column:role;size:16;not null;default:MEMBER"`
	JoinedAt    time.Time   `gorm:"column:joined_at;autoCreateTime"`
	Workspace   *Workspace  `gorm:"foreignKey:WorkspaceID;references:ID;constraint:OnDelete:CASCADE"`
	User        *users.User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName exposes the table backing memberships.
func (Member) TableName() string {
	return "workspace_members"
}

// ExternalIdentity maps a workspace onto the synthetic user id a downstream
// system addresses it by. Rows are written once, together with the workspace.
type ExternalIdentity struct {
	WorkspaceID   string     `gorm:"column:workspace_id;primaryKey;size:36"`
	VirtualUserID string     `gorm:"column:virtual_user_id;size:64;not null;uniqueIndex:idx_workspace_external_virtual_user"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	Workspace     *Workspace `gorm:"foreignKey:WorkspaceID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName exposes the table backing external identity mappings.
func (ExternalIdentity) TableName() string {
	return "workspace_external_identities"
}

// Summary is one row of a user's workspace listing: workspace attributes
// joined with the caller's own role.
type Summary struct {
	ID            string `gorm:"column:id"`
	Name          string `gorm:"column:name"`
	Type          Type   `gorm:"column:type"`
	Role          Role   `gorm:"column:role"`
	CreditBalance int64  `gorm:"column:credit_balance"`
}

// MemberView is a membership row joined with the member's public profile.
type MemberView struct {
	UserID   string    `gorm:"column:user_id"`
	Email    string    `gorm:"column:email"`
	FullName string    `gorm:"column:full_name"`
	Role     Role      `gorm:"column:role"`
	JoinedAt time.Time `gorm:"column:joined_at"`
}
