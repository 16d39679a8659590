// Package access decides whether a caller may reach workspace-scoped
// handlers.
package access

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geko-labs/gateway/internal/apperr"
	"github.com/geko-labs/gateway/internal/workspaces"
	"go.uber.org/zap"
)

const (
	opAuthorize        = "access.authorize"
	messageDeactivated = "Unauthorized: User is deactivated"
)

// Outcomes reported to a DecisionRecorder.
const (
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeAllowUnscoped   = "allow_unscoped"
	OutcomeAllowMember     = "allow_member"
	OutcomeDenied          = "denied"
	OutcomeError           = "error"
)

var (
	errMissingResolver = errors.New("access: identity resolver required")
	errMissingChecker  = errors.New("access: membership checker required")
)

// MembershipChecker looks up the relation between a user and a workspace.
type MembershipChecker interface {
	CheckPermission(ctx context.Context, userID, workspaceID string) (workspaces.Member, bool, error)
}

// AccountChecker reports whether a resolved caller has been deactivated.
// Unknown callers are not deactivated.
type AccountChecker interface {
	IsDeactivated(ctx context.Context, userID string) (bool, error)
}

// DecisionRecorder observes gate outcomes.
type DecisionRecorder interface {
	RecordAccessDecision(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAccessDecision(string) {}

// Target holds the workspace id candidates of a request.
type Target struct {
	PathWorkspaceID   string
	BodyWorkspaceID   string
	HeaderWorkspaceID string
}

// WorkspaceID returns the first non-empty candidate: path, then body, then header.
func (t Target) WorkspaceID() string {
	for _, candidate := range []string{t.PathWorkspaceID, t.BodyWorkspaceID, t.HeaderWorkspaceID} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Decision is an allowed request. Role is empty when no workspace was targeted.
type Decision struct {
	CallerID    string
	WorkspaceID string
	Role        workspaces.Role
}

// Scoped reports whether the decision targets a workspace.
func (d Decision) Scoped() bool {
	return d.WorkspaceID != ""
}

// GateConfig describes the collaborators of the gate.
type GateConfig struct {
	Resolver IdentityResolver
	Checker  MembershipChecker
	// Accounts is optional; when set, deactivated callers are rejected.
	Accounts AccountChecker
	Recorder DecisionRecorder
	Logger   *zap.Logger
}

// Gate resolves the caller, the target workspace and the caller's role.
type Gate struct {
	resolver IdentityResolver
	checker  MembershipChecker
	accounts AccountChecker
	recorder DecisionRecorder
	logger   *zap.Logger
}

// NewGate constructs a Gate.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.Resolver == nil {
		return nil, errMissingResolver
	}
	if cfg.Checker == nil {
		return nil, errMissingChecker
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		resolver: cfg.Resolver,
		checker:  cfg.Checker,
		accounts: cfg.Accounts,
		recorder: recorder,
		logger:   logger,
	}, nil
}

// Authorize runs the decision procedure for one request. Requests without a
// target workspace are allowed once the caller is known; targeted requests
// require a membership.
func (g *Gate) Authorize(ctx context.Context, r *http.Request, target Target) (Decision, error) {
	callerID, err := g.resolver.ResolveCallerIdentity(r)
	callerID = strings.TrimSpace(callerID)
	if err != nil || callerID == "" {
		g.recorder.RecordAccessDecision(OutcomeUnauthenticated)
		g.logger.Debug("request rejected without caller identity", zap.Error(err))
		return Decision{}, apperr.New(apperr.KindUnauthenticated, opAuthorize, "missing_identity", "", err)
	}

	if g.accounts != nil {
		deactivated, err := g.accounts.IsDeactivated(ctx, callerID)
		if err != nil {
			g.recorder.RecordAccessDecision(OutcomeError)
			return Decision{}, storeFailure(err, "account_lookup_failed")
		}
		if deactivated {
			g.recorder.RecordAccessDecision(OutcomeUnauthenticated)
			g.logger.Warn("request rejected for deactivated user", zap.String("user_id", callerID))
			return Decision{}, apperr.New(apperr.KindUnauthenticated, opAuthorize, "inactive_user", messageDeactivated, nil)
		}
	}

	workspaceID := target.WorkspaceID()
	if workspaceID == "" {
		g.recorder.RecordAccessDecision(OutcomeAllowUnscoped)
		return Decision{CallerID: callerID}, nil
	}

	member, found, err := g.checker.CheckPermission(ctx, callerID, workspaceID)
	if err != nil {
		g.recorder.RecordAccessDecision(OutcomeError)
		return Decision{}, storeFailure(err, "membership_lookup_failed")
	}
	if !found {
		g.recorder.RecordAccessDecision(OutcomeDenied)
		g.logger.Warn("access denied",
			zap.String("user_id", callerID),
			zap.String("workspace_id", workspaceID))
		return Decision{}, apperr.New(apperr.KindAccessDenied, opAuthorize, "not_a_member", "", nil)
	}

	g.recorder.RecordAccessDecision(OutcomeAllowMember)
	return Decision{
		CallerID:    callerID,
		WorkspaceID: workspaceID,
		Role:        member.Role,
	}, nil
}

func storeFailure(err error, reason string) error {
	if apperr.KindOf(err) != "" {
		return err
	}
	return apperr.New(apperr.KindStoreUnavailable, opAuthorize, reason, "", err)
}
