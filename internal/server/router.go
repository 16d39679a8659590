package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geko-labs/gateway/internal/access"
	"github.com/geko-labs/gateway/internal/auth"
	"github.com/geko-labs/gateway/internal/probe"
	"github.com/geko-labs/gateway/internal/users"
	"github.com/geko-labs/gateway/internal/workspaces"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	callerIDContextKey    = "geko_caller_id"
	workspaceIDContextKey = "geko_workspace_id"
	roleContextKey        = "geko_workspace_role"
)

var (
	errMissingUsersService      = errors.New("users service dependency required")
	errMissingWorkspacesService = errors.New("workspaces service dependency required")
	errMissingAuthorizer        = errors.New("authorizer dependency required")
)

// UserService registers, authenticates and manages users.
type UserService interface {
	Register(ctx context.Context, input users.RegisterInput) (users.User, error)
	Authenticate(ctx context.Context, email, password string) (users.User, error)
	Profile(ctx context.Context, userID string) (users.User, error)
	UpdateProfile(ctx context.Context, userID string, update users.ProfileUpdate) (users.User, error)
	Deactivate(ctx context.Context, userID string) error
}

// WorkspaceService creates workspaces and reads memberships.
type WorkspaceService interface {
	CreateWorkspace(ctx context.Context, input workspaces.CreateInput) (workspaces.Workspace, error)
	ListUserWorkspaces(ctx context.Context, userID string) ([]workspaces.Summary, error)
	Workspace(ctx context.Context, workspaceID string) (workspaces.Workspace, error)
	ExternalIdentity(ctx context.Context, workspaceID string) (workspaces.ExternalIdentity, error)
	ListMembers(ctx context.Context, workspaceID string) ([]workspaces.MemberView, error)
	AddMember(ctx context.Context, input workspaces.AddMemberInput) (workspaces.Member, error)
}

// Authorizer decides whether a request may reach workspace handlers.
type Authorizer interface {
	Authorize(ctx context.Context, r *http.Request, target access.Target) (access.Decision, error)
}

// TokenIssuer issues session tokens on login.
type TokenIssuer interface {
	IssueToken(ctx context.Context, subject auth.Subject) (auth.IssuedToken, error)
}

// Prober checks outbound connectivity.
type Prober interface {
	Check(ctx context.Context) (probe.Result, error)
}

// MetricsRecorder observes HTTP and domain outcomes.
type MetricsRecorder interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordRegistration(outcome string)
	RecordWorkspaceCreation(outcome string)
	RecordRateLimited(route string)
}

// Dependencies wires the HTTP layer. Tokens, Prober, DatabasePing, Metrics
// and MetricsHandler are optional.
type Dependencies struct {
	Users          UserService
	Workspaces     WorkspaceService
	Authorizer     Authorizer
	Tokens         TokenIssuer
	Prober         Prober
	DatabasePing   func(ctx context.Context) error
	Metrics        MetricsRecorder
	MetricsHandler http.Handler
	Logger         *zap.Logger

	AllowedOrigins      []string
	TrustedProxies      []string
	AuthRatePerMinute   int
	SessionCookieName   string
	HealthProbeDeadline time.Duration
}

// NewHTTPHandler builds the gateway router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Workspaces == nil {
		return nil, errMissingWorkspacesService
	}
	if deps.Authorizer == nil {
		return nil, errMissingAuthorizer
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = noopMetrics{}
	}
	probeDeadline := deps.HealthProbeDeadline
	if probeDeadline <= 0 {
		probeDeadline = 30 * time.Second
	}

	handler := &httpHandler{
		users:         deps.Users,
		workspaces:    deps.Workspaces,
		authorizer:    deps.Authorizer,
		tokens:        deps.Tokens,
		prober:        deps.Prober,
		databasePing:  deps.DatabasePing,
		metrics:       recorder,
		logger:        logger,
		cookieName:    deps.SessionCookieName,
		probeDeadline: probeDeadline,
	}

	router := gin.New()
	// An empty list trusts no proxy: ClientIP is the peer address.
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, err
	}
	router.Use(handler.recoverPanics)
	router.Use(securityHeaders)
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.Use(handler.observeRequest)

	router.GET("/health", handler.handleHealth)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	limiter := newRateLimiter(deps.AuthRatePerMinute, recorder, logger)
	authGroup := router.Group("/auth")
	authGroup.Use(limiter.middleware)
	authGroup.POST("/register", handler.handleRegister)
	if deps.Tokens != nil {
		authGroup.POST("/login", handler.handleLogin)
	}

	usersGroup := router.Group("/users")
	usersGroup.Use(handler.authorizeRequest)
	usersGroup.GET("/me", handler.handleGetProfile)
	usersGroup.PATCH("/me", handler.handleUpdateProfile)
	usersGroup.DELETE("/me", handler.handleDeactivate)

	workspacesGroup := router.Group("/workspaces")
	workspacesGroup.Use(handler.authorizeRequest)
	workspacesGroup.GET("", handler.handleListWorkspaces)
	workspacesGroup.POST("", handler.handleCreateWorkspace)
	workspacesGroup.GET("/:workspaceId", handler.handleGetWorkspace)
	workspacesGroup.GET("/:workspaceId/members", handler.handleListMembers)
	workspacesGroup.POST("/:workspaceId/members", handler.handleAddMember)
	workspacesGroup.GET("/:workspaceId/external-identity", handler.handleExternalIdentity)

	router.NoRoute(func(c *gin.Context) {
		respondMessage(c, http.StatusNotFound, "Route not found")
	})

	return router, nil
}

type httpHandler struct {
	users         UserService
	workspaces    WorkspaceService
	authorizer    Authorizer
	tokens        TokenIssuer
	prober        Prober
	databasePing  func(ctx context.Context) error
	metrics       MetricsRecorder
	logger        *zap.Logger
	cookieName    string
	probeDeadline time.Duration
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			"Authorization",
			"Content-Type",
			access.HeaderUserID,
			access.HeaderWorkspaceID,
		},
		MaxAge: 12 * time.Hour,
	}
	if allowsAnyOrigin(allowedOrigins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

type noopMetrics struct{}

func (noopMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}

func (noopMetrics) RecordRegistration(string) {}

func (noopMetrics) RecordWorkspaceCreation(string) {}

func (noopMetrics) RecordRateLimited(string) {}
