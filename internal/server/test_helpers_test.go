package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/geko-labs/gateway/internal/access"
	"github.com/geko-labs/gateway/internal/auth"
	"github.com/geko-labs/gateway/internal/database"
	"github.com/geko-labs/gateway/internal/metrics"
	"github.com/geko-labs/gateway/internal/probe"
	"github.com/geko-labs/gateway/internal/users"
	"github.com/geko-labs/gateway/internal/workspaces"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSigningSecret = "router-test-secret"

type stubProber struct {
	err error
}

func (s stubProber) Check(context.Context) (probe.Result, error) {
	if s.err != nil {
		return probe.Result{}, s.err
	}
	return probe.Result{Reachable: true, StatusCode: http.StatusOK}, nil
}

type testStack struct {
	handler  http.Handler
	db       *gorm.DB
	registry *prometheus.Registry
}

type stackOptions struct {
	tokenMode         bool
	authRatePerMinute int
	prober            Prober
	allowedOrigins    []string
	trustedProxies    []string
}

func newTestStack(t *testing.T, options stackOptions) testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "server.db")})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	userStore, err := users.NewStore(db)
	if err != nil {
		t.Fatalf("failed to build user store: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Store: userStore, Hasher: users.NewBcryptHasher(bcrypt.MinCost)})
	if err != nil {
		t.Fatalf("failed to build user service: %v", err)
	}
	workspaceStore, err := workspaces.NewStore(db)
	if err != nil {
		t.Fatalf("failed to build workspace store: %v", err)
	}
	workspaceService, err := workspaces.NewService(workspaces.ServiceConfig{Store: workspaceStore})
	if err != nil {
		t.Fatalf("failed to build workspace service: %v", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte(testSigningSecret), TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}
	var resolver access.IdentityResolver = access.NewHeaderResolver("")
	if options.tokenMode {
		validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{SigningSecret: []byte(testSigningSecret), CookieName: "geko_session"})
		if err != nil {
			t.Fatalf("failed to build validator: %v", err)
		}
		resolver = validator
	}
	gate, err := access.NewGate(access.GateConfig{Resolver: resolver, Checker: workspaceService, Accounts: userService, Recorder: collector})
	if err != nil {
		t.Fatalf("failed to build gate: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Users:             userService,
		Workspaces:        workspaceService,
		Authorizer:        gate,
		Tokens:            tokenIssuer,
		Prober:            options.prober,
		DatabasePing:      sqlDB.PingContext,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
		AllowedOrigins:    options.allowedOrigins,
		TrustedProxies:    options.trustedProxies,
		AuthRatePerMinute: options.authRatePerMinute,
		SessionCookieName: "geko_session",
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return testStack{handler: handler, db: db, registry: registry}
}

type responseEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (s testStack) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, responseEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)

	var decoded responseEnvelope
	if recorder.Body.Len() > 0 && recorder.Header().Get("Content-Type") != "" && bytes.HasPrefix(recorder.Body.Bytes(), []byte("{")) {
		if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("failed to decode envelope %q: %v", recorder.Body.String(), err)
		}
	}
	return recorder, decoded
}

func (s testStack) register(t *testing.T, email, fullName string) string {
	t.Helper()
	recorder, envelope := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"password": "password123",
		"fullName": fullName,
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("registration of %s failed: %d %s", email, recorder.Code, recorder.Body.String())
	}
	var user struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(envelope.Data, &user); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}
	return user.ID
}

func (s testStack) createWorkspace(t *testing.T, userID, name string) string {
	t.Helper()
	recorder, envelope := s.do(t, http.MethodPost, "/workspaces", map[string]string{"name": name, "type": "TEAM"}, asUser(userID))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("workspace creation failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var workspace struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(envelope.Data, &workspace); err != nil {
		t.Fatalf("failed to decode workspace: %v", err)
	}
	return workspace.ID
}

func asUser(userID string) map[string]string {
	return map[string]string{access.HeaderUserID: userID}
}
