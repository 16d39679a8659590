package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation", err: New(KindValidationFailed, "server.register", "bind", "", nil), wantStatus: http.StatusBadRequest},
		{name: "user-exists", err: New(KindUserAlreadyExists, "users.register", "duplicate_email", "", nil), wantStatus: http.StatusConflict},
		{name: "provider-conflict", err: New(KindProviderConflict, "users.register", "provider_conflict", "", nil), wantStatus: http.StatusConflict},
		{name: "unauthenticated", err: New(KindUnauthenticated, "access.authorize", "missing_identity", "", nil), wantStatus: http.StatusUnauthorized},
		{name: "denied", err: New(KindAccessDenied, "access.authorize", "not_a_member", "", nil), wantStatus: http.StatusForbidden},
		{name: "store", err: New(KindStoreUnavailable, "users.register", "lookup_failed", "", errors.New("dial tcp")), wantStatus: http.StatusInternalServerError},
		{name: "creation-failed", err: New(KindWorkspaceCreationFailed, "workspaces.create", "transaction_failed", "", errors.New("disk full")), wantStatus: http.StatusInternalServerError},
		{
			name:       "creation-failed-constraint",
			err:        New(KindWorkspaceCreationFailed, "workspaces.create", "transaction_failed", "", fmt.Errorf("%w: fk", ErrConstraintViolation)),
			wantStatus: http.StatusConflict,
		},
		{name: "untyped", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := HTTPStatus(testCase.err); got != testCase.wantStatus {
				t.Fatalf("unexpected status: got %d want %d", got, testCase.wantStatus)
			}
		})
	}
}

func TestPublicMessageHidesUntypedErrors(t *testing.T) {
	message := PublicMessage(fmt.Errorf("pq: relation %q does not exist", "users"))
	if message != internalMessage {
		t.Fatalf("expected internal message, got %q", message)
	}
}

func TestErrorKeepsCauseForErrorsIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("wrapped: %w", New(KindStoreUnavailable, "workspaces.list", "query_failed", "", cause))

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to remain reachable")
	}
	if !Is(err, KindStoreUnavailable) {
		t.Fatalf("expected store unavailable kind, got %q", KindOf(err))
	}
	if PublicMessage(err) != defaultMessages[KindStoreUnavailable] {
		t.Fatalf("unexpected public message %q", PublicMessage(err))
	}
	if strings.Contains(PublicMessage(err), "connection reset") {
		t.Fatalf("public message leaked the cause")
	}
}

func TestErrorCode(t *testing.T) {
	err := New(KindProviderConflict, "users.register", "provider_conflict", "This email is linked to GOOGLE. Please login with that provider.", nil)
	if err.Code() != "users.register.provider_conflict" {
		t.Fatalf("unexpected code %q", err.Code())
	}
	if err.Message() != "This email is linked to GOOGLE. Please login with that provider." {
		t.Fatalf("unexpected message %q", err.Message())
	}
}

func TestIsConstraintViolation(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "sqlite-unique", err: errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), want: true},
		{name: "sqlite-foreign-key", err: errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), want: true},
		{name: "postgres-unique", err: errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`), want: true},
		{name: "marked", err: MarkConstraint(errors.New("UNIQUE constraint failed: workspace_members.workspace_id")), want: true},
		{name: "other", err: errors.New("database is locked"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := IsConstraintViolation(testCase.err); got != testCase.want {
				t.Fatalf("unexpected classification: got %v want %v", got, testCase.want)
			}
		})
	}
}

func TestMarkConstraintLeavesOtherErrorsUntouched(t *testing.T) {
	cause := errors.New("database is locked")
	if MarkConstraint(cause) != cause {
		t.Fatalf("expected non-constraint error to be returned unchanged")
	}
	marked := MarkConstraint(errors.New("UNIQUE constraint failed: users.email"))
	if !errors.Is(marked, ErrConstraintViolation) {
		t.Fatalf("expected marked error to match ErrConstraintViolation")
	}
}
