package access

import (
	"errors"
	"net/http"
	"strings"
)

const (
	// HeaderUserID carries a trusted caller id in header mode.
	HeaderUserID = "X-User-ID"
	// HeaderWorkspaceID names the target workspace when the route and body do not.
	HeaderWorkspaceID = "X-Workspace-ID"
)

// ErrMissingCallerIdentity indicates the request carries no resolvable caller.
var ErrMissingCallerIdentity = errors.New("access: caller identity missing")

// IdentityResolver resolves the verified caller id of an inbound request.
type IdentityResolver interface {
	ResolveCallerIdentity(r *http.Request) (string, error)
}

// HeaderResolver trusts a caller-supplied header. It is meant for development
// deployments behind a trusted proxy.
type HeaderResolver struct {
	header string
}

// NewHeaderResolver returns a resolver reading header; empty selects X-User-ID.
func NewHeaderResolver(header string) HeaderResolver {
	header = strings.TrimSpace(header)
	if header == "" {
		header = HeaderUserID
	}
	return HeaderResolver{header: header}
}

func (h HeaderResolver) ResolveCallerIdentity(r *http.Request) (string, error) {
	if r == nil {
		return "", ErrMissingCallerIdentity
	}
	value := strings.TrimSpace(r.Header.Get(h.header))
	if value == "" {
		return "", ErrMissingCallerIdentity
	}
	return value, nil
}
