package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/geko-labs/gateway/internal/access"
	"github.com/geko-labs/gateway/internal/workspaces"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxPeekBodyBytes = 1 << 20

func (h *httpHandler) recoverPanics(c *gin.Context) {
	defer func() {
		if recovered := recover(); recovered != nil {
			h.logger.Error("panic while serving request",
				zap.Any("panic", recovered),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path))
			respondMessage(c, http.StatusInternalServerError, "Internal server error")
		}
	}()
	c.Next()
}

// securityHeaders sets the browser hardening headers on every response.
func securityHeaders(c *gin.Context) {
	header := c.Writer.Header()
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("X-Frame-Options", "DENY")
	header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	header.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
	c.Next()
}

// observeRequest logs and counts every request once it has been served.
func (h *httpHandler) observeRequest(c *gin.Context) {
	started := time.Now()
	c.Next()

	latency := time.Since(started)
	status := c.Writer.Status()
	route := c.FullPath()
	h.metrics.RecordHTTPRequest(c.Request.Method, route, status, latency)

	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("client_ip", c.ClientIP()),
	}
	if callerID := c.GetString(callerIDContextKey); callerID != "" {
		fields = append(fields, zap.String("user_id", callerID))
	}
	h.logger.Info("http request", fields...)
}

// authorizeRequest runs the access gate and stores the caller, workspace and
// role on the context for the handlers behind it.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	target := access.Target{
		PathWorkspaceID:   c.Param("workspaceId"),
		BodyWorkspaceID:   bodyWorkspaceID(c),
		HeaderWorkspaceID: c.GetHeader(access.HeaderWorkspaceID),
	}

	decision, err := h.authorizer.Authorize(c.Request.Context(), c.Request, target)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Set(callerIDContextKey, decision.CallerID)
	if decision.Scoped() {
		c.Set(workspaceIDContextKey, decision.WorkspaceID)
		c.Set(roleContextKey, decision.Role)
	}
	c.Next()
}

// bodyWorkspaceID peeks at a JSON body for a workspaceId field and restores
// the body for the handler.
func bodyWorkspaceID(c *gin.Context) string {
	request := c.Request
	if request.Body == nil || request.Body == http.NoBody {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(request.Header.Get("Content-Type")), gin.MIMEJSON) {
		return ""
	}
	original := request.Body
	raw, err := io.ReadAll(io.LimitReader(original, maxPeekBodyBytes))
	request.Body = peekedBody{Reader: io.MultiReader(bytes.NewReader(raw), original), Closer: original}
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		WorkspaceID string `json:"workspaceId"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.WorkspaceID
}

// peekedBody replays the bytes already read ahead of the unread remainder.
type peekedBody struct {
	io.Reader
	io.Closer
}

func callerID(c *gin.Context) string {
	return c.GetString(callerIDContextKey)
}

// workspaceRole returns the role the gate resolved for the targeted workspace.
func workspaceRole(c *gin.Context) workspaces.Role {
	value, ok := c.Get(roleContextKey)
	if !ok {
		return ""
	}
	role, _ := value.(workspaces.Role)
	return role
}
