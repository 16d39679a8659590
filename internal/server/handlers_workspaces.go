package server

import (
	"net/http"
	"time"

	"github.com/geko-labs/gateway/internal/apperr"
	"github.com/geko-labs/gateway/internal/workspaces"
	"github.com/gin-gonic/gin"
)

type createWorkspaceRequestPayload struct {
	Name string `json:"name" binding:"required,min=3,max=100"`
	Type string `json:"type"`
}

type addMemberRequestPayload struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

// workspaceSummaryBody is one listing row. CreditBalance is omitted for roles
// that may not see billing.
type workspaceSummaryBody struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          workspaces.Type `json:"type"`
	Role          workspaces.Role `json:"role"`
	CreditBalance *int64          `json:"creditBalance,omitempty"`
}

type workspaceBody struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          workspaces.Type `json:"type"`
	Plan          workspaces.Plan `json:"plan"`
	CreditBalance *int64          `json:"creditBalance,omitempty"`
	Role          workspaces.Role `json:"role"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type memberBody struct {
	UserID   string          `json:"userId"`
	Email    string          `json:"email,omitempty"`
	FullName string          `json:"fullName,omitempty"`
	Role     workspaces.Role `json:"role"`
	JoinedAt time.Time       `json:"joinedAt"`
}

type externalIdentityBody struct {
	WorkspaceID   string    `json:"workspaceId"`
	VirtualUserID string    `json:"virtualUserId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// visibleBalance redacts the credit balance for roles below ADMIN.
func visibleBalance(role workspaces.Role, balance int64) *int64 {
	if !role.CanViewBilling() {
		return nil
	}
	return &balance
}

func newWorkspaceBody(workspace workspaces.Workspace, role workspaces.Role) workspaceBody {
	return workspaceBody{
		ID:            workspace.ID,
		Name:          workspace.Name,
		Type:          workspace.Type,
		Plan:          workspace.Plan,
		CreditBalance: visibleBalance(role, workspace.CreditBalance),
		Role:          role,
		CreatedAt:     workspace.CreatedAt,
	}
}

func (h *httpHandler) handleListWorkspaces(c *gin.Context) {
	rows, err := h.workspaces.ListUserWorkspaces(c.Request.Context(), callerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	body := make([]workspaceSummaryBody, 0, len(rows))
	for _, row := range rows {
		body = append(body, workspaceSummaryBody{
			ID:            row.ID,
			Name:          row.Name,
			Type:          row.Type,
			Role:          row.Role,
			CreditBalance: visibleBalance(row.Role, row.CreditBalance),
		})
	}
	respondData(c, http.StatusOK, body)
}

func (h *httpHandler) handleCreateWorkspace(c *gin.Context) {
	var request createWorkspaceRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.metrics.RecordWorkspaceCreation(string(apperr.KindValidationFailed))
		h.respondBindingError(c, err)
		return
	}

	workspace, err := h.workspaces.CreateWorkspace(c.Request.Context(), workspaces.CreateInput{
		CreatorUserID: callerID(c),
		Name:          request.Name,
		Type:          request.Type,
	})
	if err != nil {
		h.metrics.RecordWorkspaceCreation(outcomeOf(err))
		h.respondError(c, err)
		return
	}

	h.metrics.RecordWorkspaceCreation(outcomeSuccess)
	respondData(c, http.StatusCreated, newWorkspaceBody(workspace, workspaces.RoleOwner))
}

func (h *httpHandler) handleGetWorkspace(c *gin.Context) {
	workspaceID := c.GetString(workspaceIDContextKey)
	workspace, err := h.workspaces.Workspace(c.Request.Context(), workspaceID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, newWorkspaceBody(workspace, workspaceRole(c)))
}

func (h *httpHandler) handleListMembers(c *gin.Context) {
	rows, err := h.workspaces.ListMembers(c.Request.Context(), c.GetString(workspaceIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	body := make([]memberBody, 0, len(rows))
	for _, row := range rows {
		body = append(body, memberBody{
			UserID:   row.UserID,
			Email:    row.Email,
			FullName: row.FullName,
			Role:     row.Role,
			JoinedAt: row.JoinedAt,
		})
	}
	respondData(c, http.StatusOK, body)
}

func (h *httpHandler) handleAddMember(c *gin.Context) {
	var request addMemberRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBindingError(c, err)
		return
	}

	member, err := h.workspaces.AddMember(c.Request.Context(), workspaces.AddMemberInput{
		WorkspaceID: c.GetString(workspaceIDContextKey),
		ActorRole:   workspaceRole(c),
		UserID:      request.UserID,
		Role:        request.Role,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, memberBody{
		UserID:   member.UserID,
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	})
}

func (h *httpHandler) handleExternalIdentity(c *gin.Context) {
	mapping, err := h.workspaces.ExternalIdentity(c.Request.Context(), c.GetString(workspaceIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, externalIdentityBody{
		WorkspaceID:   mapping.WorkspaceID,
		VirtualUserID: mapping.VirtualUserID,
		CreatedAt:     mapping.CreatedAt,
	})
}
