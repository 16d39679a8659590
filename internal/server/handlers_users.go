package server

import (
	"net/http"
	"time"

	"github.com/geko-labs/gateway/internal/users"
	"github.com/gin-gonic/gin"
)

// userResponseBody is the public projection of a user. It has no credential
// field.
type userResponseBody struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	FullName     string         `json:"fullName"`
	AvatarURL    *string        `json:"avatarUrl,omitempty"`
	AuthProvider users.Provider `json:"authProvider"`
	IsActive     bool           `json:"isActive"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func newUserResponse(user users.User) userResponseBody {
	return userResponseBody{
		ID:           user.ID,
		Email:        user.Email,
		FullName:     user.FullName,
		AvatarURL:    user.AvatarURL,
		AuthProvider: user.AuthProvider,
		IsActive:     user.IsActive,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

type updateProfileRequestPayload struct {
	FullName  *string `json:"fullName" binding:"omitempty,min=2,max=100"`
	AvatarURL *string `json:"avatarUrl" binding:"omitempty,max=2048"`
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), callerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, newUserResponse(user))
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var request updateProfileRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBindingError(c, err)
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), callerID(c), users.ProfileUpdate{
		FullName:  request.FullName,
		AvatarURL: request.AvatarURL,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, newUserResponse(user))
}

func (h *httpHandler) handleDeactivate(c *gin.Context) {
	if err := h.users.Deactivate(c.Request.Context(), callerID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"deactivated": true})
}
