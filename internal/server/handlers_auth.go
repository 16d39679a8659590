package server

import (
	"net/http"

	"github.com/geko-labs/gateway/internal/apperr"
	"github.com/geko-labs/gateway/internal/auth"
	"github.com/geko-labs/gateway/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const outcomeSuccess = "success"

type registerRequestPayload struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"fullName" binding:"required,min=2,max=100"`
}

type loginRequestPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginResponsePayload struct {
	AccessToken string           `json:"accessToken"`
	ExpiresIn   int64            `json:"expiresIn"`
	TokenType   string           `json:"tokenType"`
	User        userResponseBody `json:"user"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.metrics.RecordRegistration(string(apperr.KindValidationFailed))
		h.respondBindingError(c, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), users.RegisterInput{
		Email:    request.Email,
		Password: request.Password,
		FullName: request.FullName,
	})
	if err != nil {
		h.metrics.RecordRegistration(outcomeOf(err))
		h.respondError(c, err)
		return
	}

	h.metrics.RecordRegistration(outcomeSuccess)
	respondData(c, http.StatusCreated, newUserResponse(user))
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondBindingError(c, err)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, err := h.tokens.IssueToken(c.Request.Context(), auth.Subject{UserID: user.ID, Email: user.Email})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.String("user_id", user.ID), zap.Error(err))
		h.respondError(c, apperr.New(apperr.KindInternal, "server.login", "token_issue_failed", "", err))
		return
	}

	if h.cookieName != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cookieName, token.Value, int(token.ExpiresIn), "/", "", c.Request.TLS != nil, true)
	}
	respondData(c, http.StatusOK, loginResponsePayload{
		AccessToken: token.Value,
		ExpiresIn:   token.ExpiresIn,
		TokenType:   "Bearer",
		User:        newUserResponse(user),
	})
}

func outcomeOf(err error) string {
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return string(apperr.KindInternal)
}
