package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/geko-labs/gateway/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	messageInvalidBody = "Invalid request body"
	messageRateLimited = "Too many requests"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Error: message})
}

// respondError writes the public projection of err. Server-side failures are
// logged with their full cause; the cause never reaches the body.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Error(err),
	}
	var typed *apperr.Error
	if errors.As(err, &typed) {
		fields = append(fields, zap.String("code", typed.Code()))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", fields...)
	}
	respondMessage(c, status, apperr.PublicMessage(err))
}

// respondBindingError turns gin binding failures into a 400 response with
// field level messages.
func (h *httpHandler) respondBindingError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			messages = append(messages, describeFieldError(fieldErr))
		}
		respondMessage(c, http.StatusBadRequest, "Validation failed: "+strings.Join(messages, "; "))
		return
	}
	respondMessage(c, http.StatusBadRequest, messageInvalidBody)
}

func describeFieldError(fieldErr validator.FieldError) string {
	field := lowerFirst(fieldErr.Field())
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fieldErr.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(value string) string {
	if value == "" {
		return value
	}
	return strings.ToLower(value[:1]) + value[1:]
}
