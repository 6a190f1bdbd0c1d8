package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	domainerrors "github.com/justthetip/treasury_service/internal/domain/errors"
)

// getActorID extracts the gateway-authenticated caller identity.
func getActorID(c *gin.Context) string {
	return c.GetString("actor_id")
}

// getRequestID extracts request ID from context.
func getRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// parseUUID parses a string to uuid.UUID.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("empty UUID string")
	}
	return uuid.Parse(s)
}

// parseIntParam parses a query parameter to int with a default value.
func parseIntParam(c *gin.Context, param string, defaultVal int) int {
	if val := c.Query(param); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// respondError sends a standardized error response.
func respondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// respondBadRequest sends a bad request error.
func respondBadRequest(c *gin.Context, message string, details ...map[string]interface{}) {
	var det map[string]interface{}
	if len(details) > 0 {
		det = details[0]
	}
	respondError(c, http.StatusBadRequest, "INVALID_INPUT", message, det)
}

// respondInternalError sends an internal server error.
func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

// respondSuccess sends a success response with data.
func respondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// respondCreated sends a created response with data.
func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// respondDomainError maps the error taxonomy onto HTTP statuses. Unrecognized
// errors fall through to 500 without leaking their cause.
func respondDomainError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case domainerrors.IsInvalidInput(err):
		status = http.StatusBadRequest
	case domainerrors.IsUnauthorized(err):
		status = http.StatusForbidden
	case domainerrors.IsNotFound(err):
		status = http.StatusNotFound
	case domainerrors.IsInvalidState(err), domainerrors.IsDuplicateApproval(err):
		status = http.StatusConflict
	case domainerrors.IsExpired(err):
		status = http.StatusGone
	case domainerrors.IsExecutorFailure(err):
		status = http.StatusBadGateway
	}

	var domainErr *domainerrors.DomainError
	if errors.As(err, &domainErr) {
		respondError(c, status, domainErr.Code, domainErr.Message, domainErr.Details)
		return
	}

	respondInternalError(c, "internal error")
}
