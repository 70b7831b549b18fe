package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	// Authentication errors
	ErrCodeUnauthorized       = "Unauthorized"
	ErrCodeInvalidCredentials = "InvalidCredentials"
	ErrCodeAccountDisabled    = "AccountDisabled"

	// Tenancy and authorization errors
	ErrCodeOrganizationRequired = "OrganizationRequired"
	ErrCodeForbidden            = "Forbidden"

	// Validation errors
	ErrCodeValidation = "ValidationError"

	// Resource errors
	ErrCodeNotFound = "NotFound"
	ErrCodeConflict = "Conflict"

	// Service errors
	ErrCodeInternalError      = "InternalError"
	ErrCodeServiceUnavailable = "ServiceUnavailable"
)

// APIError represents a standardized API error response
type APIError struct {
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Field    string      `json:"field,omitempty"`
	Required string      `json:"required,omitempty"`
	UserRole string      `json:"userRole,omitempty"`
	Details  interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError
func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// NewAPIErrorWithDetails creates a new APIError with details
func NewAPIErrorWithDetails(code, message string, details interface{}) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// RespondWithError sends an error response. An empty message is replaced by
// the localized default for the code.
func RespondWithError(c *gin.Context, statusCode int, err *APIError) {
	if err.Message == "" {
		err.Message = Message(c, err.Code)
	}
	c.JSON(statusCode, err)
}

// Helper functions for common error responses

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, NewAPIError(ErrCodeUnauthorized, message))
}

// InvalidCredentials sends a 401 response for a failed login
func InvalidCredentials(c *gin.Context) {
	RespondWithError(c, http.StatusUnauthorized, NewAPIError(ErrCodeInvalidCredentials, ""))
}

// AccountDisabled sends a 403 response for an inactive account
func AccountDisabled(c *gin.Context) {
	RespondWithError(c, http.StatusForbidden, NewAPIError(ErrCodeAccountDisabled, ""))
}

// OrganizationRequired sends a 403 response when no tenant could be resolved
func OrganizationRequired(c *gin.Context) {
	RespondWithError(c, http.StatusForbidden, NewAPIError(ErrCodeOrganizationRequired, ""))
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, NewAPIError(ErrCodeForbidden, message))
}

// ForbiddenRequirement sends a 403 response echoing the unmet requirement
func ForbiddenRequirement(c *gin.Context, required, userRole string) {
	RespondWithError(c, http.StatusForbidden, &APIError{
		Code:     ErrCodeForbidden,
		Required: required,
		UserRole: userRole,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, NewAPIError(ErrCodeNotFound, message))
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, NewAPIError(ErrCodeValidation, message))
}

// BadRequestWithDetails sends a 400 response with details
func BadRequestWithDetails(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, NewAPIErrorWithDetails(ErrCodeValidation, message, details))
}

// Conflict sends a 409 response naming the conflicting field
func Conflict(c *gin.Context, field, message string) {
	RespondWithError(c, http.StatusConflict, &APIError{
		Code:    ErrCodeConflict,
		Message: message,
		Field:   field,
	})
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	RespondWithError(c, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, message))
}

// ServiceUnavailable sends a 503 response
func ServiceUnavailable(c *gin.Context, message string) {
	RespondWithError(c, http.StatusServiceUnavailable, NewAPIError(ErrCodeServiceUnavailable, message))
}
