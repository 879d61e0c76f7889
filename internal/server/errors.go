package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/geopulselabs/geopulse/internal/batch"
	"github.com/geopulselabs/geopulse/internal/property"
	quotadomain "github.com/geopulselabs/geopulse/internal/quota/domain"
)

var ErrNotFound = errors.New("not_found")

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Message }

func invalidRequestError() *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request"}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

// AbortWithError maps domain errors onto HTTP responses. Quota denial
// is a precondition failure, not a server fault.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, batch.ErrQuotaDenied):
		status, code = http.StatusTooManyRequests, "quota_denied"
	case errors.Is(err, batch.ErrCommitFailed):
		status, code = http.StatusServiceUnavailable, "quota_commit_failed"
	case errors.Is(err, batch.ErrNoRows),
		errors.Is(err, property.ErrEmptyInput),
		errors.Is(err, property.ErrMissingColumns):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, quotadomain.ErrInvalidUserID),
		errors.Is(err, quotadomain.ErrInvalidCalls):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, quotadomain.ErrAccountNotFound):
		status, code = http.StatusNotFound, "quota_account_not_found"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": err.Error()}})
}
