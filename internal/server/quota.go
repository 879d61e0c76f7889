package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/geopulselabs/geopulse/internal/audit/domain"
)

const quotaStatusTTL = 30 * time.Second

// QuotaStatus returns the read-only usage summary for the caller,
// provisioning a default account on first sight. The summary is cached
// briefly; mutating operations invalidate it.
func (s *Server) QuotaStatus(c *gin.Context) {
	userID := currentUserID(c)
	if summary, ok := s.quotaCache.Get(userID); ok {
		c.JSON(http.StatusOK, gin.H{"data": summary})
		return
	}

	summary, err := s.quotaSvc.Status(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.quotaCache.Set(userID, summary, quotaStatusTTL)
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

type extendQuotaRequest struct {
	Days int `json:"days" binding:"required"`
}

func (s *Server) ExtendQuota(c *gin.Context) {
	var req extendQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Days <= 0 {
		AbortWithError(c, newValidationError("days", "invalid_days", "days must be positive"))
		return
	}

	userID := currentUserID(c)
	account, err := s.quotaSvc.ExtendExpiry(c.Request.Context(), userID, req.Days)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.quotaCache.Delete(userID)

	if s.auditSvc != nil {
		targetID := account.ID.String()
		_ = s.auditSvc.Record(c.Request.Context(), userID, auditdomain.ActionQuotaExtend, "quota_account", &targetID, map[string]any{
			"days":       req.Days,
			"expires_at": account.ExpiresAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"user_id":    account.UserID,
		"expires_at": account.ExpiresAt,
	}})
}

type resetQuotaRequest struct {
	AllowedCalls int `json:"allowed_calls"`
}

func (s *Server) ResetQuota(c *gin.Context) {
	var req resetQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.AllowedCalls < 0 {
		AbortWithError(c, newValidationError("allowed_calls", "invalid_allowed_calls", "allowed_calls must not be negative"))
		return
	}

	userID := currentUserID(c)
	account, err := s.quotaSvc.ResetCalls(c.Request.Context(), userID, req.AllowedCalls)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.quotaCache.Delete(userID)

	if s.auditSvc != nil {
		targetID := account.ID.String()
		_ = s.auditSvc.Record(c.Request.Context(), userID, auditdomain.ActionQuotaReset, "quota_account", &targetID, map[string]any{
			"allowed_calls": account.AllowedCalls,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"user_id":         account.UserID,
		"allowed_calls":   account.AllowedCalls,
		"performed_calls": account.PerformedCalls,
	}})
}

// AuditTrail lists recent engine actions for the caller.
func (s *Server) AuditTrail(c *gin.Context) {
	if s.auditSvc == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	entries, err := s.auditSvc.ListByUser(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
