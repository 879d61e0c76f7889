package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/geopulselabs/geopulse/internal/audit/domain"
	"github.com/geopulselabs/geopulse/internal/batch"
	imagerydomain "github.com/geopulselabs/geopulse/internal/imagery/domain"
	"github.com/geopulselabs/geopulse/internal/property"
	"go.uber.org/zap"
)

const maxUploadBytes = 10 << 20

type submitBatchForm struct {
	BeforeStart string `form:"before_start" binding:"required"`
	BeforeEnd   string `form:"before_end" binding:"required"`
	AfterStart  string `form:"after_start" binding:"required"`
	AfterEnd    string `form:"after_end" binding:"required"`
	Label       string `form:"label"`
}

type submitBatchResponse struct {
	Summary batch.RunSummary `json:"summary"`
	Quota   any              `json:"quota"`
	Files   []string         `json:"files"`
}

// SubmitBatch accepts a multipart CSV of properties plus the two period
// windows and runs the batch synchronously.
func (s *Server) SubmitBatch(c *gin.Context) {
	userID := currentUserID(c)
	if !s.limiter.Allow(userID) {
		AbortWithError(c, &apiError{
			Status:  http.StatusTooManyRequests,
			Code:    "rate_limited",
			Message: "too many batch submissions, retry later",
		})
		return
	}

	var form submitBatchForm
	if err := c.ShouldBind(&form); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	before, err := parseWindow("before", form.BeforeStart, form.BeforeEnd)
	if err != nil {
		AbortWithError(c, newValidationError("before", "invalid_window", err.Error()))
		return
	}
	after, err := parseWindow("after", form.AfterStart, form.AfterEnd)
	if err != nil {
		AbortWithError(c, newValidationError("after", "invalid_window", err.Error()))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "property csv file is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		AbortWithError(c, newValidationError("file", "too_large", "property csv exceeds the upload limit"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	rows, err := property.ParseCSV(file)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.orchestrator.Run(c.Request.Context(), batch.Request{
		UserID: userID,
		Rows:   rows,
		Before: before,
		After:  after,
		Label:  form.Label,
	})
	if err != nil {
		if errors.Is(err, batch.ErrQuotaDenied) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "quota_denied", "message": result.Summary.RejectionReason},
				"summary": result.Summary,
				"quota":   result.Quota,
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	reportOut, err := s.assembler.Assemble(result.Records, before, after)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	paths, err := s.assembler.Persist(reportOut)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.quotaCache.Delete(userID)
	if s.auditSvc != nil {
		targetID := result.Summary.BatchID.String()
		_ = s.auditSvc.Record(c.Request.Context(), userID, auditdomain.ActionBatchSubmit, "batch", &targetID, map[string]any{
			"attempted":        result.Summary.Attempted,
			"succeeded":        result.Summary.Succeeded,
			"excluded":         result.Summary.Excluded,
			"successful_calls": result.Summary.SuccessfulCalls,
		})
	}

	s.log.Info("batch served",
		zap.String("user_id", userID),
		zap.Int64("batch_id", result.Summary.BatchID.Int64()),
		zap.Int("succeeded", result.Summary.Succeeded),
		zap.Int("excluded", result.Summary.Excluded),
		zap.Strings("files", paths),
	)
	c.JSON(http.StatusOK, gin.H{"data": submitBatchResponse{
		Summary: result.Summary,
		Quota:   result.Quota,
		Files:   paths,
	}})
}

func parseWindow(name, start, end string) (imagerydomain.PeriodWindow, error) {
	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		return imagerydomain.PeriodWindow{}, errors.New(name + " start must be YYYY-MM-DD")
	}
	endDate, err := time.Parse("2006-01-02", end)
	if err != nil {
		return imagerydomain.PeriodWindow{}, errors.New(name + " end must be YYYY-MM-DD")
	}
	return imagerydomain.NewPeriodWindow(name, startDate, endDate)
}
