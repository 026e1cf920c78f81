// Analysis HTTP handlers.
//
// This file exposes the producer half of the deferred-write flow plus the
// history listing:
//   - POST   /analyses         (analyze a document; stage or persist by tier)
//   - GET    /analyses         (list the account's analyses, paginated)
//   - GET    /staging/pending  (inspect the outstanding deferred record)
//   - DELETE /staging/:id      (discard a staged record)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
	"github.com/clausewise/go-clausewise-backend/internal/http/middleware"
	"github.com/clausewise/go-clausewise-backend/internal/services"
	"github.com/clausewise/go-clausewise-backend/internal/utils"
)

// AnalyzeRequest is the JSON payload for submitting a document.
type AnalyzeRequest struct {
	// Title optionally names the analysis; one is derived from the document
	// when empty.
	Title string `json:"title,omitempty" example:"Office lease 2026"`
	// Document is the raw text to analyze.
	Document string `json:"document" binding:"required"`
}

// PendingResponse describes the outstanding deferred record for a device.
type PendingResponse struct {
	StagedID string                `json:"staged_id"`
	Record   domain.DeferredRecord `json:"record"`
}

// Analyze godoc
// @ID          analyze
// @Summary     Analyze a document
// @Description Runs the risk analyzer. Anonymous callers get the result staged against their device (one per month); authenticated callers get a permanent record, subject to plan quota.
// @Tags        Analyses
// @Accept      json
// @Produce     json
//
// @Param       X-Device-ID    header  string  false "Client-minted device ID"  example(9f1c2e4a-device)
// @Param       Authorization  header  string  false "Bearer token"
// @Param       body           body    handlers.AnalyzeRequest  true  "Document payload"
//
// @Success     201  {object}  services.AnalyzeResult
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or oversized document"
// @Failure     403  {object}  handlers.ErrorResponse  "Monthly limit reached"
// @Failure     503  {object}  handlers.ErrorResponse  "Staging unavailable"
// @Router      /analyses [post]
func (h *Handlers) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	token := bearerToken(c)
	session := h.gate.ResolveSession(ctx, token)

	res, err := h.anlSvc.Analyze(ctx, services.AnalyzeInput{
		DeviceID: middleware.DeviceFrom(c),
		Token:    token,
		Session:  session,
		Title:    req.Title,
		Document: req.Document,
	})
	switch {
	case errors.Is(err, services.ErrEmptyDocument):
		fail(c, http.StatusBadRequest, ErrCodeEmptyDocument, "document is empty")
	case errors.Is(err, services.ErrDocumentTooLong):
		fail(c, http.StatusBadRequest, ErrCodeDocumentTooLong, "document exceeds the size limit")
	case errors.Is(err, services.ErrLimitReached):
		fail(c, http.StatusForbidden, ErrCodeLimitReached, "monthly analysis limit reached")
	case errors.Is(err, services.ErrStagingUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeStagingUnavailable, "could not stage the result, try again")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeAnalyzeFailed, err.Error())
	default:
		ok(c, http.StatusCreated, res)
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// ListAnalysesResponse wraps a page of analysis records.
type ListAnalysesResponse struct {
	Analyses   []domain.Record `json:"analyses"`
	Pagination Pagination      `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// ListAnalyses godoc
// @ID          listAnalyses
// @Summary     List analyses (paginated)
// @Description Returns a page of the account's permanent analysis records, newest first.
// @Tags        Analyses
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       page           query   int     false "Page number"    minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page" minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListAnalysesResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "List failed"
// @Router      /analyses [get]
func (h *Handlers) ListAnalyses(c *gin.Context) {
	acc, authed := h.requireAccount(c)
	if !authed {
		return
	}
	page, pageSize := clampPagination(c)

	recs, err := h.entity.List(c.Request.Context(), services.RecordKindAnalyses,
		map[string]any{"account_id": acc.ID}, "-created_at")
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	total := len(recs)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	totalPages := (total + pageSize - 1) / pageSize

	ok(c, http.StatusOK, ListAnalysesResponse{
		Analyses: recs[start:end],
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// PendingStaging godoc
// @ID          pendingStaging
// @Summary     Inspect the pending staged record
// @Description Returns the deferred record addressed by the device's pending pointer, without consuming it.
// @Tags        Staging
// @Produce     json
//
// @Param       X-Device-ID  header  string  false "Client-minted device ID"  example(9f1c2e4a-device)
//
// @Success     200  {object}  handlers.PendingResponse
// @Failure     404  {object}  handlers.ErrorResponse  "No pending record"
// @Router      /staging/pending [get]
func (h *Handlers) PendingStaging(c *gin.Context) {
	ctx := c.Request.Context()
	deviceID := middleware.DeviceFrom(c)

	id, found := h.staging.PeekPending(ctx, deviceID)
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no pending staged record")
		return
	}
	rec, found := h.staging.Consume(ctx, deviceID, id)
	if !found {
		// Dangling pointer: the payload is gone or corrupt.
		fail(c, http.StatusNotFound, ErrCodeNotFound, "staged record missing or corrupt")
		return
	}
	ok(c, http.StatusOK, PendingResponse{StagedID: id, Record: *rec})
}

// DiscardStaging godoc
// @ID          discardStaging
// @Summary     Discard a staged record
// @Description Removes the staged record and, when it is still the pending one, the pointer. Idempotent.
// @Tags        Staging
//
// @Param       X-Device-ID  header  string  false "Client-minted device ID"  example(9f1c2e4a-device)
// @Param       id           path    string  true  "Staged record ID"
//
// @Success     204  {string}  string  "No Content"
// @Router      /staging/{id} [delete]
func (h *Handlers) DiscardStaging(c *gin.Context) {
	h.staging.Clear(c.Request.Context(), middleware.DeviceFrom(c), c.Param("id"))
	noContent(c)
}
