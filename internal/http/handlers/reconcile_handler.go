// Reconciliation HTTP handler.
//
// This file exposes the consumer half of the deferred-write flow:
//   - POST /reconcile  (promote the staged record after login)
//
// The endpoint is safe to call on every post-login navigation: with no
// pointer it is a cheap noop, and a pointer this backend already handled
// replays the recorded outcome instead of running again.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clausewise/go-clausewise-backend/internal/http/middleware"
	"github.com/clausewise/go-clausewise-backend/internal/services"
)

// ReconcileRequest is the JSON payload for one reconciliation trigger.
type ReconcileRequest struct {
	// FromDeferredFlow is set when the navigation carries the
	// "coming from deferred flow" URL marker.
	FromDeferredFlow bool `json:"from_deferred_flow,omitempty"`
}

// Reconcile godoc
// @ID          reconcile
// @Summary     Reconcile the staged record
// @Description Promotes the device's staged anonymous result into a permanent record for the authenticated account. Reports exactly one outcome the UI can key a notification on.
// @Tags        Reconciliation
// @Accept      json
// @Produce     json
//
// @Param       X-Device-ID    header  string  false "Client-minted device ID"  example(9f1c2e4a-device)
// @Param       X-Pointer-ID   header  string  false "Pointer ID for replay suppression"
// @Param       Authorization  header  string  false "Bearer token"
// @Param       body           body    handlers.ReconcileRequest  false  "Trigger payload"
//
// @Success     200  {object}  services.ReconcileResult
// @Failure     502  {object}  handlers.ErrorResponse  "Promotion failed; staging kept for retry"
// @Router      /reconcile [post]
func (h *Handlers) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	ctx := c.Request.Context()
	token := bearerToken(c)
	session := h.gate.ResolveSession(ctx, token)

	res := h.recSvc.Run(ctx, services.ReconcileInput{
		DeviceID:         middleware.DeviceFrom(c),
		Token:            token,
		Session:          session,
		FromDeferredFlow: req.FromDeferredFlow,
	})
	if res.Outcome == services.OutcomeError {
		// The staged record is intact; the client may retry on the next
		// navigation. The outcome still travels in the error envelope.
		fail(c, http.StatusBadGateway, ErrCodeReconcileFailed, res.Err.Error())
		return
	}
	ok(c, http.StatusOK, res)
}
