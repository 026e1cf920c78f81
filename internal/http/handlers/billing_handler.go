// Billing and cancellation HTTP handlers.
//
// This file exposes the subscription surface:
//   - POST /billing/checkout     (start a checkout; returns a redirect URL)
//   - POST /billing/portal       (open the management portal)
//   - GET  /cancellation         (workflow status)
//   - POST /cancellation/begin   (open the workflow)
//   - POST /cancellation/confirm (advance past the confirmation step)
//   - POST /cancellation/survey  (submit the exit survey and cancel)
//
// The checkout/portal UI is entirely the payment processor's; these endpoints
// only relay redirect URLs. The cancellation endpoints drive the failure-safe
// workflow in the services layer.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
	"github.com/clausewise/go-clausewise-backend/internal/services"
)

// CheckoutRequest is the JSON payload for starting a checkout.
type CheckoutRequest struct {
	// Cycle is the billing interval, "monthly" or "yearly".
	Cycle string `json:"cycle" binding:"required" example:"monthly"`
}

// RedirectResponse relays a billing redirect URL.
type RedirectResponse struct {
	URL string `json:"url" example:"https://pay.example.com/session/abc"`
}

// CancellationStatusResponse reports the workflow state for the account.
type CancellationStatusResponse struct {
	State     services.CancelState `json:"state" example:"survey_pending"`
	LastError string               `json:"last_error,omitempty"`
}

// SurveyRequest is the JSON payload for the exit survey.
type SurveyRequest struct {
	Reason   string `json:"reason" binding:"required" example:"too_expensive"`
	Feedback string `json:"feedback,omitempty"`
	NPSScore int    `json:"nps_score" example:"7"`
}

// requireAccount resolves the session and aborts with 401 unless it belongs
// to an authenticated account. Returns the account and ok.
func (h *Handlers) requireAccount(c *gin.Context) (*domain.Account, bool) {
	session := h.gate.ResolveSession(c.Request.Context(), bearerToken(c))
	if !session.Authenticated() {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return nil, false
	}
	return session.Principal, true
}

// Checkout godoc
// @ID          checkout
// @Summary     Start a checkout session
// @Tags        Billing
// @Accept      json
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       body           body    handlers.CheckoutRequest  true  "Checkout payload"
//
// @Success     200  {object}  handlers.RedirectResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid billing cycle"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     502  {object}  handlers.ErrorResponse  "Billing boundary failed"
// @Router      /billing/checkout [post]
func (h *Handlers) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	cycle := domain.BillingCycle(req.Cycle)
	if !cycle.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeInvalidCycle, "cycle must be monthly or yearly")
		return
	}
	if _, authed := h.requireAccount(c); !authed {
		return
	}

	sess, err := h.billing.CreateCheckoutSession(c.Request.Context(), bearerToken(c), cycle)
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeBillingFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, RedirectResponse{URL: sess.URL})
}

// Portal godoc
// @ID          portal
// @Summary     Open the subscription management portal
// @Tags        Billing
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
//
// @Success     200  {object}  handlers.RedirectResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     502  {object}  handlers.ErrorResponse  "Billing boundary failed"
// @Router      /billing/portal [post]
func (h *Handlers) Portal(c *gin.Context) {
	if _, authed := h.requireAccount(c); !authed {
		return
	}
	sess, err := h.billing.CreatePortalSession(c.Request.Context(), bearerToken(c))
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeBillingFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, RedirectResponse{URL: sess.URL})
}

// CancellationStatus godoc
// @ID          cancellationStatus
// @Summary     Report the cancellation workflow state
// @Tags        Cancellation
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
//
// @Success     200  {object}  handlers.CancellationStatusResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Router      /cancellation [get]
func (h *Handlers) CancellationStatus(c *gin.Context) {
	acc, authed := h.requireAccount(c)
	if !authed {
		return
	}
	state, lastErr := h.cnlSvc.Status(acc.ID)
	ok(c, http.StatusOK, CancellationStatusResponse{State: state, LastError: lastErr})
}

// BeginCancellation godoc
// @ID          beginCancellation
// @Summary     Open the cancellation workflow
// @Tags        Cancellation
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
//
// @Success     200  {object}  handlers.CancellationStatusResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     409  {object}  handlers.ErrorResponse  "Workflow not in an openable state"
// @Router      /cancellation/begin [post]
func (h *Handlers) BeginCancellation(c *gin.Context) {
	acc, authed := h.requireAccount(c)
	if !authed {
		return
	}
	state, err := h.cnlSvc.Begin(acc.ID)
	if err != nil {
		fail(c, http.StatusConflict, ErrCodeWorkflowState, "cancellation already in progress")
		return
	}
	ok(c, http.StatusOK, CancellationStatusResponse{State: state})
}

// ConfirmCancellation godoc
// @ID          confirmCancellation
// @Summary     Confirm the cancellation intent
// @Tags        Cancellation
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
//
// @Success     200  {object}  handlers.CancellationStatusResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     409  {object}  handlers.ErrorResponse  "Confirmation not pending"
// @Router      /cancellation/confirm [post]
func (h *Handlers) ConfirmCancellation(c *gin.Context) {
	acc, authed := h.requireAccount(c)
	if !authed {
		return
	}
	state, err := h.cnlSvc.Confirm(acc.ID)
	if err != nil {
		fail(c, http.StatusConflict, ErrCodeWorkflowState, "no confirmation pending")
		return
	}
	ok(c, http.StatusOK, CancellationStatusResponse{State: state})
}

// SubmitCancellationSurvey godoc
// @ID          submitCancellationSurvey
// @Summary     Submit the exit survey and cancel the subscription
// @Description Persists the churn analytics event, then attempts the cancellation. A failed cancellation keeps the survey resubmittable without duplicating the event.
// @Tags        Cancellation
// @Accept      json
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       body           body    handlers.SurveyRequest  true  "Exit survey"
//
// @Success     200  {object}  handlers.CancellationStatusResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     409  {object}  handlers.ErrorResponse  "Survey not pending"
// @Failure     502  {object}  handlers.ErrorResponse  "Cancellation or event persistence failed"
// @Router      /cancellation/survey [post]
func (h *Handlers) SubmitCancellationSurvey(c *gin.Context) {
	var req SurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if _, authed := h.requireAccount(c); !authed {
		return
	}

	state, err := h.cnlSvc.SubmitSurvey(c.Request.Context(), bearerToken(c), services.SurveyAnswers{
		Reason:   req.Reason,
		Feedback: req.Feedback,
		NPSScore: req.NPSScore,
	})
	switch {
	case errors.Is(err, services.ErrWorkflowState):
		fail(c, http.StatusConflict, ErrCodeWorkflowState, "no survey pending")
	case err != nil:
		// State discriminates the failure: SurveyPending means the
		// cancellation call failed and a resubmit is possible; Failed means
		// the analytics event could not be written.
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       ErrCodeBillingFailed,
			"message":    err.Error(),
			"state":      state,
		})
	default:
		ok(c, http.StatusOK, CancellationStatusResponse{State: state})
	}
}
