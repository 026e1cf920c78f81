// Navigation HTTP handlers.
//
// This file exposes the per-navigation session gate endpoint:
//   - POST /navigate  (resolve session, decide render/redirect/login)
//
// It also declares the service contracts the handler layer consumes and the
// Handlers aggregate that binds them. Handlers are transport-thin: they
// validate input, call application services, and translate results into HTTP
// responses.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clausewise/go-clausewise-backend/internal/clients"
	"github.com/clausewise/go-clausewise-backend/internal/domain"
	"github.com/clausewise/go-clausewise-backend/internal/http/middleware"
	"github.com/clausewise/go-clausewise-backend/internal/services"
	"github.com/clausewise/go-clausewise-backend/internal/staging"
)

//
// Service contracts (context-aware)
//

// GateService resolves sessions and navigation intents.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type GateService interface {
	// Resolve runs the session state machine for one navigation.
	Resolve(ctx context.Context, nav services.Navigation) (*domain.Session, services.Intent)
	// ResolveSession resolves a session without a surface decision.
	ResolveSession(ctx context.Context, token string) *domain.Session
}

// AnalyzeService runs the risk analyzer and routes the result by tier.
type AnalyzeService interface {
	Analyze(ctx context.Context, in services.AnalyzeInput) (*services.AnalyzeResult, error)
}

// ReconcileService promotes staged anonymous results after login.
type ReconcileService interface {
	Run(ctx context.Context, in services.ReconcileInput) services.ReconcileResult
}

// CancelService drives the subscription-cancellation workflow.
type CancelService interface {
	Status(accountID string) (services.CancelState, string)
	Begin(accountID string) (services.CancelState, error)
	Confirm(accountID string) (services.CancelState, error)
	SubmitSurvey(ctx context.Context, token string, answers services.SurveyAnswers) (services.CancelState, error)
}

// BillingService creates checkout and portal redirect sessions.
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, token string, cycle domain.BillingCycle) (*clients.BillingSession, error)
	CreatePortalSession(ctx context.Context, token string) (*clients.BillingSession, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the reconciliation backend. It
// depends on abstract service interfaces to keep transport concerns separate
// from business logic. The staging store and KV are used directly only for
// the thin staging/consent endpoints that have no service-layer logic.
type Handlers struct {
	gate    GateService
	anlSvc  AnalyzeService
	recSvc  ReconcileService
	cnlSvc  CancelService
	billing BillingService
	entity  services.Entity
	staging *staging.Store
	kv      staging.KV
}

// New constructs a Handlers instance bound to the given services.
func New(gate GateService, anl AnalyzeService, rec ReconcileService, cnl CancelService, billing BillingService, ent services.Entity, st *staging.Store, kv staging.KV) *Handlers {
	return &Handlers{
		gate:    gate,
		anlSvc:  anl,
		recSvc:  rec,
		cnlSvc:  cnl,
		billing: billing,
		entity:  ent,
		staging: st,
		kv:      kv,
	}
}

// bearerToken extracts the caller's bearer token from the Authorization
// header. An absent or malformed header yields the empty token, which the
// identity layer treats as anonymous.
func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

//
// DTOs
//

// NavigateRequest is the JSON payload for resolving one navigation.
type NavigateRequest struct {
	// Host overrides the request Host header (useful behind proxies that
	// rewrite it); when empty the request host is used.
	Host string `json:"host,omitempty" example:"app.clausewise.io"`
	// Path is the requested path plus query.
	Path string `json:"path" binding:"required" example:"/dashboard"`
}

// NavigateResponse reports the resolved session state and the navigation
// intent the UI must act on.
type NavigateResponse struct {
	SessionState domain.SessionState `json:"session_state" example:"authenticated"`
	Intent       services.Intent     `json:"intent"`
}

//
// Handlers
//

// Navigate godoc
// @ID          navigate
// @Summary     Resolve a navigation
// @Description Resolves the session for one navigation and decides between rendering, a cross-surface redirect, and a login redirect carrying a return destination.
// @Tags        Navigation
// @Accept      json
// @Produce     json
//
// @Param       X-Device-ID    header  string  false "Client-minted device ID"  example(9f1c2e4a-device)
// @Param       Authorization  header  string  false "Bearer token"
// @Param       body           body    handlers.NavigateRequest  true  "Navigation payload"
//
// @Success     200  {object}  handlers.NavigateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /navigate [post]
func (h *Handlers) Navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "path required")
		return
	}
	host := strings.TrimSpace(req.Host)
	if host == "" {
		host = c.Request.Host
	}

	session, intent := h.gate.Resolve(c.Request.Context(), services.Navigation{
		Host:     host,
		Path:     req.Path,
		DeviceID: middleware.DeviceFrom(c),
		Token:    bearerToken(c),
	})
	ok(c, http.StatusOK, NavigateResponse{SessionState: session.State, Intent: intent})
}
