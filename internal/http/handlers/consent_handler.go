// Consent HTTP handlers.
//
// This file exposes the device-scoped cookie-consent flag:
//   - GET /consent  (read the flag; "unset" when never recorded)
//   - PUT /consent  (record a decision)
//
// Consent lives in the same durable client-state store as the staging keys so
// it survives restarts alongside them.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clausewise/go-clausewise-backend/internal/http/middleware"
	"github.com/clausewise/go-clausewise-backend/internal/staging"
)

// Consent decisions. "unset" is the read-side default, never stored.
const (
	ConsentAccepted = "accepted"
	ConsentRejected = "rejected"
	consentUnset    = "unset"
)

// ConsentResponse carries the device's recorded consent decision.
type ConsentResponse struct {
	Consent string `json:"consent" example:"accepted"`
}

// ConsentRequest is the JSON payload for recording a consent decision.
type ConsentRequest struct {
	Consent string `json:"consent" binding:"required" example:"accepted"`
}

// GetConsent godoc
// @ID          getConsent
// @Summary     Read the cookie-consent flag
// @Tags        Consent
// @Produce     json
//
// @Param       X-Device-ID  header  string  false "Client-minted device ID"  example(9f1c2e4a-device)
//
// @Success     200  {object}  handlers.ConsentResponse
// @Router      /consent [get]
func (h *Handlers) GetConsent(c *gin.Context) {
	key := staging.DeviceKey(middleware.DeviceFrom(c), staging.KeyConsent)
	value, found := h.kv.Get(c.Request.Context(), key)
	if !found || value == "" {
		value = consentUnset
	}
	ok(c, http.StatusOK, ConsentResponse{Consent: value})
}

// PutConsent godoc
// @ID          putConsent
// @Summary     Record a cookie-consent decision
// @Tags        Consent
// @Accept      json
// @Produce     json
//
// @Param       X-Device-ID  header  string  false "Client-minted device ID"  example(9f1c2e4a-device)
// @Param       body         body    handlers.ConsentRequest  true  "Consent decision"
//
// @Success     200  {object}  handlers.ConsentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown decision"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /consent [put]
func (h *Handlers) PutConsent(c *gin.Context) {
	var req ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Consent != ConsentAccepted && req.Consent != ConsentRejected {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "consent must be accepted or rejected")
		return
	}

	key := staging.DeviceKey(middleware.DeviceFrom(c), staging.KeyConsent)
	if !h.kv.Set(c.Request.Context(), key, req.Consent) {
		fail(c, http.StatusServiceUnavailable, ErrCodeStagingUnavailable, "could not record consent, try again")
		return
	}
	ok(c, http.StatusOK, ConsentResponse{Consent: req.Consent})
}
