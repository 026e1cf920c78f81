// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the reconciliation pointer guard. Reconciliation is
// triggered once per session resolution, but two tabs resolving the same
// session fire the trigger twice; the guard lets the transport layer detect
// that a pointer id has already been handled so the replayed call can be
// served from the recorded outcome without consuming rate-limit tokens.
//
// Design goals:
//   - Keep transport concerns (validation, context stashing) in middleware.
//   - Decouple persistence via a narrow GuardLookup function type; the
//     backing store is the reconciliation_guards table.
//   - Remain framework-agnostic beyond Gin's context.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderPointerID is the request header on which a reconcile call may carry
// the pending pointer id it observed, so replays are detectable before the
// handler runs. The header is optional; the worker re-reads the pointer and
// keeps its own guard regardless.
const HeaderPointerID = "X-Pointer-ID"

// Context keys used internally to stash guard state.
// These keys are intentionally unexported and referenced via accessor helpers.
const (
	ctxKeyPointerID  = "guard.pointer"
	ctxKeyReplay     = "guard.replay" // bool: true when the pointer was already handled
	ctxKeyRateBypass = "rate.bypass"  // bool: true to skip rate limiting
)

// GetPointerID returns the validated pointer id stored in the Gin context by
// PointerGuard. The second return value indicates presence.
//
// Handlers should prefer this function over reading the header directly.
func GetPointerID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyPointerID)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the middleware detected that this request replays
// an already-handled pointer (based on the device and pointer id).
//
// When true, upstream components (handlers, rate limiters) may short-circuit
// computation and return the previously recorded outcome.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// GuardOptions configures header validation behavior for PointerGuard.
type GuardOptions struct {
	// MaxLen caps the accepted pointer id length. Values <= 0 default to 64.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a UUID-friendly token
	// pattern is used: ^[A-Za-z0-9\-]+$
	Pattern *regexp.Regexp
}

// GuardLookup answers whether a guard row exists for (deviceID, pointerID) at
// the given time. Implementations consult the reconciliation_guards table;
// TTL enforcement lives in that lookup, not here.
//
// Return exists=true when the pointer was already handled; return an error
// only for lookup failures (which must not block normal processing).
type GuardLookup func(ctx context.Context, deviceID, pointerID string, now time.Time) (exists bool, err error)

// PointerGuard validates the X-Pointer-ID header (if present), stashes it in
// the request context, and checks for a previously handled pointer via the
// supplied lookup. When a replay is detected, it marks the context so
// downstream components can:
//   - detect replay via IsReplay
//   - bypass rate limiting (internal flag checked by the RL middleware)
//
// Behavior:
//   - If the header is absent: the middleware is a no-op.
//   - If the header fails validation: responds 400 with a compact error body.
//   - If lookup indicates a replay: sets replay + rate-bypass flags.
//   - Always invokes the next handler unless validation fails.
//
// This middleware does not itself return the recorded outcome; the worker
// remains in control of serving replays from its guard rows.
func PointerGuard(opts GuardOptions, lookup GuardLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 64
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)
	}

	return func(c *gin.Context) {
		pointerID := c.GetHeader(HeaderPointerID)
		if pointerID == "" {
			// Nothing to validate or stash; proceed.
			c.Next()
			return
		}
		if len(pointerID) > maxLen || !pat.MatchString(pointerID) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_pointer_id",
				"message": "invalid X-Pointer-ID",
			})
			return
		}

		// Stash the normalized pointer id for downstream use.
		c.Set(ctxKeyPointerID, pointerID)

		if lookup != nil {
			if exists, _ := lookup(c.Request.Context(), DeviceFrom(c), pointerID, time.Now().UTC()); exists {
				c.Set(ctxKeyReplay, true)
				c.Set(ctxKeyRateBypass, true) // let RL middleware skip limiting
			}
		}

		c.Next()
	}
}
