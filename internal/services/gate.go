// Package services – SessionGate
//
// This file implements the per-navigation session gate. Each navigation gets
// exactly one identity resolution (Unchecked -> Checking -> {Authenticated,
// Anonymous}) and exactly one decision: render the page, redirect across
// surfaces, or redirect to the identity provider's login entry carrying a
// return destination. Identity failures never propagate as errors — they
// degrade to an anonymous session.
//
// The login redirect is emitted after a short fixed debounce. Immediately
// after a login the provider may still be establishing the session, and a
// gate that fires instantly can bounce a freshly authenticated visitor back
// to the login page. The debounce is a delay, not a timeout: it never
// retries and never cancels.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
	"github.com/clausewise/go-clausewise-backend/internal/quota"
	"github.com/clausewise/go-clausewise-backend/internal/staging"
	"github.com/clausewise/go-clausewise-backend/internal/surface"
)

// Identity is the slice of the identity provider the services consume.
// Probe reports false on any failure; it never errors.
type Identity interface {
	Probe(ctx context.Context, token string) bool
	Me(ctx context.Context, token string) (*domain.Account, error)
	Update(ctx context.Context, token string, fields map[string]any) (*domain.Account, error)
	LoginURL(returnPath string) string
}

// IntentKind enumerates the navigation intents the gate produces.
type IntentKind string

const (
	// IntentRender means the requested page may be shown as-is.
	IntentRender IntentKind = "render"
	// IntentRedirect means the visitor must be sent to TargetURL (a
	// cross-surface redirect).
	IntentRedirect IntentKind = "redirect"
	// IntentLogin means the visitor must be sent to the identity provider's
	// login entry at TargetURL, which carries the return destination.
	IntentLogin IntentKind = "login"
)

// Intent is the navigation decision handed back to the UI layer.
type Intent struct {
	Kind      IntentKind `json:"kind"`
	TargetURL string     `json:"target_url,omitempty"`
}

// Navigation describes one navigation to resolve.
type Navigation struct {
	// Host is the hostname the request arrived on.
	Host string
	// Path is the requested path plus query, used as the default return
	// destination for the login redirect.
	Path string
	// DeviceID scopes the client-state store keys.
	DeviceID string
	// Token is the caller's bearer token, possibly empty.
	Token string
}

// SessionGate resolves authentication once per navigation and decides
// between render, cross-surface redirect, and login redirect.
type SessionGate struct {
	classifier *surface.Classifier
	identity   Identity
	staging    *staging.Store
	ledger     *quota.Ledger

	// dashboardPage is the page id the return destination is forced to when
	// a pending pointer exists, so the post-login page is one equipped to
	// run reconciliation.
	dashboardPage string

	debounce time.Duration
	sleep    func(time.Duration)
}

// GateOption customizes a SessionGate.
type GateOption func(*SessionGate)

// WithDebounce overrides the login-redirect debounce.
func WithDebounce(d time.Duration) GateOption {
	return func(g *SessionGate) {
		if d >= 0 {
			g.debounce = d
		}
	}
}

// WithSleeper overrides the sleep function (tests).
func WithSleeper(sleep func(time.Duration)) GateOption {
	return func(g *SessionGate) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithDashboardPage overrides the page reconciliation is forced back to.
func WithDashboardPage(page string) GateOption {
	return func(g *SessionGate) {
		if page != "" {
			g.dashboardPage = page
		}
	}
}

// NewSessionGate constructs a gate with the default 400ms debounce.
func NewSessionGate(c *surface.Classifier, id Identity, st *staging.Store, l *quota.Ledger, opts ...GateOption) *SessionGate {
	g := &SessionGate{
		classifier:    c,
		identity:      id,
		staging:       st,
		ledger:        l,
		dashboardPage: "dashboard",
		debounce:      400 * time.Millisecond,
		sleep:         time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve runs the session state machine for one navigation and returns the
// resolved session together with the navigation intent.
//
// Order of concerns:
//  1. Resolve the session (one probe; failures degrade to Anonymous; the
//     account quota ledger rolls over here, once per resolution).
//  2. Cross-surface classification: a redirect decision wins over gating,
//     since the destination surface re-runs the gate anyway.
//  3. Protected-page gating: anonymous visitors are sent to login with a
//     return destination, unless redirection is globally disabled for the
//     hostname (preview/staging escape hatch).
func (g *SessionGate) Resolve(ctx context.Context, nav Navigation) (*domain.Session, Intent) {
	session := g.ResolveSession(ctx, nav.Token)

	pageID := surface.PageFromPath(nav.Path)
	decision := g.classifier.Classify(nav.Host, pageID)
	if decision.ShouldRedirect {
		navigationDecisions.WithLabelValues(string(IntentRedirect)).Inc()
		return session, Intent{Kind: IntentRedirect, TargetURL: decision.TargetURL}
	}

	if g.classifier.Protected(pageID) &&
		!session.Authenticated() &&
		!g.classifier.RedirectDisabled(nav.Host) {
		dest := g.returnDestination(ctx, nav, pageID)
		g.sleep(g.debounce)
		navigationDecisions.WithLabelValues(string(IntentLogin)).Inc()
		return session, Intent{Kind: IntentLogin, TargetURL: g.identity.LoginURL(dest)}
	}

	navigationDecisions.WithLabelValues(string(IntentRender)).Inc()
	return session, Intent{Kind: IntentRender}
}

// ResolveSession performs the single identity round-trip of a navigation. It
// is also the entry point for operations that need a resolved session without
// a surface decision (analysis submission, reconciliation).
func (g *SessionGate) ResolveSession(ctx context.Context, token string) *domain.Session {
	state := domain.NextSessionState(domain.SessionUnchecked, false, false) // -> Checking

	authenticated := g.identity.Probe(ctx, token)
	var principal *domain.Account
	if authenticated {
		acc, err := g.identity.Me(ctx, token)
		if err != nil {
			// Probe said yes but the principal is unreadable; degrade.
			log.Warn().Err(err).Msg("gate: principal fetch failed, degrading to anonymous")
			authenticated = false
		} else {
			principal = g.ledger.MaybeRollover(ctx, token, acc)
		}
	}

	state = domain.NextSessionState(state, true, authenticated)
	return &domain.Session{State: state, Principal: principal}
}

// returnDestination computes where the visitor should land after login. When
// a pending pointer exists and the visitor is not already heading to the
// dashboard, the destination is forced to the dashboard so the
// reconciliation worker is guaranteed to run on a page equipped for it.
func (g *SessionGate) returnDestination(ctx context.Context, nav Navigation, pageID string) string {
	if _, ok := g.staging.PeekPending(ctx, nav.DeviceID); ok && pageID != g.dashboardPage {
		return surface.PagePath(g.dashboardPage)
	}
	return nav.Path
}
