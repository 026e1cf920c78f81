// Package domain defines the core data types of the reconciliation backend.
// This file holds the per-navigation session and its explicit state machine.
package domain

// SessionState enumerates the lifecycle of a per-navigation session check.
// The progression is strictly Unchecked -> Checking -> {Authenticated,
// Anonymous}; a session never moves backwards and is discarded (re-created)
// on the next path change.
type SessionState string

const (
	SessionUnchecked     SessionState = "unchecked"
	SessionChecking      SessionState = "checking"
	SessionAuthenticated SessionState = "authenticated"
	SessionAnonymous     SessionState = "anonymous"
)

// Resolved reports whether the identity check has completed, in either
// direction.
func (s SessionState) Resolved() bool {
	return s == SessionAuthenticated || s == SessionAnonymous
}

// Session is the transient, per-navigation authentication snapshot. It is
// created Unchecked for each navigation and resolved by exactly one
// round-trip to the identity provider. Identity failures never surface here;
// they degrade to SessionAnonymous.
type Session struct {
	State     SessionState `json:"state"`
	Principal *Account     `json:"principal,omitempty"`
}

// Authenticated reports whether the session resolved to a logged-in account.
func (s *Session) Authenticated() bool {
	return s != nil && s.State == SessionAuthenticated && s.Principal != nil
}

// NextSessionState is the single transition function of the session machine.
// Illegal transitions return the current state unchanged so a buggy caller
// cannot force a resolved session back into Checking.
func NextSessionState(cur SessionState, probeDone, authenticated bool) SessionState {
	switch cur {
	case SessionUnchecked:
		return SessionChecking
	case SessionChecking:
		if !probeDone {
			return SessionChecking
		}
		if authenticated {
			return SessionAuthenticated
		}
		return SessionAnonymous
	default:
		return cur
	}
}
