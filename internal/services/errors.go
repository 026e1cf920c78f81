// Package services implements the business logic of the reconciliation
// backend: the session gate, the reconciliation worker, the analysis
// producer, and the cancellation workflow. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrRecordNotFound indicates that the staged record behind the pending
	// pointer is missing or unreadable. Staging has been cleared; the source
	// data is gone and the operation is never retried automatically.
	ErrRecordNotFound = errors.New("staged record not found")

	// ErrRecordExpired indicates that the staged record outlived its TTL.
	// An expired record is never promoted under any circumstance.
	ErrRecordExpired = errors.New("staged record expired")

	// ErrLimitReached indicates that the free-use quota for the current
	// calendar month is exhausted.
	ErrLimitReached = errors.New("free analysis limit reached")

	// ErrStagingUnavailable indicates that the client-state store refused a
	// write. The caller reports "could not complete, try again".
	ErrStagingUnavailable = errors.New("staging store unavailable")

	// ErrNotAuthenticated is returned by operations that require a resolved
	// authenticated session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrEmptyDocument is returned when an analysis request carries no
	// document text.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrDocumentTooLong is returned when a document exceeds the maximum
	// configured length limit.
	ErrDocumentTooLong = errors.New("document too long")

	// ErrInvalidCycle is returned when a checkout request names a billing
	// cycle outside the supported set.
	ErrInvalidCycle = errors.New("billing cycle must be monthly or yearly")

	// ErrWorkflowState is returned when a cancellation step is invoked from
	// a state that does not permit it.
	ErrWorkflowState = errors.New("cancellation workflow: step not allowed in current state")
)
