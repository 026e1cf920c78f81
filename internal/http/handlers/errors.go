// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes provide
// clients with a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., limit_reached, staging_unavailable) are
//     reserved for business outcomes a status code alone cannot convey.
//   - All error responses must include both an HTTP status and one of these codes.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeLimitReached       = "limit_reached"
	ErrCodeRecordExpired      = "record_expired"
	ErrCodeStagingUnavailable = "staging_unavailable"
	ErrCodeEmptyDocument      = "empty_document"
	ErrCodeDocumentTooLong    = "document_too_long"
	ErrCodeInvalidCycle       = "invalid_cycle"
	ErrCodeWorkflowState      = "workflow_state"
	ErrCodeBillingFailed      = "billing_failed"
	ErrCodeReconcileFailed    = "reconcile_failed"
	ErrCodeAnalyzeFailed      = "analyze_failed"
)
