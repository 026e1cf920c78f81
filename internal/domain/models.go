// Package domain defines the core data types of the reconciliation backend:
// durable key/value entries, staged (deferred) analysis records, accounts as
// mirrored from the identity provider and entity store, quota ledgers, and
// churn analytics events. Only KVEntry and ReconciliationGuard are persisted
// locally (mapped with GORM); everything else travels over the wire to and
// from external collaborators.
package domain

import "time"

// Plan identifies the subscription tier of an account.
type Plan string

const (
	// PlanFree is the default tier: one reconciled analysis per calendar month.
	PlanFree Plan = "free"
	// PlanPro is the paid tier: no monthly analysis ceiling.
	PlanPro Plan = "pro"
)

// Paid reports whether the plan is a paying tier.
func (p Plan) Paid() bool { return p == PlanPro }

// BillingCycle is the subscription billing interval.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Valid reports whether the cycle is one of the supported intervals.
func (c BillingCycle) Valid() bool { return c == CycleMonthly || c == CycleYearly }

// KVEntry is a single durable key/value pair in the client-state store. The
// table holds the pending pointer, record-scoped staged payloads, the
// anonymous quota ledger, and the cookie-consent flag, all as plain strings
// (JSON-encoded where structured). ExpiresAt is zero for entries that do not
// expire.
type KVEntry struct {
	Key       string    `json:"key"        gorm:"type:TEXT NOT NULL;primaryKey"`
	Value     string    `json:"value"      gorm:"type:TEXT NOT NULL"`
	UpdatedAt time.Time `json:"updated_at" gorm:"type:DATETIME NOT NULL;autoUpdateTime"`
	ExpiresAt time.Time `json:"-"          gorm:"type:DATETIME;index"`
}

// TableName returns the database table name for KVEntry.
func (KVEntry) TableName() string { return "kv_entries" }

// StagedAnalysis is the payload of a deferred record: the anonymous result
// produced before the visitor has an account. Fields mirror what the
// permanent analysis record will carry after promotion.
type StagedAnalysis struct {
	// Title is the user-visible document title (may be empty; the field
	// mapping applies a default on promotion).
	Title string `json:"title"`
	// DocType is the detected document classification (e.g. "lease",
	// "employment", "nda").
	DocType string `json:"doc_type"`
	// RiskScore is the overall 0..100 risk score computed by the analyzer.
	RiskScore float64 `json:"risk_score"`
	// Flags lists the triggered risk findings, carried verbatim into the
	// permanent record.
	Flags []RiskFlag `json:"flags"`
	// Language is the BCP 47 tag of the analyzed document, when detected.
	Language string `json:"language,omitempty"`
}

// RiskFlag is a single finding produced by the risk analyzer.
type RiskFlag struct {
	Category string  `json:"category"`          // e.g. "liability", "termination"
	Severity string  `json:"severity"`          // "low" | "medium" | "high"
	Score    float64 `json:"score"`             // per-category similarity score
	Snippet  string  `json:"snippet,omitempty"` // offending clause excerpt
}

// DeferredRecord is a staged anonymous result awaiting promotion. It is
// addressable only through the pending pointer; at most one is outstanding
// per client at any moment.
type DeferredRecord struct {
	ID        string         `json:"id"`
	Payload   StagedAnalysis `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the record must be rejected at the given instant.
// Expiry is strict: the record is rejected the moment now passes ExpiresAt.
func (r *DeferredRecord) Expired(now time.Time) bool { return now.After(r.ExpiresAt) }

// Account mirrors the principal held by the identity provider, including the
// subscription fields and the server-side quota ledger maintained on it.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Plan  Plan   `json:"plan"`

	BillingCycle          BillingCycle `json:"billing_cycle,omitempty"`
	MonthlyRecurringRev   float64      `json:"monthly_recurring_revenue,omitempty"`
	SubscriptionStartDate *time.Time   `json:"subscription_start_date,omitempty"`

	// FreeUseConsumed is the account-scoped "one free use" flag. It is set
	// best-effort after a free-tier promotion succeeds.
	FreeUseConsumed bool `json:"free_use_consumed"`

	// MonthlyAnalysesCount and MonthlyCountResetDate form the account
	// quota ledger; the count is only valid for the stored period.
	MonthlyAnalysesCount  int        `json:"monthly_analyses_count"`
	MonthlyCountResetDate *time.Time `json:"monthly_count_reset_date,omitempty"`
}

// Record is a generic entity-store row: an opaque id plus the stored fields.
type Record struct {
	ID     string         `json:"id"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// AnonymousLedger is the device-scoped quota ledger kept in the client-state
// store. Count is only meaningful when Period matches the current calendar
// month; a read in any other period treats it as zero.
type AnonymousLedger struct {
	Count  int    `json:"count"`
	Period string `json:"period"` // "YYYY-MM"
}

// ChurnEvent is the immutable analytics record captured at cancellation time.
// It is written before the destructive cancellation call and never mutated or
// retried afterwards, regardless of whether the cancellation succeeds.
type ChurnEvent struct {
	AccountID      string  `json:"account_id"`
	Reason         string  `json:"reason"`
	Feedback       string  `json:"feedback,omitempty"`
	NPSScore       int     `json:"nps_score"`
	DaysAsCustomer int     `json:"days_as_customer"`
	TotalAnalyses  int     `json:"total_analyses"`
	TotalRevenue   float64 `json:"total_revenue"`
	Plan           Plan    `json:"plan"`
	BillingCycle   string  `json:"billing_cycle"`
}

// Period formats t as the calendar-month period key used by both quota
// ledgers. Sub-day precision is deliberately absent.
func Period(t time.Time) string { return t.UTC().Format("2006-01") }

// SamePeriod reports whether two instants fall in the same calendar month.
func SamePeriod(a, b time.Time) bool { return Period(a) == Period(b) }
