// Package services – ReconciliationWorker
//
// This file implements the promotion of a staged anonymous result into a
// permanent record after login. The worker runs once per session resolution,
// walks a strict sequence — pointer, record, expiry, eligibility, create,
// flag, clear — and reports exactly one outcome the UI layer can key a
// notification on.
//
// Double invocation (two tabs resolving the same session) is tolerated, not
// prevented: a guard row records each handled pointer so a replay within the
// same backend short-circuits to the recorded outcome, and the pointer-equality
// check in Clear is the last line of defense. A create-then-clear race across
// independent clients can still produce at most one duplicate permanent
// record; that is an accepted, bounded risk.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
	"github.com/clausewise/go-clausewise-backend/internal/quota"
	"github.com/clausewise/go-clausewise-backend/internal/repo"
	"github.com/clausewise/go-clausewise-backend/internal/staging"
)

// Entity is the slice of the external entity store the services consume.
type Entity interface {
	Create(ctx context.Context, kind string, fields map[string]any) (*domain.Record, error)
	List(ctx context.Context, kind string, filter map[string]any, sort string) ([]domain.Record, error)
}

// Outcome identifies the result of one reconciliation run. Values double as
// notification keys for the UI layer and as metric label values.
type Outcome string

const (
	// OutcomeSaved: the staged record was promoted into a permanent record.
	OutcomeSaved Outcome = "saved"
	// OutcomeExpired: the staged record outlived its TTL and was discarded.
	OutcomeExpired Outcome = "expired"
	// OutcomeLimitReached: the account is not eligible; staging discarded.
	OutcomeLimitReached Outcome = "limit_reached"
	// OutcomeNotFound: the pointer referenced a missing or corrupt record.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeError: the create call failed; staging left intact for retry.
	OutcomeError Outcome = "error"
	// OutcomeNoop: nothing to reconcile.
	OutcomeNoop Outcome = "noop"
)

// RecordKindAnalyses is the entity-store kind promoted records are created as.
const RecordKindAnalyses = "analyses"

// ReconcileInput describes one reconciliation trigger.
type ReconcileInput struct {
	// DeviceID scopes the staging keys.
	DeviceID string
	// Token is the caller's bearer token, forwarded to the identity provider
	// for the best-effort flag update.
	Token string
	// Session is the resolved session of the triggering navigation.
	Session *domain.Session
	// FromDeferredFlow is set when the navigation carries the
	// "coming from deferred flow" URL marker.
	FromDeferredFlow bool
}

// ReconcileResult is the outcome of one run.
type ReconcileResult struct {
	Outcome Outcome `json:"outcome"`
	// RecordID is the permanent record id when Outcome is saved.
	RecordID string `json:"record_id,omitempty"`
	// NavigateTo is the detail path to visit after a successful promotion.
	NavigateTo string `json:"navigate_to,omitempty"`
	// StripMarker tells the caller to remove the deferred-flow URL marker.
	StripMarker bool `json:"strip_marker,omitempty"`
	// Replayed is set when the outcome was served from a guard row rather
	// than a fresh run.
	Replayed bool `json:"replayed,omitempty"`
	// Err carries the failure when Outcome is error.
	Err error `json:"-"`
}

// ReconciliationWorker promotes staged records. One instance serves all
// devices; per-run state lives on the stack.
type ReconciliationWorker struct {
	db      *gorm.DB
	staging *staging.Store
	ledger  *quota.Ledger
	identity Identity
	entity   Entity

	// guardTTL bounds how long a handled pointer id is remembered. It only
	// needs to outlive the staging TTL.
	guardTTL time.Duration
	// navDelay is the pause before the post-success navigation intent, so
	// the success notification has time to display.
	navDelay time.Duration

	sleep func(time.Duration)
	now   func() time.Time
}

// WorkerOption customizes a ReconciliationWorker.
type WorkerOption func(*ReconciliationWorker)

// WithGuardTTL overrides how long handled pointer ids are remembered.
func WithGuardTTL(ttl time.Duration) WorkerOption {
	return func(w *ReconciliationWorker) {
		if ttl > 0 {
			w.guardTTL = ttl
		}
	}
}

// WithNavDelay overrides the post-success navigation delay.
func WithNavDelay(d time.Duration) WorkerOption {
	return func(w *ReconciliationWorker) {
		if d >= 0 {
			w.navDelay = d
		}
	}
}

// WithWorkerSleeper overrides the sleep function (tests).
func WithWorkerSleeper(sleep func(time.Duration)) WorkerOption {
	return func(w *ReconciliationWorker) {
		if sleep != nil {
			w.sleep = sleep
		}
	}
}

// WithWorkerClock overrides the time source (tests).
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *ReconciliationWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewReconciliationWorker wires the worker to its collaborators.
func NewReconciliationWorker(db *gorm.DB, st *staging.Store, l *quota.Ledger, id Identity, ent Entity, opts ...WorkerOption) *ReconciliationWorker {
	w := &ReconciliationWorker{
		db:       db,
		staging:  st,
		ledger:   l,
		identity: id,
		entity:   ent,
		guardTTL: 48 * time.Hour,
		navDelay: 1500 * time.Millisecond,
		sleep:    time.Sleep,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes one reconciliation pass for a resolved session.
func (w *ReconciliationWorker) Run(ctx context.Context, in ReconcileInput) ReconcileResult {
	// Step 1: no pointer means nothing to do. A stray deferred-flow marker
	// with no pointer is stripped so the cleanup is idempotent.
	pointerID, ok := w.staging.PeekPending(ctx, in.DeviceID)
	if !ok {
		return w.finish(ReconcileResult{Outcome: OutcomeNoop, StripMarker: in.FromDeferredFlow})
	}

	// An anonymous session never reconciles; the record stays staged until
	// the visitor authenticates or the TTL collects it.
	if !in.Session.Authenticated() {
		return w.finish(ReconcileResult{Outcome: OutcomeNoop})
	}

	// Replay suppression: a pointer this backend already handled
	// short-circuits to the recorded outcome.
	if g, err := repo.GetGuard(ctx, w.db, in.DeviceID, pointerID, w.now()); err == nil {
		reconciliationOutcomes.WithLabelValues("replayed").Inc()
		return ReconcileResult{Outcome: Outcome(g.Outcome), RecordID: g.RecordID, Replayed: true}
	}

	// Step 2: read and validate the staged record.
	rec, ok := w.staging.Consume(ctx, in.DeviceID, pointerID)
	if !ok {
		w.staging.Clear(ctx, in.DeviceID, pointerID)
		w.writeGuard(ctx, in.DeviceID, pointerID, OutcomeNotFound, "")
		return w.finish(ReconcileResult{Outcome: OutcomeNotFound, Err: ErrRecordNotFound})
	}

	// Step 3: strict expiry. An expired record is never promoted.
	if rec.Expired(w.now()) {
		w.staging.Clear(ctx, in.DeviceID, pointerID)
		w.writeGuard(ctx, in.DeviceID, pointerID, OutcomeExpired, "")
		return w.finish(ReconcileResult{Outcome: OutcomeExpired, Err: ErrRecordExpired})
	}

	// Step 4: eligibility. Paid plans always promote; a free account only
	// while its one-free-use flag is unconsumed.
	acc := in.Session.Principal
	if !acc.Plan.Paid() && acc.FreeUseConsumed {
		w.staging.Clear(ctx, in.DeviceID, pointerID)
		w.writeGuard(ctx, in.DeviceID, pointerID, OutcomeLimitReached, "")
		return w.finish(ReconcileResult{Outcome: OutcomeLimitReached, Err: ErrLimitReached})
	}

	// Step 5: promote. A create failure leaves staging untouched so a later
	// navigation can retry; no guard is written for the same reason.
	created, err := w.entity.Create(ctx, RecordKindAnalyses, mapStagedToRecord(acc, rec))
	if err != nil {
		return w.finish(ReconcileResult{
			Outcome: OutcomeError,
			Err:     fmt.Errorf("reconcile: create permanent record: %w", err),
		})
	}

	// Step 6: best-effort flag update. The created record is authoritative;
	// a failed flag update is logged, never rolled back, never blocking.
	if !acc.Plan.Paid() {
		if _, err := w.identity.Update(ctx, in.Token, map[string]any{"free_use_consumed": true}); err != nil {
			log.Warn().Err(err).Str("account_id", acc.ID).
				Msg("reconcile: free-use flag update failed, record kept")
		}
		if _, err := w.ledger.RecordAccountUse(ctx, in.Token, acc); err != nil {
			log.Warn().Err(err).Str("account_id", acc.ID).
				Msg("reconcile: account ledger update failed, record kept")
		}
	}

	// Step 7: clear staging, remember the pointer, let the success
	// notification display, then hand back the detail-view navigation.
	w.staging.Clear(ctx, in.DeviceID, pointerID)
	w.writeGuard(ctx, in.DeviceID, pointerID, OutcomeSaved, created.ID)
	w.sleep(w.navDelay)

	return w.finish(ReconcileResult{
		Outcome:    OutcomeSaved,
		RecordID:   created.ID,
		NavigateTo: "/analysis/" + created.ID,
	})
}

func (w *ReconciliationWorker) finish(res ReconcileResult) ReconcileResult {
	reconciliationOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

// writeGuard records a handled pointer. A duplicate means another invocation
// beat this one to it, which is exactly the condition the guard exists for.
func (w *ReconciliationWorker) writeGuard(ctx context.Context, deviceID, pointerID string, outcome Outcome, recordID string) {
	if _, err := repo.CreateGuard(ctx, w.db, deviceID, pointerID, string(outcome), recordID, w.guardTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		log.Warn().Err(err).Str("pointer_id", pointerID).Msg("reconcile: guard write failed")
	}
}

// mapStagedToRecord is the pure, total field mapping from a staged payload
// to the permanent record's fields. Every staged field has a destination and
// every optional field has an explicit default.
func mapStagedToRecord(acc *domain.Account, rec *domain.DeferredRecord) map[string]any {
	title := rec.Payload.Title
	if title == "" {
		title = "Untitled analysis"
	}
	docType := rec.Payload.DocType
	if docType == "" {
		docType = "other"
	}
	flags := rec.Payload.Flags
	if flags == nil {
		flags = []domain.RiskFlag{}
	}
	return map[string]any{
		"account_id": acc.ID,
		"title":      title,
		"doc_type":   docType,
		"risk_score": rec.Payload.RiskScore,
		"flags":      flags,
		"language":   rec.Payload.Language,
		"source":     "deferred",
		"staged_at":  rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}
