// Package services – CancellationWorkflow
//
// This file implements the subscription-cancellation workflow, a linear
// state machine (Idle -> ConfirmPending -> SurveyPending -> Submitting ->
// {Done, Failed}) with one transition function and a failure-safe step
// order: the churn analytics event is persisted before the destructive
// cancellation call. Churn analytics must never be lost because a
// cancellation subsequently failed; a cancellation that never happened must
// never be recorded, so the event is stamped with the attempt, written once,
// and never duplicated when the user resubmits after a failed cancellation.
package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
)

// Canceller is the slice of the payment-processor boundary the workflow
// needs: the destructive call it orders its steps around.
type Canceller interface {
	CancelSubscription(ctx context.Context, token string) error
}

// CancelState enumerates the workflow states.
type CancelState string

const (
	CancelIdle           CancelState = "idle"
	CancelConfirmPending CancelState = "confirm_pending"
	CancelSurveyPending  CancelState = "survey_pending"
	CancelSubmitting     CancelState = "submitting"
	CancelDone           CancelState = "done"
	CancelFailed         CancelState = "failed"
)

// cancelEvent enumerates the inputs of the transition function.
type cancelEvent string

const (
	evBegin      cancelEvent = "begin"
	evConfirm    cancelEvent = "confirm"
	evSubmit     cancelEvent = "submit"
	evCancelOK   cancelEvent = "cancel_ok"
	evCancelErr  cancelEvent = "cancel_err"
	evPersistErr cancelEvent = "persist_err"
)

// RecordKindChurnEvents is the entity-store kind churn analytics are written as.
const RecordKindChurnEvents = "churn_events"

// nextCancelState is the single transition function of the workflow machine.
// Illegal (state, event) pairs report ok=false and leave the state alone.
//
// Two failure edges deserve a note: a failed cancellation returns the
// workflow to SurveyPending — the user may resubmit, and the analytics event
// already written is reused, not duplicated. A failed event persist ends in
// Failed: the survey data could not be recorded, so the destructive call was
// never attempted and the whole step must be redone.
func nextCancelState(cur CancelState, ev cancelEvent) (CancelState, bool) {
	switch {
	case cur == CancelIdle && ev == evBegin:
		return CancelConfirmPending, true
	case cur == CancelConfirmPending && ev == evConfirm:
		return CancelSurveyPending, true
	case cur == CancelSurveyPending && ev == evSubmit:
		return CancelSubmitting, true
	case cur == CancelSubmitting && ev == evCancelOK:
		return CancelDone, true
	case cur == CancelSubmitting && ev == evCancelErr:
		return CancelSurveyPending, true
	case cur == CancelSubmitting && ev == evPersistErr:
		return CancelFailed, true
	default:
		return cur, false
	}
}

// SurveyAnswers is the exit survey the user fills in before cancelling.
type SurveyAnswers struct {
	Reason   string `json:"reason"`
	Feedback string `json:"feedback,omitempty"`
	NPSScore int    `json:"nps_score"`
}

// workflow is the per-account workflow instance. eventID is minted on the
// first survey submission and reused on resubmits so the analytics event is
// written at most once per survey.
type workflow struct {
	state        CancelState
	lastError    string
	eventID      string
	eventWritten bool
}

// CancellationService drives the per-account cancellation workflows. State
// is in-memory and mutex-guarded; a restart resets every workflow to Idle,
// which is safe because no step before Submitting has side effects.
type CancellationService struct {
	identity Identity
	entity   Entity
	billing  Canceller

	now func() time.Time

	mu    sync.Mutex
	flows map[string]*workflow
}

// ChurnOption customizes a CancellationService.
type ChurnOption func(*CancellationService)

// WithChurnClock overrides the time source (tests).
func WithChurnClock(now func() time.Time) ChurnOption {
	return func(s *CancellationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewCancellationService wires the workflow to its collaborators.
func NewCancellationService(id Identity, ent Entity, billing Canceller, opts ...ChurnOption) *CancellationService {
	s := &CancellationService{
		identity: id,
		entity:   ent,
		billing:  billing,
		now:      func() time.Time { return time.Now().UTC() },
		flows:    make(map[string]*workflow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status reports the current state and last error for an account.
func (s *CancellationService) Status(accountID string) (CancelState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flow(accountID)
	return f.state, f.lastError
}

// Begin opens the workflow: Idle -> ConfirmPending. A Done or Failed
// workflow may be reopened; anything in between may not.
func (s *CancellationService) Begin(accountID string) (CancelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flow(accountID)
	if f.state == CancelDone || f.state == CancelFailed {
		*f = workflow{state: CancelIdle}
	}
	next, ok := nextCancelState(f.state, evBegin)
	if !ok {
		return f.state, ErrWorkflowState
	}
	f.state = next
	return f.state, nil
}

// Confirm advances on explicit user confirmation: ConfirmPending -> SurveyPending.
func (s *CancellationService) Confirm(accountID string) (CancelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flow(accountID)
	next, ok := nextCancelState(f.state, evConfirm)
	if !ok {
		return f.state, ErrWorkflowState
	}
	f.state = next
	return f.state, nil
}

// SubmitSurvey runs the destructive half of the workflow: build the churn
// event, persist it, then attempt the cancellation.
func (s *CancellationService) SubmitSurvey(ctx context.Context, token string, answers SurveyAnswers) (CancelState, error) {
	acc, err := s.identity.Me(ctx, token)
	if err != nil {
		return CancelIdle, fmt.Errorf("cancellation: fetch account: %w", err)
	}

	s.mu.Lock()
	f := s.flow(acc.ID)
	next, ok := nextCancelState(f.state, evSubmit)
	if !ok {
		state := f.state
		s.mu.Unlock()
		return state, ErrWorkflowState
	}
	f.state = next
	if f.eventID == "" {
		f.eventID = uuid.NewString()
	}
	eventID, eventWritten := f.eventID, f.eventWritten
	s.mu.Unlock()

	// The event is written before the cancellation is attempted, and only
	// once per survey submission: a resubmit after a failed cancellation
	// reuses the already-written event.
	if !eventWritten {
		event := s.buildChurnEvent(ctx, acc, answers)
		if _, err := s.entity.Create(ctx, RecordKindChurnEvents, churnEventFields(eventID, event)); err != nil {
			s.transition(acc.ID, evPersistErr, err.Error())
			cancellationOutcomes.WithLabelValues("event_failed").Inc()
			return CancelFailed, fmt.Errorf("cancellation: persist churn event: %w", err)
		}
		s.markEventWritten(acc.ID)
	}

	if err := s.billing.CancelSubscription(ctx, token); err != nil {
		state := s.transition(acc.ID, evCancelErr, err.Error())
		cancellationOutcomes.WithLabelValues("cancel_failed").Inc()
		return state, fmt.Errorf("cancellation: %w", err)
	}

	state := s.transition(acc.ID, evCancelOK, "")
	cancellationOutcomes.WithLabelValues("done").Inc()
	return state, nil
}

// buildChurnEvent computes the analytics snapshot for the account at the
// moment of the attempt. A failed record count is logged and reported as
// zero rather than blocking the cancellation.
func (s *CancellationService) buildChurnEvent(ctx context.Context, acc *domain.Account, answers SurveyAnswers) domain.ChurnEvent {
	days := 0
	if acc.SubscriptionStartDate != nil {
		if d := int(math.Floor(s.now().Sub(*acc.SubscriptionStartDate).Hours() / 24)); d > 0 {
			days = d
		}
	}

	total := 0
	if recs, err := s.entity.List(ctx, RecordKindAnalyses, map[string]any{"account_id": acc.ID}, "-created_at"); err != nil {
		log.Warn().Err(err).Str("account_id", acc.ID).Msg("cancellation: analysis count failed, recording zero")
	} else {
		total = len(recs)
	}

	return domain.ChurnEvent{
		AccountID:      acc.ID,
		Reason:         answers.Reason,
		Feedback:       answers.Feedback,
		NPSScore:       answers.NPSScore,
		DaysAsCustomer: days,
		TotalAnalyses:  total,
		TotalRevenue:   round2(acc.MonthlyRecurringRev * float64(days) / 30),
		Plan:           acc.Plan,
		BillingCycle:   string(acc.BillingCycle),
	}
}

func churnEventFields(eventID string, e domain.ChurnEvent) map[string]any {
	return map[string]any{
		"event_id":         eventID,
		"account_id":       e.AccountID,
		"reason":           e.Reason,
		"feedback":         e.Feedback,
		"nps_score":        e.NPSScore,
		"days_as_customer": e.DaysAsCustomer,
		"total_analyses":   e.TotalAnalyses,
		"total_revenue":    e.TotalRevenue,
		"plan":             string(e.Plan),
		"billing_cycle":    e.BillingCycle,
	}
}

func (s *CancellationService) transition(accountID string, ev cancelEvent, lastError string) CancelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flow(accountID)
	if next, ok := nextCancelState(f.state, ev); ok {
		f.state = next
	}
	f.lastError = lastError
	return f.state
}

func (s *CancellationService) markEventWritten(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow(accountID).eventWritten = true
}

// flow returns the workflow for accountID, creating it Idle. Callers hold mu.
func (s *CancellationService) flow(accountID string) *workflow {
	f, ok := s.flows[accountID]
	if !ok {
		f = &workflow{state: CancelIdle}
		s.flows[accountID] = f
	}
	return f
}

// round2 rounds to two decimals, away from zero on ties.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
