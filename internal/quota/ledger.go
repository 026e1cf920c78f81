// Package quota implements the trial quota ledgers that enforce "one free
// analysis per calendar month" across the two access tiers:
//
//   - the anonymous ledger, a device-scoped counter kept in the durable
//     client-state store, and
//   - the account ledger, a pair of fields (monthly_analyses_count,
//     monthly_count_reset_date) held server-side on the account record and
//     read/reset through the identity provider.
//
// Both ledgers share the same validity rule: a count is only meaningful for
// the calendar month it was written in. Any read in a different period
// treats the count as zero (rollover). Calendar-month granularity is
// sufficient by design; there is no sub-day precision anywhere here.
package quota

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
	"github.com/clausewise/go-clausewise-backend/internal/staging"
)

// AccountUpdater is the slice of the identity provider needed to maintain
// the server-side account ledger.
type AccountUpdater interface {
	Update(ctx context.Context, token string, fields map[string]any) (*domain.Account, error)
}

// Ledger evaluates and records trial usage for both tiers.
type Ledger struct {
	kv      staging.KV
	updater AccountUpdater

	// MonthlyLimit is the number of free analyses per calendar month for a
	// tier. The product ships with exactly one.
	MonthlyLimit int

	now func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithMonthlyLimit overrides the per-month free-use ceiling.
func WithMonthlyLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.MonthlyLimit = n
		}
	}
}

// New builds a Ledger over the client-state store and the identity provider.
func New(kv staging.KV, updater AccountUpdater, opts ...Option) *Ledger {
	l := &Ledger{
		kv:           kv,
		updater:      updater,
		MonthlyLimit: 1,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAnonymous reports whether the device may use its free anonymous
// analysis this month. A ledger written in an earlier period counts as zero.
// Storage failures fail open: a visitor with broken storage gets the trial
// rather than a dead end.
func (l *Ledger) CheckAnonymous(ctx context.Context, deviceID string) bool {
	return l.readAnonymous(ctx, deviceID).Count < l.MonthlyLimit
}

// RecordAnonymousUse increments the device ledger and stamps it with the
// current period. Reports whether the write stuck.
func (l *Ledger) RecordAnonymousUse(ctx context.Context, deviceID string) bool {
	led := l.readAnonymous(ctx, deviceID)
	led.Count++
	led.Period = domain.Period(l.now())

	raw, err := json.Marshal(led)
	if err != nil {
		log.Warn().Err(err).Msg("quota: marshal anonymous ledger failed")
		return false
	}
	return l.kv.Set(ctx, staging.DeviceKey(deviceID, staging.KeyAnonQuota), string(raw))
}

// CheckAccount reports whether the account may run another analysis this
// month. Paid plans are never blocked. The stored count is only honored when
// its reset date falls in the current period.
func (l *Ledger) CheckAccount(acc *domain.Account) bool {
	if acc == nil {
		return false
	}
	if acc.Plan.Paid() {
		return true
	}
	return l.effectiveAccountCount(acc) < l.MonthlyLimit
}

// RecordAccountUse increments monthly_analyses_count on the account record
// via the identity provider. The returned account reflects the update; on
// failure the original account is returned and the error is the caller's to
// handle (callers treat it as best-effort).
func (l *Ledger) RecordAccountUse(ctx context.Context, token string, acc *domain.Account) (*domain.Account, error) {
	count := l.effectiveAccountCount(acc) + 1
	fields := map[string]any{
		"monthly_analyses_count": count,
	}
	if !l.accountPeriodCurrent(acc) {
		fields["monthly_count_reset_date"] = l.now().Format(time.RFC3339)
	}
	updated, err := l.updater.Update(ctx, token, fields)
	if err != nil {
		return acc, err
	}
	return updated, nil
}

// MaybeRollover resets the account ledger when its stored period is not the
// current calendar month. The write only happens when the period actually
// differs, which keeps concurrent session resolutions idempotent: every
// racer computes the same target state and redundant updates are no-ops
// server-side. Called once per session resolution, not on every render.
func (l *Ledger) MaybeRollover(ctx context.Context, token string, acc *domain.Account) *domain.Account {
	if acc == nil || l.accountPeriodCurrent(acc) {
		return acc
	}
	updated, err := l.updater.Update(ctx, token, map[string]any{
		"monthly_analyses_count":   0,
		"monthly_count_reset_date": l.now().Format(time.RFC3339),
	})
	if err != nil {
		// Transient failure: keep the stale account; the next session
		// resolution retries. Reads already treat the stale count as zero.
		log.Warn().Err(err).Str("account_id", acc.ID).Msg("quota: account rollover failed")
		return acc
	}
	return updated
}

// effectiveAccountCount applies the rollover rule on read: a count stored in
// a different period is zero.
func (l *Ledger) effectiveAccountCount(acc *domain.Account) int {
	if acc == nil || !l.accountPeriodCurrent(acc) {
		return 0
	}
	return acc.MonthlyAnalysesCount
}

func (l *Ledger) accountPeriodCurrent(acc *domain.Account) bool {
	if acc == nil || acc.MonthlyCountResetDate == nil {
		return false
	}
	return domain.SamePeriod(*acc.MonthlyCountResetDate, l.now())
}

// readAnonymous loads the device ledger, applying the rollover rule and
// degrading corrupt or unreadable state to an empty ledger.
func (l *Ledger) readAnonymous(ctx context.Context, deviceID string) domain.AnonymousLedger {
	raw, ok := l.kv.Get(ctx, staging.DeviceKey(deviceID, staging.KeyAnonQuota))
	if !ok {
		return domain.AnonymousLedger{Period: domain.Period(l.now())}
	}
	var led domain.AnonymousLedger
	if err := json.Unmarshal([]byte(raw), &led); err != nil {
		log.Warn().Err(err).Msg("quota: corrupt anonymous ledger, treating as empty")
		return domain.AnonymousLedger{Period: domain.Period(l.now())}
	}
	if led.Period != domain.Period(l.now()) {
		return domain.AnonymousLedger{Period: domain.Period(l.now())}
	}
	return led
}
