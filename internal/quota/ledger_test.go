package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
)

// ----- Fakes -----

type fakeKV struct {
	mu      sync.Mutex
	values  map[string]string
	failing bool
}

func newFakeKV() *fakeKV { return &fakeKV{values: make(map[string]string)} }

func (f *fakeKV) Get(_ context.Context, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return "", false
	}
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeKV) Set(_ context.Context, key, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return false
	}
	f.values[key] = value
	return true
}

func (f *fakeKV) SetTTL(ctx context.Context, key, value string, _ time.Duration) bool {
	return f.Set(ctx, key, value)
}

func (f *fakeKV) Delete(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return true
}

func (f *fakeKV) DeleteIfEquals(_ context.Context, key, want string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[key]; ok && v == want {
		delete(f.values, key)
		return true
	}
	return false
}

type fakeUpdater struct {
	mu      sync.Mutex
	account domain.Account
	calls   []map[string]any
	err     error
}

func (f *fakeUpdater) Update(_ context.Context, _ string, fields map[string]any) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, fields)
	if v, ok := fields["monthly_analyses_count"].(int); ok {
		f.account.MonthlyAnalysesCount = v
	}
	if v, ok := fields["monthly_count_reset_date"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.account.MonthlyCountResetDate = &ts
		}
	}
	acc := f.account
	return &acc, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var june = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

// ----- Anonymous ledger -----

func TestAnonymous_OneFreeUsePerMonth(t *testing.T) {
	kv := newFakeKV()
	l := New(kv, &fakeUpdater{}, WithClock(fixedClock(june)))
	ctx := context.Background()

	if !l.CheckAnonymous(ctx, "dev1") {
		t.Fatal("fresh device must be allowed")
	}
	if !l.RecordAnonymousUse(ctx, "dev1") {
		t.Fatal("recording use must succeed")
	}
	if l.CheckAnonymous(ctx, "dev1") {
		t.Fatal("second use in the same month must be blocked")
	}
}

func TestAnonymous_RolloverAcrossMonths(t *testing.T) {
	kv := newFakeKV()
	ctx := context.Background()

	// Use up May's allowance.
	may := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	lMay := New(kv, &fakeUpdater{}, WithClock(fixedClock(may)))
	lMay.RecordAnonymousUse(ctx, "dev1")
	if lMay.CheckAnonymous(ctx, "dev1") {
		t.Fatal("May allowance must be consumed")
	}

	// A ledger {count:1, period:2024-05} read in 2024-06 counts as zero.
	lJune := New(kv, &fakeUpdater{}, WithClock(fixedClock(june)))
	if !lJune.CheckAnonymous(ctx, "dev1") {
		t.Fatal("new month must permit one more use")
	}
}

func TestAnonymous_CorruptLedgerTreatedAsEmpty(t *testing.T) {
	kv := newFakeKV()
	l := New(kv, &fakeUpdater{}, WithClock(fixedClock(june)))
	ctx := context.Background()

	kv.Set(ctx, "cw:dev1:anon_quota", "###")
	if !l.CheckAnonymous(ctx, "dev1") {
		t.Fatal("corrupt ledger must fail open")
	}
}

func TestAnonymous_StorageFailureFailsOpen(t *testing.T) {
	kv := newFakeKV()
	kv.failing = true
	l := New(kv, &fakeUpdater{}, WithClock(fixedClock(june)))

	if !l.CheckAnonymous(context.Background(), "dev1") {
		t.Fatal("unreadable storage must fail open")
	}
	if l.RecordAnonymousUse(context.Background(), "dev1") {
		t.Fatal("recording must report failure when storage is down")
	}
}

// ----- Account ledger -----

func TestAccount_PaidPlanNeverBlocked(t *testing.T) {
	l := New(newFakeKV(), &fakeUpdater{}, WithClock(fixedClock(june)))
	acc := &domain.Account{Plan: domain.PlanPro, MonthlyAnalysesCount: 999, MonthlyCountResetDate: &june}
	if !l.CheckAccount(acc) {
		t.Fatal("paid plan must never be blocked")
	}
}

func TestAccount_FreePlanLimit(t *testing.T) {
	l := New(newFakeKV(), &fakeUpdater{}, WithClock(fixedClock(june)))

	fresh := &domain.Account{Plan: domain.PlanFree}
	if !l.CheckAccount(fresh) {
		t.Fatal("free account with no usage must be allowed")
	}

	used := &domain.Account{Plan: domain.PlanFree, MonthlyAnalysesCount: 1, MonthlyCountResetDate: &june}
	if l.CheckAccount(used) {
		t.Fatal("free account at the ceiling must be blocked")
	}
}

func TestAccount_StaleCountIsZero(t *testing.T) {
	l := New(newFakeKV(), &fakeUpdater{}, WithClock(fixedClock(june)))
	may := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	acc := &domain.Account{Plan: domain.PlanFree, MonthlyAnalysesCount: 1, MonthlyCountResetDate: &may}
	if !l.CheckAccount(acc) {
		t.Fatal("count from a previous month must read as zero")
	}
}

func TestRecordAccountUse_IncrementsFromEffectiveCount(t *testing.T) {
	upd := &fakeUpdater{}
	l := New(newFakeKV(), upd, WithClock(fixedClock(june)))
	may := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	acc := &domain.Account{Plan: domain.PlanFree, MonthlyAnalysesCount: 7, MonthlyCountResetDate: &may}

	updated, err := l.RecordAccountUse(context.Background(), "tok", acc)
	if err != nil {
		t.Fatalf("RecordAccountUse: %v", err)
	}
	// Stale May count rolls to zero first, so the new count is 1, and the
	// reset date is stamped with the current period.
	if updated.MonthlyAnalysesCount != 1 {
		t.Fatalf("count = %d, want 1", updated.MonthlyAnalysesCount)
	}
	if len(upd.calls) != 1 {
		t.Fatalf("updates = %d, want 1", len(upd.calls))
	}
	if _, ok := upd.calls[0]["monthly_count_reset_date"]; !ok {
		t.Fatal("stale period increment must also stamp the reset date")
	}
}

func TestMaybeRollover(t *testing.T) {
	t.Run("stale period resets", func(t *testing.T) {
		upd := &fakeUpdater{}
		l := New(newFakeKV(), upd, WithClock(fixedClock(june)))
		may := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
		acc := &domain.Account{ID: "a1", MonthlyAnalysesCount: 1, MonthlyCountResetDate: &may}

		updated := l.MaybeRollover(context.Background(), "tok", acc)
		if updated.MonthlyAnalysesCount != 0 {
			t.Fatalf("count after rollover = %d, want 0", updated.MonthlyAnalysesCount)
		}
		if len(upd.calls) != 1 {
			t.Fatalf("updates = %d, want 1", len(upd.calls))
		}
	})

	t.Run("absent reset date resets", func(t *testing.T) {
		upd := &fakeUpdater{}
		l := New(newFakeKV(), upd, WithClock(fixedClock(june)))
		acc := &domain.Account{ID: "a1", MonthlyAnalysesCount: 3}

		l.MaybeRollover(context.Background(), "tok", acc)
		if len(upd.calls) != 1 {
			t.Fatalf("updates = %d, want 1", len(upd.calls))
		}
	})

	t.Run("current period is a no-op", func(t *testing.T) {
		upd := &fakeUpdater{}
		l := New(newFakeKV(), upd, WithClock(fixedClock(june)))
		acc := &domain.Account{ID: "a1", MonthlyAnalysesCount: 1, MonthlyCountResetDate: &june}

		l.MaybeRollover(context.Background(), "tok", acc)
		if len(upd.calls) != 0 {
			t.Fatal("rollover in the current period must not write")
		}
	})

	t.Run("update failure keeps stale account", func(t *testing.T) {
		upd := &fakeUpdater{err: errors.New("boom")}
		l := New(newFakeKV(), upd, WithClock(fixedClock(june)))
		may := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
		acc := &domain.Account{ID: "a1", MonthlyAnalysesCount: 1, MonthlyCountResetDate: &may}

		got := l.MaybeRollover(context.Background(), "tok", acc)
		if got != acc {
			t.Fatal("failed rollover must return the original account")
		}
		// And the stale count still reads as zero.
		if !l.CheckAccount(&domain.Account{Plan: domain.PlanFree, MonthlyAnalysesCount: 1, MonthlyCountResetDate: &may}) {
			t.Fatal("stale count must read as zero even when rollover failed")
		}
	})
}
