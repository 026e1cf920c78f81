package staging

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
)

// ----- Fake KV -----

// memKV is an in-memory KV with TTL support driven by an external clock and
// switchable failure injection, mirroring browser storage that can be
// disabled at any time.
type memKV struct {
	mu      sync.Mutex
	values  map[string]string
	expiry  map[string]time.Time
	now     func() time.Time
	failing bool
}

func newMemKV(now func() time.Time) *memKV {
	return &memKV{
		values: make(map[string]string),
		expiry: make(map[string]time.Time),
		now:    now,
	}
}

func (m *memKV) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return "", false
	}
	if exp, ok := m.expiry[key]; ok && m.now().After(exp) {
		delete(m.values, key)
		delete(m.expiry, key)
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

func (m *memKV) Set(_ context.Context, key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false
	}
	m.values[key] = value
	delete(m.expiry, key)
	return true
}

func (m *memKV) SetTTL(_ context.Context, key, value string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false
	}
	m.values[key] = value
	m.expiry[key] = m.now().Add(ttl)
	return true
}

func (m *memKV) Delete(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false
	}
	delete(m.values, key)
	delete(m.expiry, key)
	return true
}

func (m *memKV) DeleteIfEquals(_ context.Context, key, want string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false
	}
	if v, ok := m.values[key]; ok && v == want {
		delete(m.values, key)
		delete(m.expiry, key)
		return true
	}
	return false
}

// ----- Helpers -----

func testClock(start time.Time) (func() time.Time, func(time.Duration)) {
	var mu sync.Mutex
	cur := start
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return cur
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(d)
	}
	return now, advance
}

func samplePayload() domain.StagedAnalysis {
	return domain.StagedAnalysis{
		Title:     "Office lease",
		DocType:   "lease",
		RiskScore: 72.5,
		Flags: []domain.RiskFlag{
			{Category: "liability", Severity: "high", Score: 0.81, Snippet: "tenant shall indemnify"},
		},
		Language: "en",
	}
}

// ----- Tests -----

func TestStage_ConsumeRoundTrip(t *testing.T) {
	now, _ := testClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	store := NewStore(newMemKV(now), WithClock(now))
	ctx := context.Background()

	id, ok := store.Stage(ctx, "dev1", samplePayload())
	if !ok || id == "" {
		t.Fatalf("Stage: ok=%v id=%q", ok, id)
	}

	ptr, ok := store.PeekPending(ctx, "dev1")
	if !ok || ptr != id {
		t.Fatalf("PeekPending = %q, %v; want %q", ptr, ok, id)
	}

	rec, ok := store.Consume(ctx, "dev1", ptr)
	if !ok {
		t.Fatal("Consume failed")
	}
	if !reflect.DeepEqual(rec.Payload, samplePayload()) {
		t.Fatalf("payload round trip mismatch: %+v", rec.Payload)
	}
	if !rec.ExpiresAt.Equal(rec.CreatedAt.Add(DefaultTTL)) {
		t.Errorf("ExpiresAt = %v, want CreatedAt+24h", rec.ExpiresAt)
	}
}

func TestStage_SecondStageOverwritesPointer(t *testing.T) {
	now, _ := testClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	store := NewStore(newMemKV(now), WithClock(now))
	ctx := context.Background()

	first, _ := store.Stage(ctx, "dev1", samplePayload())
	second, _ := store.Stage(ctx, "dev1", samplePayload())

	ptr, ok := store.PeekPending(ctx, "dev1")
	if !ok || ptr != second {
		t.Fatalf("pointer = %q, want newest id %q", ptr, second)
	}

	// The first record is orphaned but still physically present until its
	// TTL passes; it must never be reachable through the pointer.
	if _, ok := store.Consume(ctx, "dev1", first); !ok {
		t.Error("orphaned record should still be readable by id until expiry")
	}
}

func TestClear_IdempotentAndPointerSafe(t *testing.T) {
	now, _ := testClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	store := NewStore(newMemKV(now), WithClock(now))
	ctx := context.Background()

	id, _ := store.Stage(ctx, "dev1", samplePayload())

	store.Clear(ctx, "dev1", id)
	store.Clear(ctx, "dev1", id) // second clear must be a no-op

	if _, ok := store.PeekPending(ctx, "dev1"); ok {
		t.Error("pointer must be gone after clear")
	}
	if _, ok := store.Consume(ctx, "dev1", id); ok {
		t.Error("record must be gone after clear")
	}
}

func TestClear_LeavesNewerPointerUntouched(t *testing.T) {
	now, _ := testClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	store := NewStore(newMemKV(now), WithClock(now))
	ctx := context.Background()

	old, _ := store.Stage(ctx, "dev1", samplePayload())
	newer, _ := store.Stage(ctx, "dev1", samplePayload())

	// Clearing the old id (read before the overwrite) must not clobber the
	// newer pointer.
	store.Clear(ctx, "dev1", old)

	ptr, ok := store.PeekPending(ctx, "dev1")
	if !ok || ptr != newer {
		t.Fatalf("pointer = %q, %v; want %q untouched", ptr, ok, newer)
	}
}

func TestStage_RecordExpiresWithTTL(t *testing.T) {
	now, advance := testClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	kv := newMemKV(now)
	store := NewStore(kv, WithClock(now))
	ctx := context.Background()

	id, _ := store.Stage(ctx, "dev1", samplePayload())

	advance(23*time.Hour + 59*time.Minute)
	if _, ok := store.Consume(ctx, "dev1", id); !ok {
		t.Fatal("record must still be readable at T+23h59m")
	}

	advance(2 * time.Minute)
	if _, ok := store.Consume(ctx, "dev1", id); ok {
		t.Fatal("record must be gone after TTL")
	}
	if _, ok := store.PeekPending(ctx, "dev1"); ok {
		t.Fatal("pointer must expire alongside the record")
	}
}

func TestStore_DevicesAreIsolated(t *testing.T) {
	now, _ := testClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	store := NewStore(newMemKV(now), WithClock(now))
	ctx := context.Background()

	id, _ := store.Stage(ctx, "dev1", samplePayload())

	if _, ok := store.PeekPending(ctx, "dev2"); ok {
		t.Error("device 2 must not see device 1's pointer")
	}
	if _, ok := store.Consume(ctx, "dev2", id); ok {
		t.Error("device 2 must not read device 1's record")
	}
}

func TestStore_BackendFailureDegradesToNoRecord(t *testing.T) {
	now, _ := testClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	kv := newMemKV(now)
	store := NewStore(kv, WithClock(now))
	ctx := context.Background()

	kv.failing = true

	if id, ok := store.Stage(ctx, "dev1", samplePayload()); ok {
		t.Fatalf("Stage must fail when the backend is down, got id=%q", id)
	}
	if _, ok := store.PeekPending(ctx, "dev1"); ok {
		t.Fatal("PeekPending must report no pointer when the backend is down")
	}
	if _, ok := store.Consume(ctx, "dev1", "whatever"); ok {
		t.Fatal("Consume must report no record when the backend is down")
	}
	// Clear must not panic either.
	store.Clear(ctx, "dev1", "whatever")
}

func TestConsume_CorruptRecord(t *testing.T) {
	now, _ := testClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	kv := newMemKV(now)
	store := NewStore(kv, WithClock(now))
	ctx := context.Background()

	kv.Set(ctx, DeviceKey("dev1", "record:bad"), "{not json")
	if _, ok := store.Consume(ctx, "dev1", "bad"); ok {
		t.Fatal("corrupt record must not be consumable")
	}
}
