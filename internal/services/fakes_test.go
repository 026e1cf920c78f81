package services

// Shared fakes and helpers for the service tests: an in-memory KV backend,
// scripted identity/entity/billing clients, a fixed clock, and a temp-dir
// SQLite database for the guard table.

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
)

// ----- In-memory KV -----

type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	failing bool
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return "", false
	}
	v, ok := m.data[key]
	return v, ok
}

func (m *memKV) Set(_ context.Context, key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false
	}
	m.data[key] = value
	return true
}

func (m *memKV) SetTTL(_ context.Context, key, value string, _ time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false
	}
	m.data[key] = value
	return true
}

func (m *memKV) Delete(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return true
}

func (m *memKV) DeleteIfEquals(_ context.Context, key, expected string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] != expected {
		return false
	}
	delete(m.data, key)
	return true
}

// ----- Identity fake -----

type fakeIdentity struct {
	mu sync.Mutex

	probeOK bool
	account *domain.Account
	meErr   error

	updateErr    error
	updateCalls  []map[string]any
	updateTokens []string

	loginBase string
}

func (f *fakeIdentity) Probe(_ context.Context, token string) bool {
	return f.probeOK && token != ""
}

func (f *fakeIdentity) Me(_ context.Context, _ string) (*domain.Account, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	cp := *f.account
	return &cp, nil
}

func (f *fakeIdentity) Update(_ context.Context, token string, fields map[string]any) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, fields)
	f.updateTokens = append(f.updateTokens, token)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if v, ok := fields["free_use_consumed"].(bool); ok {
		f.account.FreeUseConsumed = v
	}
	if v, ok := fields["monthly_analyses_count"].(int); ok {
		f.account.MonthlyAnalysesCount = v
	}
	cp := *f.account
	return &cp, nil
}

func (f *fakeIdentity) LoginURL(returnPath string) string {
	base := f.loginBase
	if base == "" {
		base = "https://id.test"
	}
	return base + "/login?return_to=" + returnPath
}

// ----- Entity fake -----

type fakeEntity struct {
	mu sync.Mutex

	created   []domain.Record
	createErr error
	nextID    int

	listRecords []domain.Record
	listErr     error
}

func (f *fakeEntity) Create(_ context.Context, kind string, fields map[string]any) (*domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	rec := domain.Record{ID: fmt.Sprintf("rec-%d", f.nextID), Kind: kind, Fields: fields}
	f.created = append(f.created, rec)
	return &rec, nil
}

func (f *fakeEntity) List(_ context.Context, kind string, _ map[string]any, _ string) ([]domain.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Record
	for _, r := range append(f.listRecords, f.created...) {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEntity) createdOfKind(kind string) []domain.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Record
	for _, r := range f.created {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// ----- Billing fake -----

type fakeCanceller struct {
	calls int
	err   error
}

func (f *fakeCanceller) CancelSubscription(_ context.Context, _ string) error {
	f.calls++
	return f.err
}

// ----- Clock and sleep recorder -----

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type sleepRecorder struct {
	slept []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) { s.slept = append(s.slept, d) }

// ----- Guard database -----

func newGuardTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "guards.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.ReconciliationGuard{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

var errBoom = errors.New("boom")
