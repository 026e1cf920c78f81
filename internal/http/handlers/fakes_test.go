package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clausewise/go-clausewise-backend/internal/clients"
	"github.com/clausewise/go-clausewise-backend/internal/domain"
	"github.com/clausewise/go-clausewise-backend/internal/http/middleware"
	"github.com/clausewise/go-clausewise-backend/internal/services"
	"github.com/clausewise/go-clausewise-backend/internal/staging"
)

func init() { gin.SetMode(gin.TestMode) }

var errUpstream = errors.New("upstream unavailable")

// memKV is an in-memory staging.KV.
type memKV struct {
	mu     sync.Mutex
	data   map[string]string
	broken bool
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return "", false
	}
	v, found := m.data[key]
	return v, found
}

func (m *memKV) Set(_ context.Context, key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return false
	}
	m.data[key] = value
	return true
}

func (m *memKV) SetTTL(_ context.Context, key, value string, _ time.Duration) bool {
	return m.Set(context.Background(), key, value)
}

func (m *memKV) Delete(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return true
}

func (m *memKV) DeleteIfEquals(_ context.Context, key, want string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] != want {
		return false
	}
	delete(m.data, key)
	return true
}

// fakeGate resolves every call to a fixed session and intent.
type fakeGate struct {
	session *domain.Session
	intent  services.Intent
	lastNav services.Navigation
}

func (f *fakeGate) Resolve(_ context.Context, nav services.Navigation) (*domain.Session, services.Intent) {
	f.lastNav = nav
	return f.session, f.intent
}

func (f *fakeGate) ResolveSession(_ context.Context, _ string) *domain.Session {
	return f.session
}

func anonGate() *fakeGate {
	return &fakeGate{
		session: &domain.Session{State: domain.SessionAnonymous},
		intent:  services.Intent{Kind: services.IntentRender},
	}
}

func authedGate(acc *domain.Account) *fakeGate {
	return &fakeGate{
		session: &domain.Session{State: domain.SessionAuthenticated, Principal: acc},
		intent:  services.Intent{Kind: services.IntentRender},
	}
}

type fakeAnalyze struct {
	res    *services.AnalyzeResult
	err    error
	lastIn services.AnalyzeInput
}

func (f *fakeAnalyze) Analyze(_ context.Context, in services.AnalyzeInput) (*services.AnalyzeResult, error) {
	f.lastIn = in
	return f.res, f.err
}

type fakeReconcile struct {
	res    services.ReconcileResult
	lastIn services.ReconcileInput
}

func (f *fakeReconcile) Run(_ context.Context, in services.ReconcileInput) services.ReconcileResult {
	f.lastIn = in
	return f.res
}

type fakeCancel struct {
	state     services.CancelState
	lastError string
	err       error
}

func (f *fakeCancel) Status(string) (services.CancelState, string) { return f.state, f.lastError }
func (f *fakeCancel) Begin(string) (services.CancelState, error)   { return f.state, f.err }
func (f *fakeCancel) Confirm(string) (services.CancelState, error) { return f.state, f.err }
func (f *fakeCancel) SubmitSurvey(_ context.Context, _ string, _ services.SurveyAnswers) (services.CancelState, error) {
	return f.state, f.err
}

type fakeBilling struct {
	url string
	err error
}

func (f *fakeBilling) CreateCheckoutSession(_ context.Context, _ string, _ domain.BillingCycle) (*clients.BillingSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &clients.BillingSession{URL: f.url}, nil
}

func (f *fakeBilling) CreatePortalSession(_ context.Context, _ string) (*clients.BillingSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &clients.BillingSession{URL: f.url}, nil
}

type fakeEntity struct {
	records []domain.Record
	err     error
}

func (f *fakeEntity) Create(_ context.Context, kind string, fields map[string]any) (*domain.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Record{ID: "rec-1", Kind: kind, Fields: fields}, nil
}

func (f *fakeEntity) List(_ context.Context, _ string, _ map[string]any, _ string) ([]domain.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// fixture bundles the handler dependencies plus a router with the device and
// request-id middleware the handlers rely on.
type fixture struct {
	gate    *fakeGate
	anl     *fakeAnalyze
	rec     *fakeReconcile
	cnl     *fakeCancel
	billing *fakeBilling
	entity  *fakeEntity
	kv      *memKV
	store   *staging.Store
	router  *gin.Engine
}

func newFixture(gate *fakeGate) *fixture {
	f := &fixture{
		gate:    gate,
		anl:     &fakeAnalyze{},
		rec:     &fakeReconcile{},
		cnl:     &fakeCancel{},
		billing: &fakeBilling{url: "https://pay.example.com/s/1"},
		entity:  &fakeEntity{},
		kv:      newMemKV(),
	}
	f.store = staging.NewStore(f.kv)

	h := New(f.gate, f.anl, f.rec, f.cnl, f.billing, f.entity, f.store, f.kv)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.DeviceID())
	r.POST("/navigate", h.Navigate)
	r.POST("/analyses", h.Analyze)
	r.GET("/analyses", h.ListAnalyses)
	r.POST("/reconcile", h.Reconcile)
	r.GET("/staging/pending", h.PendingStaging)
	r.DELETE("/staging/:id", h.DiscardStaging)
	r.GET("/consent", h.GetConsent)
	r.PUT("/consent", h.PutConsent)
	r.POST("/billing/checkout", h.Checkout)
	r.POST("/billing/portal", h.Portal)
	r.GET("/cancellation", h.CancellationStatus)
	r.POST("/cancellation/begin", h.BeginCancellation)
	r.POST("/cancellation/confirm", h.ConfirmCancellation)
	r.POST("/cancellation/survey", h.SubmitCancellationSurvey)
	f.router = r
	return f
}

// do performs one request against the fixture router.
func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals the response body into a generic map.
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}
