package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clausewise/go-clausewise-backend/internal/domain"
)

func TestIdentityProbe(t *testing.T) {
	t.Run("authenticated", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/session/probe" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("auth header = %q", got)
			}
			json.NewEncoder(w).Encode(map[string]any{"authenticated": true})
		}))
		defer srv.Close()

		c := NewIdentityClient(srv.URL, srv.URL, srv.Client())
		if !c.Probe(context.Background(), "tok") {
			t.Fatal("expected authenticated probe")
		}
	})

	t.Run("provider error degrades to false", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewIdentityClient(srv.URL, srv.URL, srv.Client())
		if c.Probe(context.Background(), "tok") {
			t.Fatal("provider error must degrade to unauthenticated")
		}
	})

	t.Run("malformed response degrades to false", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("{nope"))
		}))
		defer srv.Close()

		c := NewIdentityClient(srv.URL, srv.URL, srv.Client())
		if c.Probe(context.Background(), "tok") {
			t.Fatal("malformed body must degrade to unauthenticated")
		}
	})

	t.Run("empty token short-circuits", func(t *testing.T) {
		c := NewIdentityClient("http://127.0.0.1:0", "http://127.0.0.1:0", nil)
		if c.Probe(context.Background(), "  ") {
			t.Fatal("blank token must not probe")
		}
	})
}

func TestIdentityMeAndUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/me":
			json.NewEncoder(w).Encode(domain.Account{ID: "a1", Email: "u@x.io", Plan: domain.PlanFree})
		case r.Method == http.MethodPatch && r.URL.Path == "/v1/me":
			var fields map[string]any
			json.NewDecoder(r.Body).Decode(&fields)
			if fields["free_use_consumed"] != true {
				t.Errorf("fields = %v", fields)
			}
			json.NewEncoder(w).Encode(domain.Account{ID: "a1", FreeUseConsumed: true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL, srv.URL, srv.Client())

	acc, err := c.Me(context.Background(), "tok")
	if err != nil || acc.ID != "a1" {
		t.Fatalf("Me = %+v, %v", acc, err)
	}

	acc, err = c.Update(context.Background(), "tok", map[string]any{"free_use_consumed": true})
	if err != nil || !acc.FreeUseConsumed {
		t.Fatalf("Update = %+v, %v", acc, err)
	}
}

func TestIdentityLoginURL(t *testing.T) {
	c := NewIdentityClient("https://id.clausewise.io", "https://id.clausewise.io", nil)
	got := c.LoginURL("/dashboard?tab=recent")
	want := "https://id.clausewise.io/login?return_to=%2Fdashboard%3Ftab%3Drecent"
	if got != want {
		t.Fatalf("LoginURL = %q, want %q", got, want)
	}
}

func TestEntityCreateAndList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "k1" {
			t.Errorf("api key = %q", got)
		}
		switch r.URL.Path {
		case "/v1/records/analyses":
			var body struct {
				Fields map[string]any `json:"fields"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(domain.Record{ID: "r1", Kind: "analyses", Fields: body.Fields})
		case "/v1/records/analyses/query":
			json.NewEncoder(w).Encode(map[string]any{"records": []domain.Record{{ID: "r1"}, {ID: "r2"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewEntityClient(srv.URL, "k1", srv.Client())

	rec, err := c.Create(context.Background(), "analyses", map[string]any{"title": "Lease"})
	if err != nil || rec.ID != "r1" {
		t.Fatalf("Create = %+v, %v", rec, err)
	}
	if rec.Fields["title"] != "Lease" {
		t.Fatalf("fields = %v", rec.Fields)
	}

	recs, err := c.List(context.Background(), "analyses", map[string]any{"account_id": "a1"}, "-created_at")
	if err != nil || len(recs) != 2 {
		t.Fatalf("List = %v, %v", recs, err)
	}
}

func TestBillingEnvelope(t *testing.T) {
	t.Run("checkout success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/billing/checkout" {
				t.Errorf("path = %q", r.URL.Path)
			}
			var payload map[string]any
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["cycle"] != "yearly" {
				t.Errorf("payload = %v", payload)
			}
			json.NewEncoder(w).Encode(map[string]any{"success": true, "url": "https://pay.example/c/1"})
		}))
		defer srv.Close()

		c := NewBillingClient(srv.URL, srv.Client())
		sess, err := c.CreateCheckoutSession(context.Background(), "tok", domain.CycleYearly)
		if err != nil || sess.URL != "https://pay.example/c/1" {
			t.Fatalf("checkout = %+v, %v", sess, err)
		}
	})

	t.Run("cancel failure surfaces the function error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "no active subscription"})
		}))
		defer srv.Close()

		c := NewBillingClient(srv.URL, srv.Client())
		err := c.CancelSubscription(context.Background(), "tok")
		if err == nil || !strings.Contains(err.Error(), "no active subscription") {
			t.Fatalf("err = %v", err)
		}
	})
}
