package handlers

import (
	"net/http"
	"testing"
)

func TestGetConsentDefaultsToUnset(t *testing.T) {
	f := newFixture(anonGate())

	w := f.do(t, http.MethodGet, "/consent", nil,
		map[string]string{"X-Device-ID": "device-cons-01"})

	wantStatus(t, w, http.StatusOK)
	if body := decode(t, w); body["consent"] != "unset" {
		t.Fatalf("consent = %v", body["consent"])
	}
}

func TestPutConsentRoundTrips(t *testing.T) {
	f := newFixture(anonGate())
	headers := map[string]string{"X-Device-ID": "device-cons-02"}

	w := f.do(t, http.MethodPut, "/consent", ConsentRequest{Consent: ConsentAccepted}, headers)
	wantStatus(t, w, http.StatusOK)

	w = f.do(t, http.MethodGet, "/consent", nil, headers)
	wantStatus(t, w, http.StatusOK)
	if body := decode(t, w); body["consent"] != "accepted" {
		t.Fatalf("consent = %v", body["consent"])
	}

	// Decisions are device-scoped.
	w = f.do(t, http.MethodGet, "/consent", nil,
		map[string]string{"X-Device-ID": "device-cons-03"})
	if body := decode(t, w); body["consent"] != "unset" {
		t.Fatalf("other device consent = %v", body["consent"])
	}
}

func TestPutConsentRejectsUnknownDecision(t *testing.T) {
	f := newFixture(anonGate())

	w := f.do(t, http.MethodPut, "/consent", ConsentRequest{Consent: "maybe"}, nil)

	wantStatus(t, w, http.StatusBadRequest)
}

func TestPutConsentStoreFailure(t *testing.T) {
	f := newFixture(anonGate())
	f.kv.broken = true

	w := f.do(t, http.MethodPut, "/consent", ConsentRequest{Consent: ConsentRejected}, nil)

	wantStatus(t, w, http.StatusServiceUnavailable)
	if body := decode(t, w); body["code"] != "staging_unavailable" {
		t.Fatalf("code = %v", body["code"])
	}
}
