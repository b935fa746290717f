package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/scout-edge/brandgate/internal/lexicon"
	"github.com/scout-edge/brandgate/internal/matcher"
	"github.com/scout-edge/brandgate/internal/quality"
	"github.com/scout-edge/brandgate/internal/report"
	"github.com/scout-edge/brandgate/internal/rules"
)

func newTestServer(apiKey string) *Server {
	lex := lexicon.New([]lexicon.Entry{
		{Canonical: "Tang"},
		{Canonical: "Hello"},
	})
	m := matcher.New(lex, matcher.DefaultConfig())
	v := rules.New(rules.DefaultConfig(), nil)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewServer(":0", apiKey, m, v, nil, nil, log)
}

func TestPreflightGetsCORSHeaders(t *testing.T) {
	s := newTestServer("secret")

	// Preflight requests carry no API key and match no registered route;
	// they have to be answered before the router sees them.
	req := httptest.NewRequest(http.MethodOptions, "/api/validate", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods = %q, want POST allowed", got)
	}
}

func TestValidateEndpoint(t *testing.T) {
	s := newTestServer("")

	body := `{
		"record": {
			"id": "txn-1",
			"source": "device-feed",
			"timestamp": "2026-03-14T09:30:00Z",
			"amount": "120.50",
			"quantity": 2,
			"transcript": "bought 2 Tang sachets and a Hello candy"
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var rep report.Report
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if rep.TransactionID != "txn-1" {
		t.Errorf("transaction id = %q, want txn-1", rep.TransactionID)
	}
	if rep.Verdict != quality.VerdictPass {
		t.Errorf("verdict = %s, want pass; findings: %+v", rep.Verdict, rep.Findings)
	}
	if len(rep.Candidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(rep.Candidates))
	}
}

func TestValidateEndpointBadBody(t *testing.T) {
	s := newTestServer("")

	req := httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader("{"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer("secret")

	req := httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader(`{"record":{"id":"txn-1","source":"device-feed","timestamp":"2026-03-14T09:30:00Z","amount":"10","quantity":1}}`))
	req.Header.Set("X-API-Key", "secret")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status with key = %d, body: %s", w.Code, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer("")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
