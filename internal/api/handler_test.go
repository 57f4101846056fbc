package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/premium-quote/internal/premium"
	"github.com/eugenenazirov/premium-quote/internal/quote"
	"github.com/eugenenazirov/premium-quote/internal/storage"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubSubmitter struct {
	err error
	got quote.Submission
}

func (s *stubSubmitter) Submit(_ context.Context, sub quote.Submission) (quote.Result, error) {
	s.got = sub
	if s.err != nil {
		return quote.Result{}, s.err
	}
	return quote.Result{Formatted: "100.00"}, nil
}

func setupTestRouter(t *testing.T) (http.Handler, *storage.MemoryStorage, *controllableClock) {
	t.Helper()

	store := storage.NewMemoryStorage()
	logger := zaptest.NewLogger(t)
	svc := quote.NewService(premium.New(), store, quote.WithLogger(logger))
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))

	handler := NewHandler(svc, WithClock(clock.Now), WithHandlerLogger(logger))
	router := NewRouter(handler, logger, WithLogging(false))

	return router, store, clock
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func formPayload() map[string]any {
	return map[string]any{
		"nom":               "Benali",
		"prenom":            "Karim",
		"email":             "karim@example.com",
		"age":               "30",
		"anciennete_permis": "5_20",
		"puissance":         "90",
		"usage_type":        "personal",
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	if got := requestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %s", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _, clock := setupTestRouter(t)
	clock.Advance(time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", clock.Now(), body.Timestamp)
	}
}

func TestPremiumEndpointSuccess(t *testing.T) {
	router, store, _ := setupTestRouter(t)

	rec := postJSON(t, router, "/api/premium", formPayload())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Premium string `json:"prime"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Premium != "1398.58" {
		t.Fatalf("expected premium 1398.58, got %s", body.Premium)
	}

	stored, err := store.ApplicantByEmail("karim@example.com")
	if err != nil {
		t.Fatalf("expected applicant to be stored: %v", err)
	}
	if stored.Name != "Benali" || stored.Surname != "Karim" || stored.TenureYears != 10 {
		t.Fatalf("unexpected stored applicant: %+v", stored)
	}
}

func TestPremiumEndpointAcceptsNumbersAndLegacyPath(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	payload := formPayload()
	payload["age"] = 20
	payload["puissance"] = 50
	payload["anciennete_permis"] = "moins_5"
	payload["usage_type"] = "professional"

	rec := postJSON(t, router, "/calcul_prime", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"prime":"1874.69"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestPremiumEndpointDefaultsMissingUsageToPersonal(t *testing.T) {
	submitter := &stubSubmitter{}
	router := NewRouter(NewHandler(submitter), zaptest.NewLogger(t), WithLogging(false))

	payload := formPayload()
	delete(payload, "usage_type")
	rec := postJSON(t, router, "/api/premium", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if submitter.got.Usage != premium.UsagePersonal {
		t.Fatalf("expected personal usage, got %q", submitter.got.Usage)
	}

	payload["usage_type"] = "leisure"
	postJSON(t, router, "/api/premium", payload)
	if submitter.got.Usage != "leisure" {
		t.Fatalf("expected usage to be forwarded verbatim, got %q", submitter.got.Usage)
	}

	for _, explicit := range []any{nil, 7, ""} {
		payload["usage_type"] = explicit
		rec := postJSON(t, router, "/api/premium", payload)
		if rec.Code != http.StatusOK {
			t.Fatalf("usage_type %v: expected status 200, got %d", explicit, rec.Code)
		}
		if submitter.got.Usage != "" {
			t.Fatalf("usage_type %v: expected empty usage, got %q", explicit, submitter.got.Usage)
		}
	}
}

func TestPremiumEndpointPricesNullUsageAtDefaultFactor(t *testing.T) {
	router, store, _ := setupTestRouter(t)

	payload := formPayload()
	payload["usage_type"] = nil

	rec := postJSON(t, router, "/api/premium", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"prime":"1608.37"`) {
		t.Fatalf("expected default usage premium, got %s", rec.Body.String())
	}
	stored, err := store.ApplicantByEmail("karim@example.com")
	if err != nil {
		t.Fatalf("expected applicant to be stored: %v", err)
	}
	if stored.UsageType != string(premium.UsageOther) {
		t.Fatalf("expected stored usage %q, got %q", premium.UsageOther, stored.UsageType)
	}
}

func TestPremiumEndpointTruncatesFractionalAge(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	payload := formPayload()
	payload["age"] = 30.0
	payload["puissance"] = 90.9

	rec := postJSON(t, router, "/api/premium", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"prime":"1398.58"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestPremiumEndpointRejectsInvalidEmail(t *testing.T) {
	router, store, _ := setupTestRouter(t)

	payload := formPayload()
	payload["email"] = "not-an-email"

	rec := postJSON(t, router, "/api/premium", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "Invalid data" {
		t.Fatalf("expected invalid data error, got %q", body.Error)
	}
	if store.Len() != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestPremiumEndpointRejectsBadNumbers(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	for _, field := range []string{"age", "puissance"} {
		payload := formPayload()
		payload[field] = "abc"

		rec := postJSON(t, router, "/api/premium", payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", field, rec.Code)
		}
		if body := decodeError(t, rec); body.Error != "Invalid data" {
			t.Fatalf("%s: expected invalid data error, got %q", field, body.Error)
		}
	}
}

func TestPremiumEndpointRejectsOutOfRangeAge(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	payload := formPayload()
	payload["age"] = "17"

	rec := postJSON(t, router, "/api/premium", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestPremiumEndpointRejectsUnknownTenure(t *testing.T) {
	router, store, _ := setupTestRouter(t)

	payload := formPayload()
	payload["anciennete_permis"] = "unknown"

	rec := postJSON(t, router, "/api/premium", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != "Invalid license tenure" {
		t.Fatalf("expected invalid license tenure error, got %q", body.Error)
	}
	if body.Suggestion == "" {
		t.Fatalf("expected suggestion to be populated")
	}
	if store.Len() != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestPremiumEndpointRejectsMalformedJSON(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/premium", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "Invalid request" {
		t.Fatalf("expected invalid request error, got %q", body.Error)
	}
}

func TestPremiumEndpointDuplicateEmail(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	if rec := postJSON(t, router, "/api/premium", formPayload()); rec.Code != http.StatusOK {
		t.Fatalf("expected first submission to succeed, got %d", rec.Code)
	}
	rec := postJSON(t, router, "/api/premium", formPayload())
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}

func TestPremiumEndpointHidesComputationErrors(t *testing.T) {
	submitter := &stubSubmitter{err: &quote.ComputationError{Op: "persist applicant", Err: errors.New("dial tcp: secret-host")}}
	router := NewRouter(NewHandler(submitter, WithHandlerLogger(zaptest.NewLogger(t))), zaptest.NewLogger(t), WithLogging(false))

	rec := postJSON(t, router, "/api/premium", formPayload())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-host") {
		t.Fatalf("expected internal details to stay out of the response: %s", rec.Body.String())
	}
}

func TestPremiumEndpointUnexpectedError(t *testing.T) {
	submitter := &stubSubmitter{err: errors.New("boom")}
	router := NewRouter(NewHandler(submitter), zaptest.NewLogger(t), WithLogging(false))

	rec := postJSON(t, router, "/api/premium", formPayload())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/premium", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestUnknownAPIPath(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestCorsPreflight(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/premium", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be set")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "test-request-id")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-id" {
		t.Fatalf("expected X-Request-ID header to be echoed, got %s", got)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Fatalf("expected a generated UUID request id, got %q", got)
	}
}

func TestFlexIntDecoding(t *testing.T) {
	tests := []struct {
		raw       string
		wantValue int
		wantValid bool
	}{
		{raw: `30`, wantValue: 30, wantValid: true},
		{raw: `"30"`, wantValue: 30, wantValid: true},
		{raw: `" 45 "`, wantValue: 45, wantValid: true},
		{raw: `"-3"`, wantValue: -3, wantValid: true},
		{raw: `30.0`, wantValue: 30, wantValid: true},
		{raw: `30.5`, wantValue: 30, wantValid: true},
		{raw: `-2.7`, wantValue: -2, wantValid: true},
		{raw: `1e2`, wantValue: 100, wantValid: true},
		{raw: `1e30`},
		{raw: `"30.0"`},
		{raw: `true`},
		{raw: `"abc"`},
		{raw: `null`},
		{raw: `""`},
	}

	for _, tc := range tests {
		var got flexInt
		if err := json.Unmarshal([]byte(tc.raw), &got); err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.raw, err)
		}
		if got.valid != tc.wantValid || got.value != tc.wantValue {
			t.Fatalf("%s: expected (%d, %v), got (%d, %v)", tc.raw, tc.wantValue, tc.wantValid, got.value, got.valid)
		}
	}
}
