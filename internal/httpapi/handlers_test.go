package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"barledger/backend/internal/cache"
	"barledger/backend/internal/service"
	"barledger/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopTotalsCache{}, 5*time.Second, 6)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "counter",
		"password": "counter123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
	if body["role"] != "counter" {
		t.Fatalf("expected counter role, got %v", body["role"])
	}
}

func TestHandleLogin_BadCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "counter",
		"password": "wrong",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/totals/current", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rec.Code)
	}
}

func TestAuditLogsForbiddenForCounterRole(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, api, "counter", "counter123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit-logs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for counter role, got %d", rec.Code)
	}
}

func TestWorksheetSubmitEndToEnd(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, api, "counter", "counter123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]any{
		"snapshots": []map[string]any{
			{"ingredient_id": "ing-hendricks-gin", "location_id": "loc-bar", "quantity": "3", "total_value": "137.97"},
			{"ingredient_id": "ing-hendricks-gin", "location_id": "loc-cabinet", "quantity": "2", "total_value": "91.98"},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/worksheets", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var submitBody map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&submitBody); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if submitBody["count"] != float64(2) {
		t.Fatalf("expected count 2, got %v", submitBody["count"])
	}

	totalsReq := httptest.NewRequest(http.MethodGet, "/api/v1/totals/current", nil)
	totalsReq.Header.Set("Authorization", "Bearer "+token)
	totalsRec := httptest.NewRecorder()
	handler.ServeHTTP(totalsRec, totalsReq)

	if totalsRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for totals, got %d", totalsRec.Code)
	}

	var totalsBody struct {
		Totals []struct {
			IngredientID  string `json:"ingredient_id"`
			TotalQuantity string `json:"total_quantity"`
		} `json:"totals"`
	}
	if err := json.NewDecoder(totalsRec.Body).Decode(&totalsBody); err != nil {
		t.Fatalf("decode totals response: %v", err)
	}
	if len(totalsBody.Totals) != 1 {
		t.Fatalf("expected 1 ingredient total, got %d", len(totalsBody.Totals))
	}
	if totalsBody.Totals[0].TotalQuantity != "5" {
		t.Fatalf("expected summed quantity 5, got %s", totalsBody.Totals[0].TotalQuantity)
	}
}

func TestWorksheetSubmitBadTupleReturns422WithContext(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, api, "counter", "counter123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]any{
		"snapshots": []map[string]any{
			{"ingredient_id": "ing-hendricks-gin", "location_id": "loc-bar", "quantity": "3", "total_value": "137.97"},
			{"ingredient_id": "ing-titos-vodka", "location_id": "loc-bar", "quantity": "-1", "total_value": "0"},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/worksheets", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["index"] != float64(1) || body["field"] != "quantity" {
		t.Fatalf("expected tuple 1 quantity context, got %v", body)
	}
}

func TestIngredientCreateForbiddenForCounter(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, api, "counter", "counter123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]any{
		"name":          "St Germain",
		"category":      "Liqueur",
		"current_price": "36.99",
		"supplier_id":   "sup-premium-spirits",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingredients", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestIngredientTrendRoute(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, api, "counter", "counter123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ingredients/ing-hendricks-gin/trend?months=4", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode trend response: %v", err)
	}
	// Empty ledger: zero first month forces stable at 0%.
	if body["classification"] != "stable" {
		t.Fatalf("expected stable classification, got %v", body["classification"])
	}

	missing := httptest.NewRequest(http.MethodGet, "/api/v1/ingredients/ing-ghost/trend", nil)
	missing.Header.Set("Authorization", "Bearer "+token)
	missingRec := httptest.NewRecorder()
	handler.ServeHTTP(missingRec, missing)
	if missingRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown ingredient, got %d", missingRec.Code)
	}
}

func TestCurrentTotalsRejectsBadCutoff(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, api, "counter", "counter123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/totals/current?cutoff=yesterday", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed cutoff, got %d", rec.Code)
	}
}

func TestCounterUserManagement(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]string{
		"username": "newcounter",
		"password": "secret99",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/counters", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/users/counters", nil)
	listReq.Header.Set("Authorization", "Bearer "+token)
	listRec := httptest.NewRecorder()
	handler.ServeHTTP(listRec, listReq)

	var listBody struct {
		Counters []struct {
			Username string `json:"username"`
		} `json:"counters"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listBody); err != nil {
		t.Fatalf("decode counters: %v", err)
	}
	found := false
	for _, c := range listBody.Counters {
		if c.Username == "newcounter" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected newcounter in list, got %+v", listBody.Counters)
	}
}

func TestMonthActivityRequiresYearAndMonth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, api, "counter", "counter123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activity/month", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without year/month, got %d", rec.Code)
	}

	ok := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/activity/month?year=%d&month=%d", 2026, 2), nil)
	ok.Header.Set("Authorization", "Bearer "+token)
	okRec := httptest.NewRecorder()
	handler.ServeHTTP(okRec, ok)

	if okRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", okRec.Code)
	}
}
