package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"barledger/backend/internal/domain"
	"barledger/backend/internal/service"
	"barledger/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// generateCSRFToken returns a token valid for the current hour bucket.
func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/suppliers", a.requireAuth(a.handleSuppliers, "counter", "admin"))
	mux.HandleFunc("/api/v1/ingredients", a.requireAuth(a.handleIngredients, "counter", "admin"))
	mux.HandleFunc("/api/v1/ingredients/", a.requireAuth(a.handleIngredientActions, "counter", "admin"))
	mux.HandleFunc("/api/v1/locations", a.requireAuth(a.handleLocations, "counter", "admin"))
	mux.HandleFunc("/api/v1/locations/", a.requireAuth(a.handleLocationActions, "admin"))

	mux.HandleFunc("/api/v1/worksheets", a.requireAuth(a.handleWorksheetSubmit, "counter", "admin"))
	mux.HandleFunc("/api/v1/snapshots", a.requireAuth(a.handleSnapshots, "counter", "admin"))
	mux.HandleFunc("/api/v1/totals/current", a.requireAuth(a.handleCurrentTotals, "counter", "admin"))
	mux.HandleFunc("/api/v1/totals/locations/", a.requireAuth(a.handleLocationTotals, "counter", "admin"))
	mux.HandleFunc("/api/v1/trends/top-movers", a.requireAuth(a.handleTopMovers, "counter", "admin"))
	mux.HandleFunc("/api/v1/activity/month", a.requireAuth(a.handleMonthActivity, "counter", "admin"))
	mux.HandleFunc("/api/v1/activity/day", a.requireAuth(a.handleDayActivity, "counter", "admin"))

	mux.HandleFunc("/api/v1/reorder-suggestions", a.requireAuth(a.handleReorderSuggestions, "admin"))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, "admin"))
	mux.HandleFunc("/api/v1/users/counters", a.requireAuth(a.handleCounters, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation.
// Login is excluded because it is called without a prior CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods (POST/PUT/PATCH/DELETE).
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		suppliers, err := a.service.ListSuppliers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
	case http.MethodPost:
		var req domain.SupplierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		supplier, err := a.service.CreateSupplier(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"supplier": supplier})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleIngredients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := domain.IngredientFilter{
			Category:   strings.TrimSpace(r.URL.Query().Get("category")),
			SupplierID: strings.TrimSpace(r.URL.Query().Get("supplier_id")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("tags")); raw != "" {
			filter.Tags = strings.Split(raw, ",")
		}
		ingredients, err := a.service.ListIngredients(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ingredients": ingredients})
	case http.MethodPost:
		var req domain.IngredientCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		ingredient, err := a.service.CreateIngredient(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ingredient": ingredient})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleIngredientActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/ingredients/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, errors.New("invalid ingredient action path"))
		return
	}

	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("ingredient id required"))
		return
	}

	if strings.HasSuffix(tail, "/history") {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		id := strings.Trim(strings.TrimSuffix(tail, "/history"), "/")
		if id == "" {
			writeError(w, http.StatusBadRequest, errors.New("ingredient id required"))
			return
		}
		months := parsePositiveLimit(r.URL.Query().Get("months"), 12, 24)
		history, err := a.service.GetHistory(r.Context(), id, months)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
		return
	}

	if strings.HasSuffix(tail, "/trend") {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		id := strings.Trim(strings.TrimSuffix(tail, "/trend"), "/")
		if id == "" {
			writeError(w, http.StatusBadRequest, errors.New("ingredient id required"))
			return
		}
		months := parsePositiveLimit(r.URL.Query().Get("months"), 0, 24)
		trend, err := a.service.GetTrend(r.Context(), id, months)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, trend)
		return
	}

	switch r.Method {
	case http.MethodGet:
		ingredient, err := a.service.GetIngredient(r.Context(), tail)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ingredient": ingredient})
	case http.MethodPatch:
		var req domain.IngredientUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := a.service.UpdateIngredient(r.Context(), tail, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ingredient": updated})
	case http.MethodDelete:
		if err := a.service.DeleteIngredient(r.Context(), tail); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleLocations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		locations, err := a.service.ListLocations(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"locations": locations})
	case http.MethodPost:
		var req domain.LocationCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		location, err := a.service.CreateLocation(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"location": location})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleLocationActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/locations/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("location id required"))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.LocationCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := a.service.UpdateLocation(r.Context(), tail, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"location": updated})
	case http.MethodDelete:
		if err := a.service.DeleteLocation(r.Context(), tail); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleWorksheetSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.WorksheetSubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.SubmitWorksheet(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		locationID := strings.TrimSpace(r.URL.Query().Get("location_id"))
		if locationID == "" {
			writeError(w, http.StatusBadRequest, errors.New("location_id is required"))
			return
		}
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
		snapshots, err := a.service.ListRecentSnapshots(r.Context(), locationID, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
	case http.MethodPost:
		var req domain.SnapshotCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := a.service.CreateSnapshot(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"snapshot": created})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCurrentTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	cutoff, err := parseCutoff(r.URL.Query().Get("cutoff"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	includeZero := r.URL.Query().Get("include_zero") == "true"

	resp, err := a.service.GetCurrentTotals(r.Context(), cutoff, includeZero)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLocationTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/totals/locations/"
	locationID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if locationID == "" {
		writeError(w, http.StatusBadRequest, errors.New("location id required"))
		return
	}

	cutoff, err := parseCutoff(r.URL.Query().Get("cutoff"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.GetLocationTotals(r.Context(), locationID, cutoff)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleTopMovers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	months := parsePositiveLimit(r.URL.Query().Get("months"), 0, 24)
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 10, 100)

	resp, err := a.service.GetTopMovers(r.Context(), months, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMonthActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	year, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("year")))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("year is required"))
		return
	}
	monthNum, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("month")))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("month is required"))
		return
	}

	snapshots, err := a.service.GetMonthActivity(r.Context(), year, time.Month(monthNum))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
}

func (a *API) handleDayActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("date must be formatted YYYY-MM-DD"))
		return
	}

	entries, err := a.service.GetDayActivity(r.Context(), day)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleReorderSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.GetReorderSuggestions(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from, err := parseCutoff(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseCutoff(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	var fromAt, toAt time.Time
	if from != nil {
		fromAt = *from
	}
	if to != nil {
		toAt = *to
	}

	logs, err := a.service.ListAuditLogs(r.Context(), fromAt, toAt, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleCounters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		counters := a.auth.ListCounters()
		writeJSON(w, http.StatusOK, map[string]any{"counters": counters})
	case http.MethodPost:
		var req domain.CounterCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		counter, err := a.auth.CreateCounter(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"counter": counter})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Enforce CSRF protection for all state-changing requests.
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// writeServiceError maps service-layer errors to HTTP status codes. Batch
// validation failures carry the offending tuple index, field and reason so
// clients can point at the exact worksheet row.
func writeServiceError(w http.ResponseWriter, err error) {
	var batchErr *domain.BatchValidationError
	if errors.As(err, &batchErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  batchErr.Error(),
			"index":  batchErr.Index,
			"field":  batchErr.Field,
			"reason": batchErr.Reason,
		})
		return
	}

	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidRequest), errors.Is(err, store.ErrInvalidSnapshot):
		status = http.StatusBadRequest
	case strings.Contains(strings.ToLower(err.Error()), "admin role required"):
		status = http.StatusForbidden
	}
	writeError(w, status, err)
}

func parseCutoff(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("timestamp must be RFC3339: %w", err)
	}
	utc := parsed.UTC()
	return &utc, nil
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
