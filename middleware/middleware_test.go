package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/policy"
	"go-ecommerce-delivery/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeAuth map[string]*models.User

func (f fakeAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, utils.NewUnauthorized("Invalid token")
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["message"]
}

func TestAuthAndRequire(t *testing.T) {
	customer := &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser}
	admin := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	authn := fakeAuth{"customer-token": customer, "admin-token": admin}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, found := CurrentUser(r.Context())
		require.True(t, found)
		utils.WriteMessage(w, http.StatusOK, u.ID.Hex())
	})
	handler := Auth(authn)(Require(policy.ManageOrders)(ok))

	tests := []struct {
		name   string
		header string
		status int
		msg    string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authorization header missing"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Invalid Authorization header format"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"wrong role", "Bearer customer-token", http.StatusForbidden, "Forbidden: admins only"},
		{"admin", "Bearer admin-token", http.StatusOK, admin.ID.Hex()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, message(t, rec))
		})
	}
}

func TestRequireWithoutUser(t *testing.T) {
	rec := httptest.NewRecorder()
	Require(policy.Shop)(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "buckets are per client")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("1.1.1.1"))

	now = now.Add(time.Hour)
	rl.Allow("3.3.3.3")
	rl.mu.Lock()
	assert.Len(t, rl.clients, 1, "idle clients are swept")
	rl.mu.Unlock()
}

func TestRateLimiterHandler(t *testing.T) {
	rl := NewRateLimiter(0.5, 1)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusNoContent, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests. Please try again later.", message(t, rec))
}

func TestClientIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:1234"
	assert.Equal(t, "192.168.1.9", rl.clientIP(req))

	// Forwarded headers from an untrusted peer are ignored.
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "192.168.1.9", rl.clientIP(req))

	require.NoError(t, rl.TrustProxies([]string{"192.168.1.0/24", " 10.0.0.1 ", ""}))
	assert.Equal(t, "203.0.113.7", rl.clientIP(req))

	// A spoofed left-most hop does not win over the hop the proxy appended.
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 198.51.100.20, 10.0.0.1")
	assert.Equal(t, "198.51.100.20", rl.clientIP(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "192.168.1.9", rl.clientIP(req))

	assert.Error(t, rl.TrustProxies([]string{"not-an-ip"}))
	assert.Error(t, rl.TrustProxies([]string{"10.0.0.0/99"}))
}

func TestRateLimiterIgnoresSpoofedForwardedFor(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "203.0.113.50:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
}

func TestRequestLoggerAndRecover(t *testing.T) {
	handler := RequestLogger(zap.NewNop())(Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/explode", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "Internal server error", message(t, rec))

	rec = httptest.NewRecorder()
	RequestLogger(zap.NewNop())(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader), "a request id is generated when absent")
}

type observed struct {
	method, route string
	status        int
}

type observerFunc func(method, route string, status int, elapsed time.Duration)

func (f observerFunc) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	f(method, route, status, elapsed)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	var got []observed
	router := mux.NewRouter()
	router.Use(Metrics(observerFunc(func(method, route string, status int, _ time.Duration) {
		got = append(got, observed{method, route, status})
	})))
	router.HandleFunc("/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodGet)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products/def", nil))

	require.Len(t, got, 2)
	assert.Equal(t, observed{"GET", "/products/{id}", http.StatusTeapot}, got[0])
	assert.Equal(t, got[0], got[1])
}
