package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/qr-hub/internal/auth"
	"github.com/qr-hub/internal/config"
	"github.com/qr-hub/internal/ratelimit"
	"github.com/qr-hub/internal/service"
	"github.com/qr-hub/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveServer wires the real services over the in-memory stores
type liveServer struct {
	*Server
	records *storage.MemoryQRStore
	events  *storage.MemoryEventLog
}

func createLiveServer(t testing.TB, rps float64, burst int) *liveServer {
	t.Helper()

	records := storage.NewMemoryQRStore()
	events := storage.NewMemoryEventLog()
	plans := service.NewPlanService(storage.NewMemoryUserPlanStore(), records, ratelimit.NewLocalScanMeter())

	tokens, err := auth.NewTokenManager(config.AuthConfig{JWTSecret: "handler-test-secret", TokenTTL: time.Hour})
	require.NoError(t, err)

	cfg := &config.Config{Store: config.StoreConfig{Backend: "memory"}}
	server := NewServer(&ServerConfig{
		BaseURL:           "https://hub.example.com",
		RequestsPerSecond: rps,
		Burst:             burst,
		ChainID:           11155111,
	}, Services{
		QR:       service.NewQRService(records, plans, nil, service.QRServiceConfig{BaseURL: "https://hub.example.com"}),
		Resolver: service.NewResolver(records, nil, plans),
		Events:   service.NewEventService(records, events),
		Plans:    plans,
		Auth:     service.NewAuthService(storage.NewMemoryUserStore(), plans, tokens),
		Checkout: service.NewCheckoutService(cfg.Integrations.Stripe, "https://hub.example.com", nil, nil, plans),
		Status:   service.NewStatusService(cfg, true, nil, nil),
	})

	return &liveServer{Server: server, records: records, events: events}
}

func (ls *liveServer) request(t testing.TB, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ls.Handler().ServeHTTP(w, req)
	return w
}

func (ls *liveServer) signup(t testing.TB, email string) string {
	t.Helper()
	w := ls.request(t, "POST", "/api/auth/signup", "", map[string]string{"email": email, "password": "hunter22"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var session service.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	return session.Session.AccessToken
}

type createdQR struct {
	QR struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	} `json:"qr"`
	QRURL string `json:"qrUrl"`
}

func (ls *liveServer) createQR(t testing.TB, token, qrType string, cfg interface{}) createdQR {
	t.Helper()
	w := ls.request(t, "POST", "/api/qr", token, map[string]interface{}{
		"name":               "My " + qrType,
		"type":               qrType,
		"destination_config": cfg,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created createdQR
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created
}

var coffee = map[string]interface{}{"amount": 4.5, "currency": "USD", "productName": "Coffee"}

func TestQRLifecycle(t *testing.T) {
	ls := createLiveServer(t, 0, 0)
	token := ls.signup(t, "owner@example.com")

	created := ls.createQR(t, token, "FIAT", coffee)
	assert.Len(t, created.QR.Slug, 8)
	assert.Equal(t, "https://hub.example.com/q/"+created.QR.Slug, created.QRURL)

	// Scans from the printed URL redirect and are counted
	for i := 0; i < 3; i++ {
		w := ls.request(t, "GET", "/q/"+created.QR.Slug, "", nil)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://hub.example.com/pay/fiat?slug="+created.QR.Slug, w.Header().Get("Location"))
	}

	w := ls.request(t, "GET", "/api/qr/"+created.QR.Slug+"/analytics", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var analytics service.Analytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analytics))
	assert.Equal(t, int64(3), analytics.Stats.TotalScans)
	assert.Equal(t, 3, analytics.Stats.RecentEvents)

	w = ls.request(t, "GET", "/api/user/plan", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var planBody struct {
		Plan service.PlanView `json:"plan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &planBody))
	assert.Equal(t, 1, planBody.Plan.Usage.QRCodes)
	assert.Equal(t, int64(3), planBody.Plan.Usage.ScansThisMonth)

	// Deactivated codes stop resolving
	w = ls.request(t, "PUT", "/api/qr/"+created.QR.ID, token, map[string]interface{}{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ls.request(t, "GET", "/q/"+created.QR.Slug, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ls.request(t, "GET", "/api/qr", token, nil)
	var listed struct {
		QRCodes []struct {
			IsActive bool `json:"is_active"`
		} `json:"qrCodes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.QRCodes, 1)
	assert.False(t, listed.QRCodes[0].IsActive, "owner still sees the deactivated code")

	w = ls.request(t, "DELETE", "/api/qr/"+created.QR.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = ls.request(t, "GET", "/api/qr", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"qrCodes":[]}`, w.Body.String())
}

func TestOwnerIsolation(t *testing.T) {
	ls := createLiveServer(t, 0, 0)
	alice := ls.signup(t, "alice@example.com")
	bob := ls.signup(t, "bob@example.com")

	created := ls.createQR(t, alice, "fiat", coffee)

	w := ls.request(t, "PUT", "/api/qr/"+created.QR.ID, bob, map[string]interface{}{"name": "stolen"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ls.request(t, "DELETE", "/api/qr/"+created.QR.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ls.request(t, "GET", "/api/qr/"+created.QR.Slug+"/analytics", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ls.request(t, "GET", "/api/qr", bob, nil)
	assert.JSONEq(t, `{"qrCodes":[]}`, w.Body.String())

	// Public resolution does not depend on the caller
	w = ls.request(t, "GET", "/api/qr/"+created.QR.Slug, bob, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFreePlanQRLimit(t *testing.T) {
	ls := createLiveServer(t, 0, 0)
	token := ls.signup(t, "limited@example.com")

	for i := 0; i < 5; i++ {
		ls.createQR(t, token, "fiat", coffee)
	}

	w := ls.request(t, "POST", "/api/qr", token, map[string]interface{}{
		"name": "One too many", "type": "fiat", "destination_config": coffee,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "free plan")
}

func TestCreateQR_InvalidDestinations(t *testing.T) {
	ls := createLiveServer(t, 0, 0)
	token := ls.signup(t, "invalid@example.com")

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"unknown type", map[string]interface{}{"name": "x", "type": "paypal", "destination_config": coffee}, http.StatusBadRequest},
		{"missing config", map[string]interface{}{"name": "x", "type": "fiat"}, http.StatusBadRequest},
		{"zero amount", map[string]interface{}{"name": "x", "type": "fiat", "destination_config": map[string]interface{}{"amount": 0, "currency": "usd", "productName": "x"}}, http.StatusBadRequest},
		{"crypto without currency", map[string]interface{}{"name": "x", "type": "crypto", "destination_config": map[string]interface{}{"walletAddress": "0x52908400098527886e0f7030069857d2e4169ee7"}}, http.StatusBadRequest},
		{"string amount", map[string]interface{}{"name": "x", "type": "fiat", "destination_config": map[string]interface{}{"amount": "5", "currency": "usd", "productName": "x"}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ls.request(t, "POST", "/api/qr", token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := ls.request(t, "GET", "/api/qr", token, nil)
	assert.JSONEq(t, `{"qrCodes":[]}`, w.Body.String(), "rejected creates persist nothing")
}

func TestInvalidJSONBodies(t *testing.T) {
	ls := createLiveServer(t, 0, 0)
	token := ls.signup(t, "json@example.com")

	for _, path := range []string{"/api/qr", "/api/auth/login", "/api/auth/signup"} {
		req := httptest.NewRequest("POST", path, bytes.NewReader([]byte("invalid json")))
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		ls.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, msgInvalidBody, body.Error)
	}
}

func TestSignupDuplicateAndBadLogin(t *testing.T) {
	ls := createLiveServer(t, 0, 0)
	ls.signup(t, "dup@example.com")

	w := ls.request(t, "POST", "/api/auth/signup", "", map[string]string{"email": "DUP@example.com", "password": "hunter22"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ls.request(t, "POST", "/api/auth/login", "", map[string]string{"email": "dup@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMultiOptionScan(t *testing.T) {
	ls := createLiveServer(t, 0, 0)
	token := ls.signup(t, "multi@example.com")

	created := ls.createQR(t, token, "multi_option", map[string]interface{}{
		"title":         "Tip jar",
		"fiatAmount":    5,
		"cryptoAmount":  0.01,
		"walletAddress": "0x52908400098527886e0f7030069857d2e4169ee7",
	})

	w := ls.request(t, "GET", "/q/"+created.QR.Slug, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resolution service.Resolution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolution))
	require.Len(t, resolution.Redirect.Options, 3)
	assert.Equal(t, "Pay with Card", resolution.Redirect.Options[0].Label)
	assert.Equal(t, "Pay with Crypto", resolution.Redirect.Options[1].Label)
	assert.Equal(t, "Pay with NOVA", resolution.Redirect.Options[2].Label)
}

func TestEventEndpointUnknownSlug(t *testing.T) {
	ls := createLiveServer(t, 0, 0)

	w := ls.request(t, "POST", "/api/qr/nothere1/event", "", map[string]interface{}{"event_type": "clicked"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}

func TestCheckoutWithoutStripe(t *testing.T) {
	ls := createLiveServer(t, 0, 0)

	w := ls.request(t, "POST", "/api/stripe/checkout", "", map[string]interface{}{"amount": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Stripe not configured","configured":false}`, w.Body.String())

	w = ls.request(t, "GET", "/api/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status service.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Stripe.Configured)
	assert.True(t, status.Demo)
}

func TestRateLimit(t *testing.T) {
	ls := createLiveServer(t, 0.1, 3)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		w := ls.request(t, "GET", "/health", "", nil)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{200, 200, 200, 429, 429}, codes)

	w := ls.request(t, "GET", "/health", "", nil)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Rate limit exceeded. Please try again later."}`, w.Body.String())
}

func TestUnknownRoutes(t *testing.T) {
	ls := createLiveServer(t, 0, 0)

	w := ls.request(t, "GET", "/api/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())

	w = ls.request(t, "PATCH", "/api/qr", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"error":"Method not allowed"}`, w.Body.String())

	w = ls.request(t, "DELETE", "/api/plans", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = ls.request(t, "POST", "/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// TestConcurrentScans tests that concurrent scans through HTTP lose no counts
func TestConcurrentScans(t *testing.T) {
	ls := createLiveServer(t, 0, 0)
	token := ls.signup(t, "busy@example.com")
	created := ls.createQR(t, token, "fiat", coffee)

	const scans = 50
	var wg sync.WaitGroup
	codes := make(chan int, scans)

	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest("GET", "/q/"+created.QR.Slug, nil)
			req.RemoteAddr = fmt.Sprintf("10.0.0.%d:5000", i)
			w := httptest.NewRecorder()
			ls.Handler().ServeHTTP(w, req)
			codes <- w.Code
		}(i)
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusFound, code)
	}

	w := ls.request(t, "GET", "/api/qr/"+created.QR.Slug+"/analytics", token, nil)
	var analytics service.Analytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analytics))
	assert.Equal(t, int64(scans), analytics.Stats.TotalScans)
}
