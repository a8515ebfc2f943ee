package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ms-booking/internal/gateway"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]models.CheckoutSession
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]models.CheckoutSession)}
}

func (m *memorySessions) SaveSession(ctx context.Context, session models.CheckoutSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.CheckoutID] = session
	return nil
}

func (m *memorySessions) GetSession(ctx context.Context, checkoutID string) (*models.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[checkoutID]
	if !ok {
		return nil, gateway.ErrSessionExpired
	}
	return &s, nil
}

func testConfig(baseURL, serverURL string) models.GatewayConfig {
	return models.GatewayConfig{
		Enabled:     true,
		EntityID:    "8ac7a4c8",
		AccessToken: "test-token",
		BaseURL:     baseURL,
		ServerURL:   serverURL,
		Mode:        models.GatewayModeTest,
		CardEnabled: true,
	}
}

func checkoutHandler(t *testing.T, id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "8ac7a4c8", r.FormValue("entityId"))
		assert.Equal(t, "DB", r.FormValue("paymentType"))
		assert.NotEmpty(t, r.FormValue("merchantTransactionId"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     id,
			"result": map[string]string{"code": "000.200.100", "description": "successfully created checkout"},
		})
	}
}

func TestCreateCheckoutPrimaryPath(t *testing.T) {
	server := httptest.NewServer(checkoutHandler(t, "chk-primary"))
	defer server.Close()

	sessions := newMemorySessions()
	orch := gateway.NewOrchestrator(
		[]gateway.CheckoutStrategy{&gateway.ServerStrategy{Client: server.Client()}, &gateway.DirectStrategy{}},
		sessions, 30*time.Minute, logger.NewLogger())

	session, err := orch.CreateCheckout(context.Background(), testConfig("http://unused", server.URL),
		gateway.CheckoutRequest{BookingID: "bk-1", Amount: 500, Currency: "SAR"})
	require.NoError(t, err)
	assert.Equal(t, "chk-primary", session.CheckoutID)
	assert.Equal(t, "server", session.Strategy)
	assert.Equal(t, "bk-1", session.BookingID)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), session.ExpiresAt, 5*time.Second)

	stored, err := sessions.GetSession(context.Background(), "chk-primary")
	require.NoError(t, err)
	assert.Equal(t, 500.0, stored.Amount)
}

func TestCreateCheckoutForwardsCustomerDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "pat@example.com", r.FormValue("customer.email"))
		assert.Equal(t, "Pat", r.FormValue("customer.givenName"))
		assert.Equal(t, "Riyadh", r.FormValue("billing.city"))
		assert.Equal(t, "SA", r.FormValue("billing.country"))
		// Empty optional fields stay off the wire entirely.
		_, hasSurname := r.Form["customer.surname"]
		assert.False(t, hasSurname)
		_, hasStreet := r.Form["billing.street1"]
		assert.False(t, hasStreet)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chk-detailed",
			"result": map[string]string{"code": "000.200.100", "description": "successfully created checkout"},
		})
	}))
	defer server.Close()

	orch := gateway.NewOrchestrator(
		[]gateway.CheckoutStrategy{&gateway.DirectStrategy{Client: server.Client()}},
		newMemorySessions(), 30*time.Minute, logger.NewLogger())

	session, err := orch.CreateCheckout(context.Background(), testConfig(server.URL, ""),
		gateway.CheckoutRequest{
			BookingID: "bk-1",
			Amount:    500,
			Currency:  "SAR",
			Customer: gateway.CustomerDetails{
				Email:     "pat@example.com",
				GivenName: "Pat",
				City:      "Riyadh",
				Country:   "SA",
			},
		})
	require.NoError(t, err)
	assert.Equal(t, "chk-detailed", session.CheckoutID)
}

func TestCreateCheckoutFallsBackWhenIntermediaryDown(t *testing.T) {
	direct := httptest.NewServer(checkoutHandler(t, "chk-direct"))
	defer direct.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	orch := gateway.NewOrchestrator(
		[]gateway.CheckoutStrategy{
			&gateway.ServerStrategy{Client: down.Client()},
			&gateway.DirectStrategy{Client: direct.Client()},
		},
		newMemorySessions(), 30*time.Minute, logger.NewLogger())

	session, err := orch.CreateCheckout(context.Background(), testConfig(direct.URL, down.URL),
		gateway.CheckoutRequest{BookingID: "bk-1", Amount: 500, Currency: "SAR"})
	require.NoError(t, err)
	assert.Equal(t, "chk-direct", session.CheckoutID)
	assert.Equal(t, "direct", session.Strategy)
}

func TestCreateCheckoutRejectionDoesNotFallBack(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"result":{"code":"800.900.300","description":"invalid authentication"}}`))
	}))
	defer rejecting.Close()

	directCalled := false
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		directCalled = true
	}))
	defer direct.Close()

	orch := gateway.NewOrchestrator(
		[]gateway.CheckoutStrategy{
			&gateway.ServerStrategy{Client: rejecting.Client()},
			&gateway.DirectStrategy{Client: direct.Client()},
		},
		newMemorySessions(), 30*time.Minute, logger.NewLogger())

	_, err := orch.CreateCheckout(context.Background(), testConfig(direct.URL, rejecting.URL),
		gateway.CheckoutRequest{BookingID: "bk-1", Amount: 500, Currency: "SAR"})

	var rejected *gateway.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusUnauthorized, rejected.StatusCode)
	assert.False(t, directCalled, "a definitive rejection must end the chain")
}

func TestCreateCheckoutAllPathsDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	orch := gateway.NewOrchestrator(
		[]gateway.CheckoutStrategy{
			&gateway.ServerStrategy{Client: down.Client()},
			&gateway.DirectStrategy{Client: down.Client()},
		},
		newMemorySessions(), 30*time.Minute, logger.NewLogger())

	_, err := orch.CreateCheckout(context.Background(), testConfig(down.URL, down.URL),
		gateway.CheckoutRequest{BookingID: "bk-1", Amount: 500, Currency: "SAR"})
	assert.ErrorIs(t, err, gateway.ErrGatewayUnreachable)
}

func TestCreateCheckoutRequiresConfiguration(t *testing.T) {
	orch := gateway.NewOrchestrator(nil, newMemorySessions(), 30*time.Minute, logger.NewLogger())

	cfg := testConfig("http://example", "")
	cfg.EntityID = ""
	_, err := orch.CreateCheckout(context.Background(), cfg, gateway.CheckoutRequest{BookingID: "bk-1", Amount: 10, Currency: "SAR"})
	assert.ErrorIs(t, err, gateway.ErrNotConfigured)

	cfg = testConfig("http://example", "")
	cfg.CardEnabled = false
	_, err = orch.CreateCheckout(context.Background(), cfg, gateway.CheckoutRequest{BookingID: "bk-1", Amount: 10, Currency: "SAR"})
	assert.ErrorIs(t, err, gateway.ErrCardDisabled)
}
