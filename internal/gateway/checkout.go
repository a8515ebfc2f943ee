package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type CheckoutRequest struct {
	BookingID string
	Amount    float64
	Currency  string
	Customer  CustomerDetails
}

// CustomerDetails carries the optional customer and billing form fields the
// gateway accepts when preparing a checkout. Empty fields are omitted.
type CustomerDetails struct {
	Email     string
	GivenName string
	Surname   string
	Street    string
	City      string
	State     string
	Country   string
	Postcode  string
}

// CheckoutStrategy is one way of preparing a hosted checkout with the
// gateway. Strategies are tried in order by the Orchestrator.
type CheckoutStrategy interface {
	Name() string
	CreateCheckout(ctx context.Context, cfg models.GatewayConfig, req CheckoutRequest, merchantTxID string) (string, error)
}

// SessionStore persists checkout sessions for the redirect-back leg.
type SessionStore interface {
	SaveSession(ctx context.Context, session models.CheckoutSession, ttl time.Duration) error
	GetSession(ctx context.Context, checkoutID string) (*models.CheckoutSession, error)
}

// checkoutResponse is the shape both strategies answer with: the gateway's
// checkout id plus the preparation result code.
type checkoutResponse struct {
	ID     string `json:"id"`
	Result struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"result"`
}

// ServerStrategy prepares the checkout through the trusted intermediary
// server. This is the primary path: the intermediary holds its own gateway
// credentials and applies merchant-side checks before forwarding.
type ServerStrategy struct {
	Client *http.Client
}

func (s *ServerStrategy) Name() string { return "server" }

func (s *ServerStrategy) CreateCheckout(ctx context.Context, cfg models.GatewayConfig, req CheckoutRequest, merchantTxID string) (string, error) {
	if cfg.ServerURL == "" {
		return "", ErrGatewayUnreachable
	}

	form := checkoutForm(cfg, req, merchantTxID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(cfg.ServerURL, "/")+"/v1/checkouts",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.AccessToken)

	return doCheckout(s.Client, httpReq)
}

// DirectStrategy talks to the gateway API itself. It is the degraded
// fallback used when the intermediary cannot be reached.
type DirectStrategy struct {
	Client *http.Client
}

func (s *DirectStrategy) Name() string { return "direct" }

func (s *DirectStrategy) CreateCheckout(ctx context.Context, cfg models.GatewayConfig, req CheckoutRequest, merchantTxID string) (string, error) {
	form := checkoutForm(cfg, req, merchantTxID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(cfg.BaseURL, "/")+"/v1/checkouts",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.AccessToken)

	return doCheckout(s.Client, httpReq)
}

func checkoutForm(cfg models.GatewayConfig, req CheckoutRequest, merchantTxID string) url.Values {
	form := url.Values{}
	form.Set("entityId", cfg.EntityID)
	form.Set("amount", fmt.Sprintf("%.2f", req.Amount))
	form.Set("currency", req.Currency)
	form.Set("paymentType", "DB")
	form.Set("merchantTransactionId", merchantTxID)
	if cfg.Mode == models.GatewayModeTest {
		form.Set("testMode", "EXTERNAL")
	}

	setIfPresent(form, "customer.email", req.Customer.Email)
	setIfPresent(form, "customer.givenName", req.Customer.GivenName)
	setIfPresent(form, "customer.surname", req.Customer.Surname)
	setIfPresent(form, "billing.street1", req.Customer.Street)
	setIfPresent(form, "billing.city", req.Customer.City)
	setIfPresent(form, "billing.state", req.Customer.State)
	setIfPresent(form, "billing.country", req.Customer.Country)
	setIfPresent(form, "billing.postcode", req.Customer.Postcode)
	return form
}

func setIfPresent(form url.Values, key, value string) {
	if value != "" {
		form.Set(key, value)
	}
}

func doCheckout(client *http.Client, req *http.Request) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrGatewayUnreachable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", ErrGatewayUnreachable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return "", &RejectedError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed checkoutResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode checkout response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("checkout response carried no id (result %s)", parsed.Result.Code)
	}
	return parsed.ID, nil
}

// Orchestrator runs the checkout strategy chain and stores the resulting
// session. Only transport failures move it to the next strategy; a
// definitive gateway answer, good or bad, ends the chain.
type Orchestrator struct {
	Strategies []CheckoutStrategy
	Sessions   SessionStore
	SessionTTL time.Duration
	Logger     *logger.Logger
}

func NewOrchestrator(strategies []CheckoutStrategy, sessions SessionStore, ttl time.Duration, log *logger.Logger) *Orchestrator {
	return &Orchestrator{Strategies: strategies, Sessions: sessions, SessionTTL: ttl, Logger: log}
}

// CreateCheckout prepares a hosted checkout for the booking and returns the
// stored session.
func (o *Orchestrator) CreateCheckout(ctx context.Context, cfg models.GatewayConfig, req CheckoutRequest) (*models.CheckoutSession, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if !cfg.CardEnabled {
		return nil, ErrCardDisabled
	}

	merchantTxID := utils.GenerateMerchantTxID()

	var lastErr error
	for i, strategy := range o.Strategies {
		checkoutID, err := strategy.CreateCheckout(ctx, cfg, req, merchantTxID)
		if err == nil {
			if i > 0 {
				o.Logger.Warn("GATEWAY", fmt.Sprintf("Checkout for booking %s prepared via degraded %s path", req.BookingID, strategy.Name()))
			}
			now := time.Now()
			session := models.CheckoutSession{
				CheckoutID:   checkoutID,
				BookingID:    req.BookingID,
				Amount:       req.Amount,
				Currency:     req.Currency,
				MerchantTxID: merchantTxID,
				Strategy:     strategy.Name(),
				CreatedAt:    now,
				ExpiresAt:    now.Add(o.SessionTTL),
			}
			if err := o.Sessions.SaveSession(ctx, session, o.SessionTTL); err != nil {
				return nil, fmt.Errorf("failed to save checkout session: %w", err)
			}
			o.Logger.LogGateway("CHECKOUT", checkoutID, fmt.Sprintf("booking %s amount %.2f via %s", req.BookingID, req.Amount, strategy.Name()))
			return &session, nil
		}

		if !errorIsUnreachable(err) {
			return nil, err
		}
		o.Logger.Warn("GATEWAY", fmt.Sprintf("Checkout strategy %s unreachable for booking %s: %v", strategy.Name(), req.BookingID, err))
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrGatewayUnreachable
	}
	return nil, lastErr
}
