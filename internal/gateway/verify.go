package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

const (
	verifyAttempts    = 3
	verifyBackoffBase = 500 * time.Millisecond
)

// Verifier fetches the final status of a checkout from the gateway. The
// redirect-back parameters are never trusted; only this server-to-server
// lookup decides whether money moved.
type Verifier struct {
	Client *http.Client
	Logger *logger.Logger
}

func NewVerifier(client *http.Client, log *logger.Logger) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Verifier{Client: client, Logger: log}
}

type statusResponse struct {
	ID     string `json:"id"`
	Result struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"result"`
}

// Verify resolves the checkout's resource path into a classified result.
// Transport failures are retried with exponential backoff; a decline is a
// successful verification with Success=false and is never retried.
func (v *Verifier) Verify(ctx context.Context, cfg models.GatewayConfig, resourcePath string) (*models.VerificationResult, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	statusURL := strings.TrimRight(cfg.BaseURL, "/") + resourcePath + "?entityId=" + url.QueryEscape(cfg.EntityID)

	var lastErr error
	for attempt := 0; attempt < verifyAttempts; attempt++ {
		if attempt > 0 {
			backoff := verifyBackoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := v.fetchStatus(ctx, cfg, statusURL)
		if err == nil {
			return result, nil
		}
		if !errorIsUnreachable(err) {
			return nil, err
		}
		v.Logger.Warn("GATEWAY", fmt.Sprintf("Status fetch attempt %d failed: %v", attempt+1, err))
		lastErr = err
	}

	return nil, fmt.Errorf("gave up after %d attempts: %w", verifyAttempts, lastErr)
}

func (v *Verifier) fetchStatus(ctx context.Context, cfg models.GatewayConfig, statusURL string) (*models.VerificationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.AccessToken)

	resp, err := v.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrGatewayUnreachable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnreachable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, &RejectedError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed statusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	result := &models.VerificationResult{
		Success:       IsSuccessCode(parsed.Result.Code),
		TransactionID: parsed.ID,
		Code:          parsed.Result.Code,
		Description:   parsed.Result.Description,
	}
	v.Logger.LogGateway("VERIFY", parsed.ID, fmt.Sprintf("code %s success=%t", result.Code, result.Success))
	return result, nil
}

func errorIsUnreachable(err error) bool {
	return errors.Is(err, ErrGatewayUnreachable)
}
