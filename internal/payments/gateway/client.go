package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"civildocs_backend/platform/apperr"
	"civildocs_backend/platform/config"
	"civildocs_backend/platform/logger"
)

// Client is the HTTP client for the payment gateway API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	log        *logger.Logger
}

// NewClient creates a new gateway API client.
func NewClient(cfg config.GatewayConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(cfg.GetGatewayBaseURL(), "/"),
		secretKey:  cfg.GetGatewaySecretKey(),
		log:        log,
	}
}

type apiIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	LatestCharge string `json:"latest_charge"`
}

// CreateIntent registers a new payment intent with the gateway.
func (c *Client) CreateIntent(ctx context.Context, params CreateIntentParams) (Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.Amount, 10))
	form.Set("currency", strings.ToLower(params.Currency))
	for key, value := range params.Metadata {
		form.Set("metadata["+key+"]", value)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return Intent{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.doIntent(req)
}

// RetrieveIntent fetches the current state of an intent.
func (c *Client) RetrieveIntent(ctx context.Context, id string) (Intent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/payment_intents/"+url.PathEscape(id), nil)
	if err != nil {
		return Intent{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	return c.doIntent(req)
}

func (c *Client) doIntent(req *http.Request) (Intent, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and transport failures are retryable by the caller.
		c.log.Error("payment gateway request failed", "error", err, "url", req.URL.Path)
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Intent{}, apperr.Unavailable("payment gateway timed out")
		}
		return Intent{}, apperr.Unavailable("payment gateway unreachable")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success - continue to decode
	case http.StatusUnauthorized:
		c.log.Error("payment gateway unauthorized", "status", resp.StatusCode)
		return Intent{}, fmt.Errorf("unauthorized: invalid gateway secret key")
	case http.StatusNotFound:
		return Intent{}, apperr.NotFound("payment intent not found")
	case http.StatusBadRequest:
		c.log.Error("payment gateway bad request", "status", resp.StatusCode, "url", req.URL.Path)
		return Intent{}, fmt.Errorf("bad request: invalid intent parameters")
	default:
		c.log.Error("payment gateway upstream error", "status", resp.StatusCode, "url", req.URL.Path)
		return Intent{}, apperr.Unavailable(fmt.Sprintf("payment gateway error: status %d", resp.StatusCode))
	}

	var api apiIntent
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		c.log.Error("payment gateway decode failed", "error", err)
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}

	return Intent{
		ID:            api.ID,
		ClientSecret:  api.ClientSecret,
		Status:        normalizeStatus(api.Status),
		TransactionID: api.LatestCharge,
	}, nil
}

// normalizeStatus folds the gateway's status vocabulary into ours.
func normalizeStatus(s string) string {
	switch s {
	case "succeeded":
		return IntentSucceeded
	case "canceled":
		return IntentCanceled
	case "requires_payment_method", "requires_confirmation", "requires_action", "processing":
		return IntentPending
	case "payment_failed":
		return IntentFailed
	}
	return s
}

var _ Gateway = (*Client)(nil)
