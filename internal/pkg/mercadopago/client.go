package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds Mercado Pago API configuration
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Client talks to the Mercado Pago REST API.
type Client struct {
	httpClient *http.Client
	config     Config
}

// Payment is the subset of the payment resource the webhook needs.
type Payment struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Order  struct {
		ID int64 `json:"id"`
	} `json:"order"`
}

// OrderPayment is one payment attached to a merchant order.
type OrderPayment struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// MerchantOrder is the subset of the merchant order resource the webhook needs.
type MerchantOrder struct {
	ID                int64          `json:"id"`
	ExternalReference string         `json:"external_reference"`
	PreferenceID      string         `json:"preference_id"`
	TotalAmount       float64        `json:"total_amount"`
	Payments          []OrderPayment `json:"payments"`
}

// PreferenceItem is one line item of a checkout preference.
type PreferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

// BackURLs are the redirect targets after hosted checkout.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest creates a hosted checkout preference.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

// Preference is the created checkout preference.
type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// NewClient creates a Mercado Pago API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mercadopago.com"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// GetPayment fetches full payment detail by the id delivered in a webhook.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, fmt.Errorf("validation error: payment id must be non-empty")
	}

	var out Payment
	if err := c.get(ctx, "/v1/payments/"+paymentID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMerchantOrder fetches the order owning a payment.
func (c *Client) GetMerchantOrder(ctx context.Context, orderID int64) (*MerchantOrder, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("validation error: order id must be positive")
	}

	var out MerchantOrder
	if err := c.get(ctx, fmt.Sprintf("/merchant_orders/%d", orderID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePreference creates a hosted checkout preference and returns its
// redirect URL (init_point).
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("validation error: preference needs at least one item")
	}
	if strings.TrimSpace(req.ExternalReference) == "" {
		return nil, fmt.Errorf("validation error: external_reference must be non-empty")
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preference request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/checkout/preferences", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out Preference
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	if out.InitPoint == "" {
		return nil, fmt.Errorf("mercadopago returned preference without init_point")
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("mercadopago client is not initialized")
	}
	if strings.TrimSpace(c.config.AccessToken) == "" {
		return nil, fmt.Errorf("mercadopago config error: access token is empty")
	}

	base := strings.TrimRight(c.config.BaseURL, "/")

	// The client's Timeout bounds each call; ctx carries caller cancellation.
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago api call failed: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mercadopago api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mercadopago api returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse mercadopago response: %w", err)
	}
	return nil
}
