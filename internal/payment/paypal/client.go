// Package paypal is the REST implementation of the payment provider port:
// OAuth client-credentials token, order creation with an approval link, and
// order capture against the v2 Checkout Orders API.
package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emezadev/ordering-sagas/internal/payment"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"
)

// Options configures the client. ClientID and ClientSecret are the OAuth
// credentials; Live selects the production environment (default sandbox).
type Options struct {
	ClientID     string
	ClientSecret string
	Live         bool
	CurrencyCode string
}

// IsConfigured reports whether credentials are present. An unconfigured
// client must not be wired in; the reconciler's simulated path covers that.
func (o Options) IsConfigured() bool {
	return strings.TrimSpace(o.ClientID) != "" && strings.TrimSpace(o.ClientSecret) != ""
}

// Client talks to the PayPal REST API. It caches the OAuth access token
// until shortly before expiry.
type Client struct {
	httpClient *http.Client
	baseURL    string
	opts       Options

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var _ payment.Provider = (*Client)(nil)

// New returns a client for the environment selected in opts.
func New(opts Options, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := sandboxBaseURL
	if opts.Live {
		baseURL = liveBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		opts:       opts,
	}
}

// NewWithBaseURL is for tests pointing the client at a local server.
func NewWithBaseURL(opts Options, httpClient *http.Client, baseURL string) *Client {
	c := New(opts, httpClient)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreateOrder creates a payment order with CAPTURE intent and returns its id
// together with the buyer approval link.
func (c *Client) CreateOrder(ctx context.Context, amount float64, currency string) (payment.CheckoutOrder, error) {
	if currency == "" {
		currency = c.opts.CurrencyCode
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{"amount": map[string]string{
				"currency_code": currency,
				"value":         fmt.Sprintf("%.2f", amount),
			}},
		},
	}

	var res orderResponse
	if err := c.post(ctx, "/v2/checkout/orders", body, &res); err != nil {
		return payment.CheckoutOrder{}, fmt.Errorf("paypal: create order: %w", err)
	}

	order := payment.CheckoutOrder{ProviderOrderID: res.ID}
	for _, link := range res.Links {
		if strings.EqualFold(link.Rel, "approve") {
			order.ApprovalURI = link.Href
			break
		}
	}

	slog.InfoContext(ctx, "created paypal order", "paypal_order_id", res.ID, "status", res.Status)
	return order, nil
}

// Capture captures a previously approved order and reports the raw status.
// The caller (the reconciler) decides what counts as success.
func (c *Client) Capture(ctx context.Context, providerOrderID string) (payment.CaptureResult, error) {
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", providerOrderID)

	var res orderResponse
	if err := c.post(ctx, path, struct{}{}, &res); err != nil {
		return payment.CaptureResult{}, fmt.Errorf("paypal: capture order %s: %w", providerOrderID, err)
	}

	return payment.CaptureResult{
		Succeeded: strings.EqualFold(res.Status, payment.StatusCompleted),
		Status:    res.Status,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(encoded)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached OAuth access token, refreshing it when it is within
// a minute of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.opts.ClientID, c.opts.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("fetch token: unexpected status %d: %s", resp.StatusCode, snippet)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
