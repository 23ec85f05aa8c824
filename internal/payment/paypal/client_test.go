package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, tokenCalls *int32, orders http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenCalls != nil {
			atomic.AddInt32(tokenCalls, 1)
		}
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-123",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/checkout/orders", orders)
	mux.HandleFunc("/v2/checkout/orders/", orders)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testOptions() Options {
	return Options{ClientID: "client-id", ClientSecret: "client-secret", CurrencyCode: "USD"}
}

func TestOptionsIsConfigured(t *testing.T) {
	assert.True(t, testOptions().IsConfigured())
	assert.False(t, Options{ClientID: "client-id"}.IsConfigured())
	assert.False(t, Options{ClientSecret: " "}.IsConfigured())
}

func TestClientCreateOrder(t *testing.T) {
	srv := newTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		require.Len(t, body.PurchaseUnits, 1)
		assert.Equal(t, "USD", body.PurchaseUnits[0].Amount.CurrencyCode)
		assert.Equal(t, "230.00", body.PurchaseUnits[0].Amount.Value)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "5O190127TN364715T",
			"status": "CREATED",
			"links": []map[string]string{
				{"href": "https://example.test/self", "rel": "self"},
				{"href": "https://example.test/approve", "rel": "approve"},
			},
		})
	})

	client := NewWithBaseURL(testOptions(), nil, srv.URL)
	order, err := client.CreateOrder(context.Background(), 230, "USD")
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", order.ProviderOrderID)
	assert.Equal(t, "https://example.test/approve", order.ApprovalURI)
}

func TestClientCapture(t *testing.T) {
	t.Run("completed capture", func(t *testing.T) {
		srv := newTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/checkout/orders/5O190127TN364715T/capture", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"id":     "5O190127TN364715T",
				"status": "COMPLETED",
			})
		})

		client := NewWithBaseURL(testOptions(), nil, srv.URL)
		result, err := client.Capture(context.Background(), "5O190127TN364715T")
		require.NoError(t, err)
		assert.True(t, result.Succeeded)
		assert.Equal(t, "COMPLETED", result.Status)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := newTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"name":"UNPROCESSABLE_ENTITY"}`, http.StatusUnprocessableEntity)
		})

		client := NewWithBaseURL(testOptions(), nil, srv.URL)
		_, err := client.Capture(context.Background(), "5O190127TN364715T")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "422")
	})
}

func TestClientTokenCaching(t *testing.T) {
	var tokenCalls int32
	srv := newTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "X", "status": "COMPLETED"})
	})

	client := NewWithBaseURL(testOptions(), nil, srv.URL)
	_, err := client.Capture(context.Background(), "X")
	require.NoError(t, err)
	_, err = client.Capture(context.Background(), "X")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}
