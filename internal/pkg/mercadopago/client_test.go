package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, AccessToken: "test-token"})
}

func TestGetPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header: %s", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     123,
			"status": "approved",
			"order":  map[string]any{"id": 555},
		})
	})

	p, err := client.GetPayment(context.Background(), "123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 123 || p.Status != "approved" || p.Order.ID != 555 {
		t.Fatalf("unexpected payment: %+v", p)
	}
}

func TestGetMerchantOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merchant_orders/555" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":                 555,
			"external_reference": "user-1",
			"preference_id":      "pref-abc",
			"total_amount":       2500.0,
			"payments": []map[string]any{
				{"id": 123, "status": "approved"},
			},
		})
	})

	o, err := client.GetMerchantOrder(context.Background(), 555)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ExternalReference != "user-1" || o.PreferenceID != "pref-abc" {
		t.Fatalf("unexpected order: %+v", o)
	}
	if len(o.Payments) != 1 || o.Payments[0].Status != "approved" {
		t.Fatalf("unexpected payments: %+v", o.Payments)
	}
}

func TestCreatePreference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/preferences" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req PreferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.ExternalReference != "user-1" {
			t.Errorf("unexpected external_reference: %s", req.ExternalReference)
		}
		json.NewEncoder(w).Encode(Preference{ID: "pref-abc", InitPoint: "https://mp.test/init"})
	})

	pref, err := client.CreatePreference(context.Background(), PreferenceRequest{
		Items: []PreferenceItem{
			{ID: "CREDITS_5", Title: "5 Credits", Quantity: 5, UnitPrice: 500, CurrencyID: "ARS"},
		},
		ExternalReference: "user-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pref.ID != "pref-abc" || pref.InitPoint != "https://mp.test/init" {
		t.Fatalf("unexpected preference: %+v", pref)
	}
}

func TestNon2xxIsWrapped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	})

	_, err := client.GetPayment(context.Background(), "999")
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "non-2xx") {
		t.Fatalf("expected wrapped status error, got: %v", err)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:1"})
	if _, err := client.GetPayment(context.Background(), "1"); err == nil {
		t.Fatal("expected config error for empty access token")
	}
}
