package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"paygate_app_echo/internal/models"
)

func newBkashTestGateway(t *testing.T, baseURL string) *BkashGateway {
	t.Helper()
	t.Setenv("BKASH_BASE_URL", baseURL)
	t.Setenv("BKASH_APP_KEY", "test-app-key")
	t.Setenv("BKASH_APP_SECRET", "test-app-secret")
	t.Setenv("BKASH_USERNAME", "sandbox-user")
	t.Setenv("BKASH_PASSWORD", "sandbox-pass")
	return NewBkashGateway()
}

func testPayment() *models.Payment {
	return &models.Payment{
		ID:            "pay-1",
		UserID:        7,
		PaymentMethod: models.PaymentMethodBkash,
		Amount:        100.00,
		Currency:      "BDT",
		Status:        models.PaymentStatusPending,
		TransactionID: "abcdef1234567890abcd",
	}
}

func TestBkashAcquireToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tokenized/checkout/token/grant" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("username") != "sandbox-user" || r.Header.Get("password") != "sandbox-pass" {
			t.Error("credential headers not forwarded")
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode grant body: %v", err)
		}
		if body["app_key"] != "test-app-key" || body["app_secret"] != "test-app-secret" {
			t.Error("app credentials not forwarded")
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id_token":   "MOCK_TOKEN",
			"token_type": "Bearer",
		})
	}))
	defer srv.Close()

	g := newBkashTestGateway(t, srv.URL)
	token, err := g.AcquireToken(context.Background())
	if err != nil {
		t.Fatalf("AcquireToken() error = %v", err)
	}
	if token != "MOCK_TOKEN" {
		t.Errorf("token = %q; want MOCK_TOKEN", token)
	}
}

func TestBkashAcquireTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "Missing required request parameters"})
	}))
	defer srv.Close()

	g := newBkashTestGateway(t, srv.URL)
	if _, err := g.AcquireToken(context.Background()); !errors.Is(err, ErrGatewayAuth) {
		t.Errorf("AcquireToken() error = %v; want ErrGatewayAuth", err)
	}
}

func TestBkashCreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tokenized/checkout/token/grant":
			json.NewEncoder(w).Encode(map[string]string{"id_token": "MOCK_TOKEN"})
		case "/tokenized/checkout/create":
			if r.Header.Get("Authorization") != "Bearer MOCK_TOKEN" {
				t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
			}
			if r.Header.Get("X-APP-Key") != "test-app-key" {
				t.Errorf("X-APP-Key = %q", r.Header.Get("X-APP-Key"))
			}
			var payload map[string]string
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("failed to decode create body: %v", err)
			}
			if payload["amount"] != "100.00" {
				t.Errorf("amount = %q; want 100.00", payload["amount"])
			}
			if payload["callbackURL"] != "http://app.local/api/payments/webhook" {
				t.Errorf("callbackURL = %q", payload["callbackURL"])
			}
			json.NewEncoder(w).Encode(map[string]string{
				"paymentID": "MOCKPAY001",
				"bkashURL":  "https://mock.bkash.local/checkout/MOCKPAY001",
				"status":    "SUCCESS",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	g := newBkashTestGateway(t, srv.URL)
	session, err := g.CreateCheckout(context.Background(), testPayment(), "http://app.local/api/payments/webhook")
	if err != nil {
		t.Fatalf("CreateCheckout() error = %v", err)
	}
	if session.ProviderReference != "MOCKPAY001" {
		t.Errorf("provider reference = %q; want MOCKPAY001", session.ProviderReference)
	}
	if session.CheckoutURL != "https://mock.bkash.local/checkout/MOCKPAY001" {
		t.Errorf("checkout url = %q", session.CheckoutURL)
	}
}

func TestBkashCreateCheckoutFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "provider error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/tokenized/checkout/token/grant" {
					json.NewEncoder(w).Encode(map[string]string{"id_token": "MOCK_TOKEN"})
					return
				}
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"message": "boom"})
			},
			wantErr: ErrGatewayRequest,
		},
		{
			name: "missing paymentID",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/tokenized/checkout/token/grant" {
					json.NewEncoder(w).Encode(map[string]string{"id_token": "MOCK_TOKEN"})
					return
				}
				json.NewEncoder(w).Encode(map[string]string{"status": "SUCCESS"})
			},
			wantErr: ErrGatewayRequest,
		},
		{
			name: "token grant rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
			},
			wantErr: ErrGatewayAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			g := newBkashTestGateway(t, srv.URL)
			_, err := g.CreateCheckout(context.Background(), testPayment(), "http://app.local/api/payments/webhook")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateCheckout() error = %v; want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBkashTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	g := newBkashTestGateway(t, srv.URL)
	if _, err := g.AcquireToken(context.Background()); !errors.Is(err, ErrGatewayAuth) {
		t.Errorf("AcquireToken() error = %v; want ErrGatewayAuth", err)
	}
}
