package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNagadCreateCheckout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/api/dfs/check-out/initialize/MERCHANT01/abcdef1234567890abcd"
		if r.URL.Path != wantPath {
			t.Errorf("path = %s; want %s", r.URL.Path, wantPath)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"paymentReferenceId": "NAGADREF01",
			"callBackUrl":        "https://sandbox.mynagad.com/checkout/NAGADREF01",
		})
	}))
	defer srv.Close()

	t.Setenv("NAGAD_BASE_URL", srv.URL)
	t.Setenv("NAGAD_MERCHANT_ID", "MERCHANT01")
	g := NewNagadGateway()

	p := testPayment()
	session, err := g.CreateCheckout(context.Background(), p, "http://app.local/api/payments/webhook")
	if err != nil {
		t.Fatalf("CreateCheckout() error = %v", err)
	}
	if session.ProviderReference != "NAGADREF01" {
		t.Errorf("provider reference = %q; want NAGADREF01", session.ProviderReference)
	}
	if !strings.Contains(session.CheckoutURL, "NAGADREF01") {
		t.Errorf("checkout url = %q", session.CheckoutURL)
	}
}

func TestNagadCreateCheckoutFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"message": "unavailable"})
	}))
	defer srv.Close()

	t.Setenv("NAGAD_BASE_URL", srv.URL)
	t.Setenv("NAGAD_MERCHANT_ID", "MERCHANT01")
	g := NewNagadGateway()

	if _, err := g.CreateCheckout(context.Background(), testPayment(), "http://app.local/api/payments/webhook"); !errors.Is(err, ErrGatewayRequest) {
		t.Errorf("CreateCheckout() error = %v; want ErrGatewayRequest", err)
	}
}

func TestNagadAcquireTokenIsNoop(t *testing.T) {
	g := NewNagadGateway()
	token, err := g.AcquireToken(context.Background())
	if err != nil {
		t.Fatalf("AcquireToken() error = %v", err)
	}
	if token != "" {
		t.Errorf("token = %q; want empty", token)
	}
}
