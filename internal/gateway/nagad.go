package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"paygate_app_echo/internal/models"
)

// NagadGateway talks to the Nagad merchant checkout API. The sandbox
// initialize call carries merchant identity in the URL, so there is no
// separate token handshake.
type NagadGateway struct {
	baseURL    string
	merchantID string
	client     *http.Client
}

// NewNagadGateway builds the adapter from NAGAD_* environment variables
func NewNagadGateway() *NagadGateway {
	return &NagadGateway{
		baseURL:    strings.TrimRight(os.Getenv("NAGAD_BASE_URL"), "/"),
		merchantID: os.Getenv("NAGAD_MERCHANT_ID"),
		client:     &http.Client{Timeout: defaultTimeout},
	}
}

func (g *NagadGateway) Name() models.PaymentMethod {
	return models.PaymentMethodNagad
}

// AcquireToken is a no-op for Nagad; credentials ride on the initialize call
func (g *NagadGateway) AcquireToken(ctx context.Context) (string, error) {
	return "", nil
}

// CreateCheckout initializes a Nagad checkout for the payment
func (g *NagadGateway) CreateCheckout(ctx context.Context, payment *models.Payment, callbackURL string) (*CheckoutSession, error) {
	payload := map[string]string{
		"amount":              fmt.Sprintf("%.2f", payment.Amount),
		"currency":            payment.Currency,
		"merchantCallbackURL": callbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}

	url := fmt.Sprintf("%s/api/dfs/check-out/initialize/%s/%s", g.baseURL, g.merchantID, payment.TransactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	defer resp.Body.Close()

	var data map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: invalid initialize response: %v", ErrGatewayRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: initialize returned status %d", ErrGatewayRequest, resp.StatusCode)
	}

	reference, _ := data["paymentReferenceId"].(string)
	checkoutURL, _ := data["callBackUrl"].(string)
	if reference == "" {
		return nil, fmt.Errorf("%w: initialize response missing paymentReferenceId", ErrGatewayRequest)
	}

	return &CheckoutSession{
		ProviderReference: reference,
		CheckoutURL:       checkoutURL,
		Raw:               data,
	}, nil
}
