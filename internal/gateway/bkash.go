package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"paygate_app_echo/internal/models"
)

// BkashGateway drives the bKash tokenized checkout flow: grant a bearer
// token, then create a checkout session the payer is redirected to.
type BkashGateway struct {
	baseURL   string
	appKey    string
	appSecret string
	username  string
	password  string
	client    *http.Client
}

// NewBkashGateway builds the adapter from BKASH_* environment variables
func NewBkashGateway() *BkashGateway {
	return &BkashGateway{
		baseURL:   strings.TrimRight(os.Getenv("BKASH_BASE_URL"), "/"),
		appKey:    os.Getenv("BKASH_APP_KEY"),
		appSecret: os.Getenv("BKASH_APP_SECRET"),
		username:  os.Getenv("BKASH_USERNAME"),
		password:  os.Getenv("BKASH_PASSWORD"),
		client:    &http.Client{Timeout: defaultTimeout},
	}
}

func (g *BkashGateway) Name() models.PaymentMethod {
	return models.PaymentMethodBkash
}

// AcquireToken performs the tokenized checkout token grant
func (g *BkashGateway) AcquireToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"app_key":    g.appKey,
		"app_secret": g.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayAuth, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/tokenized/checkout/token/grant", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("username", g.username)
	req.Header.Set("password", g.password)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayAuth, err)
	}
	defer resp.Body.Close()

	var grant struct {
		IDToken   string `json:"id_token"`
		TokenType string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return "", fmt.Errorf("%w: invalid grant response: %v", ErrGatewayAuth, err)
	}
	if resp.StatusCode != http.StatusOK || grant.IDToken == "" {
		return "", fmt.Errorf("%w: grant returned status %d", ErrGatewayAuth, resp.StatusCode)
	}

	return grant.IDToken, nil
}

// CreateCheckout creates a tokenized checkout session for the payment
func (g *BkashGateway) CreateCheckout(ctx context.Context, payment *models.Payment, callbackURL string) (*CheckoutSession, error) {
	token, err := g.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]string{
		"mode":                  "0011",
		"payerReference":        fmt.Sprintf("%d", payment.UserID),
		"callbackURL":           callbackURL,
		"amount":                fmt.Sprintf("%.2f", payment.Amount),
		"currency":              payment.Currency,
		"intent":                "sale",
		"merchantInvoiceNumber": newInvoiceNumber(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/tokenized/checkout/create", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-APP-Key", g.appKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	defer resp.Body.Close()

	var data map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: invalid create response: %v", ErrGatewayRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: create returned status %d", ErrGatewayRequest, resp.StatusCode)
	}

	paymentID, _ := data["paymentID"].(string)
	bkashURL, _ := data["bkashURL"].(string)
	if paymentID == "" {
		return nil, fmt.Errorf("%w: create response missing paymentID", ErrGatewayRequest)
	}

	return &CheckoutSession{
		ProviderReference: paymentID,
		CheckoutURL:       bkashURL,
		Raw:               data,
	}, nil
}

// newInvoiceNumber yields the short merchant invoice number bKash expects
func newInvoiceNumber() string {
	return uuid.NewString()[:10]
}
