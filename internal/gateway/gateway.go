package gateway

import (
	"context"
	"errors"
	"time"

	"paygate_app_echo/internal/models"
)

// Sentinel errors for the two failure classes every adapter can hit.
// Adapters wrap these so callers can map them without knowing the provider.
var (
	ErrGatewayAuth    = errors.New("gateway: token acquisition failed")
	ErrGatewayRequest = errors.New("gateway: checkout request failed")
)

// Outbound gateway calls never block longer than this
const defaultTimeout = 20 * time.Second

// CheckoutSession is what a provider hands back for a newly created checkout
type CheckoutSession struct {
	// ProviderReference is the gateway-assigned correlation id (e.g. bKash paymentID)
	ProviderReference string
	// CheckoutURL is where the payer completes the payment
	CheckoutURL string
	// Raw is the full provider response, kept for auditing
	Raw map[string]interface{}
}

// Gateway is the contract each payment provider implements. Adapters only
// talk to the provider and return data; they never touch the ledger, so a
// failed call leaves the payment exactly as it was.
type Gateway interface {
	Name() models.PaymentMethod

	// AcquireToken exchanges configured credentials for a short-lived bearer
	// token. Providers without a token handshake return an empty token.
	AcquireToken(ctx context.Context) (string, error)

	// CreateCheckout requests a checkout session for a PENDING payment and
	// returns the provider reference plus the redirect URL.
	CreateCheckout(ctx context.Context, payment *models.Payment, callbackURL string) (*CheckoutSession, error)
}

// Registry maps payment methods to their adapters. Adding a provider means
// registering another implementation, not branching in the ledger.
type Registry struct {
	gateways map[models.PaymentMethod]Gateway
}

// NewRegistry builds a registry from the given adapters
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[models.PaymentMethod]Gateway)}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

// Get returns the adapter for a method
func (r *Registry) Get(method models.PaymentMethod) (Gateway, bool) {
	g, ok := r.gateways[method]
	return g, ok
}
