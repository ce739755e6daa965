package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/irsalhamdi/traderfolio/config"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

const eventPaymentSucceeded = "payment_intent.succeeded"

type StripeClient struct {
	api *stripecl.API
	cfg config.Stripe
}

func NewStripe(api *stripecl.API, cfg config.Stripe) *StripeClient {
	return &StripeClient{api: api, cfg: cfg}
}

// NewStripeAPI builds a Stripe client, pointed at cfg.URL when one is set.
func NewStripeAPI(cfg config.Stripe) *stripecl.API {
	var backends *stripe.Backends
	if cfg.URL != "" {
		backends = &stripe.Backends{
			API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL: stripe.String(cfg.URL),
			}),
		}
	}

	strp := &stripecl.API{}
	strp.Init(cfg.APISecret, backends)
	return strp
}

func (s *StripeClient) Name() string { return Stripe }

func (s *StripeClient) Public() Public {
	return Public{Gateway: Stripe, Key: s.cfg.PublishableKey, ScriptURL: s.cfg.ScriptURL}
}

func (s *StripeClient) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Title),
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("receipt", req.Receipt)
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Order{}, fmt.Errorf("creating stripe payment intent: %v: %w", err, ErrUnavailable)
	}

	return Order{ID: pi.ID, Token: pi.ClientSecret}, nil
}

// VerifyPayment looks the payment intent up on Stripe. The browser cannot
// sign anything for Stripe, so the intent itself is the proof.
func (s *StripeClient) VerifyPayment(ctx context.Context, p Payment) (string, error) {
	id := p.PaymentID
	if id == "" {
		id = p.GatewayOrderID
	}
	if id != p.GatewayOrderID {
		return "", fmt.Errorf("stripe intent[%s] does not belong to order[%s]: %w", id, p.GatewayOrderID, ErrSignatureMismatch)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
			return "", fmt.Errorf("stripe intent[%s] not found: %w", id, ErrSignatureMismatch)
		}
		return "", fmt.Errorf("fetching stripe intent[%s]: %v: %w", id, err, ErrUnavailable)
	}

	if pi.Amount != p.Amount || !strings.EqualFold(string(pi.Currency), p.Currency) {
		return "", fmt.Errorf("stripe intent[%s] charged %d %s, expected %d %s: %w", id, pi.Amount, pi.Currency, p.Amount, p.Currency, ErrSignatureMismatch)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("stripe intent[%s] has status %s: %w", id, pi.Status, ErrPaymentIncomplete)
	}

	return pi.ID, nil
}

// ParseWebhook authenticates a Stripe event. It reports false for events
// that do not settle a payment.
func (s *StripeClient) ParseWebhook(payload []byte, header string) (Payment, bool, error) {
	if header == "" {
		return Payment{}, false, errors.New("received stripe event is not signed")
	}

	event, err := webhook.ConstructEvent(payload, header, s.cfg.WebhookSecret)
	if err != nil {
		return Payment{}, false, fmt.Errorf("cannot construct stripe event: %w", err)
	}

	if event.Type != eventPaymentSucceeded {
		return Payment{}, false, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return Payment{}, false, fmt.Errorf("unable to decode stripe event: %w", err)
	}

	return Payment{GatewayOrderID: pi.ID, PaymentID: pi.ID}, true, nil
}
