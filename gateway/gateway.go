// Package gateway talks to the payment providers: it opens provider-side
// orders and checks the results the hosted checkout hands back.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	Razorpay = "razorpay"
	Stripe   = "stripe"
	Paypal   = "paypal"
)

var (
	ErrUnavailable       = errors.New("payment gateway unavailable")
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	ErrPaymentIncomplete = errors.New("payment not completed")
	ErrUnknown           = errors.New("unknown payment gateway")
)

type OrderRequest struct {
	Receipt  string
	Amount   int64
	Currency string
	Title    string
	Email    string
	Notes    map[string]string
}

type Order struct {
	ID string

	// Token is handed to the browser when the provider needs more than the
	// order id to open its checkout, e.g. a Stripe client secret.
	Token string
}

type Payment struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
	Amount         int64
	Currency       string
}

// Public is the part of a gateway configuration that can be shown to
// browsers.
type Public struct {
	Gateway   string `json:"gateway"`
	Key       string `json:"key"`
	ScriptURL string `json:"script_url"`
}

type Gateway interface {
	Name() string
	Public() Public
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)

	// VerifyPayment checks that the payment belongs to the order and was
	// captured. It returns the provider payment id to store on the order.
	VerifyPayment(ctx context.Context, p Payment) (string, error)
}

// Set indexes the configured gateways by name.
type Set map[string]Gateway

func NewSet(gws ...Gateway) Set {
	s := make(Set, len(gws))
	for _, gw := range gws {
		if gw != nil {
			s[gw.Name()] = gw
		}
	}
	return s
}

func (s Set) Get(name string) (Gateway, error) {
	gw, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("gateway %q (configured: %s): %w", name, strings.Join(s.Names(), ", "), ErrUnknown)
	}
	return gw, nil
}

func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
