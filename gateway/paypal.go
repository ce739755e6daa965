package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/irsalhamdi/traderfolio/config"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

const (
	paypalCompleted = "COMPLETED"
	paypalApproved  = "APPROVED"
)

type PaypalClient struct {
	client *paypal.Client
	cfg    config.Paypal
}

func NewPaypal(client *paypal.Client, cfg config.Paypal) *PaypalClient {
	return &PaypalClient{client: client, cfg: cfg}
}

func (pp *PaypalClient) Name() string { return Paypal }

func (pp *PaypalClient) Public() Public {
	return Public{Gateway: Paypal, Key: pp.cfg.ClientID, ScriptURL: pp.cfg.ScriptURL}
}

func (pp *PaypalClient) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	currency := strings.ToUpper(req.Currency)
	value := MajorUnits(req.Amount)

	units := []paypal.PurchaseUnitRequest{{
		Description: req.Title,
		InvoiceID:   req.Receipt,

		Items: []paypal.Item{{
			Quantity: "1",
			Name:     req.Title,

			UnitAmount: &paypal.Money{
				Currency: currency,
				Value:    value,
			},
		}},

		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    value,

			Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
				Currency: currency,
				Value:    value,
			}},
		},
	}}

	ord, err := pp.client.CreateOrder(ctx, "CAPTURE", units, nil, &paypal.ApplicationContext{})
	if err != nil {
		return Order{}, fmt.Errorf("creating paypal order: %v: %w", err, ErrUnavailable)
	}

	return Order{ID: ord.ID}, nil
}

// VerifyPayment captures the approved PayPal order and returns the capture
// id. An order captured earlier is not captured again; its capture is
// checked against the payment instead.
func (pp *PaypalClient) VerifyPayment(ctx context.Context, p Payment) (string, error) {
	ord, err := pp.client.GetOrder(ctx, p.GatewayOrderID)
	if err != nil {
		return "", paypalError("reading", p.GatewayOrderID, err)
	}

	switch ord.Status {
	case paypalCompleted:
		return settledCapture(ord.PurchaseUnits, p)
	case paypalApproved:
	default:
		return "", fmt.Errorf("paypal order[%s] has status[%s]: %w", p.GatewayOrderID, ord.Status, ErrPaymentIncomplete)
	}

	// The capture id does not exist before the capture, so the checkout can
	// only hand back the order id itself.
	if p.PaymentID != "" && p.PaymentID != p.GatewayOrderID {
		return "", fmt.Errorf("payment[%s] claimed for uncaptured paypal order[%s]: %w", p.PaymentID, p.GatewayOrderID, ErrSignatureMismatch)
	}

	resp, err := pp.client.CaptureOrderWithPaypalRequestId(ctx, p.GatewayOrderID, paypal.CaptureOrderRequest{}, "capture-"+p.GatewayOrderID, nil)
	if err != nil {
		if !isStatus(err, http.StatusUnprocessableEntity) {
			return "", paypalError("capturing", p.GatewayOrderID, err)
		}

		// Usually ORDER_ALREADY_CAPTURED from a concurrent callback.
		again, gerr := pp.client.GetOrder(ctx, p.GatewayOrderID)
		if gerr != nil || again.Status != paypalCompleted {
			return "", fmt.Errorf("capturing paypal order[%s]: %v: %w", p.GatewayOrderID, err, ErrPaymentIncomplete)
		}
		return settledCapture(again.PurchaseUnits, p)
	}

	if resp.Status != paypalCompleted {
		return "", fmt.Errorf("captured order[%s] with status[%s] different from '%s': %w", p.GatewayOrderID, resp.Status, paypalCompleted, ErrPaymentIncomplete)
	}

	units := make([]*paypal.CapturedPayments, 0, len(resp.PurchaseUnits))
	for _, u := range resp.PurchaseUnits {
		units = append(units, u.Payments)
	}
	capt := firstCapture(units)
	if capt == nil || capt.ID == "" {
		return resp.ID, nil
	}
	if err := checkCaptureAmount(capt, p); err != nil {
		return "", err
	}
	return capt.ID, nil
}

// settledCapture checks an already completed PayPal order against p.
func settledCapture(pus []paypal.PurchaseUnit, p Payment) (string, error) {
	units := make([]*paypal.CapturedPayments, 0, len(pus))
	for _, u := range pus {
		units = append(units, u.Payments)
	}

	id := p.GatewayOrderID
	if capt := firstCapture(units); capt != nil && capt.ID != "" {
		if err := checkCaptureAmount(capt, p); err != nil {
			return "", err
		}
		id = capt.ID
	}

	if p.PaymentID != "" && p.PaymentID != id && p.PaymentID != p.GatewayOrderID {
		return "", fmt.Errorf("payment[%s] is not the capture of paypal order[%s]: %w", p.PaymentID, p.GatewayOrderID, ErrSignatureMismatch)
	}
	return id, nil
}

func firstCapture(payments []*paypal.CapturedPayments) *paypal.CaptureAmount {
	for _, pm := range payments {
		if pm != nil && len(pm.Captures) > 0 {
			return &pm.Captures[0]
		}
	}
	return nil
}

func checkCaptureAmount(capt *paypal.CaptureAmount, p Payment) error {
	if capt.Amount == nil || p.Amount == 0 {
		return nil
	}
	if capt.Amount.Value != MajorUnits(p.Amount) || !strings.EqualFold(capt.Amount.Currency, p.Currency) {
		return fmt.Errorf("paypal capture[%s] of %s %s does not match the order: %w", capt.ID, capt.Amount.Value, capt.Amount.Currency, ErrSignatureMismatch)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var perr *paypal.ErrorResponse
	return errors.As(err, &perr) && perr.Response != nil && perr.Response.StatusCode == code
}

func paypalError(action, orderID string, err error) error {
	if isStatus(err, http.StatusNotFound) || isStatus(err, http.StatusUnprocessableEntity) {
		return fmt.Errorf("%s paypal order[%s]: %v: %w", action, orderID, err, ErrPaymentIncomplete)
	}
	return fmt.Errorf("%s paypal order[%s]: %v: %w", action, orderID, err, ErrUnavailable)
}

// MajorUnits renders an amount in minor units as a two-decimal string.
func MajorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
